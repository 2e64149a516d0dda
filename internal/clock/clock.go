// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides a mockable source of time for the dedup engine.
//
// The dedup transaction (package txn) timestamps its log lines with "now";
// routing it through an interface lets tests advance time deterministically
// instead of sleeping.
package clock

import "time"

// Clock is a source of the current time, and of timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time after d has elapsed.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = &SimulatedClock{}
	_ Clock = &FakeClock{}
)
