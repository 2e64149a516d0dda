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

package driver

import "errors"

// ErrUnsupported covers every input the driver refuses outright rather
// than skip-and-continue: an empty or single-element block list (spec §8,
// "Boundary cases").
var ErrUnsupported = errors.New("driver: unsupported input")

// ErrInvariantViolation is raised when the post-commit translation check
// (spec §4.4 step 3) fails after a transaction reported success. Spec §7
// classifies this as corruption, "fatal (process-abort class)".
var ErrInvariantViolation = errors.New("driver: post-commit DAT invariant violated")
