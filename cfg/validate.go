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

package cfg

import "fmt"

const (
	BlockSizeInvalidValueError            = "the value of block-size must be a positive power of two"
	MaxDestinationsPerRunInvalidValueError = "the value of max-destinations-per-run must be at least 1"
)

// Validate rejects configurations the engine cannot run with.
func Validate(c *Config) error {
	if c.Dat.BlockSize <= 0 || c.Dat.BlockSize&(c.Dat.BlockSize-1) != 0 {
		return fmt.Errorf(BlockSizeInvalidValueError)
	}
	if c.Dat.MaxDestinationsPerRun < 1 {
		return fmt.Errorf(MaxDestinationsPerRunInvalidValueError)
	}
	if _, ok := severityRanking[c.Logging.Severity]; !ok {
		return fmt.Errorf("invalid logging.severity: %s", c.Logging.Severity)
	}
	return nil
}
