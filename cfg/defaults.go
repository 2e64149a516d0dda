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

// Default returns the configuration used before any flags or config file
// have been parsed, and by tests that don't care about the specifics.
func Default() Config {
	return Config{
		Dat: DatConfig{
			BlockSize:             4096,
			MaxDestinationsPerRun: 4096,
		},
		Transaction: TransactionConfig{
			RetryOnSegmentFailure: false,
		},
		Logging: LoggingConfig{
			Format:   TextLogFormat,
			Severity: InfoLogSeverity,
		},
		Debug: DebugConfig{
			ExitOnInvariantViolation: true,
		},
	}
}
