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

// Package cfg binds the dedup engine's tunables to command-line flags and an
// optional YAML config file, the way gcsfuse's cfg package binds its mount
// options.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for the dedup engine CLI.
type Config struct {
	Dat DatConfig `yaml:"dat"`

	Transaction TransactionConfig `yaml:"transaction"`

	Logging LoggingConfig `yaml:"logging"`

	Debug DebugConfig `yaml:"debug"`
}

// DatConfig governs the DAT-entry editor and driver.
type DatConfig struct {
	// BlockSize is the size in bytes of one block, used by the comparator to
	// size its read buffers and by the reflink path as the largest source
	// size it accepts.
	BlockSize int64 `yaml:"block-size"`

	// MaxDestinationsPerRun bounds how many block descriptors (sources and
	// destinations together) the dedup command accepts from one descriptor
	// file; a larger file is rejected before driver.Dedup runs. Not named in
	// spec.md.
	MaxDestinationsPerRun int `yaml:"max-destinations-per-run"`
}

// TransactionConfig governs the dedup transaction (spec §4.3).
type TransactionConfig struct {
	// RetryOnSegmentFailure is bound to a flag and a config key, but no
	// command or package reads it: a pair whose segment write fails is
	// skipped by the driver without a retry, whatever its value.
	RetryOnSegmentFailure bool `yaml:"retry-on-segment-failure"`
}

// LoggingConfig governs internal/logger.
type LoggingConfig struct {
	Format   LogFormat   `yaml:"format"`
	Severity LogSeverity `yaml:"severity"`
}

// DebugConfig governs invariant-violation handling (spec §7: post-commit
// invariant violations are "fatal / process-abort class").
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
}

// BindFlags registers the dedup engine's flags on flagSet and binds each to
// its viper key, mirroring gcsfuse's hand-maintained cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.Int64P("block-size", "", 4096, "Size in bytes of one block.")
	if err = viper.BindPFlag("dat.block-size", flagSet.Lookup("block-size")); err != nil {
		return err
	}

	flagSet.IntP("max-destinations-per-run", "", 4096, "Maximum destination descriptors accepted from one dedup run.")
	if err = viper.BindPFlag("dat.max-destinations-per-run", flagSet.Lookup("max-destinations-per-run")); err != nil {
		return err
	}

	flagSet.BoolP("retry-on-segment-failure", "", false, "Not read by any command; a pair whose segment write fails is skipped without a retry.")
	if err = viper.BindPFlag("transaction.retry-on-segment-failure", flagSet.Lookup("retry-on-segment-failure")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.BoolP("exit-on-invariant-violation", "", true, "Exit the process when a post-commit DAT invariant is violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("exit-on-invariant-violation")); err != nil {
		return err
	}

	return nil
}
