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

// Package cmd is the dedupctl CLI: a cobra/viper command tree over the
// engine in internal/, mirroring gcsfuse's cmd/root.go config-binding
// idiom.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bachm44/nilfs2dedup/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error

	// RuntimeConfig is the parsed configuration every subcommand reads
	// from once rootCmd's PersistentPreRunE has run.
	RuntimeConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "dedupctl",
	Short: "Drive the block-level deduplication engine over a NILFS2-style DAT",
	Long: `dedupctl exercises the DAT-entry editor, dedup transaction, dedup
driver, reflink path, and read interposition of the block-level
deduplication engine from the command line.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		return cfg.Validate(&RuntimeConfig)
	},
}

// Execute runs the root command, exiting the process with status 1 on
// error the way gcsfuse's cmd.Execute does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(reflinkCmd)
}

// initConfig mirrors gcsfuse's cmd.initConfig: read an optional YAML file
// into viper, then fold viper's view (file + bound flags, flags winning)
// into RuntimeConfig. Fields are read by their bound viper key rather than
// via a generic viper.Unmarshal, since cfg.Config's struct tags are "yaml"
// (for hand-written config files) and not "mapstructure" (viper's decode
// default) — gcsfuse avoids the same mismatch with a generated param
// mapper; this CLI's config surface is small enough to populate by hand.
func initConfig() {
	RuntimeConfig = cfg.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}

	if viper.IsSet("dat.block-size") {
		RuntimeConfig.Dat.BlockSize = viper.GetInt64("dat.block-size")
	}
	if viper.IsSet("dat.max-destinations-per-run") {
		RuntimeConfig.Dat.MaxDestinationsPerRun = viper.GetInt("dat.max-destinations-per-run")
	}
	if viper.IsSet("transaction.retry-on-segment-failure") {
		RuntimeConfig.Transaction.RetryOnSegmentFailure = viper.GetBool("transaction.retry-on-segment-failure")
	}
	if viper.IsSet("logging.format") {
		RuntimeConfig.Logging.Format = cfg.LogFormat(viper.GetString("logging.format"))
	}
	if viper.IsSet("logging.severity") {
		RuntimeConfig.Logging.Severity = cfg.LogSeverity(viper.GetString("logging.severity"))
	}
	if viper.IsSet("debug.exit-on-invariant-violation") {
		RuntimeConfig.Debug.ExitOnInvariantViolation = viper.GetBool("debug.exit-on-invariant-violation")
	}
}
