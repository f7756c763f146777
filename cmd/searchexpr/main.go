// Command searchexpr evaluates search expressions against record datasets.
//
// Usage:
//
//	searchexpr eval 'count{t:prefab}' --dataset assets.json
//	searchexpr pipe < requests.ndjson
//	searchexpr batch queries.txt --workers 8
//	searchexpr repl
//	searchexpr serve --addr :8080
//	searchexpr evaluators
//	searchexpr validate 'sort{*, @label}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr"
	"github.com/sandrolain/searchexpr/internal/config"
	"github.com/sandrolain/searchexpr/internal/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "searchexpr",
	Short:         "Evaluate search expressions over record datasets",
	Version:       searchexpr.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./searchexpr.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("dataset", "", "JSON dataset file to query")
	flags.String("sqlite", "", "SQLite database to query")
	flags.String("schema", "", "JSON schema file for datasets")
	flags.Bool("debug", false, "log evaluator binding and provider queries")
	flags.Uint64("seed", 0, "seed for the random evaluator")
	flags.Duration("timeout", 0, "evaluation timeout")

	rootCmd.AddCommand(evalCmd, pipeCmd, batchCmd, replCmd, serveCmd, evaluatorsCmd, validateCmd)
}

// applyFlagOverrides copies explicitly set persistent flags over the loaded
// configuration.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("dataset") {
		c.Provider.Dataset, _ = flags.GetString("dataset")
	}
	if flags.Changed("sqlite") {
		c.Provider.SQLite, _ = flags.GetString("sqlite")
	}
	if flags.Changed("schema") {
		c.Provider.Schema, _ = flags.GetString("schema")
	}
	if flags.Changed("debug") {
		c.Eval.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("seed") {
		c.Eval.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("timeout") {
		c.Eval.Timeout, _ = flags.GetDuration("timeout")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
