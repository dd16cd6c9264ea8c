// Command graphdb is the CLI and interactive shell over internal/engine:
// open a database directory, run Cypher statements against it one-shot
// or from a REPL, and inspect plans and index declarations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphdb/core/internal/config"
	"github.com/graphdb/core/internal/engine"
)

var (
	dataDir    string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "graphdb",
	Short: "graphdb - a labeled property graph database",
	Long: `graphdb opens a labeled property graph database backed by an
on-disk transactional key-value store, and runs Cypher-like queries
against it.

Run with no subcommand to start an interactive shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "database directory (overrides config file and GRAPHDB_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "graphdb.toml", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(indexCmd)
}

// loadConfig resolves the effective config for this invocation: the
// TOML file plus environment overrides (internal/config.Load), with
// --data-dir/--log-level flags taking final precedence since an
// explicit flag always outranks a file or env var.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg, newLogger(cfg))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
