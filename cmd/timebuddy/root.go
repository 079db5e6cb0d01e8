package main

import (
	"fmt"
	"os"

	"github.com/goodtune/timebuddy/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timebuddy",
	Short: "TimeBuddy - Daily working hours from screen lock logs",
	Long: `TimeBuddy reconstructs your daily working hours from the screen
lock/unlock events in the macOS unified log, aggregates them per day, and
prints a colored hourly breakdown with raw and block time.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to report command when no subcommand is provided
		return runReport(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (optional)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Default to console output; this is an interactive tool.
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
