package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/timebuddy/internal/config"
	"github.com/goodtune/timebuddy/internal/engine"
	"github.com/goodtune/timebuddy/internal/logsource"
	"github.com/goodtune/timebuddy/internal/render"
	"github.com/goodtune/timebuddy/internal/report"
	"github.com/goodtune/timebuddy/internal/storage"
	"github.com/goodtune/timebuddy/internal/storage/bolt"
	"github.com/goodtune/timebuddy/internal/storage/redis"
	"github.com/spf13/cobra"
)

var (
	reportDays            int
	reportIncludeWeekends bool
	reportNoCache         bool
	reportVerbose         bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show daily screen time for the last N days",
	Long: `Reconstruct unlock/lock sessions from the unified log for the last N
days and print one line per day with an hourly breakdown, raw time, block
time, and status against the expected hours.`,
	Example: `  timebuddy report --days 14
  timebuddy report --days 30 --include-weekends --no-cache`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Number of days back to calculate screen time for")
	reportCmd.Flags().BoolVar(&reportIncludeWeekends, "include-weekends", false, "Count weekend days at full expected hours")
	reportCmd.Flags().BoolVar(&reportNoCache, "no-cache", false, "Bypass the cache entirely, refetching all logs")
	reportCmd.Flags().BoolVarP(&reportVerbose, "verbose", "v", false, "Print reconstructed sessions for validation")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDays <= 0 {
		return fmt.Errorf("invalid --days value: %d (must be positive)", reportDays)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, reportVerbose)

	loc := time.Local
	if cfg.Source.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Source.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	source, err := logsource.New(logsource.Config{
		Command:  cfg.Source.Command,
		Timeout:  parseDuration(cfg.Source.Timeout, 30*time.Second),
		Location: loc,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize log source: %w", err)
	}

	var cache storage.Store
	if !reportNoCache {
		cache, err = openStorage(cfg.Storage)
		if err != nil {
			// The report can still be computed without a cache.
			logger.Warn().Err(err).Msg("Cache unavailable, computing without it")
			cache = nil
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					logger.Error().Err(err).Msg("Failed to close cache store")
				}
			}()
		}
	}

	eng := engine.New(source, cache, loc, engine.RealClock{}, logger)
	result, err := eng.Run(cmd.Context(), engine.Options{
		Days:    reportDays,
		NoCache: reportNoCache,
	})
	if err != nil {
		return err
	}

	if result.Skipped > 0 {
		logger.Warn().Int("skipped", result.Skipped).Msg("Skipped malformed log entries")
	}

	includeWeekends := cfg.Report.IncludeWeekends
	if cmd.Flags().Changed("include-weekends") {
		includeWeekends = reportIncludeWeekends
	}

	rows, summary := report.Assemble(result.Days, report.Options{
		ExpectedPerDay:  cfg.Report.ExpectedPerDay(),
		IncludeWeekends: includeWeekends,
	})

	render.Report(os.Stdout, rows, summary)
	return nil
}

// openStorage opens the configured cache backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
