package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/bootstrap"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/devseed"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/service"
)

const defaultCommandTimeout = 5 * time.Minute

type timeoutOptions struct {
	Timeout time.Duration
}

type rollupOptions struct {
	timeoutOptions
	Date time.Time // zero means yesterday and today
}

type cleanupOptions struct {
	timeoutOptions
	Yes bool
}

type summaryOptions struct {
	timeoutOptions
	Days int
}

type seedOptions struct {
	timeoutOptions
	Days        int
	PerDay      int
	Seed        uint64
	AllowRemote bool
}

func newFlagSet(name string, opts *timeoutOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Command timeout")
	return fs
}

func parseMigrateFlags(args []string) (timeoutOptions, error) {
	var opts timeoutOptions
	fs := newFlagSet("migrate", &opts)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Timeout <= 0 {
		return opts, errors.New("--timeout must be positive")
	}
	return opts, nil
}

func parseRollupFlags(args []string) (rollupOptions, error) {
	var opts rollupOptions
	var date string
	fs := newFlagSet("rollup", &opts.timeoutOptions)
	fs.StringVar(&date, "date", "", "UTC day to rebuild (YYYY-MM-DD); default rebuilds yesterday and today")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if date != "" {
		day, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return opts, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		opts.Date = day
	}
	return opts, nil
}

func parseCleanupFlags(args []string) (cleanupOptions, error) {
	var opts cleanupOptions
	fs := newFlagSet("cleanup", &opts.timeoutOptions)
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseSummaryFlags(args []string) (summaryOptions, error) {
	var opts summaryOptions
	fs := newFlagSet("summary", &opts.timeoutOptions)
	fs.IntVar(&opts.Days, "days", service.DefaultSummaryDays, "Number of days to include (1-30)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Days < service.MinSummaryDays || opts.Days > service.MaxSummaryDays {
		return opts, fmt.Errorf("--days must be between %d and %d", service.MinSummaryDays, service.MaxSummaryDays)
	}
	return opts, nil
}

func parseSeedFlags(args []string) (seedOptions, error) {
	var opts seedOptions
	fs := newFlagSet("db-seed", &opts.timeoutOptions)
	fs.IntVar(&opts.Days, "days", 7, "Days of history ending today")
	fs.IntVar(&opts.PerDay, "per-day", 20, "Events per kind per day")
	fs.Uint64Var(&opts.Seed, "seed", 1, "Random seed for reproducible data")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Allow seeding a non-local database")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Days < 1 || opts.Days > service.MaxSummaryDays {
		return opts, fmt.Errorf("--days must be between 1 and %d", service.MaxSummaryDays)
	}
	if opts.PerDay < 1 {
		return opts, errors.New("--per-day must be positive")
	}
	return opts, nil
}

func isLocalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "postgres", "db":
		return true
	}
	return false
}

// withServices connects the stores and builds the services without starting any runner.
func withServices(
	cmdCtx *commandContext,
	timeout time.Duration,
	fn func(ctx context.Context, svcs *bootstrap.ServiceContainer) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := cmdCtx.Config
	cfg.Services = string(config.ServiceModeScheduler)
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: cmdCtx.Logger}

	db, err := bootstrap.ConnectDB(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	deps := &bootstrap.ServiceDeps{Config: &cfg, DB: db, Logger: cmdCtx.Logger}
	if bootstrap.NeedsRedis(&cfg) {
		rdb, redisErr := bootstrap.ConnectRedis(ctx, dbCfg)
		if redisErr != nil {
			return fmt.Errorf("connect redis: %w", redisErr)
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
		deps.RedisClient = rdb
	}

	svcs, err := bootstrap.NewServices(deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svcs.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("services close failed", "error", closeErr)
		}
	}()
	return fn(ctx, svcs)
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runRollup(cmdCtx *commandContext, args []string) error {
	opts, err := parseRollupFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svcs *bootstrap.ServiceContainer) error {
		if opts.Date.IsZero() {
			if err := svcs.Aggregator.RollupRecent(ctx, time.Now().UTC()); err != nil {
				return err
			}
			return writef(cmdCtx.Out, "rolled up yesterday and today\n")
		}
		rows, err := svcs.Aggregator.Rollup(ctx, opts.Date)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := writef(cmdCtx.Out, "%s %-6s total=%d flagged=%d clean=%d error=%d\n",
				row.Date.Format(time.DateOnly), row.SourceType,
				row.TotalRequests, row.FlaggedCount, row.CleanCount, row.ErrorCount); err != nil {
				return err
			}
		}
		return nil
	})
}

func runCleanup(cmdCtx *commandContext, args []string) error {
	opts, err := parseCleanupFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		return errors.New("cleanup deletes data permanently; re-run with --yes to confirm")
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svcs *bootstrap.ServiceContainer) error {
		report, err := svcs.Reaper.RunCleanup(ctx)
		if printErr := printCleanupReport(cmdCtx.Out, report); printErr != nil {
			return errors.Join(err, printErr)
		}
		return err
	})
}

func runSummary(cmdCtx *commandContext, args []string) error {
	opts, err := parseSummaryFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svcs *bootstrap.ServiceContainer) error {
		summary, err := svcs.Aggregator.Summary(ctx, opts.Days)
		if err != nil {
			return err
		}
		return printSummary(cmdCtx.Out, summary)
	})
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseSeedFlags(args)
	if err != nil {
		return err
	}
	if !opts.AllowRemote && !isLocalHost(cmdCtx.Config.Postgres.Host) {
		return fmt.Errorf("refusing to seed database on %q; pass --allow-remote to override", cmdCtx.Config.Postgres.Host)
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svcs *bootstrap.ServiceContainer) error {
		report, err := devseed.Run(ctx, devseed.Stores{
			Events:  svcs.Events,
			Metrics: svcs.Metrics,
			Rollup:  svcs.Aggregator,
		}, devseed.Options{Days: opts.Days, PerDay: opts.PerDay, Seed: opts.Seed}, cmdCtx.Logger)
		if printErr := writef(cmdCtx.Out, "seeded events=%d metrics=%d days=%d duplicates=%d\n",
			report.Events, report.Metrics, report.RolledUp, report.SkippedDups); printErr != nil {
			return errors.Join(err, printErr)
		}
		return err
	})
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	var opts timeoutOptions
	fs := newFlagSet("queue-stats", &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svcs *bootstrap.ServiceContainer) error {
		q, ok := svcs.Queue.(core.JobQueueStats)
		if !ok {
			return errors.New("configured queue backend does not report stats")
		}
		tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
		if err := writef(tw, "KIND\tPENDING\tRUNNING\tCOMPLETED\n"); err != nil {
			return err
		}
		for _, kind := range model.Kinds() {
			stats, err := q.Stats(ctx, kind)
			if err != nil {
				return fmt.Errorf("%s stats: %w", kind, err)
			}
			if err := writef(tw, "%s\t%d\t%d\t%d\n", kind, stats.Pending, stats.Running, stats.Completed); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

func printCleanupReport(w io.Writer, report service.CleanupReport) error {
	return writef(w, "deleted jobs=%d results=%d metrics=%d uploads=%d total=%d\n",
		report.Jobs, report.Results, report.Metrics, report.Uploads, report.Total())
}

func printSummary(w io.Writer, summary *model.AnalyticsSummary) error {
	if err := writef(w, "%s: %d requests\n\n", summary.Period, summary.TotalRequests); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "DATE\tTOTAL\tFLAGGED\tCLEAN\tERROR\n"); err != nil {
		return err
	}
	for _, day := range summary.DailyBreakdown {
		if err := writef(tw, "%s\t%d\t%d\t%d\t%d\n", day.Date, day.TotalRequests, day.Flagged, day.Clean, day.Error); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := writef(w, "\n"); err != nil {
		return err
	}
	for _, kind := range model.Kinds() {
		c := summary.BySource[kind]
		if err := writef(w, "%-6s total=%d flagged=%d clean=%d error=%d\n",
			kind, c.TotalRequests, c.Flagged, c.Clean, c.Error); err != nil {
			return err
		}
	}
	return nil
}
