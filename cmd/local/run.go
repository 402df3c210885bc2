package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/config"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/connector"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/loader"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/state"
	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// exitInterrupted : conventional exit code after SIGINT
const exitInterrupted = 130

func loadJob(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnv(c.StringSlice("env-file")...); err != nil {
		return nil, err
	}
	return config.Load(afero.NewOsFs(), c.String("job"))
}

// endpoints : source and target built from the job, nothing dialed yet
func endpoints(cfg *config.Config, maxConns int, log zerolog.Logger) (connector.Source, connector.Target, error) {
	srcKind, err := connector.ParseKind(cfg.SourceConfig.Type)
	if err != nil {
		return nil, nil, err
	}
	opts := connector.Options{Log: log, MaxConns: maxConns, SourceKind: srcKind}
	src, err := connector.NewSource(cfg.SourceConfig.Type, cfg.SourceConfig.Params, opts)
	if err != nil {
		return nil, nil, err
	}
	tgt, err := connector.NewTarget(cfg.Target.Type, cfg.Target.Params, opts)
	if err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

func closeAll(log zerolog.Logger, closers ...interface{ Close() error }) {
	var errs *multierror.Error
	for _, c := range closers {
		if c == nil {
			continue
		}
		errs = multierror.Append(errs, c.Close())
	}
	if err := errs.ErrorOrNil(); err != nil {
		log.Warn().Err(err).Msg("closing connections")
	}
}

type planEntry struct {
	Table     string
	LoadType  migrate.LoadType
	ForceLoad bool
}

func runMigration(c *cli.Context) error {
	startTime := time.Now()
	log := logger(c)
	cfg, err := loadJob(c)
	if err != nil {
		return err
	}
	if c.IsSet("max-parallel") {
		cfg.MaxConcurrency = c.Int("max-parallel")
	}
	cfg.ForceLoad = cfg.ForceLoad || c.Bool("force")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the pool never needs more connections than tables running at once
	maxConns := migrate.ClampParallel(cfg.MaxConcurrency, cfg.MaxConcurrencyCeiling, cfg.MaxConcurrencyCeiling)
	src, tgt, err := endpoints(cfg, maxConns, log)
	if err != nil {
		return err
	}
	defer closeAll(log, src, tgt)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return src.Connect(egCtx) })
	eg.Go(func() error { return tgt.Connect(egCtx) })
	if err := eg.Wait(); err != nil {
		return err
	}

	available, err := src.ListTables(ctx)
	if err != nil {
		return err
	}
	tasks, err := cfg.Tasks(available, src, tgt)
	if err != nil {
		return err
	}
	if log.GetLevel() <= zerolog.DebugLevel {
		plan := make([]planEntry, len(tasks))
		for i, t := range tasks {
			plan[i] = planEntry{Table: t.Table, LoadType: t.LoadType, ForceLoad: t.ForceLoad}
		}
		log.Debug().Msg("migration plan\n" + spew.Sdump(plan))
	}

	history, err := state.NewSqliteGormManager(c.String("history-db"), log)
	if err != nil {
		return err
	}
	defer closeAll(log, history)
	runID, err := history.InitRunLog(cfg.SourceConfig.Type, cfg.Target.Type, len(tasks))
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := history.InitTableRunLog(runID, src.Label(), t.Table, string(t.LoadType)); err != nil {
			log.Warn().Err(err).Str("table", t.Table).Msg("could not record table start")
		}
	}

	runErr := execute(ctx, cfg, tasks, history, runID, src.Label(), log)

	if ctx.Err() != nil {
		log.Warn().Msg("Interrupt received. Stopping gracefully...")
		if err := history.OnShutDownEv(); err != nil {
			log.Error().Err(err).Msg("could not mark run as aborted")
		}
		return cli.Exit(fmt.Sprintf("run %s interrupted", runID), exitInterrupted)
	}
	if runErr != nil {
		if err := history.FailedRunLog(runID, runErr); err != nil {
			log.Error().Err(err).Msg("could not record run")
		}
		return cli.Exit(runErr.Error(), 1)
	}
	if err := history.PassedRunLog(runID); err != nil {
		log.Error().Err(err).Msg("could not record run")
	}
	log.Info().Str("run_id", runID).Msgf("Time taken: %s", time.Since(startTime))
	return nil
}

// execute : runs the scheduler and records each outcome, the error lists every failed table
func execute(ctx context.Context, cfg *config.Config, tasks []migrate.Task, history state.Manager, runID string, dbName string, log zerolog.Logger) error {
	bar := progressbar.NewOptions(len(tasks),
		progressbar.OptionSetDescription("Migrating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetItsString("tables"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	runner := migrate.NewTableMigrator(afero.NewOsFs(), loader.Options{
		WorkDir:   cfg.WorkDir,
		ChunkRows: cfg.BatchRecordSize,
		RunAt:     time.Now(),
	}, log)
	scheduler := migrate.NewScheduler(runner, migrate.SchedulerOptions{
		MaxParallel: cfg.MaxConcurrency,
		Ceiling:     cfg.MaxConcurrencyCeiling,
		OnStart: func(_ int, t migrate.Task) {
			bar.Describe("Migrating " + t.Table)
		},
		OnProgress: func(p migrate.Progress, _ migrate.Outcome) {
			_ = bar.Add(1)
			log.Debug().Int("completed", p.Completed).Int("total", p.Total).Float64("progress", p.Fraction()).Msg("progress")
		},
	}, log)

	var failures *multierror.Error
	for o := range scheduler.Run(ctx, tasks) {
		ev := log.Info()
		if !o.Success {
			ev = log.Error().Err(o.Err)
			failures = multierror.Append(failures, fmt.Errorf("%s : %w", o.Table, o.Err))
		}
		ev.Str("table", o.Table).Int("rows", o.Rows).Int("parts", o.Parts).Dur("took", o.Duration).Msg(o.Message)

		err := history.FinishTableRun(runID, dbName, o.Table, state.TableResult{
			RowsWritten: o.Rows,
			Parts:       o.Parts,
			Duration:    o.Duration,
			Err:         outcomeErr(o),
		})
		if err != nil {
			log.Warn().Err(err).Str("table", o.Table).Msg("could not record table outcome")
		}
	}
	if err := failures.ErrorOrNil(); err != nil {
		return fmt.Errorf("%d of %d tables failed : %w", len(failures.Errors), len(tasks), err)
	}
	return nil
}

func outcomeErr(o migrate.Outcome) error {
	if o.Success {
		return nil
	}
	if o.Message != "" {
		return errors.New(o.Message)
	}
	return o.Err
}
