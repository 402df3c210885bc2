package main

import (
	"fmt"
	"os"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/state"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// loggerKey : App.Metadata entry holding the logger built in Before
const loggerKey = "logger"

func newLogger(verbosity string, format string) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(verbosity)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid verbosity %q : %w", verbosity, err)
	}
	if format == "json" {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger(), nil
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(level).With().Timestamp().Logger(), nil
}

// appLogger : the logger Before stored on the app, a no-op one before that
func appLogger(app *cli.App) zerolog.Logger {
	if l, ok := app.Metadata[loggerKey].(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

func logger(c *cli.Context) zerolog.Logger {
	return appLogger(c.App)
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "db-transfer",
		Usage:    "copy relational tables (mysql, sql server) into snowflake",
		Version:  version,
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "info",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := newLogger(c.String("verbosity"), c.String("log-format"))
			if err != nil {
				return err
			}
			c.App.Metadata[loggerKey] = l
			return nil
		},
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Migrate the tables of a job file",
				Action: runMigration,
				Flags: append(jobFlags(),
					&cli.IntFlag{
						Name:  "max-parallel",
						Usage: "Tables migrated at once, overrides max_concurrency",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Load tables even when their columns differ from the target",
					},
					&cli.StringFlag{
						Name:  "history-db",
						Value: state.DefaultPath,
						Usage: "SQLite file the run history is written to",
					},
				),
			},
			{
				Name:   "tables",
				Usage:  "List the tables of the job's source database",
				Action: listTables,
				Flags:  jobFlags(),
			},
			{
				Name:   "history",
				Usage:  "Show the last recorded run",
				Action: showHistory,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "history-db",
						Value: state.DefaultPath,
						Usage: "SQLite file the run history is read from",
					},
				},
			},
		},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log := appLogger(app)
		log.Error().Err(err).Msg("db-transfer failed")
		if ec, ok := err.(cli.ExitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

func jobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "job",
			Aliases: []string{"c"},
			Value:   "job.json",
			Usage:   "Path to the job file",
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "dotenv files loaded before the job is read (default .env when present)",
		},
	}
}
