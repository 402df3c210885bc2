package migrate

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/loader"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Runner : migrates one table, faults come back inside the Outcome and never as a panic
type Runner interface {
	Migrate(ctx context.Context, task Task) Outcome
}

// TableMigrator : schema check -> optional truncate -> create if absent -> chunked load
type TableMigrator struct {
	fs   afero.Fs
	opts loader.Options
	log  zerolog.Logger
}

// NewTableMigrator : fs holds the chunk files, opts.RunAt should be shared by every table of a run
func NewTableMigrator(fs afero.Fs, opts loader.Options, log zerolog.Logger) *TableMigrator {
	if opts.RunAt.IsZero() {
		opts.RunAt = time.Now()
	}
	return &TableMigrator{
		fs:   fs,
		opts: opts,
		log:  log.With().Str("component", "migrator").Logger(),
	}
}

func (m *TableMigrator) Migrate(ctx context.Context, task Task) (out Outcome) {
	start := time.Now()
	log := m.log.With().Str("table", task.Table).Str("load_type", string(task.LoadType)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("migration panicked")
			out = failed(task.Table, fmt.Errorf("panic : %v", r), "Error migrating %s: %v", task.Table, r)
		}
		out.Duration = time.Since(start)
	}()
	return m.migrate(ctx, task, log)
}

func (m *TableMigrator) migrate(ctx context.Context, task Task, log zerolog.Logger) Outcome {
	src, tgt := task.Source, task.Target
	if src == nil || tgt == nil {
		return failed(task.Table, faults.ErrConnection, "Error migrating %s: source and target connectors are required", task.Table)
	}

	data, err := src.FetchTable(ctx, task.Table)
	if err != nil {
		return failed(task.Table, err, "Error migrating %s: %v", task.Table, err)
	}
	if data == nil {
		data = &table.Data{}
	}

	exists, err := tgt.TableExists(ctx, task.Table)
	if err != nil {
		return failed(task.Table, err, "Error migrating %s: %v", task.Table, err)
	}
	var existing []string
	if exists {
		if existing, err = tgt.ExistingColumns(ctx, task.Table); err != nil {
			return failed(task.Table, err, "Error migrating %s: %v", task.Table, err)
		}
	}
	diff := table.Compare(existing, data.Columns, exists)
	if !diff.Match {
		msg := diff.Message(src.Label(), tgt.Label())
		if !task.ForceLoad {
			log.Warn().Strs("missing_in_target", diff.MissingInTarget).Strs("missing_in_source", diff.MissingInSource).Msg("schema mismatch, table skipped")
			return failed(task.Table, faults.ErrSchemaMismatch, "Schema mismatch for %s:\n%s", task.Table, msg)
		}
		log.Warn().Strs("missing_in_target", diff.MissingInTarget).Strs("missing_in_source", diff.MissingInSource).
			Msgf("Proceeding with migration despite column mismatch for %s:\n%s", task.Table, msg)
	}

	if task.LoadType == TruncateAndLoad {
		if err := tgt.Truncate(ctx, task.Table); err != nil {
			return failed(task.Table, err, "Failed to truncate %s: %v", task.Table, err)
		}
	}

	cols, err := m.mapColumns(ctx, task, data)
	if err != nil {
		return failed(task.Table, err, "Error migrating %s: %v", task.Table, err)
	}
	if err := tgt.CreateTable(ctx, task.Table, cols); err != nil {
		return failed(task.Table, err, "Failed to create table %s in %s: %v", task.Table, tgt.Label(), err)
	}

	res, err := loader.New(m.fs, tgt, m.opts, log).Load(ctx, table.TargetIdentifier(task.Table), data)
	if err != nil {
		out := failed(task.Table, err, "Failed to load data for %s: %v", task.Table, err)
		out.Rows, out.Parts = res.Rows, res.Parts
		return out
	}
	log.Info().Int("rows", res.Rows).Int("parts", res.Parts).Msg("table migrated")
	return Outcome{
		Table:   task.Table,
		Success: true,
		Message: fmt.Sprintf("Successfully migrated %s (%s)", task.Table, task.LoadType.Label()),
		Rows:    res.Rows,
		Parts:   res.Parts,
	}
}

// mapColumns : every fetched column in source order, typed through the target's mapper.
// Columns the metadata query does not know about resolve from an empty type, ie the default.
func (m *TableMigrator) mapColumns(ctx context.Context, task Task, data *table.Data) ([]*table.ColumnTypes, error) {
	types, err := task.Source.ColumnTypes(ctx, task.Table)
	if err != nil {
		return nil, err
	}
	mapper := task.Target.TypeMapper()
	cols := make([]*table.ColumnTypes, 0, len(data.Columns))
	for _, c := range data.Columns {
		srcType := types[c]
		cols = append(cols, &table.ColumnTypes{
			ColumnName: c,
			Type:       srcType,
			TargetType: mapper.Resolve(srcType),
		})
	}
	return cols, nil
}
