package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/loader"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMigrator(fs afero.Fs, chunkRows int) *TableMigrator {
	return NewTableMigrator(fs, loader.Options{
		WorkDir:   "/work",
		ChunkRows: chunkRows,
		RunAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, zerolog.Nop())
}

func TestMigrateNewTable(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := &memSource{
		tables: map[string]*table.Data{"users": usersData(250)},
		types:  map[string]map[string]string{"users": {"id": "int", "name": "varchar(255)"}},
	}
	tgt := newMemTarget(fs)

	out := newTestMigrator(fs, 100).Migrate(context.Background(), Task{
		Table: "users", LoadType: TruncateAndLoad, Source: src, Target: tgt,
	})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Successfully migrated users (Truncate and Load)", out.Message)
	assert.Equal(t, 250, out.Rows)
	assert.Equal(t, 3, out.Parts)
	assert.Equal(t, 250, tgt.rowCount("users"))
	assert.Equal(t, 1, tgt.created)

	cols := tgt.tables["USERS"].cols
	require.Len(t, cols, 2)
	assert.Equal(t, "NUMBER", cols[0].TargetType)
	assert.Equal(t, "VARCHAR", cols[1].TargetType)
}

func TestMigrateSchemaMismatch(t *testing.T) {
	setup := func() (*memSource, *memTarget, afero.Fs) {
		fs := afero.NewMemMapFs()
		src := &memSource{tables: map[string]*table.Data{
			"orders": {Columns: []string{"id", "total", "discount"}, Rows: [][]string{{"1", "10.5", "0.5"}}},
		}}
		tgt := newMemTarget(fs)
		tgt.tables["ORDERS"] = &memTable{
			cols: []*table.ColumnTypes{{ColumnName: "ID"}, {ColumnName: "TOTAL"}},
			rows: [][]string{{"9", "99"}},
		}
		return src, tgt, fs
	}

	t.Run("skipped without force", func(t *testing.T) {
		src, tgt, fs := setup()
		out := newTestMigrator(fs, 0).Migrate(context.Background(), Task{
			Table: "orders", LoadType: TruncateAndLoad, Source: src, Target: tgt,
		})
		assert.False(t, out.Success)
		assert.ErrorIs(t, out.Err, faults.ErrSchemaMismatch)
		assert.Contains(t, out.Message, "Schema mismatch for orders:")
		assert.Contains(t, out.Message, "Columns in MySQL but not in Snowflake: DISCOUNT")
		assert.Equal(t, 0, tgt.truncates)
		assert.Equal(t, 1, tgt.rowCount("orders"))
	})

	t.Run("force loads anyway", func(t *testing.T) {
		src, tgt, fs := setup()
		out := newTestMigrator(fs, 0).Migrate(context.Background(), Task{
			Table: "orders", LoadType: Append, Source: src, Target: tgt, ForceLoad: true,
		})
		require.True(t, out.Success, out.Message)
		assert.Equal(t, "Successfully migrated orders (Append)", out.Message)
		assert.Equal(t, 2, tgt.rowCount("orders"))
	})
}

func TestMigrateLoadTypes(t *testing.T) {
	cases := []struct {
		loadType LoadType
		want     int
	}{
		{TruncateAndLoad, 10},
		{Append, 20},
	}
	for _, c := range cases {
		t.Run(string(c.loadType), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			src := &memSource{tables: map[string]*table.Data{"orders": usersData(10)}}
			tgt := newMemTarget(fs)
			m := newTestMigrator(fs, 3)
			task := Task{Table: "orders", LoadType: c.loadType, Source: src, Target: tgt}

			for i := 0; i < 2; i++ {
				out := m.Migrate(context.Background(), task)
				require.True(t, out.Success, out.Message)
			}
			assert.Equal(t, c.want, tgt.rowCount("orders"))
		})
	}
}

func TestMigrateEmptyTable(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := &memSource{tables: map[string]*table.Data{"empty": {Columns: []string{"id"}}}}
	tgt := newMemTarget(fs)

	out := newTestMigrator(fs, 0).Migrate(context.Background(), Task{
		Table: "empty", LoadType: TruncateAndLoad, Source: src, Target: tgt,
	})
	require.True(t, out.Success, out.Message)
	assert.Equal(t, 0, out.Parts)
	assert.Equal(t, 0, tgt.rowCount("empty"))
}

func TestMigrateFailures(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		boom := errors.New("connection reset")
		src := &memSource{fetchErr: boom}
		out := newTestMigrator(fs, 0).Migrate(context.Background(), Task{
			Table: "users", LoadType: Append, Source: src, Target: newMemTarget(fs),
		})
		assert.False(t, out.Success)
		assert.ErrorIs(t, out.Err, boom)
		assert.Contains(t, out.Message, "Error migrating users")
	})

	t.Run("copy error", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := &memSource{tables: map[string]*table.Data{"users": usersData(5)}}
		tgt := newMemTarget(fs)
		tgt.copyErr = errors.New("copy aborted")
		out := newTestMigrator(fs, 2).Migrate(context.Background(), Task{
			Table: "users", LoadType: Append, Source: src, Target: tgt,
		})
		assert.False(t, out.Success)
		assert.ErrorIs(t, out.Err, faults.ErrLoad)
		assert.Contains(t, out.Message, "Failed to load data for users")
	})

	t.Run("panic is contained", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := &memSource{panicOn: "users"}
		out := newTestMigrator(fs, 0).Migrate(context.Background(), Task{
			Table: "users", LoadType: Append, Source: src, Target: newMemTarget(fs),
		})
		assert.False(t, out.Success)
		assert.Error(t, out.Err)
		assert.Contains(t, out.Message, "driver exploded")
	})

	t.Run("missing connectors", func(t *testing.T) {
		out := newTestMigrator(afero.NewMemMapFs(), 0).Migrate(context.Background(), Task{Table: "users"})
		assert.False(t, out.Success)
		assert.ErrorIs(t, out.Err, faults.ErrConnection)
	})
}
