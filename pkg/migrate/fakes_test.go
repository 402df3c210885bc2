package migrate

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table/colmap"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type memSource struct {
	tables   map[string]*table.Data
	types    map[string]map[string]string
	fetchErr error
	panicOn  string
}

func (s *memSource) Connect(context.Context) error { return nil }

func (s *memSource) ListTables(context.Context) ([]string, error) {
	var res []string
	for k := range s.tables {
		res = append(res, k)
	}
	return res, nil
}

func (s *memSource) FetchTable(_ context.Context, name string) (*table.Data, error) {
	if name == s.panicOn {
		panic("driver exploded")
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	d, ok := s.tables[name]
	if !ok {
		return nil, errors.New("no such table " + name)
	}
	return d, nil
}

func (s *memSource) ColumnTypes(_ context.Context, name string) (map[string]string, error) {
	return s.types[name], nil
}

func (s *memSource) Label() string { return "MySQL" }
func (s *memSource) Close() error  { return nil }

type memTable struct {
	cols []*table.ColumnTypes
	rows [][]string
}

// memTarget : in memory warehouse reading the staged csv files back from fs
type memTarget struct {
	fs        afero.Fs
	mu        sync.Mutex
	tables    map[string]*memTable
	copyErr   error
	truncates int
	created   int
}

func newMemTarget(fs afero.Fs) *memTarget {
	return &memTarget{fs: fs, tables: map[string]*memTable{}}
}

func (t *memTarget) Connect(context.Context) error { return nil }

func (t *memTarget) TableExists(_ context.Context, name string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tables[table.TargetIdentifier(name)]
	return ok, nil
}

func (t *memTarget) ExistingColumns(_ context.Context, name string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []string
	for _, c := range t.tables[table.TargetIdentifier(name)].cols {
		res = append(res, strings.ToUpper(c.ColumnName))
	}
	return res, nil
}

func (t *memTarget) CreateTable(_ context.Context, name string, cols []*table.ColumnTypes) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tables[table.TargetIdentifier(name)]; ok {
		return nil
	}
	t.created++
	t.tables[table.TargetIdentifier(name)] = &memTable{cols: cols}
	return nil
}

func (t *memTarget) Truncate(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.truncates++
	if tb, ok := t.tables[table.TargetIdentifier(name)]; ok {
		tb.rows = nil
	}
	return nil
}

func (t *memTarget) StageAndLoad(_ context.Context, name string, filePath string) error {
	if t.copyErr != nil {
		return t.copyErr
	}
	f, err := t.fs.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tb, ok := t.tables[table.TargetIdentifier(name)]
	if !ok {
		return errors.New("table does not exist " + name)
	}
	tb.rows = append(tb.rows, recs[1:]...)
	return nil
}

func (t *memTarget) TypeMapper() *colmap.Mapper {
	return colmap.Builtin(colmap.MysqlToSnowflake, zerolog.Nop())
}

func (t *memTarget) Label() string { return "Snowflake" }
func (t *memTarget) Close() error  { return nil }

func (t *memTarget) rowCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	tb, ok := t.tables[table.TargetIdentifier(name)]
	if !ok {
		return -1
	}
	return len(tb.rows)
}

func usersData(n int) *table.Data {
	d := &table.Data{Columns: []string{"id", "name"}}
	for i := 0; i < n; i++ {
		d.Rows = append(d.Rows, []string{strings.Repeat("1", i+1), "user"})
	}
	return d
}
