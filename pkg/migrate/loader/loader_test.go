package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stagedFile struct {
	table string
	name  string
	rows  [][]string
}

type fakeStager struct {
	fs     afero.Fs
	failAt int
	calls  int
	staged []stagedFile
}

func (s *fakeStager) StageAndLoad(_ context.Context, tableName string, path string) error {
	s.calls++
	if s.failAt == s.calls {
		return errors.New("copy aborted")
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	s.staged = append(s.staged, stagedFile{table: tableName, name: filepath.Base(path), rows: recs})
	return nil
}

func makeRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(i), fmt.Sprintf("name-%d", i)}
	}
	return rows
}

func countFiles(t *testing.T, fs afero.Fs) int {
	n := 0
	err := afero.Walk(fs, "/", func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestPartition(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for c := 1; c <= 12; c++ {
			chunks := Partition(makeRows(n), c)
			assert.Equal(t, (n+c-1)/c, len(chunks), "n=%d c=%d", n, c)
			sum := 0
			for i, ch := range chunks {
				assert.Equal(t, i+1, ch.Index)
				assert.LessOrEqual(t, len(ch.Rows), c)
				assert.NotEmpty(t, ch.Rows)
				sum += len(ch.Rows)
			}
			assert.Equal(t, n, sum)
		}
	}
}

func TestPartitionDefaultLimit(t *testing.T) {
	chunks := Partition(makeRows(DefaultChunkRows+1), 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Rows, DefaultChunkRows)
	assert.Len(t, chunks[1].Rows, 1)
}

func TestChunkFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "USERS_20240309_140507_part_001.csv", ChunkFileName("USERS", at, 1))
	assert.Equal(t, "ORDERS_20240309_140507_part_120.csv", ChunkFileName("ORDERS", at, 120))
}

func TestLoad(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	t.Run("every chunk staged in order and removed", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		st := &fakeStager{fs: fs}
		l := New(fs, st, Options{WorkDir: "/tmp/work", ChunkRows: 100, RunAt: at}, zerolog.Nop())

		res, err := l.Load(context.Background(), "USERS", &table.Data{Columns: []string{"id", "name"}, Rows: makeRows(250)})
		require.NoError(t, err)
		assert.Equal(t, Result{Parts: 3, Rows: 250}, res)
		require.Len(t, st.staged, 3)
		for i, s := range st.staged {
			assert.Equal(t, "USERS", s.table)
			assert.Equal(t, ChunkFileName("USERS", at, i+1), s.name)
			assert.Equal(t, []string{"ID", "NAME"}, s.rows[0])
		}
		assert.Len(t, st.staged[2].rows, 51)
		assert.Equal(t, "200", st.staged[2].rows[1][0])
		assert.Equal(t, 0, countFiles(t, fs))
	})

	t.Run("zero rows produce zero chunks", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		st := &fakeStager{fs: fs}
		res, err := New(fs, st, Options{WorkDir: "/w"}, zerolog.Nop()).
			Load(context.Background(), "EMPTY", &table.Data{Columns: []string{"id"}})
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
		assert.Equal(t, 0, st.calls)
	})

	t.Run("first failing chunk aborts the rest and still cleans up", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		st := &fakeStager{fs: fs, failAt: 2}
		l := New(fs, st, Options{WorkDir: "/w", ChunkRows: 10, RunAt: at}, zerolog.Nop())

		res, err := l.Load(context.Background(), "ORDERS", &table.Data{Columns: []string{"id", "name"}, Rows: makeRows(45)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLoad)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, 2, le.Part)
		assert.Equal(t, 5, le.Parts)
		assert.Equal(t, Result{Parts: 1, Rows: 10}, res)
		assert.Equal(t, 2, st.calls)
		assert.Equal(t, 0, countFiles(t, fs))
	})

	t.Run("cancelled context stops before staging", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		st := &fakeStager{fs: fs}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(fs, st, Options{WorkDir: "/w"}, zerolog.Nop()).
			Load(ctx, "T", &table.Data{Columns: []string{"id"}, Rows: makeRows(3)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, st.calls)
	})

	t.Run("concurrent tables never share a path", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		a := &fakeStager{fs: fs}
		b := &fakeStager{fs: fs}
		opts := Options{WorkDir: "/w", ChunkRows: 5, RunAt: at}
		done := make(chan error, 2)
		go func() {
			_, err := New(fs, a, opts, zerolog.Nop()).Load(context.Background(), "A", &table.Data{Columns: []string{"id", "n"}, Rows: makeRows(20)})
			done <- err
		}()
		go func() {
			_, err := New(fs, b, opts, zerolog.Nop()).Load(context.Background(), "B", &table.Data{Columns: []string{"id", "n"}, Rows: makeRows(20)})
			done <- err
		}()
		require.NoError(t, <-done)
		require.NoError(t, <-done)
		assert.Len(t, a.staged, 4)
		assert.Len(t, b.staged, 4)
		for _, s := range a.staged {
			assert.Contains(t, s.name, "A_")
		}
	})
}
