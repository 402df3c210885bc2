// package loader
//
// splits a result set into bounded csv files and hands each one to the target for an atomic copy
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrLoad : a chunk could not be written, staged or copied
var ErrLoad = faults.ErrLoad

// Stager : moves one local csv file into the target table
type Stager interface {
	StageAndLoad(ctx context.Context, tableName string, filePath string) error
}

// LoadError : the part that failed. Parts before it stay loaded, nothing is rolled back.
type LoadError struct {
	Table string
	Part  int
	Parts int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s : part %d/%d failed : %v", e.Table, e.Part, e.Parts, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Options : loader tuning
type Options struct {
	// WorkDir : local directory chunk files are written under
	WorkDir string
	// ChunkRows : max rows per chunk, DefaultChunkRows when <= 0
	ChunkRows int
	// RunAt : timestamp embedded in file names, now when zero
	RunAt time.Time
}

// Result : what made it into the target
type Result struct {
	Parts int
	Rows  int
}

// Loader : one instance per table migration, it owns every file it writes
type Loader struct {
	fs     afero.Fs
	stager Stager
	opts   Options
	log    zerolog.Logger
}

func New(fs afero.Fs, stager Stager, opts Options, log zerolog.Logger) *Loader {
	if opts.ChunkRows <= 0 {
		opts.ChunkRows = DefaultChunkRows
	}
	if opts.RunAt.IsZero() {
		opts.RunAt = time.Now()
	}
	return &Loader{
		fs:     fs,
		stager: stager,
		opts:   opts,
		log:    log.With().Str("component", "loader").Logger(),
	}
}

// Load : writes, stages and copies every chunk of data in order. The first failing chunk stops the load.
func (l *Loader) Load(ctx context.Context, tableName string, data *table.Data) (Result, error) {
	var res Result
	if data == nil {
		return res, nil
	}
	chunks := Partition(data.Rows, l.opts.ChunkRows)
	if len(chunks) == 0 {
		l.log.Info().Str("table", tableName).Msg("no rows to load")
		return res, nil
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return res, &LoadError{Table: tableName, Part: 1, Parts: len(chunks), Err: err}
	}
	dir := filepath.Join(l.opts.WorkDir, "run_id="+uid.String())
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return res, &LoadError{Table: tableName, Part: 1, Parts: len(chunks), Err: err}
	}
	defer func() {
		if err := l.fs.RemoveAll(dir); err != nil {
			l.log.Warn().Err(err).Str("dir", dir).Msg("could not remove chunk directory")
		}
	}()

	header := make([]string, len(data.Columns))
	for i, c := range data.Columns {
		header[i] = table.TargetIdentifier(c)
	}

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return res, &LoadError{Table: tableName, Part: c.Index, Parts: len(chunks), Err: err}
		}
		path := filepath.Join(dir, ChunkFileName(tableName, l.opts.RunAt, c.Index))
		if err := l.loadChunk(ctx, tableName, path, header, c); err != nil {
			l.log.Error().Err(err).Str("table", tableName).Int("part", c.Index).Int("parts", len(chunks)).Msg("chunk failed, aborting remaining parts")
			return res, &LoadError{Table: tableName, Part: c.Index, Parts: len(chunks), Err: err}
		}
		res.Parts++
		res.Rows += len(c.Rows)
		l.log.Info().Str("table", tableName).Int("part", c.Index).Int("parts", len(chunks)).Int("rows", len(c.Rows)).Msg("loaded part")
	}
	return res, nil
}

func (l *Loader) loadChunk(ctx context.Context, tableName string, path string, header []string, c Chunk) error {
	f, err := l.fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.fs.Remove(path); err != nil {
			l.log.Warn().Err(err).Str("file", path).Msg("could not remove chunk file")
		}
	}()

	err = writeCSV(f, header, c.Rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s : %w", filepath.Base(path), err)
	}
	return l.stager.StageAndLoad(ctx, tableName, path)
}

func writeCSV(f afero.File, header []string, rows [][]string) error {
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
