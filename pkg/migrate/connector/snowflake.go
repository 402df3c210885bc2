package connector

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/targetcfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/connection"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table/colmap"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Snowflake : warehouse target. Chunks go through a stage (internal or s3) and are copied with COPY INTO.
type Snowflake struct {
	cfg      *targetcfg.Snowflake
	mapper   *colmap.Mapper
	maxConns int
	db       *sql.DB
	stager   stager
	log      zerolog.Logger
}

func NewSnowflake(cfg *targetcfg.Snowflake, mapper *colmap.Mapper, maxConns int, log zerolog.Logger) *Snowflake {
	return &Snowflake{
		cfg:      cfg,
		mapper:   mapper,
		maxConns: maxConns,
		log:      log,
	}
}

// QuoteIdent : double quoted upper case warehouse identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(table.TargetIdentifier(name), `"`, `""`) + `"`
}

func (s *Snowflake) Label() string { return "Snowflake" }

func (s *Snowflake) TypeMapper() *colmap.Mapper { return s.mapper }

func (s *Snowflake) Connect(ctx context.Context) error {
	db, err := connection.DialSnowflake(ctx, s.cfg, s.maxConns, s.log)
	if err != nil {
		return err
	}
	st, err := s.newStager()
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	s.stager = st
	return s.createStage(ctx)
}

func (s *Snowflake) newStager() (stager, error) {
	if s.cfg.StageMode != targetcfg.StageS3 {
		return &internalStager{stageName: s.cfg.Stage, log: s.log}, nil
	}
	client, err := newS3Client(s.cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("%w : %v", faults.ErrConnection, err)
	}
	return &s3Stager{
		client: client,
		bucket: s.cfg.S3.Bucket,
		prefix: s.cfg.S3.Prefix(),
		fs:     afero.NewOsFs(),
		log:    s.log,
	}, nil
}

// createStage : internal stages are created on demand, an s3 stage only when a storage integration is configured
func (s *Snowflake) createStage(ctx context.Context) error {
	var stmt string
	switch {
	case s.cfg.StageMode != targetcfg.StageS3:
		stmt = fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", s.cfg.Stage)
	case s.cfg.StorageIntegration != "":
		stmt = fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s URL='s3://%s/%s/' STORAGE_INTEGRATION = %s",
			s.cfg.Stage, s.cfg.S3.Bucket, s.cfg.S3.Prefix(), s.cfg.StorageIntegration)
	default:
		return nil
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w : SNOWFLAKE_TARGET : could not create stage %s : %v", faults.ErrConnection, s.cfg.Stage, err)
	}
	return nil
}

func (s *Snowflake) TableExists(ctx context.Context, name string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`, s.cfg.Schema, table.TargetIdentifier(name)).Scan(&cnt)
	if err != nil {
		return false, fmt.Errorf("checking table %s : %w", table.TargetIdentifier(name), err)
	}
	return cnt > 0, nil
}

func (s *Snowflake) ExistingColumns(ctx context.Context, name string) ([]string, error) {
	var res []string
	rows, err := s.db.QueryContext(ctx, `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`, s.cfg.Schema, table.TargetIdentifier(name))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s : %w", table.TargetIdentifier(name), err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		res = append(res, strings.ToUpper(col))
	}
	return res, rows.Err()
}

// CreateTableSQL : idempotent ddl for the mapped columns
func CreateTableSQL(name string, cols []*table.ColumnTypes) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, QuoteIdent(c.ColumnName)+" "+c.TargetType)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(name), strings.Join(defs, ", "))
}

func (s *Snowflake) CreateTable(ctx context.Context, name string, cols []*table.ColumnTypes) error {
	if len(cols) == 0 {
		return fmt.Errorf("create table %s : no columns", table.TargetIdentifier(name))
	}
	if _, err := s.db.ExecContext(ctx, CreateTableSQL(name, cols)); err != nil {
		return fmt.Errorf("create table %s : %w", table.TargetIdentifier(name), err)
	}
	return nil
}

func (s *Snowflake) Truncate(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE IF EXISTS "+QuoteIdent(name)); err != nil {
		return fmt.Errorf("truncate %s : %w", table.TargetIdentifier(name), err)
	}
	return nil
}

// CopySQL : all or nothing copy of one staged csv, columns matched by header name
func CopySQL(name string, stageName string, fileName string, purge bool) string {
	return fmt.Sprintf(`COPY INTO %s
	FROM @%s/%s
	FILE_FORMAT = (TYPE = CSV PARSE_HEADER = TRUE FIELD_OPTIONALLY_ENCLOSED_BY = '"' BINARY_FORMAT = HEX)
	ON_ERROR = ABORT_STATEMENT
	MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE
	PURGE = %t`, QuoteIdent(name), stageName, fileName, purge)
}

func (s *Snowflake) StageAndLoad(ctx context.Context, name string, filePath string) error {
	cleanup, err := s.stager.stage(ctx, s.db, filePath)
	if err != nil {
		return err
	}
	defer cleanup()
	purge := s.cfg.StageMode != targetcfg.StageS3
	if _, err := s.db.ExecContext(ctx, CopySQL(name, s.cfg.Stage, filepath.Base(filePath), purge)); err != nil {
		return fmt.Errorf("COPY INTO %s from %s : %w", table.TargetIdentifier(name), filepath.Base(filePath), err)
	}
	return nil
}

func (s *Snowflake) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
