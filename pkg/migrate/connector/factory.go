package connector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/targetcfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table/colmap"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Kind : normalized database type tag
type Kind string

const (
	KindMySQL     Kind = "mysql"
	KindSQLServer Kind = "sqlserver"
	KindSnowflake Kind = "snowflake"
)

var kinds = map[string]Kind{
	"mysql":     KindMySQL,
	"mariadb":   KindMySQL,
	"sqlserver": KindSQLServer,
	"mssql":     KindSQLServer,
	"snowflake": KindSnowflake,
}

// ParseKind : tags are case and space insensitive, "SQL Server" == "sqlserver"
func ParseKind(tag string) (Kind, error) {
	k, ok := kinds[strings.ToLower(strings.Join(strings.Fields(tag), ""))]
	if !ok {
		return "", fmt.Errorf("%w : %q (available: %s)", faults.ErrUnsupportedDatabase, tag, strings.Join(available(), ", "))
	}
	return k, nil
}

func available() []string {
	var res []string
	for k := range kinds {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Options : shared construction options
type Options struct {
	Log zerolog.Logger
	// Fs : used to read the type mapping file, os fs when nil
	Fs afero.Fs
	// MaxConns : connection pool size, should match the scheduler parallelism
	MaxConns int
	// SourceKind : picks the builtin type mapping of a target
	SourceKind Kind
}

func (o Options) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

func (o Options) maxConns() int {
	if o.MaxConns <= 0 {
		return 1
	}
	return o.MaxConns
}

type validating interface {
	ApplyDefaults()
	Validate() error
}

func decode(kind Kind, params json.RawMessage, into validating) error {
	if len(params) > 0 {
		if err := json.Unmarshal(params, into); err != nil {
			return fmt.Errorf("%w : %s params : %v", faults.ErrConfig, kind, err)
		}
	}
	into.ApplyDefaults()
	if err := into.Validate(); err != nil {
		return fmt.Errorf("%w : %v", faults.ErrConfig, err)
	}
	return nil
}

// NewSource : builds a source connector for tag from its json params. Nothing is dialed until Connect.
func NewSource(tag string, params json.RawMessage, opts Options) (Source, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}
	log := opts.Log.With().Str("component", "source").Str("db_type", string(kind)).Logger()
	switch kind {
	case KindMySQL:
		var cfg sourcecfg.MYSQL
		if err := decode(kind, params, &cfg); err != nil {
			return nil, err
		}
		return NewMysql(&cfg, opts.maxConns(), log), nil
	case KindSQLServer:
		var cfg sourcecfg.SQLServer
		if err := decode(kind, params, &cfg); err != nil {
			return nil, err
		}
		return NewSQLServer(&cfg, opts.maxConns(), log), nil
	}
	return nil, fmt.Errorf("%w : %s cannot be used as a source", faults.ErrUnsupportedDatabase, kind)
}

// NewTarget : builds a target connector for tag from its json params and loads its type mapping.
// A broken mapping file is reported through the logger and leaves the target with an empty mapping.
func NewTarget(tag string, params json.RawMessage, opts Options) (Target, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}
	log := opts.Log.With().Str("component", "target").Str("db_type", string(kind)).Logger()
	switch kind {
	case KindSnowflake:
		var cfg targetcfg.Snowflake
		if err := decode(kind, params, &cfg); err != nil {
			return nil, err
		}
		return NewSnowflake(&cfg, loadMapper(cfg.TypeMappingFile, opts, log), opts.maxConns(), log), nil
	}
	return nil, fmt.Errorf("%w : %s cannot be used as a target", faults.ErrUnsupportedDatabase, kind)
}

func loadMapper(path string, opts Options, log zerolog.Logger) *colmap.Mapper {
	if path == "" {
		switch opts.SourceKind {
		case KindSQLServer:
			return colmap.Builtin(colmap.MssqlToSnowflake, log)
		default:
			return colmap.Builtin(colmap.MysqlToSnowflake, log)
		}
	}
	m, err := colmap.Load(opts.fs(), path, log)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("type mapping not loaded, every column will use the default type")
		return m
	}
	log.Info().Str("file", path).Int("entries", m.Len()).Msg("type mapping loaded")
	return m
}
