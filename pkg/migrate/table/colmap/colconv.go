// package colmap
//
// maps columns between different database types
package colmap

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Type : column mapping type
type Type string

const (
	// MysqlToSnowflake : mysql -> snowflake type casting
	MysqlToSnowflake Type = "MYSQL_SNOWFLAKE"
	// MssqlToSnowflake : sql server -> snowflake type casting
	MssqlToSnowflake Type = "MSSQL_SNOWFLAKE"
)

// DefaultTargetType : used for every source type without a mapping
const DefaultTargetType = "VARCHAR"

// ErrMappingConfig : the mapping file is missing or malformed
var ErrMappingConfig = fmt.Errorf("%w : type mapping", faults.ErrConfig)

var (
	mysqlToSnowflakeMap = map[string]string{
		"tinyint":            "NUMBER",
		"smallint":           "NUMBER",
		"mediumint":          "NUMBER",
		"int":                "NUMBER",
		"integer":            "NUMBER",
		"bigint":             "NUMBER",
		"float":              "FLOAT",
		"double":             "FLOAT",
		"decimal":            "NUMBER",
		"date":               "DATE",
		"time":               "TIME",
		"datetime":           "TIMESTAMP",
		"timestamp":          "TIMESTAMP",
		"year":               "NUMBER",
		"char":               "VARCHAR",
		"varchar":            "VARCHAR",
		"binary":             "BINARY",
		"varbinary":          "BINARY",
		"blob":               "BINARY",
		"text":               "VARCHAR",
		"longtext":           "VARCHAR",
		"mediumtext":         "VARCHAR",
		"enum":               "VARCHAR",
		"set":                "VARCHAR",
		"json":               "VARIANT",
		"geometry":           "VARIANT",
		"point":              "VARIANT",
		"linestring":         "VARIANT",
		"polygon":            "VARIANT",
		"geometrycollection": "VARIANT",
		"multipolygon":       "VARIANT",
		"multipoint":         "VARIANT",
		"multilinestring":    "VARIANT",
		"bit":                "NUMBER",
		"boolean":            "BOOLEAN",
		"serial":             "NUMBER",
	}
	mssqlToSnowflakeMap = map[string]string{
		"bit":              "BOOLEAN",
		"tinyint":          "NUMBER",
		"smallint":         "NUMBER",
		"int":              "NUMBER",
		"bigint":           "NUMBER",
		"decimal":          "NUMBER",
		"numeric":          "NUMBER",
		"money":            "NUMBER",
		"smallmoney":       "NUMBER",
		"float":            "FLOAT",
		"real":             "FLOAT",
		"date":             "DATE",
		"time":             "TIME",
		"datetime":         "TIMESTAMP",
		"datetime2":        "TIMESTAMP",
		"smalldatetime":    "TIMESTAMP",
		"datetimeoffset":   "TIMESTAMP_TZ",
		"char":             "VARCHAR",
		"varchar":          "VARCHAR",
		"nchar":            "VARCHAR",
		"nvarchar":         "VARCHAR",
		"text":             "VARCHAR",
		"ntext":            "VARCHAR",
		"uniqueidentifier": "VARCHAR",
		"xml":              "VARCHAR",
		"binary":           "BINARY",
		"varbinary":        "BINARY",
		"image":            "BINARY",
	}
)

// Mapper : resolves source column types to target column types.
// It is never mutated after construction, so one instance can be shared by every table migration.
type Mapper struct {
	entries map[string]string
	log     zerolog.Logger
}

// New : builds a mapper from raw entries, keys are normalized
func New(entries map[string]string, log zerolog.Logger) *Mapper {
	m := &Mapper{entries: make(map[string]string, len(entries)), log: log}
	for k, v := range entries {
		m.entries[Normalize(k)] = strings.TrimSpace(v)
	}
	return m
}

// Builtin : the mapping shipped with the tool for a source -> target pair, empty for unknown pairs
func Builtin(t Type, log zerolog.Logger) *Mapper {
	switch t {
	case MysqlToSnowflake:
		return New(mysqlToSnowflakeMap, log)
	case MssqlToSnowflake:
		return New(mssqlToSnowflakeMap, log)
	}
	log.Warn().Str("mapping", string(t)).Msg("no builtin type mapping, every column will use the default type")
	return New(nil, log)
}

// Load : reads a mapping file (.json, .yaml or .yml) of normalized base type -> target type.
// On failure the returned mapper is empty (every type falls back to DefaultTargetType) and the error wraps ErrMappingConfig.
func Load(fs afero.Fs, path string, log zerolog.Logger) (*Mapper, error) {
	var entries map[string]string
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return New(nil, log), fmt.Errorf("%w : could not read %s : %v", ErrMappingConfig, path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &entries)
	default:
		err = json.Unmarshal(b, &entries)
	}
	if err != nil {
		return New(nil, log), fmt.Errorf("%w : could not parse %s : %v", ErrMappingConfig, path, err)
	}
	return New(entries, log), nil
}

// Normalize : base type name, lower cased without length/precision or attributes.
// "VARCHAR(255)" -> "varchar", "bigint unsigned" -> "bigint", "int(10) unsigned zerofill" -> "int"
func Normalize(colTypeSource string) string {
	base := strings.Fields(strings.Split(colTypeSource, "(")[0])
	if len(base) == 0 {
		return ""
	}
	return strings.ToLower(base[0])
}

// Resolve : converts a source type to the target type. Unknown types are not an error,
// they are logged and mapped to DefaultTargetType.
func (m *Mapper) Resolve(colTypeSource string) string {
	if itm, ok := m.entries[Normalize(colTypeSource)]; ok && itm != "" {
		return itm
	}
	m.log.Warn().Str("source_type", colTypeSource).Str("target_type", DefaultTargetType).Msg("no type mapping found, using default")
	return DefaultTargetType
}

// Len : number of entries loaded
func (m *Mapper) Len() int {
	return len(m.entries)
}
