package connector

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/connection"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/rs/zerolog"
)

// sqlSource : database/sql backed source, the variants only differ in dialing, quoting and metadata queries
type sqlSource struct {
	label      string
	dial       func(ctx context.Context) (*sql.DB, error)
	newFetcher func(db *sql.DB) table.InfoFetcher
	quote      func(name string) string
	encoderFor func(dbType string) valueEncoder
	db         *sql.DB
	fetcher    table.InfoFetcher
	log        zerolog.Logger
}

func NewMysql(cfg *sourcecfg.MYSQL, maxConns int, log zerolog.Logger) Source {
	return &sqlSource{
		label: "MySQL",
		dial: func(ctx context.Context) (*sql.DB, error) {
			return connection.DialMysql(ctx, cfg, maxConns, log)
		},
		newFetcher: table.NewInfoFetcherMysql,
		quote:      WrapQ,
		encoderFor: mysqlEncoder,
		log:        log,
	}
}

func NewSQLServer(cfg *sourcecfg.SQLServer, maxConns int, log zerolog.Logger) Source {
	return &sqlSource{
		label: "SQL Server",
		dial: func(ctx context.Context) (*sql.DB, error) {
			return connection.DialSQLServer(ctx, cfg, maxConns, log)
		},
		newFetcher: func(db *sql.DB) table.InfoFetcher {
			return table.NewInfoFetcherSQLServer(db, cfg.Schema)
		},
		quote: func(name string) string {
			return WrapBracket(cfg.Schema) + "." + WrapBracket(name)
		},
		encoderFor: sqlServerEncoder,
		log: log,
	}
}

// valueEncoder : renders one raw column value as the csv field the warehouse load expects
type valueEncoder func(raw sql.RawBytes) string

func plainValue(raw sql.RawBytes) string { return string(raw) }

// hexValue : binary columns, COPY reads BINARY fields as hex
func hexValue(raw sql.RawBytes) string { return hex.EncodeToString(raw) }

// bitValue : mysql sends BIT(n) as big endian bytes, the target column is a NUMBER
func bitValue(raw sql.RawBytes) string {
	if raw == nil {
		return ""
	}
	var n uint64
	for _, b := range raw {
		n = n<<8 | uint64(b)
	}
	return strconv.FormatUint(n, 10)
}

func isBinaryType(dbType string) bool {
	switch dbType {
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "IMAGE":
		return true
	}
	return false
}

func mysqlEncoder(dbType string) valueEncoder {
	dbType = strings.ToUpper(dbType)
	switch {
	case isBinaryType(dbType):
		return hexValue
	case dbType == "BIT":
		return bitValue
	}
	return plainValue
}

// sqlServerEncoder : BIT already arrives as true/false
func sqlServerEncoder(dbType string) valueEncoder {
	if isBinaryType(strings.ToUpper(dbType)) {
		return hexValue
	}
	return plainValue
}

// WrapQ : mysql identifier quoting
func WrapQ(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// WrapBracket : sql server identifier quoting
func WrapBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (s *sqlSource) Label() string { return s.label }

func (s *sqlSource) Connect(ctx context.Context) error {
	db, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.db = db
	s.fetcher = s.newFetcher(db)
	return nil
}

func (s *sqlSource) connected() error {
	if s.db == nil {
		return fmt.Errorf("%w : %s source used before Connect", faults.ErrConnection, s.label)
	}
	return nil
}

func (s *sqlSource) ListTables(ctx context.Context) ([]string, error) {
	if err := s.connected(); err != nil {
		return nil, err
	}
	infos, err := s.fetcher.All(ctx, &table.FetchOptions{
		SortByCol:       table.SortBySize,
		SortByDirection: table.SortDirectionDESC,
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, v := range infos {
		names = append(names, v.TableName)
	}
	return names, nil
}

func (s *sqlSource) ColumnTypes(ctx context.Context, name string) (map[string]string, error) {
	if err := s.connected(); err != nil {
		return nil, err
	}
	cols, err := s.fetcher.Columns(ctx, name)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(cols))
	for _, c := range cols {
		res[c.ColumnName] = c.Type
	}
	return res, nil
}

func (s *sqlSource) FetchTable(ctx context.Context, name string) (*table.Data, error) {
	var result []any
	if err := s.connected(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s", s.quote(name))
	s.log.Debug().Str("table", name).Str("sql_query", query).Msg("fetching table")
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s : could not query %s : %w", s.label, name, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%s : could not read columns of %s : %w", s.label, name, err)
	}
	columns := make([]string, len(colTypes))
	encoders := make([]valueEncoder, len(colTypes))
	for i, ct := range colTypes {
		var val sql.RawBytes
		result = append(result, &val)
		columns[i] = ct.Name()
		encoders[i] = plainValue
		if s.encoderFor != nil {
			encoders[i] = s.encoderFor(ct.DatabaseTypeName())
		}
	}
	data := &table.Data{Columns: columns}
	for rows.Next() {
		if err := rows.Scan(result...); err != nil {
			return nil, fmt.Errorf("%s : could not scan row of %s : %w", s.label, name, err)
		}
		rowData := make([]string, len(result))
		for i, val := range result {
			rowData[i] = encoders[i](*val.(*sql.RawBytes))
		}
		data.Rows = append(data.Rows, rowData)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s : reading %s : %w", s.label, name, err)
	}
	s.log.Info().Str("table", name).Int("rows", len(data.Rows)).Msg("fetched table")
	return data, nil
}

func (s *sqlSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
