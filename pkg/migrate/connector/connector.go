// package connector
//
// source and target database abstractions the migration engine runs against.
// Concrete variants exist for mysql and sql server (sources) and snowflake (target),
// pick one with NewSource / NewTarget.
package connector

import (
	"context"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/table"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/table/colmap"
)

// Source : relational database rows are read from
type Source interface {
	Connect(ctx context.Context) error
	// ListTables : base tables of the configured database, largest first
	ListTables(ctx context.Context) ([]string, error)
	// FetchTable : every row of the table with its column order
	FetchTable(ctx context.Context, name string) (*table.Data, error)
	// ColumnTypes : column name -> native type, ie "varchar(255)"
	ColumnTypes(ctx context.Context, name string) (map[string]string, error)
	// Label : name shown to operators, ie "MySQL"
	Label() string
	Close() error
}

// Target : warehouse rows are written to. Every name passed in is normalized to the warehouse identifier.
type Target interface {
	Connect(ctx context.Context) error
	TableExists(ctx context.Context, name string) (bool, error)
	ExistingColumns(ctx context.Context, name string) ([]string, error)
	// CreateTable : create if not exists, columns must carry their TargetType
	CreateTable(ctx context.Context, name string, cols []*table.ColumnTypes) error
	// Truncate : no-op when the table does not exist
	Truncate(ctx context.Context, name string) error
	// StageAndLoad : transfers a local csv (with header) to the staging area and copies it into the table,
	// the copy is all or nothing for that file
	StageAndLoad(ctx context.Context, name string, filePath string) error
	// TypeMapper : loaded once per target, shared read only
	TypeMapper() *colmap.Mapper
	Label() string
	Close() error
}
