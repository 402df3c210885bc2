package table

import (
	"context"
	"sort"
	"strings"
)

// ColumnTypes : a single column of a source table, TargetType is filled in once the column is mapped
type ColumnTypes struct {
	ColumnName string `db:"col_name"`
	Type       string `db:"col_type"`
	TargetType string `db:"target_type"`
}

// Info : describes a table that lives on the source side
type Info struct {
	TableName    string `db:"table_name"`
	DatabaseName string `db:"db_name"`
	Schema       []*ColumnTypes
	SizeMB       float64
}

// TargetName : identifier used for the table on the warehouse side
func (i *Info) TargetName() string {
	return TargetIdentifier(i.TableName)
}

// TargetIdentifier : warehouse identifiers are upper case
func TargetIdentifier(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Data : a fully read result set. Columns keep the source order, NULL values are empty strings
type Data struct {
	Columns []string
	Rows    [][]string
}

// Len : number of rows
func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

type InfoSortBy string
type InfoSortByDirection string

const (
	SortBySize           InfoSortBy = "Size"
	SortByAlphaTableName InfoSortBy = "TableName"
)

const (
	SortDirectionASC  InfoSortByDirection = "ASC"
	SortDirectionDESC InfoSortByDirection = "DESC"
)

type FetchOptions struct {
	SortByCol       InfoSortBy
	SortByDirection InfoSortByDirection
}

// InfoFetcher : reads table metadata from a source database
type InfoFetcher interface {
	// All : every base table of the configured database, sorted per the options
	All(ctx context.Context, f *FetchOptions) ([]*Info, error)
	// Columns : columns of one table in ordinal order
	Columns(ctx context.Context, tableName string) ([]*ColumnTypes, error)
}

// SortInfo : sorts in place, an empty sort column leaves the order untouched
func SortInfo(res []*Info, f *FetchOptions) {
	if f == nil || f.SortByCol == "" {
		return
	}
	desc := f.SortByDirection == SortDirectionDESC
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if desc {
			a, b = b, a
		}
		if f.SortByCol == SortBySize && a.SizeMB != b.SizeMB {
			return a.SizeMB < b.SizeMB
		}
		return strings.ToLower(a.TableName) < strings.ToLower(b.TableName)
	})
}
