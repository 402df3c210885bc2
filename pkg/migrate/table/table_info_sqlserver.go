package table

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"
)

func NewInfoFetcherSQLServer(db *sql.DB, schema string) InfoFetcher {
	return &InfoFetcherSQLServer{
		source: db,
		schema: schema,
	}
}

// InfoFetcherSQLServer : reads INFORMATION_SCHEMA of one schema (dbo by default)
type InfoFetcherSQLServer struct {
	source *sql.DB
	schema string
}

func (m *InfoFetcherSQLServer) All(ctx context.Context, f *FetchOptions) ([]*Info, error) {
	var (
		res    []*Info
		wg     errgroup.Group
		sizeMp = make(map[string]float64)
	)

	wg.Go(func() error {
		rows, err := m.source.QueryContext(ctx, `
	SELECT TABLE_CATALOG, TABLE_NAME
	FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = @p1
	ORDER BY TABLE_NAME`, m.schema)
		if err != nil {
			return fmt.Errorf("SQLSERVER_SOURCE : could not list tables : %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ifo Info
			if err := rows.Scan(&ifo.DatabaseName, &ifo.TableName); err != nil {
				return err
			}
			res = append(res, &ifo)
		}
		return rows.Err()
	})
	wg.Go(func() error {
		rows, err := m.source.QueryContext(ctx, `
	SELECT t.name AS tb_name, CAST(SUM(ps.reserved_page_count) * 8.0 / 1024 AS FLOAT) AS size_mb
	FROM sys.dm_db_partition_stats ps
	JOIN sys.tables t ON t.object_id = ps.object_id
	WHERE SCHEMA_NAME(t.schema_id) = @p1
	GROUP BY t.name`, m.schema)
		if err != nil {
			// sizes only drive ordering, missing VIEW DATABASE STATE is not fatal
			return nil
		}
		defer rows.Close()
		for rows.Next() {
			var sz tableSize
			if err := rows.Scan(&sz.Table, &sz.SizeMB); err != nil {
				return nil
			}
			sizeMp[sz.Table] = sz.SizeMB
		}
		return nil
	})

	if err := wg.Wait(); err != nil {
		return nil, err
	}
	for _, v := range res {
		v.SizeMB = sizeMp[v.TableName]
	}
	SortInfo(res, f)
	return res, nil
}

func (m *InfoFetcherSQLServer) Columns(ctx context.Context, table string) ([]*ColumnTypes, error) {
	var res []*ColumnTypes
	rows, err := m.source.QueryContext(ctx, `
	SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	ORDER BY ORDINAL_POSITION`, m.schema, table)
	if err != nil {
		return nil, fmt.Errorf("SQLSERVER_SOURCE : could not read columns of %s : %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ifo    ColumnTypes
			length sql.NullInt64
		)
		if err := rows.Scan(&ifo.ColumnName, &ifo.Type, &length); err != nil {
			return nil, err
		}
		switch {
		case length.Valid && length.Int64 == -1:
			ifo.Type += "(max)"
		case length.Valid:
			ifo.Type += fmt.Sprintf("(%d)", length.Int64)
		}
		res = append(res, &ifo)
	}
	return res, rows.Err()
}
