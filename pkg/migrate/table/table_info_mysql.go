package table

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"
)

func NewInfoFetcherMysql(db *sql.DB) InfoFetcher {
	return &InfoFetcherMYSQL{
		source: db,
	}
}

// InfoFetcherMYSQL : reads information_schema of the database the connection was opened on
type InfoFetcherMYSQL struct {
	source *sql.DB
}

type tableSize struct {
	Table  string  `db:"tb_name"`
	SizeMB float64 `db:"size_mb"`
}

func (m *InfoFetcherMYSQL) All(ctx context.Context, f *FetchOptions) ([]*Info, error) {
	var (
		res    []*Info
		sizes  []*tableSize
		wg     errgroup.Group
		sizeMp = make(map[string]float64)
	)

	wg.Go(func() error {
		rows, err := m.source.QueryContext(ctx, `
	select table_schema as db_name,
	table_name
	from information_schema.tables
	where table_type = 'BASE TABLE'
		and table_schema = DATABASE()
		order by table_name
	`)
		if err != nil {
			return fmt.Errorf("MYSQL_SOURCE : could not list tables : %w", err)
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
		var err error
		sizes, err = m.GetAllTableSizes(ctx)
		return err
	})

	if err := wg.Wait(); err != nil {
		return nil, err
	}
	for _, v := range sizes {
		sizeMp[v.Table] = v.SizeMB
	}
	for _, v := range res {
		v.SizeMB = sizeMp[v.TableName]
	}
	SortInfo(res, f)
	return res, nil
}

func (m *InfoFetcherMYSQL) GetAllTableSizes(ctx context.Context) ([]*tableSize, error) {
	var res []*tableSize
	rows, err := m.source.QueryContext(ctx, `SELECT
	TABLE_NAME AS tb_name,
	ROUND(((DATA_LENGTH + INDEX_LENGTH) / 1024 / 1024),4) AS size_mb
  FROM
	information_schema.TABLES
  WHERE
	TABLE_SCHEMA = DATABASE()
  ORDER BY
	(DATA_LENGTH + INDEX_LENGTH)
  DESC`)
	if err != nil {
		return nil, fmt.Errorf("MYSQL_SOURCE : could not read table sizes : %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ifo  tableSize
			size sql.NullFloat64
		)
		if err := rows.Scan(&ifo.Table, &size); err != nil {
			return nil, err
		}
		ifo.SizeMB = size.Float64
		res = append(res, &ifo)
	}
	return res, rows.Err()
}

func (m *InfoFetcherMYSQL) Columns(ctx context.Context, table string) ([]*ColumnTypes, error) {
	var res []*ColumnTypes
	rows, err := m.source.QueryContext(ctx, `SELECT COLUMN_NAME AS col_name, COLUMN_TYPE AS col_type
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, fmt.Errorf("MYSQL_SOURCE : could not read columns of %s : %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ifo ColumnTypes
		if err := rows.Scan(&ifo.ColumnName, &ifo.Type); err != nil {
			return nil, err
		}
		res = append(res, &ifo)
	}
	return res, rows.Err()
}
