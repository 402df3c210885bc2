package connection

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/rs/zerolog"
)

func DialSQLServer(ctx context.Context, cfg *sourcecfg.SQLServer, maxConc int, log zerolog.Logger) (*sql.DB, error) {
	dsn := cfg.GetDSN()
	sqlDB, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w : SQLSERVER_SOURCE : could not dial connection to sql server due to : %v", faults.ErrConnection, err)
	}
	if cfg.QueryLogging {
		sqlDB = AddLogger(sqlDB, dsn, "sqlserver", log)
	}
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetMaxOpenConns(maxConc)
	sqlDB.SetMaxIdleConns(maxConc)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w : SQLSERVER_SOURCE : %s:%d/%s unreachable : %v", faults.ErrConnection, cfg.Host, cfg.Port, cfg.DB, err)
	}
	log.Info().Str("driver", "sqlserver").Str("db", cfg.DB).Msg("connected")
	return sqlDB, nil
}
