package connection

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/rs/zerolog"
)

func DialMysql(ctx context.Context, cfg *sourcecfg.MYSQL, maxConc int, log zerolog.Logger) (*sql.DB, error) {
	dsn := cfg.GetDSN()
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w : MYSQL_SOURCE : could not dial connection to mysql due to : %v", faults.ErrConnection, err)
	}
	if cfg.QueryLogging {
		sqlDB = AddLogger(sqlDB, dsn, "mysql", log)
	}
	sqlDB.SetMaxOpenConns(maxConc)
	sqlDB.SetMaxIdleConns(maxConc)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w : MYSQL_SOURCE : %s:%d/%s unreachable : %v", faults.ErrConnection, cfg.Host, cfg.Port, cfg.DB, err)
	}
	log.Info().Str("driver", "mysql").Str("db", cfg.DB).Msg("connected")
	return sqlDB, nil
}
