package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/targetcfg"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/rs/zerolog"
	_ "github.com/snowflakedb/gosnowflake"
)

func DialSnowflake(ctx context.Context, cfg *targetcfg.Snowflake, maxConc int, log zerolog.Logger) (*sql.DB, error) {
	var res string
	dsn, err := cfg.GetDSN()
	if err != nil {
		return nil, fmt.Errorf("%w : SNOWFLAKE_TARGET : bad dsn : %v", faults.ErrConfig, err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w : SNOWFLAKE_TARGET : %v", faults.ErrConnection, err)
	}
	if cfg.QueryLogging {
		db = AddLogger(db, dsn, "snowflake", log)
	}
	db.SetMaxOpenConns(maxConc)
	db.SetMaxIdleConns(maxConc)

	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&res); err != nil || res != "1" {
		db.Close()
		return nil, fmt.Errorf("%w : SNOWFLAKE_TARGET : can't ping snowflake via select 1 : %v", faults.ErrConnection, err)
	}
	log.Info().Str("driver", "snowflake").Str("account", cfg.Account).Str("db", cfg.DB).Msg("connected")
	return db, nil
}
