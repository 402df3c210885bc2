package sourcecfg

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

type MYSQL struct {
	SessionVariableValues map[string]string `json:"session_vars"`
	Host                  string            `json:"host"`
	UserName              string            `json:"user_name"`
	Password              string            `json:"password"`
	Port                  int               `json:"port"`
	DB                    string            `json:"db"`
	QueryLogging          bool              `json:"query_log"`
}

func (m *MYSQL) GetDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = m.UserName
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", m.Host, m.Port)
	cfg.DBName = m.DB
	cfg.ParseTime = true
	cfg.Collation = "utf8mb4_general_ci"
	cfg.Params = map[string]string{"autocommit": "true"}
	for k, v := range m.SessionVariableValues {
		cfg.Params[k] = v
	}
	return cfg.FormatDSN()
}

// Validate : required connection fields
func (m *MYSQL) Validate() error {
	if m.Host == "" || m.DB == "" || m.UserName == "" {
		return fmt.Errorf("mysql source requires host, db and user_name")
	}
	return nil
}

// ApplyDefaults : port 3306
func (m *MYSQL) ApplyDefaults() {
	if m.Port == 0 {
		m.Port = 3306
	}
}
