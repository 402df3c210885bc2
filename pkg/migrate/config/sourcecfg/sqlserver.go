package sourcecfg

import (
	"fmt"
	"net/url"
	"strconv"
)

type SQLServer struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	UserName        string `json:"user_name"`
	Password        string `json:"password"`
	DB              string `json:"db"`
	Schema          string `json:"schema"`
	TrustServerCert bool   `json:"trust_server_cert"`
	QueryLogging    bool   `json:"query_log"`
}

func (s *SQLServer) GetDSN() string {
	q := url.Values{}
	q.Set("database", s.DB)
	q.Set("TrustServerCertificate", strconv.FormatBool(s.TrustServerCert))
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.UserName, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Validate : required connection fields
func (s *SQLServer) Validate() error {
	if s.Host == "" || s.DB == "" {
		return fmt.Errorf("sqlserver source requires host and db")
	}
	return nil
}

// ApplyDefaults : port 1433, schema dbo
func (s *SQLServer) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = 1433
	}
	if s.Schema == "" {
		s.Schema = "dbo"
	}
}
