package targetcfg

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/snowflakedb/gosnowflake"
)

// StageMode : where chunk files are staged before the copy
type StageMode string

const (
	// StageInternal : PUT into a snowflake internal stage
	StageInternal StageMode = "internal"
	// StageS3 : upload to s3 and copy from an external stage on that bucket
	StageS3 StageMode = "s3"
)

// DefaultStage : stage created when none is configured
const DefaultStage = "MYSQL_MIGRATION_STAGE"

type S3Options struct {
	Bucket         string `json:"bucket"`
	PrefixOverride string `json:"prefix"`
	Region         string `json:"region"`
	Endpoint       string `json:"endpoint"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
}

// Prefix : object key prefix, S3_PREFIX env or "files" unless overridden
func (s S3Options) Prefix() string {
	prefix, _ := lo.Coalesce(s.PrefixOverride, os.Getenv("S3_PREFIX"), "files")
	return strings.Trim(prefix, "/")
}

type Snowflake struct {
	DB                 string    `json:"db"`
	UserName           string    `json:"user_name"`
	Password           string    `json:"password"`
	Account            string    `json:"account"`
	StorageIntegration string    `json:"storage_integration"`
	Stage              string    `json:"stage"`
	StageMode          StageMode `json:"stage_mode"`
	Warehouse          string    `json:"ware_house"`
	Role               string    `json:"role"`
	S3                 S3Options `json:"s3"`
	QueryLogging       bool      `json:"query_log"`
	Schema             string    `json:"schema"`
	TypeMappingFile    string    `json:"type_mapping_file"`
}

func (s *Snowflake) GetDSN() (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:   s.Account,
		User:      s.UserName,
		Password:  s.Password,
		Database:  s.DB,
		Schema:    s.Schema,
		Warehouse: s.Warehouse,
		Role:      s.Role,
		Params: map[string]*string{
			"timezone": stringPtr("UTC"),
		},
	})
}

// ApplyDefaults : upper cased database and schema, internal staging on DefaultStage
func (s *Snowflake) ApplyDefaults() {
	s.DB = strings.ToUpper(s.DB)
	s.Schema, _ = lo.Coalesce(strings.ToUpper(s.Schema), "PUBLIC")
	s.Stage, _ = lo.Coalesce(s.Stage, DefaultStage)
	s.StageMode = StageMode(strings.ToLower(string(lo.Ternary(s.StageMode == "", StageInternal, s.StageMode))))
}

// Validate : required connection fields, s3 staging needs a bucket
func (s *Snowflake) Validate() error {
	if s.Account == "" || s.UserName == "" || s.DB == "" {
		return fmt.Errorf("snowflake target requires account, user_name and db")
	}
	switch s.StageMode {
	case StageInternal, "":
	case StageS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("snowflake stage_mode s3 requires s3.bucket")
		}
	default:
		return fmt.Errorf("snowflake stage_mode %q is not one of internal, s3", s.StageMode)
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
