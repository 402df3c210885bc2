// package config
//
// job file loading. A job names a source, a target and the tables to move between them.
//
//	{
//	  "max_concurrency": 3,
//	  "source": { "type": "mysql", "host": "localhost", "user_name": "${MYSQL_USER}", ... },
//	  "target": { "type": "snowflake", "account": "...", ... },
//	  "tables": [ { "name": "users", "load_type": "Append" } ]
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/baderkha/snowflake-migrate/pkg/migrate"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/connector"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/loader"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxConcurrency : tables migrated at once when the job does not say
	DefaultMaxConcurrency = 3
	// DefaultWorkDir : chunk file directory when neither the job nor WRITE_DIR set one
	DefaultWorkDir = "./tmp"
	// WorkDirEnv : env override for the chunk file directory
	WorkDirEnv = "WRITE_DIR"
)

// Endpoint : a database reference, the type tag plus whatever params the connector for it needs.
// Params keeps the whole object, the connector ignores the type field.
type Endpoint struct {
	Type   string
	Params json.RawMessage
}

func (e *Endpoint) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	e.Type = head.Type
	e.Params = append(json.RawMessage(nil), b...)
	return nil
}

func (e Endpoint) MarshalJSON() ([]byte, error) {
	if len(e.Params) > 0 {
		return e.Params, nil
	}
	return json.Marshal(map[string]string{"type": e.Type})
}

// TableConfig : one table selection, load type falls back to the job default
type TableConfig struct {
	Name     string `json:"name"`
	LoadType string `json:"load_type"`
}

// Config : configuration for the job
type Config struct {
	MaxConcurrency        int           `json:"max_concurrency"`
	MaxConcurrencyCeiling int           `json:"max_concurrency_ceiling"`
	BatchRecordSize       int           `json:"max_batch_record_size"`
	ForceLoad             bool          `json:"force_load"`
	DefaultLoadType       string        `json:"default_load_type"`
	WorkDir               string        `json:"work_dir"`
	Tables                []TableConfig `json:"tables"`
	SourceConfig          Endpoint      `json:"source"`
	Target                Endpoint      `json:"target"`
}

// LoadEnv : reads the dotenv files into the process env. Missing files are fine when none were asked for explicitly.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w : .env : %v", faults.ErrConfig, err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("%w : %s : %v", faults.ErrConfig, strings.Join(files, ","), err)
	}
	return nil
}

// Load : reads the job file, expands ${VAR} references, applies defaults and validates
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w : reading job file %s : %v", faults.ErrConfig, path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(b))))
}

// Parse : decodes an already expanded job document
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w : decoding job file : %v", faults.ErrConfig, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) ApplyDefaults() {
	c.MaxConcurrency = lo.Ternary(c.MaxConcurrency > 0, c.MaxConcurrency, DefaultMaxConcurrency)
	c.MaxConcurrencyCeiling = lo.Ternary(c.MaxConcurrencyCeiling > 0, c.MaxConcurrencyCeiling, migrate.DefaultMaxParallelCeiling)
	c.BatchRecordSize = lo.Ternary(c.BatchRecordSize > 0, c.BatchRecordSize, loader.DefaultChunkRows)
	c.DefaultLoadType, _ = lo.Coalesce(c.DefaultLoadType, string(migrate.TruncateAndLoad))
	c.WorkDir, _ = lo.Coalesce(c.WorkDir, os.Getenv(WorkDirEnv), DefaultWorkDir)
}

// Validate : every problem in the job at once
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.SourceConfig.Type == "" {
		errs = multierror.Append(errs, errors.New("source.type is required"))
	} else if _, err := connector.ParseKind(c.SourceConfig.Type); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("source : %w", err))
	}
	if c.Target.Type == "" {
		errs = multierror.Append(errs, errors.New("target.type is required"))
	} else if _, err := connector.ParseKind(c.Target.Type); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("target : %w", err))
	}
	if _, err := migrate.ParseLoadType(c.DefaultLoadType); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("default_load_type : %w", err))
	}
	seen := map[string]bool{}
	for i, t := range c.Tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = multierror.Append(errs, fmt.Errorf("tables[%d] : name is required", i))
			continue
		}
		if seen[strings.ToLower(name)] {
			errs = multierror.Append(errs, fmt.Errorf("tables[%d] : %s listed twice", i, name))
		}
		seen[strings.ToLower(name)] = true
		if t.LoadType == "" {
			continue
		}
		if _, err := migrate.ParseLoadType(t.LoadType); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("tables[%d] : %w", i, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w : invalid job : %v", faults.ErrConfig, err)
	}
	return nil
}

// Tasks : the job's table selection resolved against the tables the source actually has.
// An empty selection means every available table with the default load type.
func (c *Config) Tasks(available []string, src connector.Source, tgt connector.Target) ([]migrate.Task, error) {
	def, err := migrate.ParseLoadType(c.DefaultLoadType)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(available))
	for _, a := range available {
		byName[strings.ToLower(a)] = a
	}
	newTask := func(name string, lt migrate.LoadType) migrate.Task {
		return migrate.Task{Table: name, LoadType: lt, Source: src, Target: tgt, ForceLoad: c.ForceLoad}
	}

	if len(c.Tables) == 0 {
		tasks := make([]migrate.Task, 0, len(available))
		for _, a := range available {
			tasks = append(tasks, newTask(a, def))
		}
		return tasks, nil
	}

	var (
		errs  *multierror.Error
		tasks = make([]migrate.Task, 0, len(c.Tables))
	)
	for _, t := range c.Tables {
		name, ok := byName[strings.ToLower(strings.TrimSpace(t.Name))]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("table %s not found in source", t.Name))
			continue
		}
		lt := def
		if t.LoadType != "" {
			if lt, err = migrate.ParseLoadType(t.LoadType); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
		}
		tasks = append(tasks, newTask(name, lt))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w : %v", faults.ErrConfig, err)
	}
	return tasks, nil
}
