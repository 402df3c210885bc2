package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/connector"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
)

// LoadType : what happens to rows already in the target table
type LoadType string

const (
	// TruncateAndLoad : empties the target table (when present) before loading
	TruncateAndLoad LoadType = "TruncateAndLoad"
	// Append : loads on top of whatever is already there
	Append LoadType = "Append"
)

// ParseLoadType : accepts the canonical values and the labels of the old ui ("Truncate and Load")
func ParseLoadType(s string) (LoadType, error) {
	switch strings.ToLower(strings.Join(strings.Fields(s), "")) {
	case "truncateandload", "truncate_and_load", "truncate":
		return TruncateAndLoad, nil
	case "append":
		return Append, nil
	}
	return "", fmt.Errorf("%w : unknown load type %q (valid: %s, %s)", faults.ErrConfig, s, TruncateAndLoad, Append)
}

// Label : the load type as shown to operators
func (l LoadType) Label() string {
	if l == TruncateAndLoad {
		return "Truncate and Load"
	}
	return string(l)
}

// Task : one table to migrate. Treat as immutable once handed to the scheduler.
type Task struct {
	Table     string
	LoadType  LoadType
	Source    connector.Source
	Target    connector.Target
	ForceLoad bool
}

// Outcome : produced exactly once per task
type Outcome struct {
	Table    string
	Success  bool
	Message  string
	Err      error
	Rows     int
	Parts    int
	Duration time.Duration
}

func failed(table string, err error, format string, args ...any) Outcome {
	return Outcome{
		Table:   table,
		Success: false,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
