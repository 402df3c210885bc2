// package state
//
// run history. Every migration run and each of its tables is logged so an operator can see
// what the last run did, and so an interrupted run is not mistaken for one still going.
package state

import "time"

type RunLogState string

const (
	Started RunLogState = "STARTED"
	Success RunLogState = "SUCCESS"
	Aborted RunLogState = "ABORTED"
	Failed  RunLogState = "FAILED"
)

type Base struct {
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

type RunLog struct {
	RunID                 string      `json:"run_id" db:"run_id" gorm:"primaryKey;type:varchar(36)"`
	SourceType            string      `json:"source_type" db:"source_type" gorm:"type:varchar(50)"`
	TargetType            string      `json:"target_type" db:"target_type" gorm:"type:varchar(50)"`
	TotalTablesForThisRun int         `json:"total_tables_for_run" db:"total_tables_for_run"`
	Status                RunLogState `json:"status" db:"status" gorm:"type:varchar(50)"`
	ErrMsg                string      `json:"err_msg" db:"err_msg" gorm:"column:err_msg"`
	Base
}

type TableRunLog struct {
	ID          uint        `json:"-" gorm:"primaryKey;autoIncrement"`
	ParentRunID string      `json:"parent_run_id" db:"parent_run_id" gorm:"type:varchar(36);index"`
	DBName      string      `json:"db_name" db:"db_name" gorm:"column:db_name;type:varchar(255)"`
	TableName   string      `json:"table_name" db:"table_name" gorm:"type:varchar(255)"`
	LoadType    string      `json:"load_type" db:"load_type" gorm:"type:varchar(50)"`
	RowWritten  int         `json:"rows_written_target" db:"rows_written_target" gorm:"column:rows_written_target"`
	Parts       int         `json:"parts" db:"parts"`
	DurationMS  int64       `json:"duration_ms" db:"duration_ms" gorm:"column:duration_ms"`
	Status      RunLogState `json:"status" db:"status" gorm:"type:varchar(50)"`
	ErrMsg      string      `json:"err_msg" db:"err_msg" gorm:"column:err_msg"`
	Base
}

// TableResult : what a finished table reports back
type TableResult struct {
	RowsWritten int
	Parts       int
	Duration    time.Duration
	Err         error
}

type Manager interface {
	// GetLastRun : most recent run, nil when nothing was ever recorded
	GetLastRun() (*RunLog, error)
	// GetRunLog : GetRunLog get a specific run log
	GetRunLog(runID string) (*RunLog, error)
	GetTableRunLogs(runID string) ([]*TableRunLog, error)
	// InitRunLog : start a run log
	InitRunLog(sourceType string, targetType string, totalTableCount int) (runID string, err error)
	FailedRunLog(runID string, err error) error
	PassedRunLog(runID string) error
	InitTableRunLog(runID string, dbName string, tableName string, loadType string) error
	FinishTableRun(runID string, dbName string, tableName string, res TableResult) error
	DidTableFailForRun(runID string) (bool, error)
	// OnShutDownEv : marks a run that is still STARTED as ABORTED
	OnShutDownEv() error
	Close() error
}
