package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPath : sqlite file used when none is configured
const DefaultPath = "db-transfer-history.sqlite"

type GormManager struct {
	DB  *gorm.DB
	log zerolog.Logger
}

// NewSqliteGormManager : opens (or creates) the history database at path and migrates its schema
func NewSqliteGormManager(path string, log zerolog.Logger) (*GormManager, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening history db %s : %w", path, err)
	}
	if err := db.AutoMigrate(&RunLog{}, &TableRunLog{}); err != nil {
		return nil, fmt.Errorf("could not migrate history db : %w", err)
	}
	return &GormManager{DB: db, log: log.With().Str("component", "state").Logger()}, nil
}

func (m *GormManager) OnShutDownEv() error {
	run, err := m.GetLastRun()
	if err != nil || run == nil || run.Status != Started {
		return err
	}
	m.log.Warn().Str("run_id", run.RunID).Msgf("Last Run had status as %s , moving that to %s INSTEAD", Started, Aborted)
	return m.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&RunLog{}).Where("run_id = ? AND status = ?", run.RunID, Started).
			Updates(RunLog{Status: Aborted, Base: Base{UpdatedAt: currentTime()}}).Error
		if err != nil {
			return err
		}
		return tx.Model(&TableRunLog{}).Where("parent_run_id = ? AND status = ?", run.RunID, Started).
			Update("status", Aborted).Error
	})
}

func (m *GormManager) GetLastRun() (*RunLog, error) {
	var lastRun RunLog
	err := m.DB.Order("created_at desc").First(&lastRun).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lastRun, nil
}

func (m *GormManager) GetRunLog(runID string) (*RunLog, error) {
	var runLog RunLog
	if err := m.DB.Where("run_id = ?", runID).First(&runLog).Error; err != nil {
		return nil, err
	}
	return &runLog, nil
}

func (m *GormManager) GetTableRunLogs(runID string) ([]*TableRunLog, error) {
	var tableRunLogs []*TableRunLog
	err := m.DB.Where("parent_run_id = ?", runID).Order("table_name").Find(&tableRunLogs).Error
	return tableRunLogs, err
}

func (m *GormManager) InitRunLog(sourceType string, targetType string, totalTableCount int) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	runLog := RunLog{
		RunID:                 id.String(),
		SourceType:            sourceType,
		TargetType:            targetType,
		TotalTablesForThisRun: totalTableCount,
		Status:                Started,
		Base:                  Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
	}
	if err := m.DB.Create(&runLog).Error; err != nil {
		return "", err
	}
	return runLog.RunID, nil
}

func (m *GormManager) FailedRunLog(runID string, err error) error {
	return m.updateRunStatus(runID, Failed, err)
}

func (m *GormManager) PassedRunLog(runID string) error {
	return m.updateRunStatus(runID, Success, nil)
}

func (m *GormManager) InitTableRunLog(runID string, dbName string, tableName string, loadType string) error {
	tableRunLog := TableRunLog{
		ParentRunID: runID,
		DBName:      dbName,
		TableName:   tableName,
		LoadType:    loadType,
		Status:      Started,
		Base:        Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
	}
	return m.DB.Create(&tableRunLog).Error
}

func (m *GormManager) FinishTableRun(runID string, dbName string, tableName string, res TableResult) error {
	status := Success
	var errMsg string
	if res.Err != nil {
		status, errMsg = Failed, res.Err.Error()
	}
	return m.DB.Model(&TableRunLog{}).
		Where("parent_run_id = ? AND db_name = ? AND table_name = ?", runID, dbName, tableName).
		Updates(map[string]any{
			"status":              status,
			"err_msg":             errMsg,
			"rows_written_target": res.RowsWritten,
			"parts":               res.Parts,
			"duration_ms":         res.Duration.Milliseconds(),
			"updated_at":          currentTime(),
		}).Error
}

func (m *GormManager) DidTableFailForRun(runID string) (bool, error) {
	var failedTableRunLogs int64
	err := m.DB.Model(&TableRunLog{}).Where("parent_run_id = ? AND status = ?", runID, Failed).Count(&failedTableRunLogs).Error
	return failedTableRunLogs > 0, err
}

func (m *GormManager) Close() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *GormManager) updateRunStatus(runID string, status RunLogState, err error) error {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	return m.DB.Transaction(func(tx *gorm.DB) error {
		errTx := tx.Model(&RunLog{}).Where("run_id = ?", runID).Updates(RunLog{
			Status: status,
			ErrMsg: errMsg,
			Base:   Base{UpdatedAt: currentTime()},
		}).Error
		if errTx != nil || status != Failed {
			return errTx
		}
		return tx.Model(&TableRunLog{}).Where("parent_run_id = ? AND status = ?", runID, Started).Update("status", Aborted).Error
	})
}

func currentTime() *time.Time {
	now := time.Now()
	return &now
}

var _ Manager = (*GormManager)(nil)
