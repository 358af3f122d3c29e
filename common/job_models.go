package common

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ImportRun records the result of one import call
type ImportRun struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id"`
	IdempotencyKey *string    `gorm:"uniqueIndex" json:"idempotency_key,omitempty"`
	Collection     string     `gorm:"not null" json:"collection"` // beneficiaries, volunteers, events
	CallerUID      string     `gorm:"not null" json:"caller_uid"`
	Status         string     `gorm:"not null" json:"status"`
	TotalRows      int        `gorm:"default:0" json:"total_rows"`
	Imported       int        `gorm:"default:0" json:"imported"`
	Skipped        int        `gorm:"default:0" json:"skipped"`
	Message        string     `json:"message,omitempty"`
	Rows           string     `gorm:"type:text" json:"-"` // JSON array of RowReport
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ApiMetric tracks API performance metrics
type ApiMetric struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RequestID     string    `gorm:"index" json:"request_id"`
	Endpoint      string    `gorm:"not null" json:"endpoint"`
	Method        string    `gorm:"not null" json:"method"`
	StatusCode    int       `gorm:"not null" json:"status_code"`
	DurationMs    int       `gorm:"not null" json:"duration_ms"`
	RowsProcessed int       `gorm:"default:0" json:"rows_processed"`
	Errors        string    `gorm:"type:text" json:"errors,omitempty"` // JSON errors
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
}

func (ImportRun) TableName() string { return "import_runs" }
func (ApiMetric) TableName() string { return "api_metrics" }

// AutoMigrateJobs creates the run log and metric tables
func AutoMigrateJobs(db *gorm.DB) error {
	return db.AutoMigrate(&ImportRun{}, &ApiMetric{})
}

// RunLog persists ImportRun rows.
type RunLog struct {
	db *gorm.DB
}

func NewRunLog(db *gorm.DB) *RunLog {
	return &RunLog{db: db}
}

// Save inserts or updates run.
func (l *RunLog) Save(ctx context.Context, run *ImportRun) error {
	return l.db.WithContext(ctx).Save(run).Error
}

// Get returns the run with id, or a not-found error.
func (l *RunLog) Get(ctx context.Context, id string) (*ImportRun, error) {
	var run ImportRun
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(CodeNotFound, "Import run not found.")
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindByIdempotencyKey returns the completed run registered under key, if any.
func (l *RunLog) FindByIdempotencyKey(ctx context.Context, key string) (*ImportRun, bool, error) {
	var run ImportRun
	err := l.db.WithContext(ctx).
		Where("idempotency_key = ? AND status = ?", key, RunStatusCompleted).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &run, true, nil
}
