package pipeline

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a queued transcription request. The ledger class is fixed at
// admission time so the worker never re-evaluates entitlement.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID int64 `gorm:"index;not null"`
	ChatID int64 `gorm:"not null"`

	FileRef   string `gorm:"type:varchar(128);not null"`
	Filename  string `gorm:"type:varchar(255)"`
	FileKind  string `gorm:"type:varchar(10);not null"` // "audio" or "video"
	SizeBytes int64

	Class  string `gorm:"type:varchar(10);not null"`
	Locale string `gorm:"type:varchar(10)"`

	// Degraded jobs were admitted while the quota store was unreachable
	// (fail-open); they are never charged against the ledger.
	Degraded bool `gorm:"not null;default:false"`

	// Charged is flipped before the ledger increment is issued, so a job
	// redelivered after a crash never charges the same request twice.
	Charged bool `gorm:"not null;default:false"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "transcribe_jobs" }

func NewJobID() string {
	return ulid.Make().String()
}
