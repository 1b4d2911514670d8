// Package history is the append-only log of completed translations. It is
// purely observational: nothing in the pipeline reads it back to decide
// anything.
package history

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Record struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64     `gorm:"index;not null" json:"user_id"`
	FileKind          string    `gorm:"type:varchar(20)" json:"file_kind"`
	SourceLanguage    string    `gorm:"type:varchar(10)" json:"source_language"`
	TargetLanguage    string    `gorm:"type:varchar(10)" json:"target_language"`
	TranscriptionText string    `gorm:"type:text" json:"transcription_text"`
	TranslatedText    string    `gorm:"type:text" json:"translated_text"`
	ProcessingSeconds int       `gorm:"not null;default:0" json:"processing_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Record) TableName() string { return "request_history" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Append(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListRecent returns the newest records first.
func (r *Repo) ListRecent(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
