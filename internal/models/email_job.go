package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmailJob - задача в очереди писем
type EmailJob struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	EventID      string         `gorm:"size:36;not null;uniqueIndex:idx_email_jobs_dedup,priority:1" json:"event_id"`
	Template     string         `gorm:"size:100;not null;uniqueIndex:idx_email_jobs_dedup,priority:3" json:"template"`
	ToEmail      string         `gorm:"size:255;not null;uniqueIndex:idx_email_jobs_dedup,priority:2" json:"to_email"`
	ToName       string         `gorm:"size:200" json:"to_name"`
	Subject      string         `gorm:"size:300;not null" json:"subject"`
	TemplateData datatypes.JSON `json:"template_data,omitempty"`
	Status       EmailJobStatus `gorm:"size:20;not null;default:pending;index:idx_email_jobs_status_next,priority:1" json:"status"`
	Attempts     int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts  int            `gorm:"not null;default:3" json:"max_attempts"`
	LastError    *string        `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt  time.Time      `gorm:"not null;index:idx_email_jobs_status_next,priority:2" json:"next_retry_at"`
	LockedAt     *time.Time     `json:"locked_at,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (j *EmailJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}
