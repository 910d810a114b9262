package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxEvent пишется в той же транзакции, что и изменение ставки/гига.
// Payload - неизменяемый снимок всего, что нужно для уведомлений.
type OutboxEvent struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Topic       string         `gorm:"size:100;not null;index" json:"topic"`
	AggregateID string         `gorm:"size:36;not null;index" json:"aggregate_id"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Status      OutboxStatus   `gorm:"size:20;not null;default:pending;index:idx_outbox_status_next,priority:1" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"not null;default:5" json:"max_attempts"`
	LastError   *string        `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt time.Time      `gorm:"not null;index:idx_outbox_status_next,priority:2" json:"next_retry_at"`
	LockedAt    *time.Time     `json:"locked_at,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
