package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification - запись во "входящих" пользователя.
// (event_id, user_id, type) уникальны: повторная обработка того же
// outbox-события не создает дублей.
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    string           `gorm:"size:36;not null;index;uniqueIndex:idx_notifications_event_user_type,priority:2" json:"user_id"`
	Type      NotificationType `gorm:"size:30;not null;uniqueIndex:idx_notifications_event_user_type,priority:3" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Data      datatypes.JSON   `json:"data,omitempty"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	EventID   string           `gorm:"size:36;not null;uniqueIndex:idx_notifications_event_user_type,priority:1" json:"-"`
	CreatedAt time.Time        `gorm:"not null;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
