package dto

import (
	"encoding/json"
	"time"

	"gigflow_backend/internal/models"
)

type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      json.RawMessage         `json:"data,omitempty"`
	IsRead    bool                    `json:"is_read"`
	ReadAt    *time.Time              `json:"read_at,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type NotificationListMeta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"total_pages"`
	UnreadCount int64 `json:"unread_count"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Meta          NotificationListMeta    `json:"meta"`
}

// NotificationListQuery - фильтры списка из query-строки
type NotificationListQuery struct {
	UnreadOnly bool   `form:"unread_only" json:"unread_only"`
	Type       string `form:"type" json:"type" validate:"omitempty,is-notification-type"`
}

// NotificationCriteria - параметры списка для сервиса
type NotificationCriteria struct {
	Page       int
	Limit      int
	UnreadOnly bool
	Type       models.NotificationType
}

func NewNotificationResponse(n *models.Notification) *NotificationResponse {
	resp := &NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		resp.Data = json.RawMessage(n.Data)
	}
	return resp
}
