package services

import (
	"context"

	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/services/dto"
	"gigflow_backend/internal/store"
)

type NotificationService interface {
	GetUserNotifications(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, notificationID string) error
}

type notificationService struct {
	store            *store.Store
	notificationRepo repositories.NotificationRepository
}

func NewNotificationService(
	st *store.Store,
	notificationRepo repositories.NotificationRepository,
) NotificationService {
	return &notificationService{
		store:            st,
		notificationRepo: notificationRepo,
	}
}

func (s *notificationService) GetUserNotifications(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.Limit < 1 {
		criteria.Limit = 20
	}

	db := s.store.DB(ctx)

	notifications, total, err := s.notificationRepo.FindUserNotifications(db, userID, repositories.NotificationCriteria{
		UnreadOnly: criteria.UnreadOnly,
		Type:       criteria.Type,
		Page:       criteria.Page,
		PageSize:   criteria.Limit,
	})
	if err != nil {
		return nil, store.Classify(err)
	}

	unread, err := s.notificationRepo.GetUnreadCount(db, userID)
	if err != nil {
		return nil, store.Classify(err)
	}

	resp := &dto.NotificationListResponse{
		Notifications: make([]*dto.NotificationResponse, 0, len(notifications)),
		Meta: dto.NotificationListMeta{
			Total:       total,
			Page:        criteria.Page,
			Limit:       criteria.Limit,
			TotalPages:  calculateTotalPages(total, criteria.Limit),
			UnreadCount: unread,
		},
	}
	for i := range notifications {
		resp.Notifications = append(resp.Notifications, dto.NewNotificationResponse(&notifications[i]))
	}
	return resp, nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.notificationRepo.GetUnreadCount(s.store.DB(ctx), userID)
	if err != nil {
		return 0, store.Classify(err)
	}
	return count, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	if err := s.notificationRepo.MarkAsRead(s.store.DB(ctx), userID, notificationID); err != nil {
		return store.Classify(err)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.notificationRepo.MarkAllAsRead(s.store.DB(ctx), userID)
	if err != nil {
		return 0, store.Classify(err)
	}
	logger.CtxDebug(ctx, "notifications marked as read", "count", updated)
	return updated, nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if err := s.notificationRepo.Delete(s.store.DB(ctx), userID, notificationID); err != nil {
		return store.Classify(err)
	}
	return nil
}

func calculateTotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
