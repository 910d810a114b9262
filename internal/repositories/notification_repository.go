package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow_backend/internal/models"
	"gigflow_backend/pkg/apperrors"
)

var ErrInvalidNotificationData = errors.New("invalid notification data")

type NotificationRepository interface {
	// CreateBulk вставляет уведомления, пропуская уже существующие
	// (event_id, user_id, type). Возвращает число реально вставленных.
	CreateBulk(db *gorm.DB, notifications []*models.Notification) (int64, error)
	FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)
	MarkAsRead(db *gorm.DB, userID, notificationID string) error
	MarkAllAsRead(db *gorm.DB, userID string) (int64, error)
	Delete(db *gorm.DB, userID, notificationID string) error
	DeleteReadBefore(db *gorm.DB, cutoff time.Time) (int64, error)
}

type NotificationRepositoryImpl struct{}

// NotificationCriteria - фильтр "входящих"
type NotificationCriteria struct {
	UnreadOnly bool
	Type       models.NotificationType
	Page       int
	PageSize   int
}

func NewNotificationRepository() NotificationRepository {
	return &NotificationRepositoryImpl{}
}

func (r *NotificationRepositoryImpl) CreateBulk(db *gorm.DB, notifications []*models.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	for _, n := range notifications {
		if err := validateNotification(n); err != nil {
			return 0, err
		}
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(notifications, 100)
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	query := db.Model(&models.Notification{}).Where("user_id = ?", userID)

	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if criteria.Type != "" {
		query = query.Where("type = ?", criteria.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 {
		criteria.PageSize = 20
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").
		Limit(criteria.PageSize).
		Offset((criteria.Page - 1) * criteria.PageSize).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepositoryImpl) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead - чужое уведомление для пользователя "не существует"
func (r *NotificationRepositoryImpl) MarkAsRead(db *gorm.DB, userID, notificationID string) error {
	result := db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{
			"is_read": true,
			"read_at": db.NowFunc(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(db *gorm.DB, userID string) (int64, error) {
	result := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": db.NowFunc(),
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) Delete(db *gorm.DB, userID, notificationID string) error {
	result := db.Where("id = ? AND user_id = ?", notificationID, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) DeleteReadBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func validateNotification(n *models.Notification) error {
	if n.UserID == "" {
		return errors.New("user ID is required")
	}
	if n.EventID == "" {
		return errors.New("event ID is required")
	}
	if n.Title == "" {
		return errors.New("notification title is required")
	}

	switch n.Type {
	case models.NotificationTypeNewBid, models.NotificationTypeBidHired, models.NotificationTypeBidRejected:
	default:
		return fmt.Errorf("invalid notification type: %s", n.Type)
	}

	if len(n.Data) > 0 && !json.Valid(n.Data) {
		return ErrInvalidNotificationData
	}
	return nil
}
