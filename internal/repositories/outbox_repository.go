package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow_backend/internal/models"
)

type OutboxRepository interface {
	// Enqueue пишет событие; вызывается внутри транзакции изменения
	Enqueue(db *gorm.DB, topic, aggregateID string, payload any) (*models.OutboxEvent, error)
	FindByID(db *gorm.DB, id string) (*models.OutboxEvent, error)
	// ClaimBatch забирает готовые события и переводит их в processing.
	// Конкурентные воркеры не получат одно и то же событие (SKIP LOCKED).
	ClaimBatch(db *gorm.DB, limit int) ([]*models.OutboxEvent, error)
	MarkDone(db *gorm.DB, id string) error
	// MarkFailed планирует повтор с backoff или отправляет в dead letter.
	// Возвращает true, если событие ушло в dead letter.
	MarkFailed(db *gorm.DB, event *models.OutboxEvent, cause error, baseDelay time.Duration) (bool, error)
	RecoverStale(db *gorm.DB, staleAfter time.Duration) (int64, error)
	DeleteDoneBefore(db *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRepositoryImpl struct {
	maxAttempts int
}

func NewOutboxRepository(maxAttempts int) OutboxRepository {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &OutboxRepositoryImpl{maxAttempts: maxAttempts}
}

func (r *OutboxRepositoryImpl) Enqueue(db *gorm.DB, topic, aggregateID string, payload any) (*models.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	event := &models.OutboxEvent{
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(raw),
		Status:      models.OutboxStatusPending,
		MaxAttempts: r.maxAttempts,
		NextRetryAt: db.NowFunc(),
	}
	if err := db.Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *OutboxRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	if err := db.Where("id = ?", id).Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *OutboxRepositoryImpl) ClaimBatch(db *gorm.DB, limit int) ([]*models.OutboxEvent, error) {
	var events []*models.OutboxEvent

	err := db.Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc()
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
			Where("status = ? AND next_retry_at <= ?", models.OutboxStatusPending, now).
			Order("next_retry_at ASC").
			Limit(limit).
			Find(&events).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}

		if err := tx.Model(&models.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":    models.OutboxStatusProcessing,
				"attempts":  gorm.Expr("attempts + 1"),
				"locked_at": now,
			}).Error; err != nil {
			return err
		}

		for _, e := range events {
			e.Status = models.OutboxStatusProcessing
			e.Attempts++
			e.LockedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxRepositoryImpl) MarkDone(db *gorm.DB, id string) error {
	return db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.OutboxStatusDone,
			"processed_at": db.NowFunc(),
			"locked_at":    nil,
			"last_error":   nil,
		}).Error
}

func (r *OutboxRepositoryImpl) MarkFailed(db *gorm.DB, event *models.OutboxEvent, cause error, baseDelay time.Duration) (bool, error) {
	msg := truncateError(cause.Error())
	now := db.NowFunc()

	updates := map[string]any{
		"last_error": msg,
		"locked_at":  nil,
	}

	dead := event.Attempts >= event.MaxAttempts
	if dead {
		updates["status"] = models.OutboxStatusDeadLetter
		updates["processed_at"] = now
	} else {
		updates["status"] = models.OutboxStatusPending
		updates["next_retry_at"] = now.Add(retryDelay(baseDelay, event.Attempts))
	}

	err := db.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Updates(updates).Error
	return dead, err
}

func (r *OutboxRepositoryImpl) RecoverStale(db *gorm.DB, staleAfter time.Duration) (int64, error) {
	cutoff := db.NowFunc().Add(-staleAfter)
	result := db.Model(&models.OutboxEvent{}).
		Where("status = ? AND locked_at < ?", models.OutboxStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":    models.OutboxStatusPending,
			"locked_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *OutboxRepositoryImpl) DeleteDoneBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("status = ? AND processed_at < ?", models.OutboxStatusDone, cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}
