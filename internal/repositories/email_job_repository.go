package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow_backend/internal/models"
)

type EmailJobRepository interface {
	// Enqueue ставит письма в очередь; дубль (event_id, to_email, template) пропускается
	Enqueue(db *gorm.DB, jobs []*models.EmailJob) (int64, error)
	ClaimBatch(db *gorm.DB, limit int) ([]*models.EmailJob, error)
	MarkSent(db *gorm.DB, id string) error
	MarkFailed(db *gorm.DB, job *models.EmailJob, cause error, baseDelay time.Duration) (bool, error)
	RecoverStale(db *gorm.DB, staleAfter time.Duration) (int64, error)
	DeleteSentBefore(db *gorm.DB, cutoff time.Time) (int64, error)
	FindByEvent(db *gorm.DB, eventID string) ([]models.EmailJob, error)
}

type EmailJobRepositoryImpl struct {
	maxAttempts int
}

func NewEmailJobRepository(maxAttempts int) EmailJobRepository {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &EmailJobRepositoryImpl{maxAttempts: maxAttempts}
}

func (r *EmailJobRepositoryImpl) Enqueue(db *gorm.DB, jobs []*models.EmailJob) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	now := db.NowFunc()
	for _, j := range jobs {
		j.Status = models.EmailJobStatusPending
		if j.MaxAttempts == 0 {
			j.MaxAttempts = r.maxAttempts
		}
		if j.NextRetryAt.IsZero() {
			j.NextRetryAt = now
		}
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&jobs)
	return result.RowsAffected, result.Error
}

func (r *EmailJobRepositoryImpl) ClaimBatch(db *gorm.DB, limit int) ([]*models.EmailJob, error) {
	var jobs []*models.EmailJob

	err := db.Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc()
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
			Where("status = ? AND next_retry_at <= ?", models.EmailJobStatusPending, now).
			Order("next_retry_at ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]string, len(jobs))
		for i, j := range jobs {
			ids[i] = j.ID
		}

		if err := tx.Model(&models.EmailJob{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":    models.EmailJobStatusProcessing,
				"attempts":  gorm.Expr("attempts + 1"),
				"locked_at": now,
			}).Error; err != nil {
			return err
		}

		for _, j := range jobs {
			j.Status = models.EmailJobStatusProcessing
			j.Attempts++
			j.LockedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *EmailJobRepositoryImpl) MarkSent(db *gorm.DB, id string) error {
	return db.Model(&models.EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.EmailJobStatusSent,
			"processed_at": db.NowFunc(),
			"locked_at":    nil,
			"last_error":   nil,
		}).Error
}

func (r *EmailJobRepositoryImpl) MarkFailed(db *gorm.DB, job *models.EmailJob, cause error, baseDelay time.Duration) (bool, error) {
	now := db.NowFunc()
	updates := map[string]any{
		"last_error": truncateError(cause.Error()),
		"locked_at":  nil,
	}

	dead := job.Attempts >= job.MaxAttempts
	if dead {
		updates["status"] = models.EmailJobStatusDeadLetter
		updates["processed_at"] = now
	} else {
		updates["status"] = models.EmailJobStatusPending
		updates["next_retry_at"] = now.Add(retryDelay(baseDelay, job.Attempts))
	}

	err := db.Model(&models.EmailJob{}).Where("id = ?", job.ID).Updates(updates).Error
	return dead, err
}

func (r *EmailJobRepositoryImpl) RecoverStale(db *gorm.DB, staleAfter time.Duration) (int64, error) {
	cutoff := db.NowFunc().Add(-staleAfter)
	result := db.Model(&models.EmailJob{}).
		Where("status = ? AND locked_at < ?", models.EmailJobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":    models.EmailJobStatusPending,
			"locked_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *EmailJobRepositoryImpl) DeleteSentBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("status = ? AND processed_at < ?", models.EmailJobStatusSent, cutoff).
		Delete(&models.EmailJob{})
	return result.RowsAffected, result.Error
}

func (r *EmailJobRepositoryImpl) FindByEvent(db *gorm.DB, eventID string) ([]models.EmailJob, error) {
	var jobs []models.EmailJob
	err := db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}
