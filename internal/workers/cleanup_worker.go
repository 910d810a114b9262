package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/store"
)

// CleanupWorker по расписанию удаляет прочитанные уведомления и
// обработанные строки outbox/email старше срока хранения
type CleanupWorker struct {
	store            *store.Store
	notificationRepo repositories.NotificationRepository
	outboxRepo       repositories.OutboxRepository
	emailJobRepo     repositories.EmailJobRepository
	schedule         string
	retention        time.Duration
	cron             *cron.Cron
}

func NewCleanupWorker(
	st *store.Store,
	notificationRepo repositories.NotificationRepository,
	outboxRepo repositories.OutboxRepository,
	emailJobRepo repositories.EmailJobRepository,
	schedule string,
	retentionDays int,
) *CleanupWorker {
	if schedule == "" {
		schedule = "@daily"
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &CleanupWorker{
		store:            st,
		notificationRepo: notificationRepo,
		outboxRepo:       outboxRepo,
		emailJobRepo:     emailJobRepo,
		schedule:         schedule,
		retention:        time.Duration(retentionDays) * 24 * time.Hour,
		cron:             cron.New(),
	}
}

// Start регистрирует задачу в cron и запускает планировщик
func (w *CleanupWorker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	logger.Info("cleanup worker scheduled", "schedule", w.schedule, "retention", w.retention.String())
	return nil
}

// Stop ждет завершения запущенной очистки
func (w *CleanupWorker) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce выполняет одну очистку
func (w *CleanupWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	db := w.store.DB(ctx)
	cutoff := time.Now().UTC().Add(-w.retention)

	notifications, err := w.notificationRepo.DeleteReadBefore(db, cutoff)
	logger.WorkerLog("cleanup", "delete_read_notifications", err, "deleted", notifications)

	outbox, err := w.outboxRepo.DeleteDoneBefore(db, cutoff)
	logger.WorkerLog("cleanup", "delete_done_outbox", err, "deleted", outbox)

	emails, err := w.emailJobRepo.DeleteSentBefore(db, cutoff)
	logger.WorkerLog("cleanup", "delete_sent_emails", err, "deleted", emails)
}
