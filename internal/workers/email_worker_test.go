package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gigflow_backend/internal/email"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/testutil"
)

// flakyProvider падает первые failures раз, потом отправляет
type flakyProvider struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []email.Email
}

func (p *flakyProvider) Send(ctx context.Context, e *email.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("smtp: 421 service not available")
	}
	p.sent = append(p.sent, *e)
	return nil
}

func (p *flakyProvider) Validate() error { return nil }
func (p *flakyProvider) Close() error    { return nil }

func newTestEmailWorker(t *testing.T, provider email.Provider) (*EmailWorker, repositories.EmailJobRepository, *gorm.DB) {
	t.Helper()
	return newTestEmailWorkerWithConfig(t, provider, EmailWorkerConfig{
		PollInterval: 20 * time.Millisecond,
		BatchSize:    10,
		RetryDelay:   time.Millisecond,
	})
}

func newTestEmailWorkerWithConfig(t *testing.T, provider email.Provider, cfg EmailWorkerConfig) (*EmailWorker, repositories.EmailJobRepository, *gorm.DB) {
	t.Helper()

	st, db := testutil.NewTestStore(t)
	jobs := repositories.NewEmailJobRepository(3)
	tm, err := email.NewTemplateManager()
	require.NoError(t, err)

	w := NewEmailWorker(st, jobs, tm, provider, cfg)
	return w, jobs, db
}

func enqueueJob(t *testing.T, db *gorm.DB, jobs repositories.EmailJobRepository, template string) *models.EmailJob {
	t.Helper()

	job := &models.EmailJob{
		EventID:      "evt-" + template,
		Template:     template,
		ToEmail:      "alice@test.com",
		ToName:       "Alice",
		Subject:      "You've been hired",
		TemplateData: datatypes.JSON(`{"GigTitle":"Logo","Price":100,"ClientName":"Olga"}`),
	}
	n, err := jobs.Enqueue(db, []*models.EmailJob{job})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	return job
}

func reloadJob(t *testing.T, db *gorm.DB, id string) *models.EmailJob {
	t.Helper()
	var job models.EmailJob
	require.NoError(t, db.Where("id = ?", id).Take(&job).Error)
	return &job
}

// processUntilIdle гоняет пачки, пока отложенные повторы не станут готовы
func processUntilIdle(t *testing.T, w *EmailWorker, rounds int) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		_, err := w.ProcessBatch(context.Background())
		require.NoError(t, err)
		time.Sleep(15 * time.Millisecond)
	}
}

func TestEmailWorker_SendsJob(t *testing.T) {
	provider := &flakyProvider{}
	w, jobs, db := newTestEmailWorker(t, provider)

	job := enqueueJob(t, db, jobs, email.TemplateBidHired)

	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, provider.sent, 1)
	assert.Equal(t, "alice@test.com", provider.sent[0].To)
	assert.Contains(t, provider.sent[0].HTMLBody, "Hi Alice,")
	assert.Contains(t, provider.sent[0].HTMLBody, "Logo")

	reloaded := reloadJob(t, db, job.ID)
	assert.Equal(t, models.EmailJobStatusSent, reloaded.Status)
	assert.Equal(t, 1, reloaded.Attempts)
	t.Logf("EMAIL: Письмо %s отправлено - Успешно.", job.ID)
}

func TestEmailWorker_RetriesThenSends(t *testing.T) {
	provider := &flakyProvider{failures: 2}
	w, jobs, db := newTestEmailWorker(t, provider)

	job := enqueueJob(t, db, jobs, email.TemplateBidHired)
	processUntilIdle(t, w, 4)

	reloaded := reloadJob(t, db, job.ID)
	assert.Equal(t, models.EmailJobStatusSent, reloaded.Status)
	assert.Equal(t, 3, reloaded.Attempts)
	assert.Len(t, provider.sent, 1)
}

func TestEmailWorker_DeadLetterAfterMaxAttempts(t *testing.T) {
	provider := &flakyProvider{failures: 100}
	w, jobs, db := newTestEmailWorker(t, provider)

	job := enqueueJob(t, db, jobs, email.TemplateBidHired)
	processUntilIdle(t, w, 5)

	reloaded := reloadJob(t, db, job.ID)
	assert.Equal(t, models.EmailJobStatusDeadLetter, reloaded.Status)
	assert.Equal(t, 3, reloaded.Attempts)
	require.NotNil(t, reloaded.LastError)
	assert.Contains(t, *reloaded.LastError, "421")
	assert.Equal(t, 3, provider.calls)
}

func TestEmailWorker_UnknownTemplateIsNotRetried(t *testing.T) {
	provider := &flakyProvider{}
	w, jobs, db := newTestEmailWorker(t, provider)

	job := enqueueJob(t, db, jobs, "no_such_template")
	processUntilIdle(t, w, 1)

	reloaded := reloadJob(t, db, job.ID)
	assert.Equal(t, models.EmailJobStatusDeadLetter, reloaded.Status)
	assert.Zero(t, provider.calls)
}

func TestEmailWorker_RecoversStaleJobWhileRunning(t *testing.T) {
	// 1. Подготовка: задача осталась processing после сбоя MarkSent
	provider := &flakyProvider{}
	w, jobs, db := newTestEmailWorkerWithConfig(t, provider, EmailWorkerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		RetryDelay:   time.Millisecond,
		StaleAfter:   50 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := enqueueJob(t, db, jobs, email.TemplateBidHired)
	require.NoError(t, db.Model(&models.EmailJob{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":    models.EmailJobStatusProcessing,
		"attempts":  1,
		"locked_at": time.Now().UTC(),
	}).Error)

	// 2. Действие
	w.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = w.Stop(stopCtx)
	}()

	// 3. Проверка
	assert.Eventually(t, func() bool {
		return reloadJob(t, db, job.ID).Status == models.EmailJobStatusSent
	}, 2*time.Second, 10*time.Millisecond, "Зависшая задача должна быть отправлена без рестарта")

	provider.mu.Lock()
	assert.Len(t, provider.sent, 1)
	provider.mu.Unlock()

	t.Logf("Зависшая задача %s отправлена - Успешно.", job.ID)
}

func TestEmailWorker_StartStop(t *testing.T) {
	provider := &flakyProvider{}
	w, jobs, db := newTestEmailWorker(t, provider)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	job := enqueueJob(t, db, jobs, email.TemplateBidRejected)
	w.Kick()

	assert.Eventually(t, func() bool {
		return reloadJob(t, db, job.ID).Status == models.EmailJobStatusSent
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, w.Stop(stopCtx))
}

func TestCleanupWorker_RunOnce(t *testing.T) {
	st, db := testutil.NewTestStore(t)
	old := time.Now().UTC().AddDate(0, 0, -40)

	// прочитанное старое уведомление, непрочитанное старое и свежее прочитанное
	require.NoError(t, db.Create(&models.Notification{UserID: "u", Type: models.NotificationTypeNewBid, Title: "t", EventID: "e1", IsRead: true, CreatedAt: old}).Error)
	require.NoError(t, db.Create(&models.Notification{UserID: "u", Type: models.NotificationTypeNewBid, Title: "t", EventID: "e2", CreatedAt: old}).Error)
	require.NoError(t, db.Create(&models.Notification{UserID: "u", Type: models.NotificationTypeNewBid, Title: "t", EventID: "e3", IsRead: true}).Error)

	require.NoError(t, db.Create(&models.OutboxEvent{Topic: "T", AggregateID: "a", Payload: datatypes.JSON(`{}`), Status: models.OutboxStatusDone, NextRetryAt: old, ProcessedAt: &old}).Error)
	require.NoError(t, db.Create(&models.OutboxEvent{Topic: "T", AggregateID: "a", Payload: datatypes.JSON(`{}`), Status: models.OutboxStatusDeadLetter, NextRetryAt: old, ProcessedAt: &old}).Error)

	cleanup := NewCleanupWorker(st,
		repositories.NewNotificationRepository(),
		repositories.NewOutboxRepository(5),
		repositories.NewEmailJobRepository(3),
		"@every 1h", 30,
	)
	cleanup.RunOnce(context.Background())

	var notifications, outbox int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notifications).Error)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&outbox).Error)
	assert.EqualValues(t, 2, notifications)
	// dead letter остается для разбора
	assert.EqualValues(t, 1, outbox)
}
