package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gigflow_backend/internal/email"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/store"
)

type EmailWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	RatePerSec   float64
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

// EmailWorker рассылает письма из очереди email_jobs
type EmailWorker struct {
	store    *store.Store
	jobs     repositories.EmailJobRepository
	renderer email.TemplateRenderer
	provider email.Provider
	limiter  *rate.Limiter
	cfg      EmailWorkerConfig
	log      *slog.Logger

	kick    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
	mu      sync.Mutex
}

func NewEmailWorker(
	st *store.Store,
	jobs repositories.EmailJobRepository,
	renderer email.TemplateRenderer,
	provider email.Provider,
	cfg EmailWorkerConfig,
) *EmailWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &EmailWorker{
		store:    st,
		jobs:     jobs,
		renderer: renderer,
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
		log:      logger.Component("email_worker"),
		kick:     make(chan struct{}, 1),
	}
}

func (w *EmailWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Start запускает фоновую рассылку
func (w *EmailWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	w.recoverStale(ctx)

	w.log.Info("email worker starting",
		slog.Duration("poll_interval", w.cfg.PollInterval),
		slog.Float64("rate_per_sec", w.cfg.RatePerSec))

	go w.run(ctx)
}

func (w *EmailWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	select {
	case <-w.stopped:
		w.log.Info("email worker stopped")
		return nil
	case <-ctx.Done():
		w.log.Warn("email worker stop timeout")
		return ctx.Err()
	}
}

func (w *EmailWorker) recoverStale(ctx context.Context) {
	recovered, err := w.jobs.RecoverStale(w.store.DB(ctx), w.cfg.StaleAfter)
	if err != nil {
		logger.WorkerLog("email", "recover_stale", err)
		return
	}
	if recovered > 0 {
		w.log.Info("recovered stale email jobs", slog.Int64("count", recovered))
	}
}

func (w *EmailWorker) run(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	lastRecover := time.Now()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}

		if time.Since(lastRecover) >= w.cfg.StaleAfter {
			w.recoverStale(ctx)
			lastRecover = time.Now()
		}

		if _, err := w.ProcessBatch(ctx); err != nil {
			logger.WorkerLog("email", "process_batch", err)
		}
	}
}

// ProcessBatch отправляет пачку писем, возвращает число обработанных задач
func (w *EmailWorker) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := w.jobs.ClaimBatch(w.store.DB(ctx), w.cfg.BatchSize)
	if err != nil {
		return 0, store.Classify(err)
	}

	for _, job := range jobs {
		if err := w.limiter.Wait(ctx); err != nil {
			// задача останется processing, ее вернет recoverStale
			return 0, err
		}
		w.process(ctx, job)
	}
	return len(jobs), nil
}

func (w *EmailWorker) process(ctx context.Context, job *models.EmailJob) {
	ctx = logger.WithCorrelationID(ctx, job.EventID)
	db := w.store.DB(ctx)

	err := w.send(ctx, job)
	if err == nil {
		if markErr := w.jobs.MarkSent(db, job.ID); markErr != nil {
			logger.CtxWithError(ctx, "failed to mark email job as sent", markErr, "job_id", job.ID)
		}
		return
	}

	dead, markErr := w.jobs.MarkFailed(db, job, err, w.cfg.RetryDelay)
	if markErr != nil {
		logger.CtxWithError(ctx, "failed to mark email job as failed", markErr, "job_id", job.ID)
		return
	}
	if dead {
		logger.CtxError(ctx, "email job moved to dead letter",
			"job_id", job.ID, "template", job.Template, "attempts", job.Attempts, "error", err)
	} else {
		logger.CtxWarn(ctx, "email send failed, will retry",
			"job_id", job.ID, "template", job.Template, "attempts", job.Attempts, "error", err)
	}
}

func (w *EmailWorker) send(ctx context.Context, job *models.EmailJob) error {
	if !w.renderer.Has(job.Template) {
		// неизвестный шаблон - повтор не поможет
		job.Attempts = job.MaxAttempts
		return fmt.Errorf("unknown email template %q", job.Template)
	}

	data := email.TemplateData{}
	if len(job.TemplateData) > 0 {
		if err := json.Unmarshal(job.TemplateData, &data); err != nil {
			job.Attempts = job.MaxAttempts
			return fmt.Errorf("decode template data: %w", err)
		}
	}
	if _, ok := data["RecipientName"]; !ok {
		data["RecipientName"] = job.ToName
	}

	body, err := w.renderer.Render(job.Template, data)
	if err != nil {
		job.Attempts = job.MaxAttempts
		return err
	}

	return w.provider.Send(ctx, &email.Email{
		To:       job.ToEmail,
		ToName:   job.ToName,
		Subject:  job.Subject,
		HTMLBody: body,
	})
}
