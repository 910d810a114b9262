// Package fanout доставляет outbox-события по трем независимым каналам:
// записи во "входящих", realtime-пуши и очередь писем.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/store"
)

// Pusher - realtime канал. false значит "у пользователя нет соединений".
type Pusher interface {
	Send(userID, event string, payload any) bool
}

// Kicker будит другой воркер (очередь писем)
type Kicker interface {
	Kick()
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Minute
	}
}

// Report - итог доставки одного события
type Report struct {
	NotificationsCreated int64
	PushesDelivered      int
	EmailsQueued         int64
}

type Dispatcher struct {
	store            *store.Store
	outboxRepo       repositories.OutboxRepository
	notificationRepo repositories.NotificationRepository
	emailJobRepo     repositories.EmailJobRepository
	pusher           Pusher
	emailKicker      Kicker
	cfg              Config
	log              *slog.Logger

	kick    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
	mu      sync.Mutex
}

func NewDispatcher(
	st *store.Store,
	outboxRepo repositories.OutboxRepository,
	notificationRepo repositories.NotificationRepository,
	emailJobRepo repositories.EmailJobRepository,
	pusher Pusher,
	emailKicker Kicker,
	cfg Config,
) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		store:            st,
		outboxRepo:       outboxRepo,
		notificationRepo: notificationRepo,
		emailJobRepo:     emailJobRepo,
		pusher:           pusher,
		emailKicker:      emailKicker,
		cfg:              cfg,
		log:              logger.Component("fanout"),
		kick:             make(chan struct{}, 1),
	}
}

// Kick будит цикл без ожидания тикера. Не блокируется.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start запускает цикл опроса outbox
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.stopped = make(chan struct{})
	d.mu.Unlock()

	d.recoverStale(ctx)

	d.log.Info("fanout dispatcher starting",
		slog.Duration("poll_interval", d.cfg.PollInterval),
		slog.Int("batch_size", d.cfg.BatchSize))

	go d.run(ctx)
}

// Stop останавливает цикл и ждет текущую пачку
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	select {
	case <-d.stopped:
		d.log.Info("fanout dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.log.Warn("fanout dispatcher stop timeout")
		return ctx.Err()
	}
}

func (d *Dispatcher) recoverStale(ctx context.Context) {
	recovered, err := d.outboxRepo.RecoverStale(d.store.DB(ctx), d.cfg.StaleAfter)
	if err != nil {
		logger.WorkerLog("fanout", "recover_stale", err)
		return
	}
	if recovered > 0 {
		d.log.Info("recovered stale outbox events", slog.Int64("count", recovered))
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stopped)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	lastRecover := time.Now()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}

		// зависшие processing возвращаем в очередь и во время работы, не только на старте
		if time.Since(lastRecover) >= d.cfg.StaleAfter {
			d.recoverStale(ctx)
			lastRecover = time.Now()
		}

		// выбираем все, что накопилось, пачками
		for {
			n, err := d.ProcessBatch(ctx)
			if err != nil {
				logger.WorkerLog("fanout", "process_batch", err)
				break
			}
			if n < d.cfg.BatchSize {
				break
			}
		}
	}
}

// ProcessBatch забирает пачку событий и доставляет их. Возвращает размер пачки.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	batch, err := d.outboxRepo.ClaimBatch(d.store.DB(ctx), d.cfg.BatchSize)
	if err != nil {
		return 0, store.Classify(err)
	}

	for _, event := range batch {
		d.handle(ctx, event)
	}
	return len(batch), nil
}

func (d *Dispatcher) handle(ctx context.Context, event *models.OutboxEvent) {
	ctx = logger.WithCorrelationID(ctx, event.ID)
	db := d.store.DB(ctx)

	report, err := d.Deliver(ctx, event)
	if err != nil {
		dead, markErr := d.outboxRepo.MarkFailed(db, event, err, d.cfg.RetryDelay)
		if markErr != nil {
			logger.CtxWithError(ctx, "failed to mark outbox event as failed", markErr)
			return
		}
		if dead {
			logger.CtxError(ctx, "outbox event moved to dead letter",
				"topic", event.Topic, "attempts", event.Attempts, "error", err)
		} else {
			logger.CtxWarn(ctx, "outbox event delivery failed, will retry",
				"topic", event.Topic, "attempts", event.Attempts, "error", err)
		}
		return
	}

	if err := d.outboxRepo.MarkDone(db, event.ID); err != nil {
		// событие вернет recoverStale через stale_after, повтор идемпотентен
		logger.CtxWithError(ctx, "failed to mark outbox event as done", err)
		return
	}

	if report.EmailsQueued > 0 && d.emailKicker != nil {
		d.emailKicker.Kick()
	}

	logger.CtxDebug(ctx, "outbox event delivered",
		"topic", event.Topic,
		"notifications", report.NotificationsCreated,
		"pushes", report.PushesDelivered,
		"emails", report.EmailsQueued,
	)
}

// Deliver выполняет план события. Каналы независимы: ошибка одного не
// мешает остальным. Ошибка возвращается, только если не удалось сохранить
// уведомления или поставить письма в очередь; realtime не ретраится.
func (d *Dispatcher) Deliver(ctx context.Context, event *models.OutboxEvent) (*Report, error) {
	plan, err := BuildPlan(event)
	if err != nil {
		// битый payload не починится повтором
		event.Attempts = event.MaxAttempts
		return nil, err
	}

	report := &Report{}
	var persistErr, emailErr error

	var g errgroup.Group

	g.Go(func() error {
		n, err := d.notificationRepo.CreateBulk(d.store.DB(ctx), plan.Notifications)
		if err != nil {
			persistErr = fmt.Errorf("persist notifications: %w", store.Classify(err))
			return nil
		}
		report.NotificationsCreated = n
		return nil
	})

	g.Go(func() error {
		n, err := d.emailJobRepo.Enqueue(d.store.DB(ctx), plan.Emails)
		if err != nil {
			emailErr = fmt.Errorf("enqueue emails: %w", store.Classify(err))
			return nil
		}
		report.EmailsQueued = n
		return nil
	})

	g.Go(func() error {
		for _, push := range plan.Pushes {
			if d.pusher != nil && d.pusher.Send(push.UserID, push.Event, push.Payload) {
				report.PushesDelivered++
			}
		}
		return nil
	})

	_ = g.Wait()

	return report, errors.Join(persistErr, emailErr)
}
