package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gigflow_backend/database"
	"gigflow_backend/internal/auth"
	"gigflow_backend/internal/config"
	"gigflow_backend/internal/email"
	"gigflow_backend/internal/fanout"
	"gigflow_backend/internal/handlers"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/middleware"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/routes"
	"gigflow_backend/internal/services"
	"gigflow_backend/internal/services/hire"
	"gigflow_backend/internal/store"
	"gigflow_backend/internal/validator"
	"gigflow_backend/internal/workers"
	"gigflow_backend/pkg/apperrors"
	"gigflow_backend/ws"
)

const shutdownTimeout = 15 * time.Second

// App - собранное приложение: роутер и фоновые компоненты
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Router   *gin.Engine
	Services *services.ServiceContainer
	Tokens   *auth.TokenManager

	Hub         *ws.Hub
	Dispatcher  *fanout.Dispatcher
	EmailWorker *workers.EmailWorker
	Cleanup     *workers.CleanupWorker
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(cfg.IsDevelopment())

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Connect(database.OptionsFromConfig(cfg))
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("Auto-migration failed", "error", err)
		}
	}

	application, err := New(cfg, gormDB)
	if err != nil {
		logger.Fatal("Failed to build application", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Serve(ctx); err != nil {
		logger.Fatal("Server error", "error", err)
	}
}

// New собирает зависимости. Фоновые компоненты не запускаются до Start.
func New(cfg *config.Config, gormDB *gorm.DB) (*App, error) {
	st := store.New(gormDB)

	// --- Репозитории ---
	userRepo := repositories.NewUserRepository()
	gigRepo := repositories.NewGigRepository()
	bidRepo := repositories.NewBidRepository()
	notificationRepo := repositories.NewNotificationRepository()
	outboxRepo := repositories.NewOutboxRepository(cfg.Fanout.MaxAttempts)
	emailJobRepo := repositories.NewEmailJobRepository(cfg.Email.MaxAttempts)

	// --- Email ---
	provider, err := email.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("email provider: %w", err)
	}
	if !cfg.Email.Enabled {
		logger.Warn("Email sending disabled, using log provider")
	}
	templates, err := email.NewTemplateManager()
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}

	// --- Фон ---
	hub := ws.NewHub(cfg.Realtime.SendBuffer)
	emailWorker := workers.NewEmailWorker(st, emailJobRepo, templates, provider, workers.EmailWorkerConfig{
		PollInterval: cfg.Email.PollInterval,
		BatchSize:    cfg.Email.BatchSize,
		RatePerSec:   cfg.Email.RatePerSec,
	})
	dispatcher := fanout.NewDispatcher(st, outboxRepo, notificationRepo, emailJobRepo, hub, emailWorker, fanout.Config{
		PollInterval: cfg.Fanout.PollInterval,
		BatchSize:    cfg.Fanout.BatchSize,
		RetryDelay:   cfg.Fanout.RetryDelay,
		StaleAfter:   cfg.Fanout.StaleAfter,
	})
	cleanup := workers.NewCleanupWorker(st, notificationRepo, outboxRepo, emailJobRepo,
		cfg.Cleanup.Schedule, cfg.Cleanup.RetentionDays)

	// --- Сервисы ---
	coordinator := hire.NewCoordinator(st, gigRepo, bidRepo, userRepo, outboxRepo)
	serviceContainer := &services.ServiceContainer{
		BidService: services.NewBidService(st, gigRepo, bidRepo, userRepo, outboxRepo, coordinator, dispatcher,
			services.HireRetryPolicy{
				MaxTries:        cfg.Hire.MaxRetries,
				InitialInterval: cfg.Hire.RetryInitialInterval,
				Timeout:         cfg.Hire.Timeout,
			}),
		GigService:          services.NewGigService(st, gigRepo),
		NotificationService: services.NewNotificationService(st, notificationRepo),
	}

	// --- HTTP ---
	tokens := auth.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.TTL)*time.Minute)
	appHandlers := initializeHandlers(serviceContainer, gormDB)
	wsHandler := ws.NewWebSocketHandler(hub, cfg.Realtime.AllowedOrigins)

	ginRouter := initializeGinRouter(cfg)
	routes.RegisterRoutes(ginRouter, appHandlers, wsHandler, tokens)

	return &App{
		Config:      cfg,
		DB:          gormDB,
		Router:      ginRouter,
		Services:    serviceContainer,
		Tokens:      tokens,
		Hub:         hub,
		Dispatcher:  dispatcher,
		EmailWorker: emailWorker,
		Cleanup:     cleanup,
	}, nil
}

func initializeHandlers(svc *services.ServiceContainer, gormDB *gorm.DB) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	return &handlers.AppHandlers{
		BidHandler:          handlers.NewBidHandler(baseHandler, svc.BidService),
		GigHandler:          handlers.NewGigHandler(baseHandler, svc.GigService),
		NotificationHandler: handlers.NewNotificationHandler(baseHandler, svc.NotificationService),
		HealthHandler:       handlers.NewHealthHandler(gormDB),
	}
}

func initializeGinRouter(cfg *config.Config) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Realtime.AllowedOrigins))
	return router
}

// Start запускает хаб и воркеры
func (a *App) Start(ctx context.Context) error {
	go a.Hub.Run(ctx)
	a.EmailWorker.Start(ctx)
	a.Dispatcher.Start(ctx)
	return a.Cleanup.Start(ctx)
}

// Stop останавливает воркеры, дожидаясь текущих пачек
func (a *App) Stop(ctx context.Context) error {
	return errors.Join(
		a.Dispatcher.Stop(ctx),
		a.EmailWorker.Stop(ctx),
		a.Cleanup.Stop(ctx),
	)
}

// Serve запускает HTTP-сервер и фон, блокируется до отмены ctx
func (a *App) Serve(ctx context.Context) error {
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	if err := a.Start(bgCtx); err != nil {
		return err
	}

	address := fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("🚀 Server starting on %s", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := a.Stop(shutdownCtx); err != nil {
		logger.Error("Background workers shutdown failed", "error", err)
	}
	cancelBg()

	logger.Info("Server stopped")
	return nil
}
