package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"gigflow_backend/internal/logger"
)

type Config struct {
	Server struct {
		Host string `yaml:"host" env:"SERVER_HOST"`
		Port int    `yaml:"port" env:"SERVER_PORT"`
		Env  string `yaml:"env" env:"SERVER_ENV"`
	} `yaml:"server"`

	Database struct {
		Driver          string        `yaml:"driver" env:"DATABASE_DRIVER"` // postgres, mysql, sqlite
		DSN             string        `yaml:"url" env:"DATABASE_URL"`
		MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
		MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
		AutoMigrate     bool          `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
		TTL    int    `yaml:"ttl" env:"JWT_TTL"` // минуты
	} `yaml:"jwt"`

	Email struct {
		Enabled      bool          `yaml:"enabled" env:"EMAIL_ENABLED"`
		SMTPHost     string        `yaml:"smtp_host" env:"SMTP_HOST"`
		SMTPPort     int           `yaml:"smtp_port" env:"SMTP_PORT"`
		SMTPUsername string        `yaml:"smtp_user" env:"SMTP_USER"`
		SMTPPassword string        `yaml:"smtp_password" env:"SMTP_PASSWORD"`
		FromEmail    string        `yaml:"from_email" env:"EMAIL_FROM"`
		FromName     string        `yaml:"from_name" env:"EMAIL_FROM_NAME"`
		UseTLS       bool          `yaml:"use_tls" env:"SMTP_USE_TLS"`
		RatePerSec   float64       `yaml:"rate_per_sec" env:"EMAIL_RATE_PER_SEC"`
		PollInterval time.Duration `yaml:"poll_interval" env:"EMAIL_POLL_INTERVAL"`
		BatchSize    int           `yaml:"batch_size" env:"EMAIL_BATCH_SIZE"`
		MaxAttempts  int           `yaml:"max_attempts" env:"EMAIL_MAX_ATTEMPTS"`
	} `yaml:"email"`

	Hire struct {
		MaxRetries           int           `yaml:"max_retries" env:"HIRE_MAX_RETRIES"`
		RetryInitialInterval time.Duration `yaml:"retry_initial_interval" env:"HIRE_RETRY_INITIAL_INTERVAL"`
		Timeout              time.Duration `yaml:"timeout" env:"HIRE_TIMEOUT"`
	} `yaml:"hire"`

	Fanout struct {
		PollInterval time.Duration `yaml:"poll_interval" env:"FANOUT_POLL_INTERVAL"`
		BatchSize    int           `yaml:"batch_size" env:"FANOUT_BATCH_SIZE"`
		MaxAttempts  int           `yaml:"max_attempts" env:"FANOUT_MAX_ATTEMPTS"`
		RetryDelay   time.Duration `yaml:"retry_delay" env:"FANOUT_RETRY_DELAY"`
		StaleAfter   time.Duration `yaml:"stale_after" env:"FANOUT_STALE_AFTER"`
	} `yaml:"fanout"`

	Realtime struct {
		SendBuffer     int      `yaml:"send_buffer" env:"REALTIME_SEND_BUFFER"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"REALTIME_ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"realtime"`

	Cleanup struct {
		Schedule      string `yaml:"schedule" env:"CLEANUP_SCHEDULE"`
		RetentionDays int    `yaml:"retention_days" env:"CLEANUP_RETENTION_DAYS"`
	} `yaml:"cleanup"`
}

var AppConfig *Config

// Load читает конфиг: .env -> config.yaml (если есть) -> переменные окружения -> дефолты.
// Переменные окружения всегда побеждают значения из файла.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// без файла работаем только на переменных окружения
	default:
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig загружает конфиг в AppConfig и завершает процесс при ошибке
func LoadConfig() {
	cfg, err := Load("")
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	AppConfig = cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 4000
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if c.JWT.TTL == 0 {
		c.JWT.TTL = 60
	}

	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "GigFlow"
	}
	if c.Email.RatePerSec == 0 {
		c.Email.RatePerSec = 5
	}
	if c.Email.PollInterval == 0 {
		c.Email.PollInterval = 5 * time.Second
	}
	if c.Email.BatchSize == 0 {
		c.Email.BatchSize = 10
	}
	if c.Email.MaxAttempts == 0 {
		c.Email.MaxAttempts = 3
	}

	if c.Hire.MaxRetries == 0 {
		c.Hire.MaxRetries = 3
	}
	if c.Hire.RetryInitialInterval == 0 {
		c.Hire.RetryInitialInterval = 50 * time.Millisecond
	}
	if c.Hire.Timeout == 0 {
		c.Hire.Timeout = 10 * time.Second
	}

	if c.Fanout.PollInterval == 0 {
		c.Fanout.PollInterval = 2 * time.Second
	}
	if c.Fanout.BatchSize == 0 {
		c.Fanout.BatchSize = 20
	}
	if c.Fanout.MaxAttempts == 0 {
		c.Fanout.MaxAttempts = 5
	}
	if c.Fanout.RetryDelay == 0 {
		c.Fanout.RetryDelay = 10 * time.Second
	}
	if c.Fanout.StaleAfter == 0 {
		c.Fanout.StaleAfter = 5 * time.Minute
	}

	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 64
	}

	if c.Cleanup.Schedule == "" {
		c.Cleanup.Schedule = "@daily"
	}
	if c.Cleanup.RetentionDays == 0 {
		c.Cleanup.RetentionDays = 30
	}
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres, mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Email.Enabled && c.Email.SMTPHost == "" {
		errs = append(errs, errors.New("email.smtp_host is required when email is enabled"))
	}
	if c.Hire.MaxRetries < 1 {
		errs = append(errs, errors.New("hire.max_retries must be at least 1"))
	}

	return errors.Join(errs...)
}

// IsDevelopment - удобный хелпер
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}
