package email

import (
	"time"

	"gigflow_backend/internal/config"
)

// SMTPConfig содержит конфигурацию SMTP сервера
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
	Timeout   time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:     "localhost",
		Port:     587,
		FromName: "GigFlow",
		UseTLS:   true,
		Timeout:  30 * time.Second,
	}
}

// SMTPConfigFromConfig собирает SMTPConfig из секции email
func SMTPConfigFromConfig(cfg *config.Config) *SMTPConfig {
	c := DefaultConfig()
	c.Host = cfg.Email.SMTPHost
	if cfg.Email.SMTPPort > 0 {
		c.Port = cfg.Email.SMTPPort
	}
	c.Username = cfg.Email.SMTPUsername
	c.Password = cfg.Email.SMTPPassword
	c.FromEmail = cfg.Email.FromEmail
	if cfg.Email.FromName != "" {
		c.FromName = cfg.Email.FromName
	}
	c.UseTLS = cfg.Email.UseTLS
	return c
}

// NewProvider - SMTP, если отправка включена, иначе письма только логируются
func NewProvider(cfg *config.Config) (Provider, error) {
	if !cfg.Email.Enabled {
		return NewLogProvider(), nil
	}
	p := NewSMTPProvider(SMTPConfigFromConfig(cfg))
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
