package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration, parsed from the environment once at
// startup and handed to components by value. Nothing mutates it after Load.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"veomenu.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`

	// FrontendURL is the public base URL of the customer-facing app, used in
	// magic link emails and QR code targets.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	JWTSecret          string `env:"JWT_SECRET"`
	JWTAccessMinutes   int    `env:"JWT_ACCESS_TOKEN_LIFETIME" envDefault:"60"`
	JWTRefreshMinutes  int    `env:"JWT_REFRESH_TOKEN_LIFETIME" envDefault:"1440"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	FromEmail      string `env:"DEFAULT_FROM_EMAIL" envDefault:"noreply@veomenu.com"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_PHONE_NUMBER"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT" envDefault:"mailto:support@veomenu.com"`

	BackupS3Endpoint    string        `env:"BACKUP_S3_ENDPOINT"`
	BackupS3Region      string        `env:"BACKUP_S3_REGION" envDefault:"auto"`
	BackupS3Bucket      string        `env:"BACKUP_S3_BUCKET"`
	BackupS3AccessKey   string        `env:"BACKUP_S3_ACCESS_KEY_ID"`
	BackupS3SecretKey   string        `env:"BACKUP_S3_SECRET_ACCESS_KEY"`
	BackupEncryptionKey string        `env:"BACKUP_ENCRYPTION_KEY"`
	BackupRetention     int           `env:"BACKUP_RETENTION" envDefault:"14"`
	BackupInterval      time.Duration `env:"BACKUP_INTERVAL" envDefault:"24h"`
}

// Load parses the environment into a Config and validates the fields that have
// no usable default.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTAccessMinutes <= 0 || cfg.JWTRefreshMinutes <= 0 {
		return Config{}, fmt.Errorf("token lifetimes must be positive")
	}
	return cfg, nil
}

// AccessTokenTTL returns the access token lifetime.
func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTAccessMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWTRefreshMinutes) * time.Minute
}

// BackupConfigured reports whether S3 snapshot uploads can run.
func (c Config) BackupConfigured() bool {
	return c.BackupS3Bucket != "" &&
		c.BackupS3AccessKey != "" &&
		c.BackupS3SecretKey != "" &&
		c.BackupEncryptionKey != ""
}

// PushConfigured reports whether web push notifications can be sent.
func (c Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
