package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port                   string
	DBConn                 string
	StorageDriver          string
	LogLevel               string
	JWTSecret              string
	EncryptionKey          string
	CardNumberPrefix       string
	ExpiryNoticeSpec       string
	ExpiryNoticeWindowDays int
	SMTPHost               string
	SMTPPort               string
	SMTPUsername           string
	SMTPPassword           string
	SenderEmail            string
}

// NewConfig loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	windowDays, err := strconv.Atoi(getEnv("EXPIRY_NOTICE_WINDOW_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("EXPIRY_NOTICE_WINDOW_DAYS must be an integer: %w", err)
	}

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		DBConn:                 getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=cards sslmode=disable"),
		StorageDriver:          getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		LogLevel:               getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:              getEnv("JWT_SECRET", "secret"),
		EncryptionKey:          getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		CardNumberPrefix:       getEnv("CARD_NUMBER_PREFIX", "5067"),
		ExpiryNoticeSpec:       getEnv("EXPIRY_NOTICE_SPEC", "0 9 * * *"),
		ExpiryNoticeWindowDays: windowDays,
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               getEnv("SMTP_PORT", "587"),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		SenderEmail:            getEnv("SENDER_EMAIL", "cards@example.com"),
	}

	if cfg.StorageDriver != StorageDriverPostgres && cfg.StorageDriver != StorageDriverMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.StorageDriver)
	}
	if cfg.StorageDriver == StorageDriverPostgres && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.ExpiryNoticeWindowDays <= 0 {
		return nil, fmt.Errorf("EXPIRY_NOTICE_WINDOW_DAYS must be positive")
	}

	return cfg, nil
}

// SMTPEnabled reports whether expiration notices can be emailed
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
