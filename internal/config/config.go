// Package config reads the service settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env        string
	LogLevel   string
	ServerAddr string

	Storage        string
	PostgresConn   string
	MigrateOnStart bool

	JWTSecret string
	TokenTTL  time.Duration

	NotifyQueueSize int
	NotifyWorkers   int
	MailFrom        string

	BidRatePerSec float64
	BidRateBurst  int
}

// Load builds the config from the environment. It fails only on settings the
// service cannot run without.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServerAddr:      getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
		Storage:         strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		PostgresConn:    getEnv("POSTGRES_CONN", ""),
		MigrateOnStart:  getEnvAsBool("MIGRATE_ON_START", true),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenTTL:        getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		NotifyQueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:   getEnvAsInt("NOTIFY_WORKERS", 2),
		MailFrom:        getEnv("MAIL_FROM", "noreply@easybid.local"),
		BidRatePerSec:   getEnvAsFloat("BID_RATE_PER_SEC", 2),
		BidRateBurst:    getEnvAsInt("BID_RATE_BURST", 5),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.PostgresConn == "" {
			return errors.New("POSTGRES_CONN env variable is not set")
		}
	case StorageMemory:
	default:
		return errors.New("STORAGE must be postgres or memory")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET env variable is not set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Fields describes the config for the startup log line. Secrets are left out.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Env),
		zap.String("server_address", c.ServerAddr),
		zap.String("storage", c.Storage),
		zap.Bool("migrate_on_start", c.MigrateOnStart),
		zap.Duration("token_ttl", c.TokenTTL),
		zap.Int("notify_workers", c.NotifyWorkers),
		zap.Int("notify_queue_size", c.NotifyQueueSize),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
