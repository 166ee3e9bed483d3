package config

import (
	"os"
	"strconv"
	"time"

	"lark/internal/cache"
	"lark/internal/database"
	"lark/internal/external"
	"lark/internal/messaging"
)

type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// StoreBackend selects the persistence layer: "postgres" or "memory".
	// The memory backend is for local development and demos only.
	StoreBackend string

	SessionTTL            time.Duration
	ClaimBase             string
	TransferSweepInterval time.Duration

	Database database.Config
	NATS     messaging.Config
	Cache    cache.Config
	Payment  external.PaymentConfig
	Notify   external.NotifyConfig
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		StoreBackend: getEnv("STORE_BACKEND", "postgres"),

		SessionTTL:            time.Duration(getEnvInt("CHECKOUT_SESSION_TTL_MIN", 30)) * time.Minute,
		ClaimBase:             getEnv("TRANSFER_CLAIM_BASE_URL", "https://lark.tickets/claim"),
		TransferSweepInterval: time.Duration(getEnvInt("TRANSFER_SWEEP_INTERVAL_MIN", 10)) * time.Minute,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "lark"),
			Password:           getEnv("DB_PASSWORD", "lark123"),
			DBName:             getEnv("DB_NAME", "lark"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "lark"),
			ClientID:  getEnv("NATS_CLIENT_ID", "lark-api"),
		},

		Cache: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TTL:      time.Duration(getEnvInt("TIER_CACHE_TTL_SEC", 5)) * time.Second,
		},

		Payment: external.PaymentConfig{
			BaseURL:  getEnv("PAYMENT_GATEWAY_URL", ""),
			TeamSlug: getEnv("PAYMENT_TEAM_SLUG", ""),
			Password: getEnv("PAYMENT_PASSWORD", ""),
			Timeout:  time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Notify: external.NotifyConfig{
			BaseURL: getEnv("NOTIFY_SERVICE_URL", ""),
			Timeout: time.Duration(getEnvInt("NOTIFY_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
