package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// Environment управляет dev-возможностями: в "production" имитация
	// оплаты недоступна.
	Environment string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустой отключает Kafka.
	KafkaBrokers string
	KafkaTopic   string

	// RedisAddr — адрес Redis для дедупликации вебхуков; пустой отключает Redis.
	RedisAddr string

	// WebhookSecret подписывает вебхуки и токены имитации оплаты.
	WebhookSecret  string
	PaymentBaseURL string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		Environment:                 "development",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaTopic:                  "nursery.order.events",
		WebhookSecret:               "webhook_secret_123",
		PaymentBaseURL:              "http://localhost:8080",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает настройки из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("NURSERY_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("NURSERY_METRICS_ADDR", cfg.MetricsAddr)
	cfg.Environment = envString("NURSERY_ENV", cfg.Environment)

	cfg.StorageDriver = envString("NURSERY_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("NURSERY_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("NURSERY_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envString("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.RedisAddr = envString("NURSERY_REDIS_ADDR", cfg.RedisAddr)

	cfg.WebhookSecret = envString("NURSERY_WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.PaymentBaseURL = envString("NURSERY_PAYMENT_BASE_URL", cfg.PaymentBaseURL)

	cfg.OutboxPollInterval = envDuration("NURSERY_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("NURSERY_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("NURSERY_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("NURSERY_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.OutboxMaxPending = envInt("NURSERY_OUTBOX_MAX_PENDING", cfg.OutboxMaxPending)

	cfg.IdempotencyCleanupInterval = envDuration("NURSERY_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("NURSERY_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

// IsProduction сообщает, запущено ли приложение в production-окружении.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
