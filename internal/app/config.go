package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	LockTimeout         time.Duration
	TxTimeout           time.Duration
	CheckoutMaxAttempts int
	StatusPolicy        domain.TransitionMode

	// IdempotencyDriver по умолчанию совпадает со StorageDriver.
	IdempotencyDriver string
	RedisURL          string
	JWTSecret         string

	KafkaBrokers     []string
	KafkaEventsTopic string
	KafkaDLQTopic    string
	AnalyticsGroupID string

	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxAttempts   int
	OutboxRetryDelay    time.Duration
	OutboxMaxRetryDelay time.Duration
	OutboxMaxPending    int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		LockTimeout:                 2 * time.Second,
		TxTimeout:                   10 * time.Second,
		CheckoutMaxAttempts:         3,
		StatusPolicy:                domain.TransitionModePermissive,
		KafkaEventsTopic:            kafka.TopicFulfillmentEvents,
		KafkaDLQTopic:               kafka.TopicDeadLetterQueue,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxRetryDelay:         2 * time.Second,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}

// LoadConfigFromEnv читает .env (если есть) и применяет OMS_* переменные поверх DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("OMS_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := DefaultConfig()
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv применяет переменные окружения через lookup, чтобы тесты не трогали os.Environ.
func applyEnv(cfg *Config, getenv func(string) string) error {
	p := envParser{getenv: getenv}

	p.str("OMS_GRPC_ADDR", &cfg.GRPCAddr)
	p.str("OMS_HTTP_ADDR", &cfg.HTTPAddr)
	p.str("OMS_METRICS_ADDR", &cfg.MetricsAddr)
	p.str("OMS_STORAGE_DRIVER", &cfg.StorageDriver)
	p.str("OMS_POSTGRES_DSN", &cfg.PostgresDSN)
	p.boolean("OMS_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	p.duration("OMS_LOCK_TIMEOUT", &cfg.LockTimeout)
	p.duration("OMS_TX_TIMEOUT", &cfg.TxTimeout)
	p.integer("OMS_CHECKOUT_MAX_ATTEMPTS", &cfg.CheckoutMaxAttempts)

	if raw := strings.TrimSpace(getenv("OMS_STATUS_POLICY")); raw != "" {
		mode, err := domain.ParseTransitionMode(raw)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("OMS_STATUS_POLICY: %w", err))
		} else {
			cfg.StatusPolicy = mode
		}
	}

	p.str("OMS_IDEMPOTENCY_DRIVER", &cfg.IdempotencyDriver)
	p.str("OMS_REDIS_URL", &cfg.RedisURL)
	p.str("OMS_JWT_SECRET", &cfg.JWTSecret)

	if raw := strings.TrimSpace(getenv("KAFKA_BROKERS")); raw != "" {
		cfg.KafkaBrokers = splitList(raw)
	}
	p.str("OMS_KAFKA_EVENTS_TOPIC", &cfg.KafkaEventsTopic)
	p.str("OMS_KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)
	p.str("OMS_ANALYTICS_GROUP", &cfg.AnalyticsGroupID)

	p.duration("OMS_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("OMS_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("OMS_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	p.duration("OMS_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	p.duration("OMS_OUTBOX_MAX_RETRY_DELAY", &cfg.OutboxMaxRetryDelay)
	p.integer("OMS_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)

	p.duration("OMS_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	p.integer("OMS_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	p.str("OMS_LOG_LEVEL", &cfg.LogLevel)
	p.str("OMS_LOG_FORMAT", &cfg.LogFormat)

	return errors.Join(p.errs...)
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("OMS_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.idempotencyDriver() {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.StorageDriver != StorageDriverPostgres {
			errs = append(errs, errors.New("postgres idempotency requires postgres storage"))
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("OMS_REDIS_URL is required for redis idempotency"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported idempotency driver %q", c.IdempotencyDriver))
	}

	if c.AnalyticsGroupID != "" && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("OMS_ANALYTICS_GROUP requires KAFKA_BROKERS"))
	}
	if c.CheckoutMaxAttempts < 0 {
		errs = append(errs, errors.New("OMS_CHECKOUT_MAX_ATTEMPTS must be >= 0"))
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("OMS_LOG_LEVEL: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c Config) idempotencyDriver() string {
	if c.IdempotencyDriver == "" {
		return c.StorageDriver
	}
	return c.IdempotencyDriver
}

// ConfigureLogging настраивает глобальный логгер logrus.
func ConfigureLogging(cfg Config) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

type envParser struct {
	getenv func(string) string
	errs   []error
}

func (p *envParser) lookup(key string) (string, bool) {
	raw := strings.TrimSpace(p.getenv(key))
	return raw, raw != ""
}

func (p *envParser) str(key string, dst *string) {
	if raw, ok := p.lookup(key); ok {
		*dst = raw
	}
}

func (p *envParser) boolean(key string, dst *bool) {
	raw, ok := p.lookup(key)
	if !ok {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = value
}

func (p *envParser) integer(key string, dst *int) {
	raw, ok := p.lookup(key)
	if !ok {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = value
}

func (p *envParser) duration(key string, dst *time.Duration) {
	raw, ok := p.lookup(key)
	if !ok {
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = value
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if item := strings.TrimSpace(chunk); item != "" {
			result = append(result, item)
		}
	}
	return result
}
