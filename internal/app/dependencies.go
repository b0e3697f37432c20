package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/fulfillment/internal/storage/redis"
)

// Dependencies содержит адаптеры хранилища, выбранные конфигурацией.
type Dependencies struct {
	Tx              domain.TxRunner
	Orders          domain.OrderReader
	Timeline        domain.TimelineRepository
	Outbox          domain.OutboxRepository
	Catalog         domain.CatalogAdmin
	Cart            domain.CartWriter
	Idempotency     domain.IdempotencyRepository
	StoragePing     func(ctx context.Context) error
	IdempotencyPing func(ctx context.Context) error

	closers []func() error
}

// NewMemoryDependencies собирает зависимости поверх одного in-memory хранилища.
func NewMemoryDependencies(cfg Config) *Dependencies {
	store := memory.NewStore(memory.WithLockTimeout(cfg.LockTimeout))
	return &Dependencies{
		Tx:          store,
		Orders:      store,
		Timeline:    store.Timeline(),
		Outbox:      store.Outbox(),
		Catalog:     store,
		Cart:        store,
		Idempotency: memory.NewIdempotencyRepository(),
		StoragePing: store.Ping,
	}
}

// NewDependencies открывает хранилища согласно cfg. При ошибке уже открытые ресурсы закрываются.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *Dependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	defer func() {
		if err != nil && deps != nil {
			deps.Close(logger)
			deps = nil
		}
	}()

	var pgStore *postgres.Store
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps = NewMemoryDependencies(cfg)
	case StorageDriverPostgres:
		pgStore, err = initPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		catalog := postgres.NewCatalogRepository(pgStore)
		deps = &Dependencies{
			Tx:          pgStore,
			Orders:      pgStore,
			Timeline:    postgres.NewTimelineRepository(pgStore),
			Outbox:      postgres.NewOutboxRepository(pgStore),
			Catalog:     catalog,
			Cart:        catalog,
			Idempotency: postgres.NewIdempotencyRepository(pgStore),
			StoragePing: pgStore.Ping,
			closers:     []func() error{pgStore.Close},
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	switch driver := cfg.idempotencyDriver(); driver {
	case cfg.StorageDriver:
		// хранилище по умолчанию уже выбрано
	case StorageDriverMemory:
		deps.Idempotency = memory.NewIdempotencyRepository()
	case StorageDriverPostgres:
		if pgStore == nil {
			return deps, fmt.Errorf("postgres idempotency requires postgres storage")
		}
	case StorageDriverRedis:
		client, redisErr := redisstore.NewClient(ctx, cfg.RedisURL)
		if redisErr != nil {
			return deps, redisErr
		}
		repo := redisstore.NewIdempotencyRepository(client)
		deps.Idempotency = repo
		deps.IdempotencyPing = repo.Ping
		deps.closers = append(deps.closers, client.Close)
		logger.Info("redis idempotency repository initialized")
	default:
		return deps, fmt.Errorf("unsupported idempotency driver: %s", driver)
	}

	return deps, nil
}

// Close освобождает ресурсы в обратном порядке открытия.
func (d *Dependencies) Close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*postgres.Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres DSN is required for postgres storage")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithLockTimeout(cfg.LockTimeout))
	if err != nil {
		return nil, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}
	return store, nil
}
