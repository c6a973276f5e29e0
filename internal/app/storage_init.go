package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/nursery/internal/health"
	"github.com/vladislavdragonenkov/nursery/internal/storage/memory"
	"github.com/vladislavdragonenkov/nursery/internal/storage/postgres"
)

// runtimeDependencies — хранилище и репозитории, собранные под выбранный драйвер.
type runtimeDependencies struct {
	store           domain.Store
	repo            domain.OrderRepository
	catalogRepo     domain.CatalogRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

// initRuntimeDependencies инициализирует хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("используется in-memory хранилище")
		outboxRepo := memory.NewOutboxRepository()
		store := memory.NewStore(outboxRepo)
		return runtimeDependencies{
			store:           store,
			repo:            memory.NewOrderRepository(store),
			catalogRepo:     memory.NewCatalogRepository(store),
			outboxRepo:      outboxRepo,
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage driver requires PostgresDSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres миграции применены")
		}

		logger.Info("используется postgres хранилище")
		return runtimeDependencies{
			store:           store,
			repo:            postgres.NewOrderRepository(store),
			catalogRepo:     postgres.NewCatalogRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
				defer cancel()
				return store.Ping(checkCtx)
			}),
			closeFn: store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
