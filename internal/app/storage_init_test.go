package app

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/nursery/internal/health"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.store == nil {
		t.Fatal("store should not be nil for memory storage")
	}
	if deps.repo == nil {
		t.Fatal("repo should not be nil for memory storage")
	}
	if deps.catalogRepo == nil {
		t.Fatal("catalogRepo should not be nil for memory storage")
	}
	if deps.outboxRepo == nil {
		t.Fatal("outboxRepo should not be nil for memory storage")
	}
	if deps.timelineRepo == nil {
		t.Fatal("timelineRepo should not be nil for memory storage")
	}
	if deps.idempotencyRepo == nil {
		t.Fatal("idempotencyRepo should not be nil for memory storage")
	}
	if deps.storageChecker == nil {
		t.Fatal("storageChecker should not be nil for memory storage")
	}
	if check := deps.storageChecker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("memory storage checker must be healthy, got %s", check.Status)
	}
	if deps.closeFn != nil {
		if err := deps.closeFn(); err != nil {
			t.Fatalf("closeFn for memory storage must not fail: %v", err)
		}
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
	if !strings.Contains(err.Error(), "PostgresDSN") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
	if !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("unexpected error: %v", err)
	}
}
