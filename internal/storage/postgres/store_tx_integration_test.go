package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

func TestStoreTx_PostgresApplyFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	catalog := NewCatalogRepository(store)
	orders := NewOrderRepository(store)
	outbox := NewOutboxRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	product := sampleProduct("tx-product", 5, now)
	if err := catalog.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	order := sampleOrder("tx-order", "tx-user", now)
	order.Items[0].ProductID = product.ID

	ctx := context.Background()
	err := store.WithinTx(ctx, func(tx domain.StoreTx) error {
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		if err := tx.AdjustProduct(product.ID, -2, 2); err != nil {
			return err
		}

		applied := now
		order.Status = domain.OrderStatusPaid
		order.InventoryAppliedAt = &applied
		if err := tx.SaveOrderReconciliation(order); err != nil {
			return err
		}
		return tx.EnqueueOutbox(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     "inventory.applied",
			Payload:       []byte(`{"order_id":"tx-order"}`),
		})
	})
	if err != nil {
		t.Fatalf("apply flow tx: %v", err)
	}

	got, err := orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get order after tx: %v", err)
	}
	if got.Status != domain.OrderStatusPaid || !got.InventoryApplied() {
		t.Fatalf("unexpected order after apply: %+v", got)
	}
	if got.Version != 1 {
		t.Fatalf("expected version=1 after reconciliation save, got %d", got.Version)
	}

	var p domain.Product
	err = store.WithinTx(ctx, func(tx domain.StoreTx) error {
		var err error
		p, err = tx.ProductForUpdate(product.ID)
		return err
	})
	if err != nil {
		t.Fatalf("read product after tx: %v", err)
	}
	if p.Stock != 3 || p.Sold != 2 {
		t.Fatalf("unexpected product counters: stock=%d sold=%d", p.Stock, p.Sold)
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "inventory.applied" {
		t.Fatalf("unexpected outbox content: %+v", pending)
	}
}

func TestStoreTx_PostgresRollbackOnError(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	catalog := NewCatalogRepository(store)
	orders := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	product := sampleProduct("rollback-product", 1, now)
	if err := catalog.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	order := sampleOrder("rollback-order", "rollback-user", now)

	ctx := context.Background()
	err := store.WithinTx(ctx, func(tx domain.StoreTx) error {
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		// Списание больше остатка должно провалить транзакцию целиком.
		return tx.AdjustProduct(product.ID, -2, 2)
	})
	if !errors.Is(err, domain.ErrProductStockNegative) {
		t.Fatalf("expected ErrProductStockNegative, got %v", err)
	}

	if _, err := orders.Get(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order insert must be rolled back, got %v", err)
	}

	got, err := catalog.Get(product.ID)
	if err != nil {
		t.Fatalf("get product after rollback: %v", err)
	}
	if got.Stock != 1 || got.Sold != 0 {
		t.Fatalf("product counters must be untouched: stock=%d sold=%d", got.Stock, got.Sold)
	}
}

func TestStoreTx_PostgresVersionConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("conflict-order", "conflict-user", now)
	insertOrderForIntegrationTest(t, store, order)

	ctx := context.Background()

	stale := order
	stale.Version = 42
	err := store.WithinTx(ctx, func(tx domain.StoreTx) error {
		return tx.SaveOrderReconciliation(stale)
	})
	if !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}

	missing := sampleOrder("no-such-order", "conflict-user", now)
	err = store.WithinTx(ctx, func(tx domain.StoreTx) error {
		return tx.SaveOrderReconciliation(missing)
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	err = store.WithinTx(ctx, func(tx domain.StoreTx) error {
		return tx.InsertOrder(order)
	})
	if !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate insert, got %v", err)
	}
}

func TestStoreTx_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	ctx := context.Background()
	err := store.WithinTx(ctx, func(tx domain.StoreTx) error {
		_, err := tx.OrderForUpdate("missing-order")
		return err
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	err = store.WithinTx(ctx, func(tx domain.StoreTx) error {
		_, err := tx.ProductForUpdate("missing-product")
		return err
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	err = store.WithinTx(ctx, func(tx domain.StoreTx) error {
		return tx.AdjustProduct("missing-product", -1, 1)
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on adjust, got %v", err)
	}
}
