package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/storage/memory"
)

func seedProduct(t *testing.T, catalog domain.CatalogRepository, id string, stock int64) domain.Product {
	t.Helper()

	now := time.Now().UTC()
	product := domain.Product{
		ID:          id,
		Name:        "Ficus",
		SellerEmail: "seller@example.com",
		PriceMinor:  100,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := catalog.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func seedStoredOrder(t *testing.T, store *memory.Store, id string) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	order := domain.Order{
		ID:            id,
		UserID:        "user-1",
		UserEmail:     "user@example.com",
		Address:       "Green street, 7",
		PaymentMethod: domain.PaymentMethodCOD,
		Status:        domain.OrderStatusPending,
		TotalMinor:    300,
		Items: []domain.OrderItem{{
			ID:             id + "-item-1",
			OrderID:        id,
			ProductID:      "product-1",
			ProductName:    "Ficus",
			UnitPriceMinor: 100,
			Qty:            3,
			SubtotalMinor:  300,
			CreatedAt:      now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.InsertOrder(order)
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return order
}

func TestStore_TxRollbackOnError(t *testing.T) {
	store := memory.NewStore(nil)
	catalog := memory.NewCatalogRepository(store)
	seedProduct(t, catalog, "product-1", 5)

	sentinel := errors.New("boom")
	err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		if err := tx.AdjustProduct("product-1", -3, 3); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	product, err := catalog.Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 5 || product.Sold != 0 {
		t.Fatalf("rollback failed: stock=%d sold=%d", product.Stock, product.Sold)
	}
}

func TestStore_AdjustProductRejectsNegativeStock(t *testing.T) {
	store := memory.NewStore(nil)
	catalog := memory.NewCatalogRepository(store)
	seedProduct(t, catalog, "product-1", 2)

	err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.AdjustProduct("product-1", -3, 3)
	})
	if !errors.Is(err, domain.ErrProductStockNegative) {
		t.Fatalf("expected ErrProductStockNegative, got %v", err)
	}
}

func TestStore_SaveOrderReconciliationVersionConflict(t *testing.T) {
	store := memory.NewStore(nil)
	order := seedStoredOrder(t, store, "order-1")

	order.Version = 42
	err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.SaveOrderReconciliation(order)
	})
	if !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestStore_SaveOrderReconciliationBumpsVersion(t *testing.T) {
	store := memory.NewStore(nil)
	orders := memory.NewOrderRepository(store)
	order := seedStoredOrder(t, store, "order-1")

	now := time.Now().UTC()
	order.Status = domain.OrderStatusPaid
	order.InventoryAppliedAt = &now
	err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.SaveOrderReconciliation(order)
	})
	if err != nil {
		t.Fatalf("save reconciliation: %v", err)
	}

	stored, err := orders.Get("order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Version != order.Version+1 {
		t.Fatalf("expected version bump, got %d", stored.Version)
	}
	if stored.Status != domain.OrderStatusPaid || stored.InventoryAppliedAt == nil {
		t.Fatalf("reconciliation fields not persisted: %+v", stored)
	}
	if len(stored.Items) != 1 {
		t.Fatalf("items must survive reconciliation, got %d", len(stored.Items))
	}
}

func TestStore_TxEnqueuesOutboxOnCommitOnly(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	store := memory.NewStore(outbox)

	sentinel := errors.New("boom")
	_ = store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		if err := tx.EnqueueOutbox(domain.OutboxMessage{AggregateType: "order", AggregateID: "o1", EventType: "order.created"}); err != nil {
			return err
		}
		return sentinel
	})

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("rolled back tx must not enqueue, got %d", len(pending))
	}

	err = store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.EnqueueOutbox(domain.OutboxMessage{AggregateType: "order", AggregateID: "o1", EventType: "order.created"})
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	pending, err = outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(pending))
	}
}
