package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/storage/memory"
)

func TestOrderRepository_GetNotFound(t *testing.T) {
	repo := memory.NewOrderRepository(memory.NewStore(nil))

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_GetByPaymentRef(t *testing.T) {
	store := memory.NewStore(nil)
	repo := memory.NewOrderRepository(store)

	order := seedStoredOrder(t, store, "order-1")
	order.PaymentRef = "plink_abc"
	if err := store.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.SaveOrderReconciliation(order)
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.GetByPaymentRef("plink_abc")
	if err != nil {
		t.Fatalf("get by payment ref: %v", err)
	}
	if found.ID != "order-1" {
		t.Fatalf("expected order-1, got %s", found.ID)
	}

	if _, err := repo.GetByPaymentRef(""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("empty ref must be not found, got %v", err)
	}
	if _, err := repo.GetByPaymentRef("plink_other"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("unknown ref must be not found, got %v", err)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	store := memory.NewStore(nil)
	repo := memory.NewOrderRepository(store)

	seedStoredOrder(t, store, "order-1")
	seedStoredOrder(t, store, "order-2")

	orders, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}

	orders, err = repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(orders))
	}

	orders, err = repo.ListByUser("someone-else", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders for stranger, got %d", len(orders))
	}
}

func TestCatalogRepository_SoftDelete(t *testing.T) {
	store := memory.NewStore(nil)
	catalog := memory.NewCatalogRepository(store)
	seedProduct(t, catalog, "product-1", 5)

	if err := catalog.SoftDelete("product-1", "mislabeled pesticide"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	product, err := catalog.Get("product-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if product.Available() {
		t.Fatal("expected product to be unavailable after soft delete")
	}
	if product.DeleteReason != "mislabeled pesticide" {
		t.Fatalf("reason not stored: %q", product.DeleteReason)
	}

	visible, err := catalog.List(domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("storefront list must hide deleted products, got %d", len(visible))
	}

	all, err := catalog.List(domain.ProductFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("admin list must include deleted products, got %d", len(all))
	}

	if err := catalog.Restore("product-1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	product, _ = catalog.Get("product-1")
	if !product.Available() {
		t.Fatal("expected product to be available after restore")
	}
}

func TestCatalogRepository_ListBySeller(t *testing.T) {
	store := memory.NewStore(nil)
	catalog := memory.NewCatalogRepository(store)
	seedProduct(t, catalog, "product-1", 5)

	other := domain.Product{ID: "product-2", Name: "Shovel", SellerEmail: "tools@example.com", PriceMinor: 50, Stock: 1}
	if err := catalog.Create(other); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := catalog.List(domain.ProductFilter{SellerEmail: "seller@example.com"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "product-1" {
		t.Fatalf("unexpected seller listing: %+v", mine)
	}
}
