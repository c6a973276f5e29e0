package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

func TestCatalogRepository_PostgresCreateGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	p1 := sampleProduct("catalog-1", 5, now.Add(-time.Minute))
	p2 := sampleProduct("catalog-2", 3, now)
	p2.SellerEmail = "other@example.com"

	if err := repo.Create(p1); err != nil {
		t.Fatalf("create p1: %v", err)
	}
	if err := repo.Create(p2); err != nil {
		t.Fatalf("create p2: %v", err)
	}
	if err := repo.Create(p1); err == nil {
		t.Fatal("expected error on duplicate create")
	}

	got, err := repo.Get(p1.ID)
	if err != nil {
		t.Fatalf("get p1: %v", err)
	}
	if got.Name != p1.Name || got.Stock != p1.Stock {
		t.Fatalf("unexpected product payload: %+v", got)
	}

	all, err := repo.List(domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != p2.ID {
		t.Fatalf("unexpected list order: %+v", all)
	}

	mine, err := repo.List(domain.ProductFilter{SellerEmail: "other@example.com"})
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != p2.ID {
		t.Fatalf("unexpected seller list: %+v", mine)
	}
}

func TestCatalogRepository_PostgresSoftDeleteAndRestore(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	product := sampleProduct("catalog-del", 5, now)
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := repo.SoftDelete(product.ID, "нарушение правил площадки"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get deleted product: %v", err)
	}
	if got.DeletedAt == nil || got.DeleteReason != "нарушение правил площадки" {
		t.Fatalf("expected soft delete markers: %+v", got)
	}

	visible, err := repo.List(domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("deleted product must be hidden, got %+v", visible)
	}

	withDeleted, err := repo.List(domain.ProductFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list with deleted: %v", err)
	}
	if len(withDeleted) != 1 {
		t.Fatalf("expected deleted product in admin list, got %d", len(withDeleted))
	}

	if err := repo.Restore(product.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get restored product: %v", err)
	}
	if restored.DeletedAt != nil || restored.DeleteReason != "" {
		t.Fatalf("expected cleared delete markers: %+v", restored)
	}
}

func TestCatalogRepository_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)

	if _, err := repo.Get("missing-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if err := repo.SoftDelete("missing-product", "x"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on soft delete, got %v", err)
	}
	if err := repo.Restore("missing-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on restore, got %v", err)
	}
}
