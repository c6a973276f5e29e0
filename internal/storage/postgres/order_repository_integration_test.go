package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

func TestOrderRepository_PostgresGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "user-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "user-1", now.Add(-time.Minute))
	order3 := sampleOrder("order-3", "user-2", now)
	order3.PaymentMethod = domain.PaymentMethodOnline
	order3.PaymentRef = "plink_integration_1"

	insertOrderForIntegrationTest(t, store, order1)
	insertOrderForIntegrationTest(t, store, order2)
	insertOrderForIntegrationTest(t, store, order3)

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.UserID != order1.UserID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].ProductName != order1.Items[0].ProductName {
		t.Fatalf("unexpected order items: %+v", got.Items)
	}

	byRef, err := repo.GetByPaymentRef("plink_integration_1")
	if err != nil {
		t.Fatalf("get by payment ref: %v", err)
	}
	if byRef.ID != order3.ID {
		t.Fatalf("unexpected order by payment ref: %s", byRef.ID)
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list by user with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list by user without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	admin, err := repo.List(10)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(admin) != 3 || admin[0].ID != order3.ID {
		t.Fatalf("unexpected admin list: %+v", admin)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.GetByPaymentRef(""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for empty ref, got %v", err)
	}
	if _, err := repo.GetByPaymentRef("plink_unknown"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unknown ref, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func TestIsCheckViolation(t *testing.T) {
	if !isCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatal("expected check violation for code 23514")
	}
	if isCheckViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be check violation")
	}
}
