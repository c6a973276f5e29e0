package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/service/catalog"
	"github.com/vladislavdragonenkov/nursery/internal/storage/memory"
)

var (
	seller = domain.Identity{ID: "seller-1", Email: "seller@example.com", Name: "Olga", Role: domain.RoleSeller}
	buyer  = domain.Identity{ID: "user-1", Email: "user@example.com", Name: "Ivan", Role: domain.RoleCustomer}
	admin  = domain.Identity{ID: "admin-1", Email: "admin@example.com", Name: "Root", Role: domain.RoleAdmin}
)

func newCatalogService(t *testing.T) *catalog.Service {
	t.Helper()

	store := memory.NewStore(nil)
	return catalog.NewService(memory.NewCatalogRepository(store), nil)
}

func publish(t *testing.T, svc *catalog.Service, name string) domain.Product {
	t.Helper()

	product, err := svc.Publish(context.Background(), seller, catalog.PublishRequest{
		Name:       name,
		SizeLabel:  "M",
		PriceMinor: 2500,
		Stock:      5,
	})
	require.NoError(t, err)
	return product
}

func TestService_Publish(t *testing.T) {
	svc := newCatalogService(t)

	product := publish(t, svc, "Rosemary")
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, seller.Email, product.SellerEmail)
	assert.Equal(t, int64(2500), product.PriceMinor)

	got, err := svc.Get(context.Background(), buyer, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosemary", got.Name)
}

func TestService_PublishRequiresSeller(t *testing.T) {
	svc := newCatalogService(t)

	_, err := svc.Publish(context.Background(), buyer, catalog.PublishRequest{Name: "Rosemary", PriceMinor: 100})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Publish(context.Background(), domain.Identity{}, catalog.PublishRequest{Name: "Rosemary", PriceMinor: 100})
	assert.ErrorIs(t, err, domain.ErrUserRequired)
}

func TestService_PublishValidation(t *testing.T) {
	svc := newCatalogService(t)

	_, err := svc.Publish(context.Background(), seller, catalog.PublishRequest{Name: "  ", PriceMinor: 100})
	assert.ErrorIs(t, err, domain.ErrProductNameRequired)

	_, err = svc.Publish(context.Background(), seller, catalog.PublishRequest{Name: "Basil", PriceMinor: -1})
	assert.ErrorIs(t, err, domain.ErrProductPriceInvalid)

	_, err = svc.Publish(context.Background(), seller, catalog.PublishRequest{Name: "Basil", PriceMinor: 100, Stock: -2})
	assert.ErrorIs(t, err, domain.ErrProductStockInvalid)
}

func TestService_RemoveHidesFromStorefront(t *testing.T) {
	svc := newCatalogService(t)
	product := publish(t, svc, "Rosemary")
	publish(t, svc, "Basil")

	require.NoError(t, svc.Remove(context.Background(), admin, product.ID, "mislabeled listing"))

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Basil", list[0].Name)

	// Покупатель снятый товар не видит, администратор видит.
	_, err = svc.Get(context.Background(), buyer, product.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	got, err := svc.Get(context.Background(), admin, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "mislabeled listing", got.DeleteReason)
}

func TestService_RemoveRequiresAdmin(t *testing.T) {
	svc := newCatalogService(t)
	product := publish(t, svc, "Rosemary")

	err := svc.Remove(context.Background(), seller, product.ID, "spite")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestService_RestoreReturnsToStorefront(t *testing.T) {
	svc := newCatalogService(t)
	product := publish(t, svc, "Rosemary")

	require.NoError(t, svc.Remove(context.Background(), admin, product.ID, "review"))
	require.NoError(t, svc.Restore(context.Background(), admin, product.ID))

	got, err := svc.Get(context.Background(), buyer, product.ID)
	require.NoError(t, err)
	assert.True(t, got.Available())
	assert.Empty(t, got.DeleteReason)
}

func TestService_ListMineIncludesRemoved(t *testing.T) {
	svc := newCatalogService(t)
	product := publish(t, svc, "Rosemary")
	require.NoError(t, svc.Remove(context.Background(), admin, product.ID, "review"))

	mine, err := svc.ListMine(context.Background(), seller)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].Available())

	other, err := svc.ListMine(context.Background(), domain.Identity{ID: "x", Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
