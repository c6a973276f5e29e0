package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// catalogRepositoryInMemory — представление каталога поверх общего Store.
type catalogRepositoryInMemory struct {
	store *Store
}

// NewCatalogRepository возвращает in-memory репозиторий каталога,
// разделяющий состояние (и блокировку) с транзакционным Store.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepositoryInMemory{store: store}
}

// Create сохраняет новый листинг, если ID ещё не занят.
func (r *catalogRepositoryInMemory) Create(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	r.store.products[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *catalogRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// List возвращает товары по фильтру, новые первыми.
func (r *catalogRepositoryInMemory) List(filter domain.ProductFilter) ([]domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		if !filter.IncludeDeleted && product.DeletedAt != nil {
			continue
		}
		if filter.SellerEmail != "" && product.SellerEmail != filter.SellerEmail {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// SoftDelete помечает товар удалённым, не стирая запись.
func (r *catalogRepositoryInMemory) SoftDelete(id, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	now := time.Now().UTC()
	product.DeletedAt = &now
	product.DeleteReason = reason
	product.UpdatedAt = now
	r.store.products[id] = product
	return nil
}

// Restore снимает маркер мягкого удаления.
func (r *catalogRepositoryInMemory) Restore(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.DeletedAt = nil
	product.DeleteReason = ""
	product.UpdatedAt = time.Now().UTC()
	r.store.products[id] = product
	return nil
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
