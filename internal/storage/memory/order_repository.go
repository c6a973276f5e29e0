package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// orderRepositoryInMemory — читающее представление заказов поверх общего Store.
// Создание и любые мутации заказов идут только через Store.WithinTx.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByPaymentRef находит заказ по внешней платёжной ссылке.
func (r *orderRepositoryInMemory) GetByPaymentRef(ref string) (domain.Order, error) {
	if ref == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, order := range r.store.orders {
		if order.PaymentRef == ref {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// ListByUser возвращает заказы покупателя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sortOrders(result)
	return truncateOrders(result, limit), nil
}

// List возвращает последние заказы для админ-обзора.
func (r *orderRepositoryInMemory) List(limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		result = append(result, cloneOrder(order))
	}

	sortOrders(result)
	return truncateOrders(result, limit), nil
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

func truncateOrders(orders []domain.Order, limit int) []domain.Order {
	if limit > 0 && len(orders) > limit {
		return orders[:limit]
	}
	return orders
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
