package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// Store — in-memory реализация транзакционного хранилища для локальной
// разработки и тестов. Один мьютекс на всё хранилище: WithinTx держит его на
// всю транзакцию, поэтому проверка маркеров и списание остатков атомарны
// ровно так же, как в postgres-реализации с блокировками строк.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	outbox   domain.OutboxRepository
}

// NewStore создаёт пустое in-memory хранилище. outbox может быть nil, если
// transactional outbox не используется (например, в узких unit-тестах).
func NewStore(outbox domain.OutboxRepository) *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		outbox:   outbox,
	}
}

// WithinTx выполняет fn под store-wide блокировкой. Изменения накапливаются
// в staging-копиях и применяются только при успешном завершении fn; любая
// ошибка отбрасывает их целиком.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		store:    s,
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}

	if err := fn(tx); err != nil {
		return err
	}

	// Commit: в памяти запись не может отказать, поэтому просто переносим
	// staging-состояние в хранилище и доставляем накопленные outbox-события.
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	if s.outbox != nil {
		for _, msg := range tx.outboxMsgs {
			if _, err := s.outbox.Enqueue(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// storeTx — staging-представление транзакции поверх Store.
type storeTx struct {
	store      *Store
	products   map[string]domain.Product
	orders     map[string]domain.Order
	outboxMsgs []domain.OutboxMessage
}

func (tx *storeTx) OrderForUpdate(id string) (domain.Order, error) {
	if order, ok := tx.orders[id]; ok {
		return cloneOrder(order), nil
	}
	order, ok := tx.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (tx *storeTx) ProductForUpdate(id string) (domain.Product, error) {
	if p, ok := tx.products[id]; ok {
		return p, nil
	}
	p, ok := tx.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (tx *storeTx) InsertOrder(order domain.Order) error {
	if _, ok := tx.orders[order.ID]; ok {
		return domain.ErrOrderVersionConflict
	}
	if _, ok := tx.store.orders[order.ID]; ok {
		return domain.ErrOrderVersionConflict
	}
	tx.orders[order.ID] = cloneOrder(order)
	return nil
}

func (tx *storeTx) AdjustProduct(id string, stockDelta, soldDelta int64) error {
	p, err := tx.ProductForUpdate(id)
	if err != nil {
		return err
	}
	if p.Stock+stockDelta < 0 {
		return domain.ErrProductStockNegative
	}
	p.Stock += stockDelta
	p.Sold += soldDelta
	p.UpdatedAt = time.Now().UTC()
	tx.products[id] = p
	return nil
}

func (tx *storeTx) SaveOrderReconciliation(order domain.Order) error {
	current, err := tx.OrderForUpdate(order.ID)
	if err != nil {
		return err
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	// Позиции заказа неизменяемы после создания; сохраняем исходные.
	order.Items = current.Items
	tx.orders[order.ID] = cloneOrder(order)
	return nil
}

func (tx *storeTx) EnqueueOutbox(msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	tx.outboxMsgs = append(tx.outboxMsgs, msg)
	return nil
}

// cloneOrder копирует заказ вместе со слайсом позиций, чтобы избежать
// непредсказуемых мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

var _ domain.Store = (*Store)(nil)
var _ domain.StoreTx = (*storeTx)(nil)
