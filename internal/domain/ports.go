package domain

import (
	"context"
	"time"
)

// Store — транзакционная граница ядра. Все последовательности, которые меняют
// одновременно состояние заказа и остатки товаров, выполняются внутри одной
// транзакции WithinTx: это единственная безопасная граница конкурентности,
// работающая и при нескольких экземплярах сервиса.
type Store interface {
	// WithinTx выполняет fn в транзакции. Любая ошибка из fn откатывает
	// все изменения целиком; частичных списаний не бывает.
	WithinTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx — примитивы, доступные внутри транзакции. Чтения здесь видят
// свежайшее зафиксированное состояние и блокируют строку до конца транзакции,
// поэтому проверка "применён ли инвентарь" и само списание атомарны.
type StoreTx interface {
	// OrderForUpdate читает заказ с позициями, удерживая блокировку строки.
	OrderForUpdate(id string) (Order, error)
	// ProductForUpdate читает товар, удерживая блокировку строки.
	ProductForUpdate(id string) (Product, error)
	// InsertOrder сохраняет новый заказ вместе с позициями.
	InsertOrder(order Order) error
	// AdjustProduct смещает счётчики остатка и продаж товара. Реализация
	// обязана не допустить отрицательный остаток (ErrProductStockNegative).
	AdjustProduct(id string, stockDelta, soldDelta int64) error
	// SaveOrderReconciliation записывает статус, маркеры инвентаря и
	// payment_ref заказа, инкрементируя версию (optimistic locking).
	SaveOrderReconciliation(order Order) error
	// EnqueueOutbox кладёт событие в transactional outbox той же транзакцией.
	EnqueueOutbox(msg OutboxMessage) error
}

// PaymentProvider создаёт платёжные ссылки у внешнего процессора.
// Продакшен-реализация — клиент реального провайдера; в non-production
// окружениях используется локальная имитация.
type PaymentProvider interface {
	CreateLink(ctx context.Context, req CreateLinkRequest) (PaymentLink, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
