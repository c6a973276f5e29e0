package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"

	// Inventory события
	EventTypeInventoryApplied  EventType = "inventory.applied"
	EventTypeInventoryReverted EventType = "inventory.reverted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "nursery.order.events"
	TopicDeadLetterQueue = "nursery.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	UserID    string                 `json:"user_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, userID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
