package domain

import "time"

// Типы событий timeline заказа.
const (
	TimelineOrderCreated      = "OrderCreated"
	TimelineStatusChanged     = "OrderStatusChanged"
	TimelineInventoryApplied  = "InventoryApplied"
	TimelineInventoryReverted = "InventoryReverted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
