package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в маркетплейсе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан; для онлайн-оплаты инвентарь ещё не применён.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена, инвентарь применён.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFulfilled — заказ собран и передан покупателю.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusCancelled — заказ отменён; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod — способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата при получении; инвентарь применяется синхронно при создании.
	PaymentMethodCOD PaymentMethod = "cash_on_delivery"
	// PaymentMethodOnline — онлайн-оплата; инвентарь применяется только после подтверждения.
	PaymentMethodOnline PaymentMethod = "online"
)

// validNext перечисляет допустимые переходы машины состояний заказа.
// Из cancelled выходов нет.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {OrderStatusFulfilled: true, OrderStatusCancelled: true},
	OrderStatusFulfilled: {OrderStatusCancelled: true},
	OrderStatusCancelled: {},
}

// CanTransition сообщает, разрешён ли переход from → to.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// ParseOrderStatus разбирает статус из внешнего запроса без учёта регистра.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(s))) {
	case OrderStatusPending:
		return OrderStatusPending, true
	case OrderStatusPaid:
		return OrderStatusPaid, true
	case OrderStatusFulfilled:
		return OrderStatusFulfilled, true
	case OrderStatusCancelled:
		return OrderStatusCancelled, true
	default:
		return "", false
	}
}

// ParsePaymentMethod разбирает способ оплаты из внешнего запроса.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, true
	case PaymentMethodOnline:
		return PaymentMethodOnline, true
	default:
		return "", false
	}
}

// OrderItem представляет одну позицию заказа. Название, цена и изображение
// товара фиксируются на момент создания заказа, чтобы последующие правки
// каталога не меняли исторические заказы.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	// ProductName, ImagePath, UnitPriceMinor — снимок товара на момент заказа.
	ProductName    string
	ImagePath      string
	UnitPriceMinor int64
	// Qty — количество единиц товара, строго больше нуля.
	Qty int64
	// SubtotalMinor = Qty * UnitPriceMinor, зафиксировано, а не пересчитывается.
	SubtotalMinor int64
	CreatedAt     time.Time
}

// Order агрегирует состояние заказа, его позиции и маркеры сверки инвентаря.
type Order struct {
	ID        string
	UserID    string
	UserEmail string
	UserName  string
	Address   string

	PaymentMethod PaymentMethod
	Status        OrderStatus
	TotalMinor    int64

	// PaymentRef — внешний идентификатор платёжной ссылки; заполняется только
	// для онлайн-оплаты и используется для корреляции асинхронных подтверждений.
	PaymentRef string

	// InventoryAppliedAt выставляется, когда остатки списаны под этот заказ.
	// InventoryRevertedAt выставляется, когда более раннее списание отменено.
	// Инвентарь считается применённым, если последним действием было применение.
	InventoryAppliedAt  *time.Time
	InventoryRevertedAt *time.Time

	Items     []OrderItem
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InventoryApplied сообщает, числится ли списание по заказу действующим.
// Решение принимается только по двум меткам времени: применено тогда и только
// тогда, когда apply был, и revert либо не был, либо случился раньше apply.
func (o *Order) InventoryApplied() bool {
	if o.InventoryAppliedAt == nil {
		return false
	}
	if o.InventoryRevertedAt == nil {
		return true
	}
	return o.InventoryRevertedAt.Before(*o.InventoryAppliedAt)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Address == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if o.PaymentMethod != PaymentMethodCOD && o.PaymentMethod != PaymentMethodOnline {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с зафиксированными подытогами позиций.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.SubtotalMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
