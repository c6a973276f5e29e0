package domain

import "time"

// PaymentLink описывает платёжную ссылку, созданную внешним провайдером
// (или его локальной имитацией) под конкретный заказ.
type PaymentLink struct {
	// ID — внешняя платёжная ссылка; заказ находят по ней при подтверждении.
	ID string
	// RedirectURL — адрес, на который уводим покупателя для оплаты.
	RedirectURL string
	CreatedAt   time.Time
}

// CreateLinkRequest — данные, необходимые провайдеру для создания ссылки.
type CreateLinkRequest struct {
	OrderID       string
	AmountMinor   int64
	CustomerName  string
	CustomerEmail string
}

// WebhookOutcome — итог обработки входящего подтверждения оплаты.
type WebhookOutcome string

const (
	// WebhookOutcomeConfirmed — подпись верна, инвентарь применён, заказ оплачен.
	WebhookOutcomeConfirmed WebhookOutcome = "confirmed"
	// WebhookOutcomeAlreadyHandled — повторная доставка; списание уже действует.
	WebhookOutcomeAlreadyHandled WebhookOutcome = "already_handled"
	// WebhookOutcomeCancelled — остатка больше нет, заказ отменён; для внешнего
	// вызывающего это успех, повторять доставку бессмысленно.
	WebhookOutcomeCancelled WebhookOutcome = "cancelled"
	// WebhookOutcomeIgnored — событие не про оплату, подтверждено без действий.
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
)
