package domain

import "errors"

var (
	// ErrProductNotFound возвращается, если товар отсутствует или помечен удалённым.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyCart — корзина не содержит ни одной валидной позиции.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidSignature — подпись webhook-события не совпала с ожидаемой.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrForbidden — у инициатора запроса нет нужной роли.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyHandled — подтверждение уже было обработано; не является настоящей ошибкой.
	ErrAlreadyHandled = errors.New("already handled")
	// ErrInvalidTransition — запрошенный переход статуса не разрешён машиной состояний.
	ErrInvalidTransition = errors.New("invalid status transition")

	// Ошибка отсутствующего идентификатора покупателя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = errors.New("shipping address is required")
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodInvalid = errors.New("unknown payment method")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка некорректного ключа корзины (не канонический идентификатор товара).
	ErrCartKeyInvalid = errors.New("cart key is not a valid product id")

	// Ошибки каталога.
	ErrProductNameRequired   = errors.New("product name is required")
	ErrProductSellerRequired = errors.New("product seller is required")
	ErrProductPriceInvalid   = errors.New("product price must be non-negative")
	ErrProductStockInvalid   = errors.New("product stock must be non-negative")
	// ErrProductStockNegative сигнализирует о попытке увести остаток ниже нуля.
	ErrProductStockNegative = errors.New("product stock would become negative")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки idempotency-слоя.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency request hash mismatch")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsInsufficientStock проверяет, сводится ли ошибка к нехватке остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}
