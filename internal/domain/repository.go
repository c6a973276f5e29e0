package domain

// ProductFilter ограничивает выборку каталога.
type ProductFilter struct {
	// SellerEmail — выборка листингов конкретного продавца (кабинет продавца).
	SellerEmail string
	// IncludeDeleted включает мягко удалённые позиции (админ-обзор).
	IncludeDeleted bool
}

// CatalogRepository описывает требования к хранилищу каталога товаров.
type CatalogRepository interface {
	// Create сохраняет новый листинг. Возвращает ошибку, если запись с таким ID уже существует.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound, если его нет.
	// Мягко удалённые товары возвращаются: решение о видимости принимает вызывающий.
	Get(id string) (Product, error)
	// List возвращает товары по фильтру, новые первыми.
	List(filter ProductFilter) ([]Product, error)
	// SoftDelete помечает товар удалённым с причиной, не стирая запись.
	SoftDelete(id, reason string) error
	// Restore снимает маркер мягкого удаления.
	Restore(id string) error
}

// OrderRepository описывает требования к хранилищу заказов.
// Запись остатков и маркеров сверки сюда не входит: единственный мутатор
// инвентаря — Inventory Reconciliation Engine через Store.WithinTx.
type OrderRepository interface {
	// Get возвращает заказ вместе с позициями или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// GetByPaymentRef находит заказ по внешней платёжной ссылке.
	GetByPaymentRef(ref string) (Order, error)
	// ListByUser возвращает заказы покупателя с опциональным ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// List возвращает последние заказы (админ-обзор).
	List(limit int) ([]Order, error)
}
