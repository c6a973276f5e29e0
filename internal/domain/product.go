package domain

import "time"

// Product описывает позицию каталога питомника: растение, химикат или инструмент.
type Product struct {
	ID string
	// Name — отображаемое название позиции.
	Name string
	// SellerEmail — владелец листинга; каталог фильтруется по нему в кабинете продавца.
	SellerEmail string
	// ImagePath — ссылка на изображение; хранение файлов вне ядра.
	ImagePath string
	// SizeLabel и CareNotes — описательные поля листинга.
	SizeLabel string
	CareNotes string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Stock — доступный остаток; никогда не уходит ниже нуля.
	Stock int64
	// Sold — монотонно растущий счётчик проданных единиц.
	// Stock и Sold меняются на равные величины в противоположных направлениях
	// при применении/откате инвентаря по заказу.
	Sold int64
	// DeletedAt и DeleteReason — маркер мягкого удаления (модерация).
	DeletedAt    *time.Time
	DeleteReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Available сообщает, виден ли товар покупателям.
func (p *Product) Available() bool {
	return p.DeletedAt == nil
}

// Validate проверяет базовые инварианты листинга и возвращает список замечаний.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.SellerEmail == "" {
		errs = append(errs, ErrProductSellerRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}
