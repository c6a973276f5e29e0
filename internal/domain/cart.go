package domain

import (
	"github.com/google/uuid"
)

// ProductID — валидированный идентификатор товара в клиентской корзине.
type ProductID string

// ParseProductID принимает только канонический uuid-формат идентификатора.
func ParseProductID(raw string) (ProductID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		return "", ErrCartKeyInvalid
	}
	return ProductID(raw), nil
}

// Cart — присланное клиентом отображение товар → количество.
// Вход не доверенный: ключи и количества валидируются до обращения к хранилищу.
type Cart map[ProductID]int64

// ParseCart валидирует сырую корзину из запроса целиком: любой некорректный
// ключ или неположительное количество отклоняют всю корзину.
func ParseCart(raw map[string]int64) (Cart, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyCart
	}

	cart := make(Cart, len(raw))
	for key, qty := range raw {
		id, err := ParseProductID(key)
		if err != nil {
			return nil, err
		}
		if qty <= 0 {
			return nil, ErrItemQtyInvalid
		}
		cart[id] = qty
	}
	return cart, nil
}

// CartLine — оценённая и проверенная позиция будущего заказа.
type CartLine struct {
	Product  Product
	Qty      int64
	Subtotal int64
}

// ResolvedCart — результат работы Cart Resolver: позиции и итоговая сумма.
type ResolvedCart struct {
	Lines      []CartLine
	TotalMinor int64
}
