package cart

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// Resolver превращает корзину клиента в зафиксированный набор позиций с
// серверными ценами. Цены и названия берутся только из каталога: клиентские
// суммы не принимаются на веру. Проверка остатков здесь рекомендательная,
// авторитетная выполняется при списании инвентаря.
type Resolver struct {
	catalog domain.CatalogRepository
	logger  *log.Entry
}

// NewResolver создаёт резолвер корзин поверх каталога.
func NewResolver(catalog domain.CatalogRepository, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve проверяет каждую позицию корзины по каталогу и считает итог в
// минорных единицах. Корзина отклоняется целиком: одна недоступная позиция
// делает невалидной всю корзину.
func (r *Resolver) Resolve(ctx context.Context, c domain.Cart) (domain.ResolvedCart, error) {
	if err := ctx.Err(); err != nil {
		return domain.ResolvedCart{}, err
	}
	if len(c) == 0 {
		return domain.ResolvedCart{}, domain.ErrEmptyCart
	}

	// Детерминированный порядок обхода: первая же проблемная позиция
	// одинаково выбирается при повторных вызовах.
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	resolved := domain.ResolvedCart{
		Lines: make([]domain.CartLine, 0, len(ids)),
	}
	for _, id := range ids {
		qty := c[domain.ProductID(id)]

		product, err := r.catalog.Get(id)
		if err != nil {
			return domain.ResolvedCart{}, err
		}
		if !product.Available() {
			r.logger.WithField("product_id", id).Debug("cart references removed product")
			return domain.ResolvedCart{}, domain.ErrProductNotFound
		}
		if product.Stock < qty {
			return domain.ResolvedCart{}, domain.ErrInsufficientStock
		}

		line := domain.CartLine{
			Product:  product,
			Qty:      qty,
			Subtotal: product.PriceMinor * qty,
		}
		resolved.Lines = append(resolved.Lines, line)
		resolved.TotalMinor += line.Subtotal
	}
	return resolved, nil
}
