package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// Service — каталог питомника: публикация растений продавцами, витрина и
// модерация. Цена и остаток задаются при публикации; покупки меняют остаток
// только через движок сверки инвентаря, а не через каталог.
type Service struct {
	products domain.CatalogRepository
	logger   *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.CatalogRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{products: products, logger: logger}
}

// PublishRequest — данные нового объявления.
type PublishRequest struct {
	Name       string
	ImagePath  string
	SizeLabel  string
	CareNotes  string
	PriceMinor int64
	Stock      int64
}

// Publish размещает растение в каталоге от имени продавца.
func (s *Service) Publish(ctx context.Context, identity domain.Identity, req PublishRequest) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if !identity.Authenticated() {
		return domain.Product{}, domain.ErrUserRequired
	}
	if !identity.Is(domain.RoleSeller) && !identity.Is(domain.RoleAdmin) {
		return domain.Product{}, domain.ErrForbidden
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		SellerEmail: identity.Email,
		ImagePath:   req.ImagePath,
		SizeLabel:   req.SizeLabel,
		CareNotes:   req.CareNotes,
		PriceMinor:  req.PriceMinor,
		Stock:       req.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errs[0]
	}

	if err := s.products.Create(product); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"seller":     product.SellerEmail,
	}).Info("product published")
	return product, nil
}

// Get возвращает товар витрины. Снятые с продажи товары видны только
// администратору.
func (s *Service) Get(ctx context.Context, identity domain.Identity, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.Get(id)
	if err != nil {
		return domain.Product{}, err
	}
	if !product.Available() && !identity.Is(domain.RoleAdmin) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// List возвращает витрину: все доступные товары, новые первыми.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.products.List(domain.ProductFilter{})
}

// ListMine возвращает объявления текущего продавца, включая снятые с продажи.
func (s *Service) ListMine(ctx context.Context, identity domain.Identity) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !identity.Authenticated() {
		return nil, domain.ErrUserRequired
	}
	return s.products.List(domain.ProductFilter{
		SellerEmail:    identity.Email,
		IncludeDeleted: true,
	})
}

// Remove снимает товар с витрины (модерация). Товар не удаляется: строки
// заказов продолжают ссылаться на него, а администратор может вернуть его.
func (s *Service) Remove(ctx context.Context, identity domain.Identity, id, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !identity.Is(domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	if err := s.products.SoftDelete(id, reason); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"reason":     reason,
	}).Info("product removed from storefront")
	return nil
}

// Restore возвращает снятый товар на витрину.
func (s *Service) Restore(ctx context.Context, identity domain.Identity, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !identity.Is(domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	if err := s.products.Restore(id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product restored")
	return nil
}
