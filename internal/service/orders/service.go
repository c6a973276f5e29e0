package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/metrics"
	"github.com/vladislavdragonenkov/nursery/internal/service/cart"
	"github.com/vladislavdragonenkov/nursery/internal/service/inventory"
)

// maxRetries — число попыток транзакции при version conflict.
const maxRetries = 3

// Service — журнал заказов: создание и переходы статусов. Все мутации
// проходят единой транзакцией через Store.WithinTx; остатками товаров
// распоряжается только движок сверки инвентаря.
type Service struct {
	store    domain.Store
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	resolver *cart.Resolver
	engine   *inventory.Engine
	provider domain.PaymentProvider
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// Config — зависимости сервиса заказов. Timeline и Metrics опциональны.
type Config struct {
	Store    domain.Store
	Orders   domain.OrderRepository
	Timeline domain.TimelineRepository
	Resolver *cart.Resolver
	Engine   *inventory.Engine
	Provider domain.PaymentProvider
	Logger   *log.Entry
	Metrics  *metrics.OrderMetrics
}

// NewService создаёт сервис заказов.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:    cfg.Store,
		orders:   cfg.Orders,
		timeline: cfg.Timeline,
		resolver: cfg.Resolver,
		engine:   cfg.Engine,
		provider: cfg.Provider,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// CreateRequest — данные оформления заказа.
type CreateRequest struct {
	Cart          domain.Cart
	Address       string
	PaymentMethod domain.PaymentMethod
	// ExpectedTotalMinor — сумма, которую видел клиент. Если задана и
	// расходится с серверным расчётом, заказ отклоняется: цены успели
	// измениться, клиент должен увидеть новые.
	ExpectedTotalMinor *int64
}

// CreateResult — созданный заказ и, для online-оплаты, адрес редиректа.
type CreateResult struct {
	Order       domain.Order
	RedirectURL string
}

// Create оформляет заказ: корзина оценивается по каталогу, позиции
// фиксируются снапшотом. COD-заказ списывает остатки сразу, той же
// транзакцией, и остаётся в pending; online-заказ получает платёжную ссылку,
// а списание откладывается до подтверждения оплаты.
func (s *Service) Create(ctx context.Context, identity domain.Identity, req CreateRequest) (CreateResult, error) {
	if !identity.Authenticated() {
		return CreateResult{}, domain.ErrUserRequired
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return CreateResult{}, domain.ErrAddressRequired
	}
	method, ok := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if !ok {
		return CreateResult{}, domain.ErrPaymentMethodInvalid
	}

	resolved, err := s.resolver.Resolve(ctx, req.Cart)
	if err != nil {
		return CreateResult{}, err
	}
	if req.ExpectedTotalMinor != nil && *req.ExpectedTotalMinor != resolved.TotalMinor {
		return CreateResult{}, domain.ErrTotalMismatch
	}

	order := buildOrder(identity, address, method, resolved)

	var redirectURL string
	if method == domain.PaymentMethodOnline {
		link, err := s.provider.CreateLink(ctx, domain.CreateLinkRequest{
			OrderID:       order.ID,
			AmountMinor:   order.TotalMinor,
			CustomerName:  identity.Name,
			CustomerEmail: identity.Email,
		})
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("create payment link failed")
			return CreateResult{}, err
		}
		order.PaymentRef = link.ID
		redirectURL = link.RedirectURL
	}

	var applyOutcome inventory.Outcome
	err = s.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		s.enqueueStatusEvent(tx, order, "order.created")

		if method == domain.PaymentMethodCOD {
			// Нехватка остатка на COD-пути отклоняет заказ целиком.
			outcome, err := s.engine.ApplyInTx(tx, &order, inventory.ApplyOptions{})
			if err != nil {
				return err
			}
			applyOutcome = outcome
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(string(method))
	}
	s.appendTimeline(order.ID, domain.TimelineOrderCreated, "")
	if applyOutcome != "" {
		s.engine.AfterCommit(applyOutcome, order)
	}

	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"user_id":        identity.ID,
		"payment_method": method,
		"total_minor":    order.TotalMinor,
	}).Info("order created")
	return CreateResult{Order: order, RedirectURL: redirectURL}, nil
}

// ChangeStatus выполняет админский переход статуса заказа. Переход в paid или
// fulfilled сперва применяет инвентарь, и нехватка остатка отклоняет весь
// переход; переход в cancelled откатывает действующее списание. Статус,
// маркеры, остатки и outbox-событие меняются одной транзакцией.
func (s *Service) ChangeStatus(ctx context.Context, identity domain.Identity, orderID string, target domain.OrderStatus) (domain.Order, error) {
	if !identity.Is(domain.RoleAdmin) {
		return domain.Order{}, domain.ErrForbidden
	}

	var (
		updated domain.Order
		outcome inventory.Outcome
		lastErr error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		updated, outcome, lastErr = s.changeStatusTx(ctx, orderID, target)
		if lastErr == nil {
			break
		}
		if !domain.IsVersionConflict(lastErr) || attempt == maxRetries-1 {
			if errors.Is(lastErr, domain.ErrInvalidTransition) && s.metrics != nil {
				s.metrics.RecordTransitionRejected()
			}
			return domain.Order{}, lastErr
		}
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt + 1,
		}).Warn("version conflict on status change, retrying")
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	if lastErr != nil {
		return domain.Order{}, lastErr
	}

	s.appendTimeline(orderID, domain.TimelineStatusChanged, string(target))
	if outcome != "" {
		s.engine.AfterCommit(outcome, updated)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   target,
	}).Info("order status changed")
	return updated, nil
}

func (s *Service) changeStatusTx(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, inventory.Outcome, error) {
	var (
		updated domain.Order
		outcome inventory.Outcome
	)
	err := s.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		order, err := tx.OrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, target) {
			return domain.ErrInvalidTransition
		}

		switch target {
		case domain.OrderStatusCancelled:
			out, err := s.engine.RevertInTx(tx, &order, domain.OrderStatusCancelled)
			if err != nil {
				return err
			}
			outcome = out
			if out == inventory.OutcomeNotApplied {
				// Откатывать нечего, меняется только статус.
				order.Status = domain.OrderStatusCancelled
				if err := tx.SaveOrderReconciliation(order); err != nil {
					return err
				}
				order.Version++
			}

		case domain.OrderStatusPaid, domain.OrderStatusFulfilled:
			out, err := s.engine.ApplyInTx(tx, &order, inventory.ApplyOptions{TargetStatus: target})
			if err != nil {
				return err
			}
			outcome = out
			if out == inventory.OutcomeAlreadyApplied {
				order.Status = target
				if err := tx.SaveOrderReconciliation(order); err != nil {
					return err
				}
				order.Version++
			}

		default:
			return domain.ErrInvalidTransition
		}

		s.enqueueStatusEvent(tx, order, "order.status_changed")
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, "", err
	}
	return updated, outcome, nil
}

// Get возвращает заказ владельцу или администратору.
func (s *Service) Get(ctx context.Context, identity domain.Identity, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != identity.ID && !identity.Is(domain.RoleAdmin) {
		return domain.Order{}, domain.ErrForbidden
	}
	return order, nil
}

// ListByUser возвращает заказы текущего пользователя, новые первыми.
func (s *Service) ListByUser(ctx context.Context, identity domain.Identity, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !identity.Authenticated() {
		return nil, domain.ErrUserRequired
	}
	return s.orders.ListByUser(identity.ID, limit)
}

// List возвращает все заказы; доступно только администратору.
func (s *Service) List(ctx context.Context, identity domain.Identity, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !identity.Is(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return s.orders.List(limit)
}

// Timeline возвращает историю событий заказа владельцу или администратору.
func (s *Service) Timeline(ctx context.Context, identity domain.Identity, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.Get(ctx, identity, orderID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(orderID)
}

// buildOrder собирает заказ из оценённой корзины: цены и названия
// фиксируются на момент оформления и дальше не зависят от каталога.
func buildOrder(identity domain.Identity, address string, method domain.PaymentMethod, resolved domain.ResolvedCart) domain.Order {
	now := time.Now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		UserID:        identity.ID,
		UserEmail:     identity.Email,
		UserName:      identity.Name,
		Address:       address,
		PaymentMethod: method,
		Status:        domain.OrderStatusPending,
		TotalMinor:    resolved.TotalMinor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Items = make([]domain.OrderItem, 0, len(resolved.Lines))
	for _, line := range resolved.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ProductID:      line.Product.ID,
			ProductName:    line.Product.Name,
			ImagePath:      line.Product.ImagePath,
			UnitPriceMinor: line.Product.PriceMinor,
			Qty:            line.Qty,
			SubtotalMinor:  line.Subtotal,
			CreatedAt:      now,
		})
	}
	return order
}

func (s *Service) enqueueStatusEvent(tx domain.StoreTx, order domain.Order, eventType string) {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"total":    order.TotalMinor,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}
	if err := tx.EnqueueOutbox(msg); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

func (s *Service) appendTimeline(orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
	} else if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}
