package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/metrics"
)

// Outcome — результат операции сверки инвентаря.
type Outcome string

const (
	// OutcomeApplied — остатки списаны, маркер applied выставлен.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied — списание уже действует; повторный apply — no-op.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeCancelled — остатка не хватило, заказ переведён в cancelled
	// (автоматический путь подтверждения оплаты).
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeReverted — списание откатано, маркер reverted выставлен.
	OutcomeReverted Outcome = "reverted"
	// OutcomeNotApplied — операции нечего делать: revert без действующего
	// списания или apply по заказу в терминальном статусе cancelled.
	OutcomeNotApplied Outcome = "not_applied"
)

// ApplyOptions управляет поведением apply.
type ApplyOptions struct {
	// CancelOnShortfall: при нехватке остатка отменить заказ вместо ошибки.
	// Включается только на автоматическом пути подтверждения оплаты;
	// админский путь получает ErrInsufficientStock и полный откат.
	CancelOnShortfall bool
	// TargetStatus — статус заказа после успешного применения.
	// Пустое значение оставляет текущий статус (COD-заказ остаётся pending).
	TargetStatus domain.OrderStatus
}

// Engine — единственный мутатор product.stock/product.sold по отношению к
// заказам и единственный владелец маркеров inventoryAppliedAt/RevertedAt.
// Каждая операция выполняется целиком внутри одной транзакции хранилища:
// перечитывание маркеров, проверка остатков и само списание неразделимы.
type Engine struct {
	store    domain.Store
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// New создаёт рабочий экземпляр движка сверки. timeline и metrics опциональны.
func New(store domain.Store, timeline domain.TimelineRepository, logger *log.Entry, m *metrics.OrderMetrics) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Engine{
		store:    store,
		timeline: timeline,
		logger:   logger,
		metrics:  m,
	}
}

// Result — итог операции сверки вместе с финальным состоянием заказа.
type Result struct {
	Outcome Outcome
	Order   domain.Order
}

// Apply применяет списание остатков под заказ в отдельной транзакции.
func (e *Engine) Apply(ctx context.Context, orderID string, opts ApplyOptions) (Result, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordReconcileDuration("apply", time.Since(start))
		}
	}()

	var result Result
	err := e.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		order, err := tx.OrderForUpdate(orderID)
		if err != nil {
			return err
		}
		outcome, err := e.ApplyInTx(tx, &order, opts)
		if err != nil {
			return err
		}
		result = Result{Outcome: outcome, Order: order}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.afterApply(result)
	return result, nil
}

// ApplyInTx выполняет apply внутри уже открытой транзакции вызывающего
// (создание COD-заказа, админский переход статуса). order должен быть прочитан
// той же транзакцией; после успешного выполнения он отражает новое состояние.
func (e *Engine) ApplyInTx(tx domain.StoreTx, order *domain.Order, opts ApplyOptions) (Outcome, error) {
	// cancelled — терминальный статус: позднее подтверждение оплаты не
	// воскрешает заказ и не трогает остатки.
	if order.Status == domain.OrderStatusCancelled {
		return OutcomeNotApplied, nil
	}

	// Идемпотентность: проверка маркеров происходит под той же блокировкой,
	// что и списание, поэтому два конкурентных apply не продублируют его.
	if order.InventoryApplied() {
		return OutcomeAlreadyApplied, nil
	}

	// Авторитетная проверка остатков по текущему состоянию каталога.
	// Проверка Cart Resolver на момент создания заказа — только рекомендательная.
	for _, item := range order.Items {
		product, err := tx.ProductForUpdate(item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) && opts.CancelOnShortfall {
				return e.cancelInTx(tx, order, "product removed before confirmation")
			}
			return "", err
		}
		if product.Stock < item.Qty {
			if opts.CancelOnShortfall {
				return e.cancelInTx(tx, order, "insufficient stock at confirmation")
			}
			return "", domain.ErrInsufficientStock
		}
	}

	for _, item := range order.Items {
		if err := tx.AdjustProduct(item.ProductID, -item.Qty, item.Qty); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	order.InventoryAppliedAt = &now
	order.InventoryRevertedAt = nil
	if opts.TargetStatus != "" {
		order.Status = opts.TargetStatus
	}
	if err := tx.SaveOrderReconciliation(*order); err != nil {
		return "", err
	}
	order.Version++

	e.enqueueEvent(tx, order, "inventory.applied", "")
	return OutcomeApplied, nil
}

// Revert откатывает действующее списание в отдельной транзакции.
// targetStatus — статус заказа после отката (обычно cancelled).
func (e *Engine) Revert(ctx context.Context, orderID string, targetStatus domain.OrderStatus) (Result, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordReconcileDuration("revert", time.Since(start))
		}
	}()

	var result Result
	err := e.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		order, err := tx.OrderForUpdate(orderID)
		if err != nil {
			return err
		}
		outcome, err := e.RevertInTx(tx, &order, targetStatus)
		if err != nil {
			return err
		}
		result = Result{Outcome: outcome, Order: order}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.afterRevert(result)
	return result, nil
}

// RevertInTx выполняет revert внутри транзакции вызывающего.
func (e *Engine) RevertInTx(tx domain.StoreTx, order *domain.Order, targetStatus domain.OrderStatus) (Outcome, error) {
	if !order.InventoryApplied() {
		return OutcomeNotApplied, nil
	}

	// Возвращаем остатки по зафиксированным в заказе количествам.
	for _, item := range order.Items {
		if err := tx.AdjustProduct(item.ProductID, item.Qty, -item.Qty); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	order.InventoryRevertedAt = &now
	if targetStatus != "" {
		order.Status = targetStatus
	}
	if err := tx.SaveOrderReconciliation(*order); err != nil {
		return "", err
	}
	order.Version++

	e.enqueueEvent(tx, order, "inventory.reverted", "")
	return OutcomeReverted, nil
}

// cancelInTx переводит заказ в cancelled без списаний: гонка за остаток на
// автоматическом пути превращается в терминальную отмену, а не в ошибку.
func (e *Engine) cancelInTx(tx domain.StoreTx, order *domain.Order, reason string) (Outcome, error) {
	order.Status = domain.OrderStatusCancelled
	if err := tx.SaveOrderReconciliation(*order); err != nil {
		return "", err
	}
	order.Version++

	e.enqueueEvent(tx, order, "order.cancelled", reason)
	e.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Warn("order cancelled on apply shortfall")
	return OutcomeCancelled, nil
}

// AfterCommit публикует побочные эффекты (timeline, метрики) после фиксации
// транзакции вызывающего, который пользовался ApplyInTx/RevertInTx напрямую.
func (e *Engine) AfterCommit(outcome Outcome, order domain.Order) {
	switch outcome {
	case OutcomeApplied, OutcomeCancelled:
		e.afterApply(Result{Outcome: outcome, Order: order})
	case OutcomeReverted:
		e.afterRevert(Result{Outcome: outcome, Order: order})
	}
}

func (e *Engine) afterApply(result Result) {
	switch result.Outcome {
	case OutcomeApplied:
		if e.metrics != nil {
			e.metrics.RecordInventoryApplied()
		}
		e.appendTimeline(result.Order.ID, domain.TimelineInventoryApplied, "")
	case OutcomeCancelled:
		if e.metrics != nil {
			e.metrics.RecordShortfallCancelled()
		}
		e.appendTimeline(result.Order.ID, domain.TimelineStatusChanged, "insufficient stock at confirmation")
	}
}

func (e *Engine) afterRevert(result Result) {
	if result.Outcome != OutcomeReverted {
		return
	}
	if e.metrics != nil {
		e.metrics.RecordInventoryReverted()
	}
	e.appendTimeline(result.Order.ID, domain.TimelineInventoryReverted, "")
}

func (e *Engine) appendTimeline(orderID, eventType, reason string) {
	if e.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := e.timeline.Append(event); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if e.metrics != nil {
		e.metrics.RecordTimelineEvent()
	}
}

// enqueueEvent кладёт событие в outbox той же транзакцией, что и мутация.
func (e *Engine) enqueueEvent(tx domain.StoreTx, order *domain.Order, eventType, reason string) {
	payload := map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if err := tx.EnqueueOutbox(msg); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}
}
