package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов и сверки инвентаря.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated       *prometheus.CounterVec
	inventoryApplied    prometheus.Counter
	inventoryReverted   prometheus.Counter
	shortfallCancelled  prometheus.Counter
	transitionsRejected prometheus.Counter
	webhookOutcomes     *prometheus.CounterVec

	// Гистограмма времени выполнения сверки
	reconcileDuration *prometheus.HistogramVec

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nursery_orders_created_total",
			Help: "Total number of orders created, by payment method",
		}, []string{"payment_method"}),
		inventoryApplied: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_inventory_applied_total",
			Help: "Total number of inventory apply operations committed",
		}),
		inventoryReverted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_inventory_reverted_total",
			Help: "Total number of inventory revert operations committed",
		}),
		shortfallCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_orders_cancelled_on_shortfall_total",
			Help: "Total number of orders cancelled because stock vanished before confirmation",
		}),
		transitionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_status_transitions_rejected_total",
			Help: "Total number of status transitions rejected by the state machine or stock check",
		}),
		webhookOutcomes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nursery_payment_webhook_total",
			Help: "Total number of payment webhook deliveries, by outcome",
		}, []string{"outcome"}),
		reconcileDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "nursery_inventory_reconcile_duration_seconds",
			Help:    "Duration of inventory apply/revert transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "nursery_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated(paymentMethod string) {
	m.ordersCreated.WithLabelValues(paymentMethod).Inc()
}

// RecordInventoryApplied увеличивает счётчик применённых списаний.
func (m *OrderMetrics) RecordInventoryApplied() {
	m.inventoryApplied.Inc()
}

// RecordInventoryReverted увеличивает счётчик откатов.
func (m *OrderMetrics) RecordInventoryReverted() {
	m.inventoryReverted.Inc()
}

// RecordShortfallCancelled увеличивает счётчик заказов, отменённых из-за гонки за остаток.
func (m *OrderMetrics) RecordShortfallCancelled() {
	m.shortfallCancelled.Inc()
}

// RecordTransitionRejected увеличивает счётчик отклонённых переходов статуса.
func (m *OrderMetrics) RecordTransitionRejected() {
	m.transitionsRejected.Inc()
}

// RecordWebhookOutcome увеличивает счётчик исходов webhook-доставок.
func (m *OrderMetrics) RecordWebhookOutcome(outcome string) {
	m.webhookOutcomes.WithLabelValues(outcome).Inc()
}

// RecordReconcileDuration записывает время транзакции apply/revert.
func (m *OrderMetrics) RecordReconcileDuration(op string, duration time.Duration) {
	m.reconcileDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
