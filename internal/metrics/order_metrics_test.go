package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewOrderMetrics_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	// Повторная регистрация должна вернуть уже существующие коллекторы.
	if first.inventoryApplied != second.inventoryApplied {
		t.Fatal("expected shared counter instance on re-registration")
	}

	first.RecordOrderCreated("cash_on_delivery")
	first.RecordInventoryApplied()
	first.RecordInventoryReverted()
	first.RecordShortfallCancelled()
	first.RecordTransitionRejected()
	first.RecordWebhookOutcome("confirmed")
	first.RecordReconcileDuration("apply", 5*time.Millisecond)
	first.RecordTimelineEvent()
	first.RecordOutboxEvent()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}
