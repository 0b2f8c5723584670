package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Read-then-write counter adjustments by entity, counter and direction
	counterAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_counter_adjustments_total",
			Help: "Denormalized counter adjustments applied by the engines",
		},
		[]string{"entity", "counter", "direction"},
	)

	// Decrements that would have gone below zero
	counterClampedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_counter_clamped_total",
			Help: "Counter decrements floored at zero",
		},
		[]string{"entity", "counter"},
	)

	// Uniqueness races resolved by re-lookup or retry
	storeConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_store_conflicts_total",
			Help: "Unique-constraint conflicts treated as benign races",
		},
		[]string{"operation"},
	)

	identityUpsertRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geovid_identity_upsert_retries_total",
			Help: "Lookup-or-insert retries after a user insert conflict",
		},
	)

	batchItemFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_batch_item_failures_total",
			Help: "Per-item failures collected inside batch operations",
		},
		[]string{"operation"},
	)

	// Rows overwritten by reconciliation, and how many of those had drifted
	reconciledRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_reconciled_rows_total",
			Help: "Counter rows overwritten by reconciliation",
		},
		[]string{"counter"},
	)
	reconciledDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovid_reconciled_drift_total",
			Help: "Counter rows whose stored value differed from the recomputed value",
		},
		[]string{"counter"},
	)
)

func observeAdjustment(entity, counter string, delta, before int64) {
	direction := "increment"
	if delta < 0 {
		direction = "decrement"
		if before+delta < 0 {
			counterClampedTotal.WithLabelValues(entity, counter).Inc()
		}
	}
	counterAdjustmentsTotal.WithLabelValues(entity, counter, direction).Inc()
}
