// Package metrics exposes the indexer's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsStored counts deposit events durably stored, per chain
	EventsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_events_stored_total",
			Help: "Total number of deposit events stored",
		},
		[]string{"chain"},
	)

	// DuplicateEvents counts re-fetched events skipped by deduplication
	DuplicateEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_duplicate_events_total",
			Help: "Total number of already-stored events skipped",
		},
		[]string{"chain"},
	)

	// OrdersSettled counts orders settled by a matching deposit
	OrdersSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_orders_settled_total",
			Help: "Total number of orders settled",
		},
		[]string{"chain"},
	)

	// Anomalies counts reconciliation anomalies by reason
	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_anomalies_total",
			Help: "Total number of reconciliation anomalies recorded",
		},
		[]string{"reason"},
	)

	// CursorPosition tracks the last committed scan position
	CursorPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vault_indexer_cursor_position",
			Help: "Last committed scan position per chain and contract",
		},
		[]string{"chain", "contract"},
	)

	// ScannerUp reports scanner health (1 healthy, 0 degraded)
	ScannerUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vault_indexer_scanner_up",
			Help: "Scanner health per chain and contract",
		},
		[]string{"chain", "contract"},
	)

	// ScanErrors counts failed scan iterations
	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_scan_errors_total",
			Help: "Total number of failed scan iterations",
		},
		[]string{"chain"},
	)

	// ScanLatency observes the duration of one scan iteration
	ScanLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vault_indexer_scan_duration_seconds",
			Help:    "Time taken by one scan iteration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"chain"},
	)

	// SweepSettled counts orders settled by the retry sweep rather than the
	// initial scan
	SweepSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_indexer_sweep_settled_total",
			Help: "Total number of orders settled by the reconciliation sweep",
		},
	)

	// SweepGivenUp counts events flagged for manual review after exhausting
	// the matching retry budget
	SweepGivenUp = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_indexer_sweep_given_up_total",
			Help: "Total number of events flagged for review as unmatched",
		},
	)

	// NotificationsSent counts acknowledged notification deliveries
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_indexer_notifications_sent_total",
			Help: "Total number of acknowledged notifications",
		},
		[]string{"status"},
	)

	// NotificationFailures counts rejected or failed deliveries
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_indexer_notification_failures_total",
			Help: "Total number of failed notification deliveries",
		},
	)
)
