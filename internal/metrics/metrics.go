// Package metrics exposes the process's Prometheus instrumentation
// (SPEC_FULL.md, "Metrics"). Every counter/gauge/histogram here is cheap
// to update from hot paths: the RPC dispatch loop, the transport poll
// loop, and the notification pump.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks the number of live transport connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "iviplugind",
		Name:      "connected_clients",
		Help:      "Number of connected RPC clients.",
	})

	// RPCRequestsTotal counts dispatched requests by method and outcome.
	RPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "rpc_requests_total",
		Help:      "Total JSON-RPC requests processed, by method and result.",
	}, []string{"method", "result"})

	// RPCErrorsTotal counts error responses by JSON-RPC error code.
	RPCErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "rpc_errors_total",
		Help:      "Total JSON-RPC error responses, by error code.",
	}, []string{"code"})

	// NotificationsQueuedTotal counts notifications queued onto any
	// client's outbox.
	NotificationsQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "notifications_queued_total",
		Help:      "Total notifications queued, by event type.",
	}, []string{"event_type"})

	// NotificationsDroppedTotal counts notifications dropped by FIFO
	// overflow (spec.md §4.5).
	NotificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "notifications_dropped_total",
		Help:      "Total notifications dropped due to outbox overflow.",
	})

	// NotificationsSentTotal counts notifications successfully written to
	// a client's connection by the pump.
	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "notifications_sent_total",
		Help:      "Total notifications delivered to clients.",
	})

	// OutboxDepth samples the most recently observed per-client outbox
	// depth, a distribution rather than a per-client gauge since client
	// count is unbounded.
	OutboxDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iviplugind",
		Name:      "outbox_depth",
		Help:      "Distribution of per-client outbox depth at drain time.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// FramingErrorsTotal counts frames rejected by the reader (zero
	// length, oversized, or malformed), by reason.
	FramingErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iviplugind",
		Name:      "framing_errors_total",
		Help:      "Total rejected frames, by reason.",
	}, []string{"reason"})
)
