// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "ledger",
		Name:      "mutations_total",
		Help:      "Stock mutations committed, by resource kind and direction.",
	}, []string{"kind", "direction"})

	LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "ledger",
		Name:      "conflicts_total",
		Help:      "Write conflicts detected and retried.",
	})

	LedgerShortfalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "ledger",
		Name:      "shortfalls_total",
		Help:      "Operations rejected for insufficient stock or material.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order and return state transitions, by event.",
	}, []string{"event"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because the bus buffer was full.",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panelbot",
		Subsystem: "events",
		Name:      "sink_errors_total",
		Help:      "Event deliveries that failed, by sink.",
	}, []string{"sink"})
)
