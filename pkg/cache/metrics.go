package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionReads tracks non-blocking reads by cache and observed state
	SessionReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_reads_total",
			Help: "Total number of session cache reads",
		},
		[]string{"cache", "state"}, // "fresh", "stale", "empty", "loading", "absent"
	)

	// SessionRefreshes tracks refresh outcomes
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_refreshes_total",
			Help: "Total number of session cache refreshes by result",
		},
		[]string{"cache", "result"}, // "ok", "absent", "kept_stale", "cleared", "redirect", "discarded"
	)

	// StoreErrors tracks durable store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_store_errors_total",
			Help: "Total number of session store operation errors",
		},
		[]string{"operation"}, // "load", "save", "delete"
	)
)
