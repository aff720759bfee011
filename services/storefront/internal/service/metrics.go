package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_submissions_total",
			Help: "Checkout submissions by outcome (succeeded, validation, stock_conflict, ...)",
		},
		[]string{"outcome"},
	)

	catalogStaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_stale_results_total",
			Help: "Catalog fetch results discarded because a newer fetch was issued or the session closed",
		},
		[]string{"kind"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Storefront sessions currently held in memory",
		},
	)

	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart operations applied, by operation and whether the stock bound clamped them",
		},
		[]string{"op", "clamped"},
	)
)
