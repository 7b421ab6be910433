package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts batches by outcome
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eox_batches_total",
			Help: "Total number of EoX lookup batches by outcome",
		},
		[]string{"outcome"}, // "ok", "failed"
	)

	// SerialsTotal counts distinct serials by lookup status
	SerialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eox_serials_total",
			Help: "Total number of distinct serial numbers by lookup status",
		},
		[]string{"status"}, // "found", "not_found", "failed", "invalid"
	)

	// PagesTotal counts result pages fetched
	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eox_pages_total",
			Help: "Total number of EoX result pages fetched",
		},
	)
)
