package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal tracks entries written
	RecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutti_history_records_total",
			Help: "Total number of search history entries written",
		},
	)

	// Errors tracks Redis operation errors
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutti_history_errors_total",
			Help: "Total number of search history operation errors",
		},
		[]string{"operation"}, // "record", "recent", "clear"
	)
)
