package sdg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rowsTotal counts data rows written.
	rowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devdata_sdg_rows_total",
		Help: "Total SDG data rows written",
	})

	// seriesTotal counts series by load status.
	seriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devdata_sdg_series_total",
			Help: "Total SDG series handled by status",
		},
		[]string{"status"}, // loaded, skipped, failed
	)

	// sliceErrorsTotal counts country data slices that could not be read.
	sliceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devdata_sdg_slice_errors_total",
		Help: "Total SDG country data slices skipped after an error",
	})
)
