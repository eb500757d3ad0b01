package undp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// itemsTotal counts walked items by kind and outcome.
	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devdata_undp_items_total",
			Help: "Total UNDP items handled by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: unit, project, document, output
	)
)

func countItem(kind, outcome string) {
	itemsTotal.WithLabelValues(kind, outcome).Inc()
}
