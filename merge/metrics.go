package merge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lsms_tiles_read_total",
		Help: "Number of tiles read, by pass type.",
	}, []string{"pass"})
	passesRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_merge_passes_total",
		Help: "Number of size passes completed.",
	})
	unionsMade = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_merge_unions_total",
		Help: "Number of small regions merged into a neighbor.",
	})
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "lsms_merge_pass_seconds",
		Help: "Duration of a size pass.",
	})
)
