package blocks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_blocks_read_total",
		Help: "Number of blocks fetched from the store, excluding cache hits.",
	})
	blocksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_blocks_written_total",
		Help: "Number of encoded blocks written to the store.",
	})
)
