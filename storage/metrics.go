package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Byte and call counters shared by every engine.
var (
	StoreBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_store_read_bytes_total",
		Help: "Bytes of keys and values read from a storage engine.",
	})
	StoreBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_store_written_bytes_total",
		Help: "Bytes of keys and values written to a storage engine.",
	})
	Gets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_store_gets_total",
		Help: "Number of key-value GET calls.",
	})
	Puts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lsms_store_puts_total",
		Help: "Number of key-value PUT calls, batched or not.",
	})
)
