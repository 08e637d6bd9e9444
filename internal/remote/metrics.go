package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flotilla",
		Subsystem: "demux",
		Name:      "bytes_received_total",
		Help:      "Bytes received across all multiplexed shell channels.",
	})

	metricFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flotilla",
		Subsystem: "demux",
		Name:      "flushes_total",
		Help:      "Buffered output flushes written to the console.",
	})

	metricOpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flotilla",
		Subsystem: "sessions",
		Name:      "open",
		Help:      "Remote sessions currently registered with the demux.",
	})
)
