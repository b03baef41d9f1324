package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are cumulative Prometheus mirrors of the window counters. They
// are never reset with the window, so rate() works across summary
// boundaries.
type Metrics struct {
	PacketsTotal     *prometheus.CounterVec
	FramesOK         *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	PacketsTruncated *prometheus.CounterVec
	T1Symbols        prometheus.Counter
	T1SymbolsInvalid prometheus.Counter
}

// NewMetrics registers the collectors with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wmbus_packets_total",
			Help: "Packets dequeued from the radio, by link mode",
		}, []string{"mode"}),
		FramesOK: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wmbus_frames_ok_total",
			Help: "Packets that passed decode and DLL CRC validation",
		}, []string{"mode"}),
		PacketsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wmbus_packets_dropped_total",
			Help: "Packets dropped during conversion, by link mode and reason",
		}, []string{"mode", "reason"}),
		PacketsTruncated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wmbus_packets_truncated_total",
			Help: "Packets shorter than the length their L-field promises",
		}, []string{"mode"}),
		T1Symbols: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wmbus_t1_symbols_total",
			Help: "3-of-6 symbols examined in T1 packets",
		}),
		T1SymbolsInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wmbus_t1_symbols_invalid_total",
			Help: "3-of-6 symbols outside the code table",
		}),
	}
}
