package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	slotOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgslot",
			Subsystem: "slot",
			Name:      "ops_total",
			Help:      "Slot operations by result errno name.",
		},
		[]string{"slot", "op", "result"},
	)
	slotOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msgslot",
			Subsystem: "slot",
			Name:      "op_duration_seconds",
			Help:      "Slot operation duration in seconds.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
		[]string{"op"},
	)
	openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "msgslot",
			Subsystem: "slot",
			Name:      "open_handles",
			Help:      "Handles currently open across all slots.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgslot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msgslot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(slotOps, slotOpDuration, openHandles, httpRequests, httpDuration)
	})
}

// RecordSlotOp counts one handle operation. result is "ok" or an errno name.
func RecordSlotOp(slot uint32, op, result string, duration time.Duration) {
	RegisterMetrics()
	slotOps.WithLabelValues(strconv.FormatUint(uint64(slot), 10), op, result).Inc()
	slotOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func HandleOpened() {
	RegisterMetrics()
	openHandles.Inc()
}

func HandleClosed() {
	RegisterMetrics()
	openHandles.Dec()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
