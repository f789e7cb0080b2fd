package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	menuViews       *prometheus.CounterVec
	qrScans         prometheus.Counter
	wsConnections   prometheus.Gauge
}

// New creates and registers the collectors. Calling it more than once is
// safe; already-registered collectors are left in place.
func New() *Metrics {
	requestCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veomenu",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veomenu",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	menuViews := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veomenu",
			Name:      "menu_views_total",
			Help:      "Total number of public menu views",
		},
		[]string{"language"},
	)

	qrScans := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "veomenu",
			Name:      "qr_scans_total",
			Help:      "Total number of QR code scans",
		},
	)

	wsConnections := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "veomenu",
			Name:      "websocket_connections",
			Help:      "Number of currently connected WebSocket clients",
		},
	)

	register(requestCount)
	register(requestDuration)
	register(menuViews)
	register(qrScans)
	register(wsConnections)

	return &Metrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		menuViews:       menuViews,
		qrScans:         qrScans,
		wsConnections:   wsConnections,
	}
}

func register(collector prometheus.Collector) {
	if err := prometheus.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records one handled HTTP request. All methods are safe on a
// nil receiver so handlers can be constructed without metrics in tests.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMenuView records a public menu view in the given language.
func (m *Metrics) RecordMenuView(language string) {
	if m == nil {
		return
	}
	m.menuViews.WithLabelValues(language).Inc()
}

// RecordQRScan records a QR code scan.
func (m *Metrics) RecordQRScan() {
	if m == nil {
		return
	}
	m.qrScans.Inc()
}

// WSConnected records a WebSocket client connecting.
func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

// WSDisconnected records a WebSocket client disconnecting.
func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
