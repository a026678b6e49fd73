package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_http_requests_total",
			Help: "Total number of HTTP requests processed by the envelope service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envelope_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	envelopesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_published_total",
			Help: "Total number of envelopes handed to the transport.",
		},
		[]string{"mode", "result"},
	)
	envelopesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_consumed_total",
			Help: "Total number of envelopes received from the transport.",
		},
		[]string{"queue", "result"},
	)
	envelopeMessages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "envelope_messages_per_envelope",
			Help:    "Number of logical messages carried per published envelope.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envelope_ws_active_connections",
			Help: "Number of active monitor websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_ws_events_total",
			Help: "Total number of monitor websocket events.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		envelopesPublishedTotal,
		envelopesConsumedTotal,
		envelopeMessages,
		wsActiveConnections,
		wsEventsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ObservePublish records one publish attempt of an envelope carrying n messages.
func ObservePublish(mode string, n int, err error) {
	envelopesPublishedTotal.WithLabelValues(mode, result(err)).Inc()
	envelopeMessages.Observe(float64(n))
}

func ObserveConsume(queue string, err error) {
	envelopesConsumedTotal.WithLabelValues(queue, result(err)).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
