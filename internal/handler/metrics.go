package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	botRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusbot_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	botRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusbot_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	botEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusbot_events_total",
		Help: "Webhook events handled by kind and result.",
	}, []string{"kind", "result"})

	botDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusbot_duplicate_deliveries_total",
		Help: "Webhook messages skipped because their id was already handled.",
	})

	botMessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusbot_messages_sent_total",
		Help: "Outbound Send API calls by result.",
	}, []string{"result"})

	botBroadcastSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusbot_broadcast_sends_total",
		Help: "Per-recipient broadcast sends by result.",
	}, []string{"result"})

	botStudiaProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusbot_studia_probes_total",
		Help: "Studia3 session probes by outcome.",
	}, []string{"session"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		botRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		botRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordEvent records a dispatched webhook event.
func RecordEvent(kind string, success bool) {
	botEventsTotal.WithLabelValues(kind, result(success)).Inc()
}

// RecordSend records an outbound Send API call.
func RecordSend(success bool) {
	botMessagesSentTotal.WithLabelValues(result(success)).Inc()
}

// RecordBroadcastSend records one broadcast recipient.
func RecordBroadcastSend(success bool) {
	botBroadcastSendsTotal.WithLabelValues(result(success)).Inc()
}

// RecordStudiaProbe records a session probe.
func RecordStudiaProbe(alive bool) {
	if alive {
		botStudiaProbesTotal.WithLabelValues("alive").Inc()
	} else {
		botStudiaProbesTotal.WithLabelValues("expired").Inc()
	}
}

func recordDuplicate() {
	botDuplicatesTotal.Inc()
}
