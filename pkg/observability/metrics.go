// Package observability exposes Prometheus metrics and the HTTP middleware
// that records them.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts requests by method, route and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fatura_http_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fatura_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ScansTotal counts QR scan outcomes: detected, parsed, rejected, error.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fatura_scans_total",
		Help: "QR scan attempts by outcome.",
	}, []string{"result"})

	// InvoicesIngestedTotal counts stored invoices by source.
	InvoicesIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fatura_invoices_ingested_total",
		Help: "Invoices stored, by ingestion source.",
	}, []string{"source"})

	// DueInvoicesGauge tracks invoices past their due date and still unpaid.
	DueInvoicesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fatura_overdue_invoices",
		Help: "Unpaid invoices past their due date.",
	})
)

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latency. Uses the matched route
// template so path cardinality stays bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
