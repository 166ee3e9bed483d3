package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lark_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_checkouts_total",
			Help: "Checkout outcomes by terminal status",
		},
		[]string{"status"},
	)

	ticketsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lark_tickets_issued_total",
			Help: "Total number of tickets issued",
		},
	)

	chargeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lark_payment_charge_duration_seconds",
			Help:    "Payment gateway charge latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_transfers_total",
			Help: "Transfer operations by type",
		},
		[]string{"operation"},
	)

	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_listings_total",
			Help: "Resale listing operations by type",
		},
		[]string{"operation"},
	)
)

// RecordCheckout counts a checkout reaching a terminal outcome
// (confirmed, declined, sold_out, abandoned).
func RecordCheckout(status string) {
	checkoutsTotal.WithLabelValues(status).Inc()
}

func RecordTicketsIssued(n int) {
	ticketsIssuedTotal.Add(float64(n))
}

func ObserveChargeDuration(d time.Duration) {
	chargeDuration.Observe(d.Seconds())
}

// RecordTransfer counts a transfer operation (initiate, accept, cancel, expire).
func RecordTransfer(operation string) {
	transfersTotal.WithLabelValues(operation).Inc()
}

// RecordListing counts a listing operation (create, purchase, remove).
func RecordListing(operation string) {
	listingsTotal.WithLabelValues(operation).Inc()
}

// Middleware records request counts and latency per route. The route
// template is used rather than the raw path to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
