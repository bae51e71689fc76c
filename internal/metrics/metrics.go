package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	unlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automatch_unlocks_total",
			Help: "Lead unlock attempts by outcome",
		},
		[]string{"outcome"},
	)

	creditsPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automatch_credits_posted_total",
			Help: "Absolute credits moved through the ledger by entry kind",
		},
		[]string{"kind"},
	)

	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automatch_purchases_total",
			Help: "Credit purchases by final status",
		},
		[]string{"status"},
	)

	leadsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "automatch_leads_submitted_total",
			Help: "Total number of buyer leads submitted",
		},
	)

	balanceDiscrepancies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "automatch_balance_discrepancies",
			Help: "Dealers whose stored balance differs from their ledger sum at the last reconcile",
		},
	)

	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "automatch_ws_connections",
			Help: "Open balance websocket connections",
		},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automatch_integration_errors_total",
			Help: "Failures talking to external services",
		},
		[]string{"service"},
	)
)

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordUnlock(outcome string) {
	unlocksTotal.WithLabelValues(outcome).Inc()
}

func RecordCredits(kind string, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	creditsPosted.WithLabelValues(kind).Add(float64(amount))
}

func RecordPurchase(status string) {
	purchasesTotal.WithLabelValues(status).Inc()
}

func RecordPurchases(status string, n int64) {
	if n > 0 {
		purchasesTotal.WithLabelValues(status).Add(float64(n))
	}
}

func RecordLeadSubmitted() {
	leadsSubmitted.Inc()
}

func SetDiscrepancies(n int) {
	balanceDiscrepancies.Set(float64(n))
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}

func AddWSConnections(delta int) {
	wsConnections.Add(float64(delta))
}
