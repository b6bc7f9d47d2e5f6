package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_requests_total",
			Help: "Total decision requests by HTTP code",
		}, []string{"code"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_decisions_total",
			Help: "Total pipeline decisions by outcome",
		}, []string{"outcome"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "redirect_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redirect_in_flight",
		Help: "In-flight HTTP requests",
	})
	TrafficLogDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_traffic_log_dropped_total",
		Help: "Traffic events dropped on queue overflow",
	})
	TrafficLogErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_traffic_log_errors_total",
		Help: "Traffic event persistence failures",
	})
	SnapshotRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_snapshot_refreshes_total",
		Help: "Config snapshot rebuilds",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, DecisionsTotal, Latency, InFlight,
		TrafficLogDropped, TrafficLogErrors, SnapshotRefreshes,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
