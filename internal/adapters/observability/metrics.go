package observability

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tripquote", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tripquote", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PricingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tripquote", Name: "pricing_runs_total", Help: "Pricing engine invocations."},
		[]string{"op", "outcome"}, // op: resolve|quote
	)
	PricingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tripquote", Name: "pricing_duration_seconds",
			Help:    "Pricing computation duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	SupplierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tripquote", Name: "supplier_requests_total", Help: "Outbound supplier requests."},
		[]string{"endpoint", "status"},
	)
	SupplierLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tripquote", Name: "supplier_request_duration_seconds",
			Help:    "Outbound supplier request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tripquote", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, PricingRuns, PricingLatency, SupplierRequests, SupplierLatency, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObservePricing(op string, err error, dur time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PricingRuns.WithLabelValues(op, outcome).Inc()
	PricingLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func ObserveSupplier(endpoint string, status int, dur time.Duration) {
	SupplierRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	SupplierLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
