package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	flowsTotal       *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
	ledgerSize       prometheus.Gauge
)

// RegisterMetrics inicializa las métricas y devuelve el handler de
// /metrics. Idempotente (los tests pueden construir el server dos veces).
func RegisterMetrics(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_http_requests_total",
			Help: "Requests procesadas por método, ruta y status",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trust_http_request_duration_seconds",
			Help:    "Latencia de requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		flowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_flows_total",
			Help: "Operaciones de flujos de confianza por resultado",
		}, []string{"flow", "result"})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_rate_limited_total",
			Help: "Intentos denegados por el rate limiter por scope",
		}, []string{"scope"})

		ledgerSize = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trust_revoked_sessions",
			Help: "Cardinalidad actual del ledger de revocación",
		})

		reg.MustRegister(httpRequestsTotal, httpRequestDuration, flowsTotal, rateLimitedTotal, ledgerSize)
	})
	return promhttp.Handler()
}

// observeFlow registra el resultado de una operación de flujo.
func observeFlow(flow, result string) {
	if flowsTotal != nil {
		flowsTotal.WithLabelValues(flow, result).Inc()
	}
}

func observeRateLimited(scope string) {
	if rateLimitedTotal != nil {
		rateLimitedTotal.WithLabelValues(scope).Inc()
	}
}

func setLedgerSize(n int64) {
	if ledgerSize != nil {
		ledgerSize.Set(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withHTTPMetrics instrumenta cada request (counter + histograma).
func withHTTPMetrics(routePattern func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httpRequestsTotal == nil {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
