// Package observability holds the depot's Prometheus registry: HTTP traffic
// per route and the business counters the services report into.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik HTTP dan metrik domain depot dalam satu registry.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
	domain   *DomainMetrics
}

// DomainMetrics menghitung kejadian bisnis: penyelesaian order, resolusi
// handover, review biaya, dan pergerakan stok. Semua method aman dipanggil
// pada receiver nil.
type DomainMetrics struct {
	completions *prometheus.CounterVec
	handovers   *prometheus.CounterVec
	expenses    *prometheus.CounterVec
	movements   *prometheus.CounterVec
	generated   *prometheus.CounterVec
}

// NewMetrics membuat registry baru berisi metrik HTTP dan metrik domain.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "depot_http_request_duration_seconds",
			Help: "HTTP request latency by route.",
			// Completion and handover transactions sit in the 10-500ms range.
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		domain: &DomainMetrics{
			completions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "depot_order_completions_total",
				Help: "Order completion attempts by result.",
			}, []string{"result"}),
			handovers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "depot_handover_events_total",
				Help: "Cash handover lifecycle events by action.",
			}, []string{"action"}),
			expenses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "depot_expense_reviews_total",
				Help: "Expense reviews by decision.",
			}, []string{"decision"}),
			movements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "depot_stock_movements_total",
				Help: "Posted stock movements by type.",
			}, []string{"type"}),
			generated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "depot_orders_generated_total",
				Help: "Bulk generation outcomes per customer.",
			}, []string{"outcome"}),
		},
	}
	d := m.domain
	registry.MustRegister(m.requests, m.latency, m.inFlight,
		d.completions, d.handovers, d.expenses, d.movements, d.generated)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Domain returns the business counters registered next to the HTTP ones.
func (m *Metrics) Domain() *DomainMetrics {
	if m == nil {
		return nil
	}
	return m.domain
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP. The route label is
// the chi pattern, so /delivery/orders/{orderID}/complete is one series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// OrderCompletion records a completion outcome: completed, replayed or failed.
func (m *DomainMetrics) OrderCompletion(result string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(result).Inc()
}

// HandoverEvent records submit, cancel and resolution actions.
func (m *DomainMetrics) HandoverEvent(action string) {
	if m == nil {
		return
	}
	m.handovers.WithLabelValues(action).Inc()
}

// ExpenseReviewed records an approve or reject decision.
func (m *DomainMetrics) ExpenseReviewed(decision string) {
	if m == nil {
		return
	}
	m.expenses.WithLabelValues(decision).Inc()
}

// StockMovement records a posted movement.
func (m *DomainMetrics) StockMovement(movementType string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
}

// OrdersGenerated records bulk generation outcomes.
func (m *DomainMetrics) OrdersGenerated(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.generated.WithLabelValues(outcome).Add(float64(n))
}
