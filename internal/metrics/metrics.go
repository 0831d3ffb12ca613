package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "game_store"

// Payment outcomes used as the "result" label.
const (
	PaymentApproved         = "approved"
	PaymentDeclined         = "declined"
	PaymentStockExhausted   = "stock_exhausted"
	PaymentAlreadyProcessed = "already_processed"
	PaymentError            = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	ordersCreated prometheus.Counter
	orderTotal    prometheus.Histogram
	payments      *prometheus.CounterVec
	keysClaimed   prometheus.Counter
	keysGenerated prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "created_total",
			Help: "Orders created in PENDING status.",
		}),
		orderTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "orders", Name: "total_amount",
			Help:    "Order totals at creation.",
			Buckets: []float64{5, 10, 20, 40, 60, 100, 200, 500},
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "total",
			Help: "Payment attempts by outcome.",
		}, []string{"result"}),
		keysClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "license_keys", Name: "claimed_total",
			Help: "License keys bound to paid order items.",
		}),
		keysGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "license_keys", Name: "generated_total",
			Help: "License keys added to game pools.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersCreated, m.orderTotal, m.payments,
		m.keysClaimed, m.keysGenerated,
		m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) OrderCreated(total float64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderTotal.Observe(total)
}

func (m *Metrics) Payment(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

func (m *Metrics) KeysClaimed(n int) {
	if m == nil {
		return
	}
	m.keysClaimed.Add(float64(n))
}

func (m *Metrics) KeysGenerated(n int) {
	if m == nil {
		return
	}
	m.keysGenerated.Add(float64(n))
}

// Middleware records request counts and latency keyed by the route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
