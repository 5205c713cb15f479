// Package metrics exposes the service's Prometheus collectors on a private
// registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated    prometheus.Counter
	Revenue          prometheus.Counter
	Discount         prometheus.Counter
	CheckoutFailures *prometheus.CounterVec
	AnalyticsErrors  prometheus.Counter
	ActiveSessions   prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	WebsocketClients prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_orders_created_total"})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_revenue_total"})
	discount := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_discount_total"})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_failures_total",
	}, []string{"reason"})
	analyticsErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_analytics_compute_errors_total"})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_cart_sessions"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_websocket_clients"})

	r.MustRegister(ordersCreated, revenue, discount, checkoutFailures, analyticsErrors,
		activeSessions, requestDuration, wsClients)
	return &Registry{
		reg:              r,
		OrdersCreated:    ordersCreated,
		Revenue:          revenue,
		Discount:         discount,
		CheckoutFailures: checkoutFailures,
		AnalyticsErrors:  analyticsErrors,
		ActiveSessions:   activeSessions,
		RequestDuration:  requestDuration,
		WebsocketClients: wsClients,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// OrderCreated counts a committed order and its money.
func (r *Registry) OrderCreated(_ context.Context, o model.Order) error {
	r.OrdersCreated.Inc()
	r.Revenue.Add(o.Total.InexactFloat64())
	r.Discount.Add(o.Discount.InexactFloat64())
	return nil
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method string, status int, elapsed time.Duration) {
	r.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// CheckoutFailed counts a rejected or failed checkout by reason.
func (r *Registry) CheckoutFailed(reason string) {
	r.CheckoutFailures.WithLabelValues(reason).Inc()
}

// SessionsOpen records the number of live cart sessions.
func (r *Registry) SessionsOpen(n int) {
	r.ActiveSessions.Set(float64(n))
}

// AnalyticsFailed counts a report that fell back to the empty report.
func (r *Registry) AnalyticsFailed() {
	r.AnalyticsErrors.Inc()
}
