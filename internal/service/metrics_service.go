package service

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
)

// MetricsService encapsulates Prometheus instrumentation. It doubles as an
// event subscriber so lifecycle transitions and payments show up as domain
// counters without the engines knowing about metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	lifecycleEvents *prometheus.CounterVec
	paymentsTotal   prometheus.Counter
	paymentsAmount  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	lifecycleEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_events_total",
		Help: "Total lifecycle events by type",
	}, []string{"type"})

	paymentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total payments recorded",
	})

	paymentsAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_amount",
		Help: "Cumulative amount of recorded payments",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, lifecycleEvents, paymentsTotal, paymentsAmount, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		lifecycleEvents: lifecycleEvents,
		paymentsTotal:   paymentsTotal,
		paymentsAmount:  paymentsAmount,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// Name implements events.Subscriber.
func (m *MetricsService) Name() string { return "metrics" }

// Handle implements events.Subscriber.
func (m *MetricsService) Handle(_ context.Context, event events.Event) error {
	if m == nil {
		return nil
	}
	m.lifecycleEvents.WithLabelValues(string(event.Type)).Inc()
	if event.Type == events.TypePaymentRecorded && event.Payment != nil {
		m.paymentsTotal.Inc()
		m.paymentsAmount.Add(event.Payment.Amount)
	}
	return nil
}
