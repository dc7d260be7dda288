package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the enrollment
// pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	activations     prometheus.Counter
	payments        *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	referralLookups *prometheus.CounterVec
	gatewayDuration prometheus.Observer
}

// NewMetricsService registers the collectors on a private registry.
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

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_initiated_total",
		Help: "Admissions initiated, labelled by payment mode",
	}, []string{"mode"})

	activations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_activated_total",
		Help: "Enrollments that reached ACTIVE",
	})

	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payment attempts by provider and terminal status",
	}, []string{"provider", "status"})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook deliveries by event and outcome",
	}, []string{"event", "result"})

	referralLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_lookups_total",
		Help: "Referral code lookups by outcome",
	}, []string{"result"})

	gatewayDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_duration_seconds",
		Help:    "Latency of gateway order creation",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissions, activations, payments, webhookEvents, referralLookups, gatewayDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		admissions:      admissions,
		activations:     activations,
		payments:        payments,
		webhookEvents:   webhookEvents,
		referralLookups: referralLookups,
		gatewayDuration: gatewayDuration,
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

// RecordAdmission counts an initiated admission by payment mode.
func (m *MetricsService) RecordAdmission(mode string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(mode).Inc()
}

// RecordActivation counts an enrollment reaching ACTIVE.
func (m *MetricsService) RecordActivation() {
	if m == nil {
		return
	}
	m.activations.Inc()
}

// RecordPayment counts a payment reaching a terminal status.
func (m *MetricsService) RecordPayment(provider, status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(provider, status).Inc()
}

// RecordWebhookEvent counts a webhook delivery outcome.
func (m *MetricsService) RecordWebhookEvent(event, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, result).Inc()
}

// RecordReferralLookup counts a referral lookup outcome.
func (m *MetricsService) RecordReferralLookup(result string) {
	if m == nil {
		return
	}
	m.referralLookups.WithLabelValues(result).Inc()
}

// ObserveGatewayOrder records gateway order creation latency.
func (m *MetricsService) ObserveGatewayOrder(duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.Observe(duration.Seconds())
}
