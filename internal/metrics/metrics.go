package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	WAIncomingMessages *prometheus.CounterVec
	WAOutgoingMessages *prometheus.CounterVec
	OCRRequests        *prometheus.CounterVec
	OCRLatency         *prometheus.HistogramVec
	ReceiptsParsed     *prometheus.CounterVec
	PaymentsRecorded   *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			WAIncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_incoming_messages_total",
				Help:      "Total incoming WhatsApp messages processed.",
			}, []string{"type"}),
			WAOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_outgoing_messages_total",
				Help:      "Total outgoing WhatsApp messages sent.",
			}, []string{"type"}),
			OCRRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ocr_requests_total",
				Help:      "Total OCR extraction requests by outcome.",
			}, []string{"status"}),
			OCRLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ocr_request_duration_seconds",
				Help:      "Latency distribution for OCR extraction calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			ReceiptsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipts_parsed_total",
				Help:      "Total parsed receipts by detected issuer.",
			}, []string{"issuer"}),
			PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_recorded_total",
				Help:      "Total payments created or accumulated by resulting status.",
			}, []string{"action", "status"}),
			SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Conversation session transitions by target state.",
			}, []string{"state"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.WAIncomingMessages,
			metricsInstance.WAOutgoingMessages,
			metricsInstance.OCRRequests,
			metricsInstance.OCRLatency,
			metricsInstance.ReceiptsParsed,
			metricsInstance.PaymentsRecorded,
			metricsInstance.SessionTransitions,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
