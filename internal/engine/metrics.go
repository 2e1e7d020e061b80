package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Decisions: вердикты по мандатам (allow/deny) с причиной
	Decisions *prometheus.CounterVec

	// Latency: время проверки мандатов (без вызова поставщика)
	EvaluationDuration prometheus.Histogram

	// Latency: полный путь запроса покупки
	RequestDuration *prometheus.HistogramVec

	// Errors: классификация отказов хоста
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера журнала действий
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mandate_decisions_total",
			Help: "Total number of mandate decisions.",
		}, []string{"action", "verdict", "reason"}),

		EvaluationDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "mandate_evaluation_duration_seconds",
			Help:    "Histogram of mandate evaluation latencies.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),

		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mandate_request_duration_seconds",
			Help:    "Histogram of purchase request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"status"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mandate_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: malformed_input, mandates_missing, revoked, provider

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "mandate_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"connector_id"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mandate_audit_buffer_utilization",
			Help: "Current number of entries in the action log buffer.",
		}),
	}
}
