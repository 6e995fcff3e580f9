package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/uplink/internal/core/domain"
)

var (
	// UploadsTotal tracks terminal upload outcomes per provider
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uplink_uploads_total",
			Help: "Total number of uploads by terminal outcome",
		},
		[]string{"provider", "outcome"},
	)

	// UploadBytes tracks bytes delivered per provider
	UploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uplink_upload_bytes_total",
			Help: "Total bytes delivered",
		},
		[]string{"provider"},
	)

	// UploadDuration tracks end-to-end upload latency including retries
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uplink_upload_duration_seconds",
			Help:    "End-to-end upload duration including retries and failover",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// UploadAttempts tracks transport attempts spent per delivered upload
	UploadAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uplink_upload_attempts",
			Help:    "Transport attempts per upload across all providers tried",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"provider"},
	)

	// FailoversTotal tracks provider switches
	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uplink_failovers_total",
			Help: "Total number of failovers between providers",
		},
		[]string{"from", "to"},
	)

	// HealthChangesTotal tracks classification transitions per provider
	HealthChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uplink_health_changes_total",
			Help: "Total number of health classification changes",
		},
		[]string{"provider", "health"},
	)

	// BudgetExceededTotal counts ceiling crossings
	BudgetExceededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uplink_budget_exceeded_total",
			Help: "Times the monthly spend crossed the budget ceiling",
		},
	)

	// DeadLettersTotal counts requests handed to the dead-letter store
	DeadLettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uplink_dead_letters_total",
			Help: "Total number of dead-lettered upload requests",
		},
	)

	// ProviderHealth exposes the current classification as a level
	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uplink_provider_health",
			Help: "Provider health level (3 optimal, 2 degraded, 1 critical, 0 offline)",
		},
		[]string{"provider"},
	)

	// ProviderSuccessRate exposes the rolling success rate percentage
	ProviderSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uplink_provider_success_rate",
			Help: "Provider success rate percentage",
		},
		[]string{"provider"},
	)

	// ProviderResponseMs exposes the rolling average response time
	ProviderResponseMs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uplink_provider_response_ms",
			Help: "Provider rolling average response time in milliseconds",
		},
		[]string{"provider"},
	)

	// MonthlySpend exposes the accumulated spend for the current period
	MonthlySpend = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uplink_monthly_spend",
			Help: "Estimated spend for the current period across providers",
		},
	)

	// BudgetCeiling exposes the configured monthly budget
	BudgetCeiling = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uplink_budget_ceiling",
			Help: "Configured monthly budget ceiling",
		},
	)

	// DBConnectionPoolUsage exposes journal database pool saturation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uplink_db_pool_usage_percent",
			Help: "Journal database connection pool usage percentage",
		},
	)

	// DeadLetterQueueDepth exposes the current dead-letter backlog
	DeadLetterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uplink_dead_letter_queue_depth",
			Help: "Number of unresolved dead-lettered uploads",
		},
	)
)

// HealthValue maps a classification onto the ProviderHealth gauge scale.
func HealthValue(h domain.HealthState) float64 {
	switch h {
	case domain.HealthOptimal:
		return 3
	case domain.HealthDegraded:
		return 2
	case domain.HealthCritical:
		return 1
	default:
		return 0
	}
}

// Notifier mirrors engine events into Prometheus counters. It satisfies
// domain.Notifier and is meant to sit in a fan-out next to the log
// notifier.
type Notifier struct{}

func (Notifier) HealthChanged(ev domain.HealthChange) {
	HealthChangesTotal.WithLabelValues(ev.Provider, string(ev.To)).Inc()
	ProviderHealth.WithLabelValues(ev.Provider).Set(HealthValue(ev.To))
}

func (Notifier) FailedOver(ev domain.Failover) {
	FailoversTotal.WithLabelValues(ev.From, ev.To).Inc()
}

func (Notifier) BudgetExceeded(domain.BudgetExceeded) {
	BudgetExceededTotal.Inc()
}
