package domain

import "time"

// HealthState is the coarse operational classification of a provider.
type HealthState string

const (
	HealthOptimal  HealthState = "optimal"
	HealthDegraded HealthState = "degraded"
	HealthCritical HealthState = "critical"
	HealthOffline  HealthState = "offline"
)

// QualityTier is a descriptive rating derived from latency and success
// rate. It never feeds back into availability.
type QualityTier string

const (
	QualityExcellent QualityTier = "excellent"
	QualityGood      QualityTier = "good"
	QualityFair      QualityTier = "fair"
	QualityPoor      QualityTier = "poor"
)

// ProviderStatus is the runtime record kept for one registered provider.
// The health tracker is its sole writer; everything else reads snapshots.
type ProviderStatus struct {
	Provider         string      `json:"provider"`
	Platform         Platform    `json:"platform"`
	Health           HealthState `json:"health"`
	Quality          QualityTier `json:"quality"`
	Available        bool        `json:"available"`
	AvgResponseMs    float64     `json:"avg_response_ms"`
	SuccessRate      float64     `json:"success_rate"`
	TotalAttempts    uint64      `json:"total_attempts"`
	FailedAttempts   uint64      `json:"failed_attempts"`
	BytesTransferred uint64      `json:"bytes_transferred"`
	LastCheckedAt    time.Time   `json:"last_checked_at"`
}

// Usable reports whether the state permits new uploads. The availability
// flag on ProviderStatus must always equal Usable(Health).
func (h HealthState) Usable() bool {
	return h == HealthOptimal || h == HealthDegraded
}
