// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
)

// SpendReport summarizes budget pressure for the current period.
type SpendReport struct {
	Total            decimal.Decimal `json:"total"`
	Ceiling          decimal.Decimal `json:"ceiling"`
	WithinBudget     bool            `json:"within_budget"`
	RatePerHour      decimal.Decimal `json:"rate_per_hour"`
	TimeToExhaustion string          `json:"time_to_exhaustion,omitempty"`
}

// StorageHealth reports the persistence backend's reachability.
type StorageHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	Status      domain.HealthState      `json:"status"`
	Providers   []domain.ProviderStatus `json:"providers"`
	Spend       SpendReport             `json:"spend"`
	DeadLetters int64                   `json:"dead_letters"`
	Storage     StorageHealth           `json:"storage"`
	CheckedAt   time.Time               `json:"checked_at"`
}
