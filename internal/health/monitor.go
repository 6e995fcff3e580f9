package health

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/budget"
)

// Engine is the read-only slice of the upload engine the monitor consults.
type Engine interface {
	GetProviderStatuses() []domain.ProviderStatus
	OverallHealth() domain.HealthState
	TotalMonthlySpend() decimal.Decimal
	BudgetCeiling() decimal.Decimal
	WithinBudget() bool
	Predict() budget.Prediction
}

// DeadLetterCounter reports the dead-letter backlog size.
type DeadLetterCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Pinger checks that the persistence backend is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the engine, the dead-letter
// store and the journal backend. Reports are cached briefly so the
// health endpoints never hammer their sources.
type Monitor struct {
	engine      Engine
	deadLetters DeadLetterCounter
	store       Pinger
	ttl         time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a new health monitor. deadLetters and store may be
// nil when those collaborators are not configured.
func NewMonitor(engine Engine, deadLetters DeadLetterCounter, store Pinger) *Monitor {
	return &Monitor{
		engine:      engine,
		deadLetters: deadLetters,
		store:       store,
		ttl:         10 * time.Second,
	}
}

// CheckHealth builds the current health report. Results are cached for
// the monitor's TTL (max once per 10s) to avoid spamming the sources.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < m.ttl && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		Status:    m.engine.OverallHealth(),
		Providers: m.engine.GetProviderStatuses(),
		CheckedAt: time.Now(),
	}

	spend := SpendReport{
		Total:        m.engine.TotalMonthlySpend(),
		Ceiling:      m.engine.BudgetCeiling(),
		WithinBudget: m.engine.WithinBudget(),
	}
	pred := m.engine.Predict()
	spend.RatePerHour = pred.RatePerHour
	if pred.TimeToExhaustion > 0 {
		spend.TimeToExhaustion = pred.TimeToExhaustion.Round(time.Minute).String()
	}
	report.Spend = spend

	if m.deadLetters != nil {
		if count, err := m.deadLetters.Count(ctx); err == nil {
			report.DeadLetters = count
		}
	}

	report.Storage = StorageHealth{Healthy: true}
	if m.store != nil {
		if err := m.store.Health(ctx); err != nil {
			report.Storage = StorageHealth{Healthy: false, Error: err.Error()}
		}
	}

	m.lastCheck = report.CheckedAt
	m.lastReport = report
	return report
}
