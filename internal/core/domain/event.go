package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType labels the notifications the engine emits.
type EventType string

const (
	EventHealthChange   EventType = "health_change"
	EventFailover       EventType = "failover"
	EventBudgetExceeded EventType = "budget_exceeded"
)

// HealthChange is emitted when a provider crosses a classification
// boundary, once per crossing.
type HealthChange struct {
	Provider    string      `json:"provider"`
	From        HealthState `json:"from"`
	To          HealthState `json:"to"`
	SuccessRate float64     `json:"success_rate"`
	At          time.Time   `json:"at"`
}

// Failover is emitted when an upload succeeds on a provider other than
// the one originally selected for it.
type Failover struct {
	RequestID string    `json:"request_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}

// BudgetExceeded is emitted when recorded spend crosses the monthly
// ceiling. Spending is never blocked; consumers decide whether to
// throttle.
type BudgetExceeded struct {
	Spend  decimal.Decimal `json:"spend"`
	Budget decimal.Decimal `json:"budget"`
	At     time.Time       `json:"at"`
}

// Notifier receives engine events. Implementations must tolerate
// concurrent calls and return quickly; the engine invokes them inline.
type Notifier interface {
	HealthChanged(HealthChange)
	FailedOver(Failover)
	BudgetExceeded(BudgetExceeded)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) HealthChanged(HealthChange)    {}
func (NopNotifier) FailedOver(Failover)           {}
func (NopNotifier) BudgetExceeded(BudgetExceeded) {}

// Notifiers fans events out to every subscriber in order.
type Notifiers []Notifier

func (ns Notifiers) HealthChanged(e HealthChange) {
	for _, n := range ns {
		n.HealthChanged(e)
	}
}

func (ns Notifiers) FailedOver(e Failover) {
	for _, n := range ns {
		n.FailedOver(e)
	}
}

func (ns Notifiers) BudgetExceeded(e BudgetExceeded) {
	for _, n := range ns {
		n.BudgetExceeded(e)
	}
}
