package budget

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
)

// spendPeriod is the accumulator lifetime. Rollover happens lazily on
// the next write after the period elapses, never on a timer.
const spendPeriod = 30 * 24 * time.Hour

var bytesPerMB = decimal.NewFromInt(1 << 20)

// HealthSource reports which providers can take uploads. Implemented by
// the provider tracker.
type HealthSource interface {
	HealthyProviders() []string
}

// Entry is one provider's accumulator, exported for persistence.
type Entry struct {
	Provider    string
	Spend       decimal.Decimal
	PeriodStart time.Time
}

type entry struct {
	rate        decimal.Decimal
	spend       decimal.Decimal
	periodStart time.Time
}

// Ledger accumulates estimated spend per provider against one monthly
// ceiling shared across all of them. Budget is advisory: crossing the
// ceiling emits an event and nothing else.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ceiling  decimal.Decimal
	health   HealthSource
	notifier domain.Notifier
	now      func() time.Time
}

// NewLedger creates a ledger with the given monthly ceiling. A zero
// ceiling disables budget signals entirely; spend still accumulates. A
// nil notifier discards budget events.
func NewLedger(ceiling decimal.Decimal, health HealthSource, notifier domain.Notifier) *Ledger {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Ledger{
		entries:  make(map[string]*entry),
		ceiling:  ceiling,
		health:   health,
		notifier: notifier,
		now:      time.Now,
	}
}

// Register opens an accumulator for name. A zero ratePerMB falls back to
// the platform default.
func (l *Ledger) Register(name string, platform domain.Platform, ratePerMB decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[name]; exists {
		return
	}
	rate := ratePerMB
	if rate.IsZero() {
		rate = DefaultRate(platform)
	}
	l.entries[name] = &entry{
		rate:        rate,
		spend:       decimal.Zero,
		periodStart: l.now(),
	}
}

// Remove releases the accumulator for name.
func (l *Ledger) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, name)
}

// EstimateCost prices an upload of the given size against name's rate.
// Unknown providers price at zero.
func (l *Ledger) EstimateCost(name string, bytes int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[name]
	if !ok {
		return decimal.Zero
	}
	return costFor(e.rate, bytes)
}

func costFor(ratePerMB decimal.Decimal, bytes int64) decimal.Decimal {
	if bytes <= 0 {
		return decimal.Zero
	}
	mb := decimal.NewFromInt(bytes).Div(bytesPerMB)
	return ratePerMB.Mul(mb)
}

// RecordSpend adds the estimated cost of a confirmed upload to name's
// accumulator, rolling it to zero first if its period has elapsed.
// Returns the amount added. Emits one budget event per ceiling crossing.
func (l *Ledger) RecordSpend(name string, bytes int64) decimal.Decimal {
	var exceeded *domain.BudgetExceeded

	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		l.mu.Unlock()
		return decimal.Zero
	}

	now := l.now()
	if now.Sub(e.periodStart) > spendPeriod {
		e.spend = decimal.Zero
		e.periodStart = now
	}

	before := l.totalLocked()
	amount := costFor(e.rate, bytes)
	e.spend = e.spend.Add(amount)
	after := l.totalLocked()

	if !l.ceiling.IsZero() && before.Cmp(l.ceiling) <= 0 && after.Cmp(l.ceiling) > 0 {
		exceeded = &domain.BudgetExceeded{
			Spend:  after,
			Budget: l.ceiling,
			At:     now,
		}
	}
	l.mu.Unlock()

	if exceeded != nil {
		l.notifier.BudgetExceeded(*exceeded)
	}
	return amount
}

func (l *Ledger) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.entries {
		total = total.Add(e.spend)
	}
	return total
}

// TotalMonthlySpend sums every accumulator. Reads do not trigger
// rollover, so a total can run slightly stale between writes.
func (l *Ledger) TotalMonthlySpend() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

// SpendFor returns name's current accumulator value.
func (l *Ledger) SpendFor(name string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[name]; ok {
		return e.spend
	}
	return decimal.Zero
}

// Ceiling returns the shared monthly budget.
func (l *Ledger) Ceiling() decimal.Decimal {
	return l.ceiling
}

// WithinBudget reports whether total spend is at or under the ceiling.
// Always true with a zero ceiling.
func (l *Ledger) WithinBudget() bool {
	if l.ceiling.IsZero() {
		return true
	}
	return l.TotalMonthlySpend().Cmp(l.ceiling) <= 0
}

// CheapestHealthyProvider returns the healthy provider with the lowest
// estimated cost for an upload of the given size. The second return is
// false when no healthy provider has a ledger entry.
func (l *Ledger) CheapestHealthyProvider(bytes int64) (string, bool) {
	healthy := l.health.HealthyProviders()

	l.mu.Lock()
	defer l.mu.Unlock()

	best := ""
	var bestCost decimal.Decimal
	for _, name := range healthy {
		e, ok := l.entries[name]
		if !ok {
			continue
		}
		cost := costFor(e.rate, bytes)
		if best == "" || cost.Cmp(bestCost) < 0 {
			best = name
			bestCost = cost
		}
	}
	return best, best != ""
}

// ThrottleHint suggests a pause before the next upload based on budget
// pressure. Advisory: the engine never applies it itself.
func (l *Ledger) ThrottleHint() time.Duration {
	if l.ceiling.IsZero() {
		return 0
	}

	usage, _ := l.TotalMonthlySpend().Div(l.ceiling).Float64()
	switch {
	case usage < 0.5:
		return 0
	case usage < 0.75:
		return 100 * time.Millisecond
	case usage < 0.9:
		return 500 * time.Millisecond
	case usage < 1.0:
		return 2 * time.Second
	default:
		return 10 * time.Second
	}
}

// Snapshot exports every accumulator for persistence.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for name, e := range l.entries {
		out = append(out, Entry{
			Provider:    name,
			Spend:       e.spend,
			PeriodStart: e.periodStart,
		})
	}
	return out
}

// Restore loads persisted accumulators over registered entries. Unknown
// providers are skipped; rates are never restored, they come from
// registration.
func (l *Ledger) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, saved := range entries {
		e, ok := l.entries[saved.Provider]
		if !ok {
			continue
		}
		e.spend = saved.Spend
		if !saved.PeriodStart.IsZero() {
			e.periodStart = saved.PeriodStart
		}
	}
}
