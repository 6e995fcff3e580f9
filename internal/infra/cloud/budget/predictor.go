package budget

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Prediction holds spend-rate data for a provider or the whole fleet.
type Prediction struct {
	RatePerHour      decimal.Decimal
	TimeToExhaustion time.Duration
}

type spendSample struct {
	at     time.Time
	amount decimal.Decimal
}

// Predictor estimates when the shared budget runs out from the recent
// spend rate. Advisory, like the budget itself.
type Predictor struct {
	mu         sync.Mutex
	samples    map[string][]spendSample
	window     time.Duration
	maxSamples int
	now        func() time.Time
}

// NewPredictor creates a predictor with a one hour sampling window.
func NewPredictor() *Predictor {
	return &Predictor{
		samples:    make(map[string][]spendSample),
		window:     time.Hour,
		maxSamples: 128,
		now:        time.Now,
	}
}

// Record notes a spend amount for rate tracking.
func (p *Predictor) Record(name string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	samples := append(p.samples[name], spendSample{at: now, amount: amount})

	// Prune outside the window
	cutoff := now.Add(-p.window)
	filtered := samples[:0]
	for _, s := range samples {
		if s.at.After(cutoff) {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > p.maxSamples {
		filtered = filtered[len(filtered)-p.maxSamples:]
	}
	p.samples[name] = filtered
}

// Forget drops samples for an unregistered provider.
func (p *Predictor) Forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.samples, name)
}

// RatePerHour returns name's spend rate over the window. Empty name
// aggregates every provider.
func (p *Predictor) RatePerHour(name string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.window)
	total := decimal.Zero
	for provider, samples := range p.samples {
		if name != "" && provider != name {
			continue
		}
		for _, s := range samples {
			if s.at.After(cutoff) {
				total = total.Add(s.amount)
			}
		}
	}

	hours := decimal.NewFromFloat(p.window.Hours())
	return total.Div(hours)
}

// Predict estimates time until remaining budget is spent at the current
// aggregate rate. A zero duration means no recent activity or no budget
// left to burn through.
func (p *Predictor) Predict(remaining decimal.Decimal) Prediction {
	rate := p.RatePerHour("")
	pred := Prediction{RatePerHour: rate}

	if rate.Sign() <= 0 || remaining.Sign() <= 0 {
		return pred
	}

	hours, _ := remaining.Div(rate).Float64()
	pred.TimeToExhaustion = time.Duration(hours * float64(time.Hour))
	return pred
}
