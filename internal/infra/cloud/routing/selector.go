// Package routing picks providers for uploads and drives the retry and
// failover flow around them.
//
// This package contains:
//   - Selector: load-balancing strategies over healthy providers
//   - Retrier: per-provider attempt loop with exponential backoff
//   - Coordinator: failover orchestration across providers
package routing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/infra/cloud/provider"
)

// ErrNoProviderAvailable is returned when no registered provider is
// currently healthy.
var ErrNoProviderAvailable = errors.New("no provider available")

// Strategy defines how the selector balances load across providers.
type Strategy string

const (
	StrategyRoundRobin      Strategy = "round_robin"      // Healthy-only cycle, persistent index
	StrategyLeastLoaded     Strategy = "least_loaded"     // Fewest selections so far
	StrategyFastestResponse Strategy = "fastest_response" // Lowest rolling average latency
	StrategyCostOptimized   Strategy = "cost_optimized"   // Cheapest per the ledger
)

// ParseStrategy maps a config string onto a Strategy. Empty input means
// round robin.
func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", StrategyRoundRobin:
		return StrategyRoundRobin, nil
	case StrategyLeastLoaded, StrategyFastestResponse, StrategyCostOptimized:
		return s, nil
	default:
		return StrategyRoundRobin, fmt.Errorf("unknown selection strategy %q", raw)
	}
}

// Budget is the cost surface routing consults. *budget.Ledger satisfies it.
type Budget interface {
	CheapestHealthyProvider(bytes int64) (string, bool)
	RecordSpend(name string, bytes int64) decimal.Decimal
}

// Selector chooses a provider for each new upload. It never returns an
// unhealthy provider; callers see ErrNoProviderAvailable instead.
type Selector struct {
	mu        sync.Mutex
	registry  *provider.Registry
	tracker   *provider.Tracker
	budget    Budget
	strategy  Strategy
	costFirst bool
	rrIndex   int
	loads     map[string]int64
}

// NewSelector creates a selector with the round-robin strategy.
func NewSelector(registry *provider.Registry, tracker *provider.Tracker, budget Budget) *Selector {
	return &Selector{
		registry: registry,
		tracker:  tracker,
		budget:   budget,
		strategy: StrategyRoundRobin,
		loads:    make(map[string]int64),
	}
}

// SetStrategy switches the balancing strategy at runtime.
func (s *Selector) SetStrategy(strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strategy
}

// Strategy returns the active strategy.
func (s *Selector) Strategy() Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// SetCostFirst makes Select try cost optimization before the configured
// strategy.
func (s *Selector) SetCostFirst(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costFirst = enabled
}

// Select picks a provider for an upload of the given size. With cost-first
// enabled it prefers the cheapest healthy candidate and falls back to the
// configured strategy when the ledger has none.
func (s *Selector) Select(bytes int64) (provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.costFirst {
		if p, err := s.costOptimized(bytes); err == nil {
			s.loads[p.Name()]++
			return p, nil
		}
	}

	var (
		p   provider.Provider
		err error
	)
	switch s.strategy {
	case StrategyLeastLoaded:
		p, err = s.leastLoaded()
	case StrategyFastestResponse:
		p, err = s.fastestResponse()
	case StrategyCostOptimized:
		p, err = s.costOptimized(bytes)
	default:
		p, err = s.roundRobin()
	}
	if err != nil {
		return nil, err
	}

	s.loads[p.Name()]++
	return p, nil
}

// Forget drops the load counter for an unregistered provider.
func (s *Selector) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loads, name)
}

// Loads returns a copy of the per-provider selection counters.
func (s *Selector) Loads() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.loads))
	for name, n := range s.loads {
		out[name] = n
	}
	return out
}

// healthyInOrder lists healthy providers in registration order.
func (s *Selector) healthyInOrder() []provider.Provider {
	names := s.registry.Names()

	out := make([]provider.Provider, 0, len(names))
	for _, name := range names {
		if !s.tracker.IsHealthy(name) {
			continue
		}
		if p, ok := s.registry.Get(name); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Selector) roundRobin() (provider.Provider, error) {
	healthy := s.healthyInOrder()
	if len(healthy) == 0 {
		return nil, ErrNoProviderAvailable
	}

	idx := s.rrIndex % len(healthy)
	s.rrIndex = idx + 1
	return healthy[idx], nil
}

func (s *Selector) leastLoaded() (provider.Provider, error) {
	healthy := s.healthyInOrder()
	if len(healthy) == 0 {
		return nil, ErrNoProviderAvailable
	}

	best := healthy[0]
	for _, p := range healthy[1:] {
		if s.loads[p.Name()] < s.loads[best.Name()] {
			best = p
		}
	}
	return best, nil
}

func (s *Selector) fastestResponse() (provider.Provider, error) {
	healthy := s.healthyInOrder()
	if len(healthy) == 0 {
		return nil, ErrNoProviderAvailable
	}

	best := healthy[0]
	bestAvg := s.avgResponseMs(best.Name())
	for _, p := range healthy[1:] {
		if avg := s.avgResponseMs(p.Name()); avg < bestAvg {
			best, bestAvg = p, avg
		}
	}
	return best, nil
}

func (s *Selector) avgResponseMs(name string) float64 {
	st, ok := s.tracker.Status(name)
	if !ok {
		return math.MaxFloat64
	}
	return st.AvgResponseMs
}

func (s *Selector) costOptimized(bytes int64) (provider.Provider, error) {
	name, ok := s.budget.CheapestHealthyProvider(bytes)
	if !ok {
		return nil, ErrNoProviderAvailable
	}
	p, ok := s.registry.Get(name)
	if !ok {
		return nil, ErrNoProviderAvailable
	}
	return p, nil
}
