package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/uplink/internal/core/domain"
)

var (
	// ErrAlreadyRegistered is returned for duplicate provider names.
	ErrAlreadyRegistered = errors.New("provider already registered")

	// ErrNotRegistered is returned when an operation names an unknown
	// provider.
	ErrNotRegistered = errors.New("provider not registered")
)

// Registry holds every configured provider in registration order together
// with its priority rank. Status bookkeeping is delegated to the Tracker.
type Registry struct {
	mu           sync.RWMutex
	tracker      *Tracker
	providers    map[string]Provider
	priorities   map[string]int
	order        []string
	probeTimeout time.Duration
}

// NewRegistry creates an empty registry writing statuses through tracker.
func NewRegistry(tracker *Tracker) *Registry {
	return &Registry{
		tracker:      tracker,
		providers:    make(map[string]Provider),
		priorities:   make(map[string]int),
		probeTimeout: 10 * time.Second,
	}
}

// SetProbeTimeout overrides the connectivity probe deadline.
func (r *Registry) SetProbeTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.probeTimeout = d
	}
}

// Register adds p under the given priority rank and probes it once. The
// status starts offline; a successful probe upgrades it immediately.
func (r *Registry) Register(ctx context.Context, p Provider, priority int) error {
	name := p.Name()

	r.mu.Lock()
	if _, exists := r.providers[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.providers[name] = p
	r.priorities[name] = priority
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.tracker.Init(name, p.Platform())
	r.probe(ctx, p)

	slog.Info("Provider registered",
		"provider", name,
		"platform", p.Platform(),
		"priority", priority,
	)
	return nil
}

// Unregister removes name and releases its status. Cost entries and
// selector counters are released by the engine that owns them.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	p, exists := r.providers[name]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	delete(r.providers, name)
	delete(r.priorities, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.tracker.Remove(name)
	if err := p.Close(); err != nil {
		slog.Warn("Failed to close provider", "provider", name, "error", err)
	}

	slog.Info("Provider unregistered", "provider", name)
	return nil
}

// Reconfigure rebuilds name from s and re-probes it. A failed probe
// leaves the provider offline with the new configuration in place; there
// is no rollback.
func (r *Registry) Reconfigure(ctx context.Context, name string, s Settings) error {
	r.mu.RLock()
	old, exists := r.providers[name]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	if s.Name == "" {
		s.Name = name
	}
	if s.Name != name {
		return fmt.Errorf("reconfigure cannot rename %s to %s", name, s.Name)
	}

	next, err := New(ctx, s)
	if err != nil {
		return fmt.Errorf("rebuild provider %s: %w", name, err)
	}

	r.mu.Lock()
	r.providers[name] = next
	r.mu.Unlock()

	if err := old.Close(); err != nil {
		slog.Warn("Failed to close replaced provider", "provider", name, "error", err)
	}
	r.probe(ctx, next)

	slog.Info("Provider reconfigured", "provider", name)
	return nil
}

func (r *Registry) probe(ctx context.Context, p Provider) {
	r.mu.RLock()
	timeout := r.probeTimeout
	r.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Probe(probeCtx); err != nil {
		slog.Warn("Provider probe failed", "provider", p.Name(), "error", err)
		r.tracker.MarkProbe(p.Name(), false)
		return
	}
	r.tracker.MarkProbe(p.Name(), true)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Priority returns the priority rank for name (lower ranks fail over
// first).
func (r *Registry) Priority(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priorities[name]
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// ListStatuses returns status snapshots in registration order.
func (r *Registry) ListStatuses() []domain.ProviderStatus {
	names := r.Names()

	out := make([]domain.ProviderStatus, 0, len(names))
	for _, name := range names {
		if st, ok := r.tracker.Status(name); ok {
			out = append(out, st)
		}
	}
	return out
}

// CandidatesByPriority returns healthy providers in ascending priority
// rank, skipping names in exclude. Ties keep registration order.
func (r *Registry) CandidatesByPriority(exclude map[string]bool) []Provider {
	type ranked struct {
		p    Provider
		rank int
	}

	r.mu.RLock()
	candidates := make([]ranked, 0, len(r.order))
	for _, name := range r.order {
		if exclude[name] {
			continue
		}
		if !r.tracker.IsHealthy(name) {
			continue
		}
		candidates = append(candidates, ranked{p: r.providers[name], rank: r.priorities[name]})
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rank < candidates[j].rank
	})

	out := make([]Provider, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out
}
