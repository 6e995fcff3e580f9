package provider

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/uplink/internal/core/domain"
)

// Classification thresholds (success rate, percent).
const (
	optimalRate  = 90.0
	degradedRate = 70.0
	criticalRate = 50.0
)

// Tracker owns every ProviderStatus. All attempt outcomes flow through
// RecordAttempt; nothing else writes a status.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]*domain.ProviderStatus
	notifier domain.Notifier
	now      func() time.Time
}

// NewTracker creates a tracker reporting classification changes to
// notifier. A nil notifier discards events.
func NewTracker(notifier domain.Notifier) *Tracker {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Tracker{
		statuses: make(map[string]*domain.ProviderStatus),
		notifier: notifier,
		now:      time.Now,
	}
}

// HealthFor classifies a success rate. Health depends on the rate alone;
// latency never demotes a provider.
func HealthFor(successRate float64) domain.HealthState {
	switch {
	case successRate > optimalRate:
		return domain.HealthOptimal
	case successRate > degradedRate:
		return domain.HealthDegraded
	case successRate > criticalRate:
		return domain.HealthCritical
	default:
		return domain.HealthOffline
	}
}

// QualityFor rates latency and success rate together. Descriptive only.
func QualityFor(avgResponseMs, successRate float64) domain.QualityTier {
	switch {
	case avgResponseMs < 100 && successRate > 95:
		return domain.QualityExcellent
	case avgResponseMs < 200 && successRate > 90:
		return domain.QualityGood
	case avgResponseMs < 500 && successRate > 80:
		return domain.QualityFair
	default:
		return domain.QualityPoor
	}
}

// Init creates the status record for a newly registered provider. New
// providers start offline until a probe or attempt says otherwise.
func (t *Tracker) Init(name string, platform domain.Platform) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.statuses[name]; exists {
		return
	}
	t.statuses[name] = &domain.ProviderStatus{
		Provider:      name,
		Platform:      platform,
		Health:        domain.HealthOffline,
		Quality:       domain.QualityPoor,
		Available:     false,
		LastCheckedAt: t.now(),
	}
}

// Remove drops the status for name.
func (t *Tracker) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, name)
}

// RecordAttempt folds one attempt outcome into the provider's status.
// The response time blends into the rolling average as (old+new)/2; the
// first sample seeds it. Emits at most one health-change notification,
// after the lock is released.
func (t *Tracker) RecordAttempt(name string, success bool, responseTimeMs float64) {
	var change *domain.HealthChange

	t.mu.Lock()
	st, ok := t.statuses[name]
	if !ok {
		t.mu.Unlock()
		return
	}

	st.TotalAttempts++
	if !success {
		st.FailedAttempts++
	}
	if st.TotalAttempts == 1 {
		st.AvgResponseMs = responseTimeMs
	} else {
		st.AvgResponseMs = (st.AvgResponseMs + responseTimeMs) / 2
	}
	st.SuccessRate = float64(st.TotalAttempts-st.FailedAttempts) / float64(st.TotalAttempts) * 100
	st.Quality = QualityFor(st.AvgResponseMs, st.SuccessRate)
	st.LastCheckedAt = t.now()

	if next := HealthFor(st.SuccessRate); next != st.Health {
		change = &domain.HealthChange{
			Provider:    name,
			From:        st.Health,
			To:          next,
			SuccessRate: st.SuccessRate,
			At:          st.LastCheckedAt,
		}
		st.Health = next
		st.Available = next.Usable()
	}
	t.mu.Unlock()

	if change != nil {
		t.notifier.HealthChanged(*change)
	}
}

// RecordTransfer adds delivered bytes to the provider's running total.
func (t *Tracker) RecordTransfer(name string, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.statuses[name]; ok && bytes > 0 {
		st.BytesTransferred += uint64(bytes)
	}
}

// MarkProbe applies a connectivity probe result. Probes adjust the
// classification directly and do not count as attempts.
func (t *Tracker) MarkProbe(name string, ok bool) {
	var change *domain.HealthChange

	t.mu.Lock()
	st, found := t.statuses[name]
	if !found {
		t.mu.Unlock()
		return
	}

	next := domain.HealthOffline
	if ok {
		next = domain.HealthOptimal
	}
	st.LastCheckedAt = t.now()
	if next != st.Health {
		change = &domain.HealthChange{
			Provider:    name,
			From:        st.Health,
			To:          next,
			SuccessRate: st.SuccessRate,
			At:          st.LastCheckedAt,
		}
		st.Health = next
		st.Available = next.Usable()
	}
	t.mu.Unlock()

	if change != nil {
		t.notifier.HealthChanged(*change)
	}
}

// IsHealthy reports whether name can take new uploads.
func (t *Tracker) IsHealthy(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[name]
	return ok && st.Available
}

// HealthyProviders returns the names of every usable provider, sorted.
func (t *Tracker) HealthyProviders() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.statuses))
	for name, st := range t.statuses {
		if st.Available {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Status returns a snapshot of one provider's status.
func (t *Tracker) Status(name string) (domain.ProviderStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[name]
	if !ok {
		return domain.ProviderStatus{}, false
	}
	return *st, true
}

// Statuses returns a snapshot of every status keyed by provider name.
func (t *Tracker) Statuses() map[string]domain.ProviderStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]domain.ProviderStatus, len(t.statuses))
	for name, st := range t.statuses {
		out[name] = *st
	}
	return out
}

// OverallHealth classifies the fleet by its ratio of usable providers.
// Zero registered providers reads as offline.
func (t *Tracker) OverallHealth() domain.HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := len(t.statuses)
	if total == 0 {
		return domain.HealthOffline
	}

	healthy := 0
	for _, st := range t.statuses {
		if st.Available {
			healthy++
		}
	}

	ratio := float64(healthy) / float64(total)
	switch {
	case ratio >= 0.8:
		return domain.HealthOptimal
	case ratio >= 0.5:
		return domain.HealthDegraded
	case healthy > 0:
		return domain.HealthCritical
	default:
		return domain.HealthOffline
	}
}
