package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/budget"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
	"github.com/vietddude/uplink/internal/infra/cloud/routing"
	"github.com/vietddude/uplink/internal/metrics"
)

// JournalSink persists terminal upload outcomes. Failures are logged,
// never surfaced to the uploader.
type JournalSink interface {
	RecordUpload(ctx context.Context, rec domain.UploadRecord) error
}

// DeadLetterSink captures requests every provider refused.
type DeadLetterSink interface {
	Push(ctx context.Context, dl domain.DeadLetter) error
}

// EngineConfig composes an Engine. Zero values mean: unlimited budget,
// round-robin selection, default retry policy, no journal, no dead
// letters, events discarded.
type EngineConfig struct {
	BudgetCeiling decimal.Decimal
	Strategy      Strategy
	CostFirst     bool
	Retry         Policy

	// MaxRetries backs requests that leave their own limit unset.
	MaxRetries int

	ProbeTimeout time.Duration
	Notifier     domain.Notifier
	Journal      JournalSink
	DeadLetters  DeadLetterSink
}

// Engine is the high-level interface for delivering uploads. Construct
// one per process and share it; every method is safe for concurrent use.
type Engine struct {
	registry    *provider.Registry
	tracker     *provider.Tracker
	ledger      *budget.Ledger
	predictor   *budget.Predictor
	selector    *routing.Selector
	coordinator *routing.Coordinator
	journal     JournalSink
	deadLetters DeadLetterSink
	maxRetries  int
}

// NewEngine wires the registry, tracker, ledger, selector, retrier and
// coordinator into one engine instance.
func NewEngine(cfg EngineConfig) *Engine {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}

	tracker := provider.NewTracker(notifier)
	registry := provider.NewRegistry(tracker)
	if cfg.ProbeTimeout > 0 {
		registry.SetProbeTimeout(cfg.ProbeTimeout)
	}

	ledger := budget.NewLedger(cfg.BudgetCeiling, tracker, notifier)
	selector := routing.NewSelector(registry, tracker, ledger)
	if cfg.Strategy != "" {
		selector.SetStrategy(cfg.Strategy)
	}
	selector.SetCostFirst(cfg.CostFirst)

	retrier := routing.NewRetrier(tracker, ledger, cfg.Retry)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	metrics.BudgetCeiling.Set(cfg.BudgetCeiling.InexactFloat64())

	return &Engine{
		registry:    registry,
		tracker:     tracker,
		ledger:      ledger,
		predictor:   budget.NewPredictor(),
		selector:    selector,
		coordinator: routing.NewCoordinator(registry, selector, retrier, notifier),
		journal:     cfg.Journal,
		deadLetters: cfg.DeadLetters,
		maxRetries:  maxRetries,
	}
}

// Registration couples transport settings with engine-level placement.
type Registration struct {
	Settings Settings

	// Priority is the failover rank; lower ranks are tried first.
	Priority int

	// RatePerMB prices uploads for the ledger. Zero falls back to the
	// platform default.
	RatePerMB decimal.Decimal
}

// Register builds the transport for reg and adds it to the fleet. The
// new provider starts offline and is probed once synchronously.
func (e *Engine) Register(ctx context.Context, reg Registration) error {
	p, err := provider.New(ctx, reg.Settings)
	if err != nil {
		return fmt.Errorf("register %s: %w", reg.Settings.Name, err)
	}

	if err := e.registry.Register(ctx, p, reg.Priority); err != nil {
		if cerr := p.Close(); cerr != nil {
			slog.Warn("Failed to close rejected provider", "provider", reg.Settings.Name, "error", cerr)
		}
		return err
	}

	e.ledger.Register(p.Name(), p.Platform(), reg.RatePerMB)
	return nil
}

// Unregister removes name and releases its status, spend accumulator and
// selection counters.
func (e *Engine) Unregister(name string) error {
	if err := e.registry.Unregister(name); err != nil {
		return err
	}
	e.ledger.Remove(name)
	e.selector.Forget(name)
	e.predictor.Forget(name)
	return nil
}

// Reconfigure replaces name's transport settings and re-probes it. A
// failed probe leaves the provider offline; the new settings stay.
func (e *Engine) Reconfigure(ctx context.Context, name string, s Settings) error {
	return e.registry.Reconfigure(ctx, name, s)
}

// Upload delivers one request, failing over across providers as needed.
// An empty request ID is assigned here.
func (e *Engine) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SizeBytes == 0 {
		req.SizeBytes = int64(len(req.Payload))
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = e.maxRetries
	}

	receipt, err := e.coordinator.Upload(ctx, req)
	if err != nil {
		e.recordFailure(ctx, req, err)
		return nil, err
	}

	e.recordDelivery(ctx, req, receipt)
	return receipt, nil
}

// UploadBatch delivers a batch grouped by selected provider. Items that
// fail inside their group fall back to individual failover; results come
// back in input order.
func (e *Engine) UploadBatch(ctx context.Context, reqs []domain.UploadRequest) []BatchResult {
	for i := range reqs {
		if reqs[i].ID == "" {
			reqs[i].ID = uuid.NewString()
		}
		if reqs[i].SizeBytes == 0 {
			reqs[i].SizeBytes = int64(len(reqs[i].Payload))
		}
		if reqs[i].MaxRetries == 0 {
			reqs[i].MaxRetries = e.maxRetries
		}
	}

	results := e.coordinator.UploadBatch(ctx, reqs)
	for _, res := range results {
		if res.Err != nil {
			e.recordFailure(ctx, res.Request, res.Err)
			continue
		}
		e.recordDelivery(ctx, res.Request, res.Receipt)
	}
	return results
}

func (e *Engine) recordDelivery(ctx context.Context, req domain.UploadRequest, r *domain.UploadReceipt) {
	metrics.UploadsTotal.WithLabelValues(r.Provider, string(domain.UploadDelivered)).Inc()
	metrics.UploadBytes.WithLabelValues(r.Provider).Add(float64(r.Bytes))
	metrics.UploadDuration.WithLabelValues(r.Provider).Observe(float64(r.DurationMs) / 1000)
	metrics.UploadAttempts.WithLabelValues(r.Provider).Observe(float64(r.Attempts))
	e.predictor.Record(r.Provider, r.Cost)

	if e.journal == nil {
		return
	}
	rec := domain.UploadRecord{
		ID:         uuid.NewString(),
		RequestID:  r.RequestID,
		Provider:   r.Provider,
		Platform:   r.Platform,
		RemotePath: req.RemotePath,
		SizeBytes:  r.Bytes,
		Cost:       r.Cost,
		Outcome:    domain.UploadDelivered,
		Attempts:   r.Attempts,
		DurationMs: r.DurationMs,
		FailedOver: r.FailedOver,
		CreatedAt:  r.CompletedAt,
	}
	if err := e.journal.RecordUpload(ctx, rec); err != nil {
		slog.Warn("Failed to journal upload", "request", r.RequestID, "error", err)
	}
}

func (e *Engine) recordFailure(ctx context.Context, req domain.UploadRequest, cause error) {
	// Cancellation is the caller's decision, not a provider failure.
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return
	}

	var tried []string
	attempts := 0
	var ex *ExhaustedError
	if errors.As(cause, &ex) {
		tried = ex.Tried
		attempts = ex.Attempts
	}

	last := "none"
	if len(tried) > 0 {
		last = tried[len(tried)-1]
	}
	metrics.UploadsTotal.WithLabelValues(last, string(domain.UploadExhausted)).Inc()

	if e.journal != nil {
		rec := domain.UploadRecord{
			ID:         uuid.NewString(),
			RequestID:  req.ID,
			RemotePath: req.RemotePath,
			SizeBytes:  req.SizeBytes,
			Cost:       decimal.Zero,
			Outcome:    domain.UploadExhausted,
			Attempts:   attempts,
			Error:      cause.Error(),
			CreatedAt:  time.Now(),
		}
		if len(tried) > 0 {
			rec.Provider = tried[len(tried)-1]
		}
		if err := e.journal.RecordUpload(ctx, rec); err != nil {
			slog.Warn("Failed to journal exhausted upload", "request", req.ID, "error", err)
		}
	}

	if e.deadLetters != nil {
		dl := domain.DeadLetter{
			ID:         uuid.NewString(),
			RequestID:  req.ID,
			RemotePath: req.RemotePath,
			SizeBytes:  req.SizeBytes,
			Priority:   req.Priority,
			Providers:  tried,
			Error:      cause.Error(),
			FailedAt:   time.Now(),
		}
		if err := e.deadLetters.Push(ctx, dl); err != nil {
			slog.Warn("Failed to dead-letter upload", "request", req.ID, "error", err)
			return
		}
		metrics.DeadLettersTotal.Inc()
	}
}

// SetStrategy switches the selection strategy at runtime.
func (e *Engine) SetStrategy(s Strategy) {
	e.selector.SetStrategy(s)
}

// Strategy returns the active selection strategy.
func (e *Engine) Strategy() Strategy {
	return e.selector.Strategy()
}

// Providers returns registered provider names in registration order.
func (e *Engine) Providers() []string {
	return e.registry.Names()
}

// GetProviderStatuses returns status snapshots in registration order.
func (e *Engine) GetProviderStatuses() []domain.ProviderStatus {
	return e.registry.ListStatuses()
}

// OverallHealth classifies the fleet from the ratio of healthy providers.
func (e *Engine) OverallHealth() domain.HealthState {
	return e.tracker.OverallHealth()
}

// EstimateCost prices an upload against a provider's rate.
func (e *Engine) EstimateCost(name string, bytes int64) decimal.Decimal {
	return e.ledger.EstimateCost(name, bytes)
}

// TotalMonthlySpend sums the current period's spend across providers.
func (e *Engine) TotalMonthlySpend() decimal.Decimal {
	return e.ledger.TotalMonthlySpend()
}

// BudgetCeiling returns the shared monthly budget.
func (e *Engine) BudgetCeiling() decimal.Decimal {
	return e.ledger.Ceiling()
}

// WithinBudget reports whether spend is at or under the ceiling.
func (e *Engine) WithinBudget() bool {
	return e.ledger.WithinBudget()
}

// ThrottleHint suggests a pause before the next upload based on budget
// pressure. Advisory; the engine never applies it itself.
func (e *Engine) ThrottleHint() time.Duration {
	return e.ledger.ThrottleHint()
}

// Predict estimates when the remaining budget runs out at the current
// spend rate.
func (e *Engine) Predict() Prediction {
	remaining := e.ledger.Ceiling().Sub(e.ledger.TotalMonthlySpend())
	return e.predictor.Predict(remaining)
}

// ProviderLoads returns the per-provider selection counters.
func (e *Engine) ProviderLoads() map[string]int64 {
	return e.selector.Loads()
}

// LedgerSnapshot exports spend accumulators for persistence.
func (e *Engine) LedgerSnapshot() []LedgerEntry {
	return e.ledger.Snapshot()
}

// RestoreLedger loads persisted spend accumulators over registered
// providers.
func (e *Engine) RestoreLedger(entries []LedgerEntry) {
	e.ledger.Restore(entries)
}
