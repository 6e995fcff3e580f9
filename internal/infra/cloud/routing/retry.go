package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
)

// Policy bounds the per-provider retry loop.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	BaseDelay: 1 * time.Second,
	MaxDelay:  30 * time.Second,
}

// AttemptResult reports what one provider's attempt sequence produced.
// Attempts is filled even when the sequence ends exhausted.
type AttemptResult struct {
	BytesTransferred int64
	Attempts         int
	Cost             decimal.Decimal
}

// Retrier runs upload attempts against one provider at a time, backing
// off between failures and recording every attempt.
type Retrier struct {
	tracker *provider.Tracker
	budget  Budget
	policy  Policy
}

// NewRetrier creates a retrier. Zero policy fields fall back to
// DefaultPolicy.
func NewRetrier(tracker *provider.Tracker, budget Budget, policy Policy) *Retrier {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultPolicy.MaxDelay
	}
	return &Retrier{
		tracker: tracker,
		budget:  budget,
		policy:  policy,
	}
}

// backoffDelay returns the sleep before retry attempt k (0-based): the
// exponential delay plus up to 25% random jitter, capped at MaxDelay.
func backoffDelay(attempt int, p Policy) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * 0.25 * raw

	d := time.Duration(raw + jitter)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Run drives req against p until success or retry exhaustion. The request
// is taken by value; its retry counter advances only on this copy. Every
// attempt lands in the tracker, and a success records spend in the budget.
func (r *Retrier) Run(ctx context.Context, p provider.Provider, req domain.UploadRequest) (AttemptResult, error) {
	name := p.Name()
	result := AttemptResult{Cost: decimal.Zero}

	if !req.Deadline.IsZero() && time.Now().After(req.Deadline) {
		slog.Warn("Upload already past its deadline",
			"request", req.ID,
			"provider", name,
			"deadline", req.Deadline,
		)
	}

	var lastErr error
	for {
		result.Attempts++

		start := time.Now()
		res, err := p.Upload(ctx, req)
		elapsed := time.Since(start)

		r.tracker.RecordAttempt(name, err == nil, float64(elapsed.Milliseconds()))

		if err == nil {
			r.tracker.RecordTransfer(name, res.BytesTransferred)
			result.BytesTransferred = res.BytesTransferred
			result.Cost = r.budget.RecordSpend(name, res.BytesTransferred)
			return result, nil
		}

		lastErr = err
		slog.Debug("Upload attempt failed",
			"request", req.ID,
			"provider", name,
			"attempt", result.Attempts,
			"throttled", errors.Is(err, provider.ErrThrottled),
			"error", err,
		)

		if req.Retries >= req.MaxRetries {
			return result, fmt.Errorf("provider %s exhausted after %d attempts: %w", name, result.Attempts, lastErr)
		}

		delay := backoffDelay(req.Retries, r.policy)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
		req.Retries++
	}
}
