package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
)

// ErrAllProvidersExhausted is returned when every healthy provider has
// been tried and failed its full retry budget.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// ExhaustedError reports a request that failed on every candidate. It
// unwraps to ErrAllProvidersExhausted.
type ExhaustedError struct {
	RequestID string
	Tried     []string
	Attempts  int
	Cause     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted: request %s after %d attempts across %s: %v",
		e.RequestID, e.Attempts, strings.Join(e.Tried, ", "), e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return ErrAllProvidersExhausted }

// Coordinator owns the end-to-end flow for one upload: pick a primary,
// run the retrier against it, then walk the remaining healthy providers
// in ascending priority rank.
type Coordinator struct {
	registry *provider.Registry
	selector *Selector
	retrier  *Retrier
	notifier domain.Notifier
}

// NewCoordinator wires the failover flow. A nil notifier discards
// failover events.
func NewCoordinator(registry *provider.Registry, selector *Selector, retrier *Retrier, notifier domain.Notifier) *Coordinator {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Coordinator{
		registry: registry,
		selector: selector,
		retrier:  retrier,
		notifier: notifier,
	}
}

// Upload delivers req to the first provider that accepts it. The same
// provider is never tried twice within one call, and no transport call is
// made when nothing is healthy. The returned receipt counts attempts
// across every provider tried.
func (c *Coordinator) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error) {
	start := time.Now()

	primary, err := c.selector.Select(req.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.ID, err)
	}

	tried := map[string]bool{primary.Name(): true}
	order := []string{primary.Name()}
	attempts := 0

	res, err := c.retrier.Run(ctx, primary, req)
	attempts += res.Attempts
	if err == nil {
		return receipt(req, primary, res, attempts, start, false), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	slog.Warn("Primary provider exhausted, failing over",
		"request", req.ID,
		"provider", primary.Name(),
		"priority", req.Priority,
		"error", err,
	)

	for _, candidate := range c.registry.CandidatesByPriority(tried) {
		tried[candidate.Name()] = true
		order = append(order, candidate.Name())

		res, err = c.retrier.Run(ctx, candidate, req)
		attempts += res.Attempts
		if err == nil {
			c.notifier.FailedOver(domain.Failover{
				RequestID: req.ID,
				From:      primary.Name(),
				To:        candidate.Name(),
				At:        time.Now(),
			})
			slog.Info("Failover succeeded",
				"request", req.ID,
				"from", primary.Name(),
				"to", candidate.Name(),
			)
			return receipt(req, candidate, res, attempts, start, true), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ExhaustedError{
		RequestID: req.ID,
		Tried:     order,
		Attempts:  attempts,
		Cause:     err,
	}
}

// BatchResult pairs one batch item with its terminal outcome.
type BatchResult struct {
	Request domain.UploadRequest
	Receipt *domain.UploadReceipt
	Err     error
}

// UploadBatch groups requests by the provider the selector picks for
// each, runs the groups concurrently, and falls back to Upload for any
// item that fails inside its group. A failed item never blocks the rest.
func (c *Coordinator) UploadBatch(ctx context.Context, reqs []domain.UploadRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	for i := range reqs {
		results[i].Request = reqs[i]
	}

	groups := make(map[string][]int)
	var unplaced []int
	for i, req := range reqs {
		p, err := c.selector.Select(req.SizeBytes)
		if err != nil {
			unplaced = append(unplaced, i)
			continue
		}
		groups[p.Name()] = append(groups[p.Name()], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, indexes := range groups {
		g.Go(func() error {
			p, ok := c.registry.Get(name)
			for _, i := range indexes {
				req := results[i].Request
				if ok {
					start := time.Now()
					res, err := c.retrier.Run(gctx, p, req)
					if err == nil {
						results[i].Receipt = receipt(req, p, res, res.Attempts, start, false)
						continue
					}
				}
				results[i].Receipt, results[i].Err = c.Upload(gctx, req)
			}
			return nil
		})
	}
	g.Wait()

	// Nothing was healthy at grouping time; Upload reports the error
	// per item.
	for _, i := range unplaced {
		results[i].Receipt, results[i].Err = c.Upload(ctx, results[i].Request)
	}

	return results
}

func receipt(req domain.UploadRequest, p provider.Provider, res AttemptResult, attempts int, start time.Time, failedOver bool) *domain.UploadReceipt {
	return &domain.UploadReceipt{
		RequestID:   req.ID,
		Provider:    p.Name(),
		Platform:    p.Platform(),
		Bytes:       res.BytesTransferred,
		DurationMs:  time.Since(start).Milliseconds(),
		Attempts:    attempts,
		Cost:        res.Cost,
		FailedOver:  failedOver,
		CompletedAt: time.Now(),
	}
}
