package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
)

type fakeProvider struct {
	name     string
	probeErr error

	mu        sync.Mutex
	calls     int
	failFirst int   // fail this many uploads before succeeding
	alwaysErr error // non-nil fails every upload
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) Platform() domain.Platform   { return domain.PlatformCustom }
func (f *fakeProvider) Settings() provider.Settings { return provider.Settings{Name: f.name} }
func (f *fakeProvider) Probe(context.Context) error { return f.probeErr }
func (f *fakeProvider) Close() error                { return nil }

func (f *fakeProvider) Upload(_ context.Context, req domain.UploadRequest) (*provider.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.alwaysErr != nil {
		return nil, f.alwaysErr
	}
	if f.calls <= f.failFirst {
		return nil, errors.New("upload refused")
	}
	return &provider.UploadResult{BytesTransferred: req.SizeBytes}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBudget struct {
	mu       sync.Mutex
	cheapest string
	spends   []string
}

func (b *fakeBudget) CheapestHealthyProvider(int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cheapest, b.cheapest != ""
}

func (b *fakeBudget) RecordSpend(name string, bytes int64) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spends = append(b.spends, name)
	return decimal.Zero
}

func (b *fakeBudget) spendCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.spends)
}

// newBench registers the fakes with priorities 1, 2, 3... in order.
func newBench(t *testing.T, fakes ...*fakeProvider) (*provider.Registry, *provider.Tracker, *Selector, *fakeBudget) {
	t.Helper()

	tracker := provider.NewTracker(nil)
	registry := provider.NewRegistry(tracker)
	budget := &fakeBudget{}

	for i, f := range fakes {
		if err := registry.Register(context.Background(), f, i+1); err != nil {
			t.Fatalf("register %s: %v", f.name, err)
		}
	}
	return registry, tracker, NewSelector(registry, tracker, budget), budget
}

func TestSelector_RoundRobin(t *testing.T) {
	_, _, sel, _ := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
		&fakeProvider{name: "gamma"},
	)

	want := []string{"alpha", "beta", "gamma", "alpha", "beta", "gamma"}
	for i, expected := range want {
		p, err := sel.Select(1024)
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if p.Name() != expected {
			t.Errorf("Select %d = %s, want %s", i, p.Name(), expected)
		}
	}

	for name, n := range sel.Loads() {
		if n != 2 {
			t.Errorf("Expected 2 selections for %s, got %d", name, n)
		}
	}
}

func TestSelector_RoundRobinSkipsUnhealthy(t *testing.T) {
	_, tracker, sel, _ := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
		&fakeProvider{name: "gamma"},
	)
	tracker.MarkProbe("gamma", false)

	want := []string{"alpha", "beta", "alpha", "beta"}
	for i, expected := range want {
		p, err := sel.Select(1024)
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if p.Name() != expected {
			t.Errorf("Select %d = %s, want %s", i, p.Name(), expected)
		}
	}
}

func TestSelector_NoneHealthy(t *testing.T) {
	down := errors.New("unreachable")
	_, _, sel, _ := newBench(t,
		&fakeProvider{name: "alpha", probeErr: down},
		&fakeProvider{name: "beta", probeErr: down},
	)

	if _, err := sel.Select(1024); !errors.Is(err, ErrNoProviderAvailable) {
		t.Errorf("Expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestSelector_LeastLoaded(t *testing.T) {
	_, _, sel, _ := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
		&fakeProvider{name: "gamma"},
	)
	sel.SetStrategy(StrategyLeastLoaded)

	// Ties break by registration order, then the counter evens out
	want := []string{"alpha", "beta", "gamma", "alpha"}
	for i, expected := range want {
		p, err := sel.Select(1024)
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if p.Name() != expected {
			t.Errorf("Select %d = %s, want %s", i, p.Name(), expected)
		}
	}
}

func TestSelector_FastestResponse(t *testing.T) {
	_, tracker, sel, _ := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
		&fakeProvider{name: "gamma"},
	)
	sel.SetStrategy(StrategyFastestResponse)

	tracker.RecordAttempt("alpha", true, 300)
	tracker.RecordAttempt("beta", true, 50)
	tracker.RecordAttempt("gamma", true, 120)

	p, err := sel.Select(1024)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "beta" {
		t.Errorf("Expected beta at 50ms, got %s", p.Name())
	}
}

func TestSelector_CostOptimized(t *testing.T) {
	_, _, sel, budget := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
	)
	sel.SetStrategy(StrategyCostOptimized)

	budget.cheapest = "beta"
	p, err := sel.Select(1024)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "beta" {
		t.Errorf("Expected the ledger's pick, got %s", p.Name())
	}

	budget.cheapest = ""
	if _, err := sel.Select(1024); !errors.Is(err, ErrNoProviderAvailable) {
		t.Errorf("Expected ErrNoProviderAvailable with an empty ledger, got %v", err)
	}
}

func TestSelector_CostFirstFallsBack(t *testing.T) {
	_, _, sel, budget := newBench(t,
		&fakeProvider{name: "alpha"},
		&fakeProvider{name: "beta"},
	)
	sel.SetCostFirst(true)

	budget.cheapest = "beta"
	p, err := sel.Select(1024)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "beta" {
		t.Errorf("Expected cost-first pick beta, got %s", p.Name())
	}

	// Without a ledger candidate the configured strategy takes over
	budget.cheapest = ""
	p, err = sel.Select(1024)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "alpha" {
		t.Errorf("Expected round-robin fallback alpha, got %s", p.Name())
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		raw     string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyRoundRobin, false},
		{"round_robin", StrategyRoundRobin, false},
		{"LEAST_LOADED", StrategyLeastLoaded, false},
		{" fastest_response ", StrategyFastestResponse, false},
		{"cost_optimized", StrategyCostOptimized, false},
		{"fanciest", StrategyRoundRobin, true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.raw)
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}
