package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/uplink/internal/core/domain"
)

type staticHealth struct {
	names []string
}

func (s staticHealth) HealthyProviders() []string { return s.names }

type recordingNotifier struct {
	mu     sync.Mutex
	budget []domain.BudgetExceeded
}

func (r *recordingNotifier) HealthChanged(domain.HealthChange) {}
func (r *recordingNotifier) FailedOver(domain.Failover)       {}
func (r *recordingNotifier) BudgetExceeded(e domain.BudgetExceeded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = append(r.budget, e)
}

const mb = int64(1 << 20)

func TestLedger_EstimateCost(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(100), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)

	// 10 MB at the default aws rate of 0.023/MB
	cost := ledger.EstimateCost("aws-primary", 10*mb)
	if !cost.Equal(decimal.NewFromFloat(0.23)) {
		t.Errorf("Expected cost 0.23, got %s", cost)
	}

	if !ledger.EstimateCost("unknown", 10*mb).IsZero() {
		t.Error("Unknown provider should price at zero")
	}
	if !ledger.EstimateCost("aws-primary", 0).IsZero() {
		t.Error("Zero bytes should price at zero")
	}
}

func TestLedger_SpendAccumulates(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(100), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)

	ledger.RecordSpend("aws-primary", 10*mb)
	ledger.RecordSpend("aws-primary", 10*mb)

	total := ledger.TotalMonthlySpend()
	if !total.Equal(decimal.NewFromFloat(0.46)) {
		t.Errorf("Expected total 0.46 after two uploads, got %s", total)
	}
}

func TestLedger_PeriodReset(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(100), staticHealth{}, nil)

	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return current }

	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)
	ledger.RecordSpend("aws-primary", 10*mb)

	if !ledger.SpendFor("aws-primary").Equal(decimal.NewFromFloat(0.23)) {
		t.Fatalf("Expected spend 0.23, got %s", ledger.SpendFor("aws-primary"))
	}

	// 31 days later the accumulator starts over
	current = current.Add(31 * 24 * time.Hour)
	ledger.RecordSpend("aws-primary", 10*mb)

	spend := ledger.SpendFor("aws-primary")
	if !spend.Equal(decimal.NewFromFloat(0.23)) {
		t.Errorf("Expected spend 0.23 after period reset, got %s", spend)
	}
}

func TestLedger_WithinBudget(t *testing.T) {
	ledger := NewLedger(decimal.NewFromFloat(0.46), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)

	ledger.RecordSpend("aws-primary", 10*mb)
	if !ledger.WithinBudget() {
		t.Error("Expected within budget at 0.23 of 0.46")
	}

	// Exactly at the ceiling still counts as within
	ledger.RecordSpend("aws-primary", 10*mb)
	if !ledger.WithinBudget() {
		t.Error("Expected within budget at exactly the ceiling")
	}

	ledger.RecordSpend("aws-primary", 1*mb)
	if ledger.WithinBudget() {
		t.Error("Expected over budget past the ceiling")
	}
}

func TestLedger_CeilingCrossingEmitsOnce(t *testing.T) {
	rec := &recordingNotifier{}
	ledger := NewLedger(decimal.NewFromInt(1), staticHealth{}, rec)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)

	ledger.RecordSpend("aws-primary", 30*mb) // 0.69
	if len(rec.budget) != 0 {
		t.Fatal("No event expected below the ceiling")
	}

	ledger.RecordSpend("aws-primary", 20*mb) // 1.15, crosses
	if len(rec.budget) != 1 {
		t.Fatalf("Expected exactly one event at the crossing, got %d", len(rec.budget))
	}
	if !rec.budget[0].Spend.Equal(decimal.NewFromFloat(1.15)) {
		t.Errorf("Expected event spend 1.15, got %s", rec.budget[0].Spend)
	}
	if !rec.budget[0].Budget.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected event budget 1, got %s", rec.budget[0].Budget)
	}

	ledger.RecordSpend("aws-primary", 10*mb) // already over, no second event
	if len(rec.budget) != 1 {
		t.Errorf("Expected no further events past the ceiling, got %d", len(rec.budget))
	}
}

func TestLedger_CheapestHealthyProvider(t *testing.T) {
	health := &staticHealth{names: []string{"aws-primary", "azure-backup"}}
	ledger := NewLedger(decimal.NewFromInt(100), health, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.NewFromFloat(0.023))
	ledger.Register("azure-backup", domain.PlatformAzure, decimal.NewFromFloat(0.020))

	name, ok := ledger.CheapestHealthyProvider(10 * mb)
	if !ok || name != "azure-backup" {
		t.Errorf("Expected azure-backup at 0.020/MB, got %q", name)
	}

	health.names = []string{"aws-primary"}
	name, ok = ledger.CheapestHealthyProvider(10 * mb)
	if !ok || name != "aws-primary" {
		t.Errorf("Expected aws-primary as only healthy option, got %q", name)
	}

	health.names = nil
	if _, ok := ledger.CheapestHealthyProvider(10 * mb); ok {
		t.Error("Expected no candidate with nothing healthy")
	}
}

func TestLedger_ThrottleHint(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(10), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.NewFromInt(1))

	steps := []struct {
		bytes int64
		want  time.Duration
	}{
		{4 * mb, 0},                        // 40%
		{3 * mb, 100 * time.Millisecond},   // 70%
		{1 * mb, 500 * time.Millisecond},   // 80%
		{3 * mb / 2, 2 * time.Second},      // 95%
		{1 * mb, 10 * time.Second},         // over
	}
	for _, s := range steps {
		ledger.RecordSpend("aws-primary", s.bytes)
		if got := ledger.ThrottleHint(); got != s.want {
			t.Errorf("At spend %s: expected hint %v, got %v", ledger.TotalMonthlySpend(), s.want, got)
		}
	}

	unlimited := NewLedger(decimal.Zero, staticHealth{}, nil)
	if unlimited.ThrottleHint() != 0 {
		t.Error("Zero ceiling should never throttle")
	}
}

func TestLedger_SnapshotRestore(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(100), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.Zero)
	ledger.RecordSpend("aws-primary", 10*mb)

	saved := ledger.Snapshot()

	restored := NewLedger(decimal.NewFromInt(100), staticHealth{}, nil)
	restored.Register("aws-primary", domain.PlatformAWS, decimal.Zero)
	restored.Restore(saved)

	if !restored.SpendFor("aws-primary").Equal(decimal.NewFromFloat(0.23)) {
		t.Errorf("Expected restored spend 0.23, got %s", restored.SpendFor("aws-primary"))
	}

	// Entries for providers never registered are dropped
	restored.Restore([]Entry{{Provider: "ghost", Spend: decimal.NewFromInt(5)}})
	if !restored.TotalMonthlySpend().Equal(decimal.NewFromFloat(0.23)) {
		t.Error("Unregistered snapshot entries should be skipped")
	}
}

func TestLedger_Concurrency(t *testing.T) {
	ledger := NewLedger(decimal.NewFromInt(1000), staticHealth{}, nil)
	ledger.Register("aws-primary", domain.PlatformAWS, decimal.NewFromInt(1))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.RecordSpend("aws-primary", mb)
			ledger.TotalMonthlySpend()
			ledger.WithinBudget()
		}()
	}
	wg.Wait()

	total := ledger.TotalMonthlySpend()
	if !total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 100.00 total, got %s", total)
	}
}

func TestPredictor_Predict(t *testing.T) {
	p := NewPredictor()
	p.Record("aws-primary", decimal.NewFromInt(2))
	p.Record("azure-backup", decimal.NewFromInt(2))

	// 4.00/hour against 8.00 remaining is two hours out
	pred := p.Predict(decimal.NewFromInt(8))
	if !pred.RatePerHour.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected rate 4.00/h, got %s", pred.RatePerHour)
	}
	if pred.TimeToExhaustion != 2*time.Hour {
		t.Errorf("Expected exhaustion in 2h, got %v", pred.TimeToExhaustion)
	}

	if NewPredictor().Predict(decimal.NewFromInt(8)).TimeToExhaustion != 0 {
		t.Error("No samples should mean no estimate")
	}
}
