package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/uplink/internal/core/domain"
)

const testMB = int64(1 << 20)

var testRetry = Policy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

// blobServer answers probes on HEAD and PUTs with the given status.
func blobServer(putStatus int, puts *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			if puts != nil {
				puts.Add(1)
			}
			w.Header().Set("ETag", `"d41d8cd9"`)
			w.WriteHeader(putStatus)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func restSettings(name, endpoint string) Settings {
	return Settings{
		Name:      name,
		Platform:  domain.PlatformCustom,
		Transport: domain.TransportREST,
		Endpoint:  endpoint,
		Bucket:    "blobs",
		Token:     "sekret",
	}
}

type memJournal struct {
	mu   sync.Mutex
	recs []domain.UploadRecord
}

func (j *memJournal) RecordUpload(_ context.Context, rec domain.UploadRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) records() []domain.UploadRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.UploadRecord(nil), j.recs...)
}

type memDeadLetters struct {
	mu    sync.Mutex
	items []domain.DeadLetter
}

func (d *memDeadLetters) Push(_ context.Context, dl domain.DeadLetter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, dl)
	return nil
}

func (d *memDeadLetters) all() []domain.DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeadLetter(nil), d.items...)
}

type budgetEvents struct {
	mu     sync.Mutex
	events []domain.BudgetExceeded
}

func (b *budgetEvents) HealthChanged(domain.HealthChange) {}
func (b *budgetEvents) FailedOver(domain.Failover)        {}
func (b *budgetEvents) BudgetExceeded(e domain.BudgetExceeded) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *budgetEvents) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestEngine_UploadDelivers(t *testing.T) {
	srv := blobServer(http.StatusOK, nil)
	defer srv.Close()

	journal := &memJournal{}
	engine := NewEngine(EngineConfig{
		BudgetCeiling: decimal.NewFromInt(100),
		Retry:         testRetry,
		Journal:       journal,
	})

	err := engine.Register(context.Background(), Registration{
		Settings:  restSettings("edge", srv.URL),
		Priority:  1,
		RatePerMB: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	receipt, err := engine.Upload(context.Background(), *domain.NewUploadRequest("/frames/0001.bin", make([]byte, testMB)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if receipt.Provider != "edge" {
		t.Errorf("Expected delivery via edge, got %s", receipt.Provider)
	}
	if receipt.Bytes != testMB {
		t.Errorf("Expected %d bytes, got %d", testMB, receipt.Bytes)
	}
	if !receipt.Cost.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected cost 1.00 at 1/MB, got %s", receipt.Cost)
	}
	if !engine.TotalMonthlySpend().Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected spend 1.00, got %s", engine.TotalMonthlySpend())
	}

	recs := journal.records()
	if len(recs) != 1 {
		t.Fatalf("Expected one journal record, got %d", len(recs))
	}
	if recs[0].Outcome != domain.UploadDelivered {
		t.Errorf("Expected delivered outcome, got %s", recs[0].Outcome)
	}

	statuses := engine.GetProviderStatuses()
	if len(statuses) != 1 {
		t.Fatalf("Expected one status, got %d", len(statuses))
	}
	if statuses[0].Health != domain.HealthOptimal {
		t.Errorf("Expected optimal health after one success, got %s", statuses[0].Health)
	}
}

func TestEngine_CostOptimizedPicksCheapest(t *testing.T) {
	srvA := blobServer(http.StatusOK, nil)
	defer srvA.Close()
	srvB := blobServer(http.StatusOK, nil)
	defer srvB.Close()

	engine := NewEngine(EngineConfig{
		BudgetCeiling: decimal.NewFromInt(100),
		Strategy:      StrategyCostOptimized,
		Retry:         testRetry,
	})

	regs := []Registration{
		{Settings: restSettings("vendor-a", srvA.URL), Priority: 1, RatePerMB: decimal.NewFromFloat(0.023)},
		{Settings: restSettings("vendor-b", srvB.URL), Priority: 2, RatePerMB: decimal.NewFromFloat(0.020)},
	}
	for _, reg := range regs {
		if err := engine.Register(context.Background(), reg); err != nil {
			t.Fatalf("Register %s: %v", reg.Settings.Name, err)
		}
	}

	receipt, err := engine.Upload(context.Background(), *domain.NewUploadRequest("/frames/0001.bin", make([]byte, 10*testMB)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if receipt.Provider != "vendor-b" {
		t.Errorf("Expected the 0.020/MB provider, got %s", receipt.Provider)
	}
	if !receipt.Cost.Equal(decimal.NewFromFloat(0.20)) {
		t.Errorf("Expected cost 0.20 for 10 MB, got %s", receipt.Cost)
	}
}

func TestEngine_DuplicateRegistration(t *testing.T) {
	srv := blobServer(http.StatusOK, nil)
	defer srv.Close()

	engine := NewEngine(EngineConfig{Retry: testRetry})
	reg := Registration{Settings: restSettings("edge", srv.URL), Priority: 1}

	if err := engine.Register(context.Background(), reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := engine.Register(context.Background(), reg); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestEngine_UnregisterReleases(t *testing.T) {
	srv := blobServer(http.StatusOK, nil)
	defer srv.Close()

	engine := NewEngine(EngineConfig{Retry: testRetry})
	err := engine.Register(context.Background(), Registration{
		Settings:  restSettings("edge", srv.URL),
		Priority:  1,
		RatePerMB: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := engine.Upload(context.Background(), *domain.NewUploadRequest("/frames/1.bin", make([]byte, testMB))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := engine.Unregister("edge"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if len(engine.Providers()) != 0 {
		t.Errorf("Expected no providers, got %v", engine.Providers())
	}
	if !engine.TotalMonthlySpend().IsZero() {
		t.Errorf("Expected released spend, got %s", engine.TotalMonthlySpend())
	}
	if err := engine.Unregister("edge"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered, got %v", err)
	}
}

func TestEngine_ExhaustionDeadLetters(t *testing.T) {
	var puts atomic.Int64
	srv := blobServer(http.StatusInternalServerError, &puts)
	defer srv.Close()

	journal := &memJournal{}
	dead := &memDeadLetters{}
	engine := NewEngine(EngineConfig{
		Retry:       testRetry,
		Journal:     journal,
		DeadLetters: dead,
	})
	if err := engine.Register(context.Background(), Registration{Settings: restSettings("doomed", srv.URL), Priority: 1}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := domain.NewUploadRequest("/frames/1.bin", make([]byte, 256))
	req.MaxRetries = 1

	_, err := engine.Upload(context.Background(), *req)
	if !errors.Is(err, ErrAllProvidersExhausted) {
		t.Fatalf("Expected ErrAllProvidersExhausted, got %v", err)
	}
	if got := puts.Load(); got != 2 {
		t.Errorf("Expected maxRetries+1 = 2 transport calls, got %d", got)
	}

	letters := dead.all()
	if len(letters) != 1 {
		t.Fatalf("Expected one dead letter, got %d", len(letters))
	}
	if letters[0].RequestID != req.ID {
		t.Errorf("Dead letter for wrong request: %s", letters[0].RequestID)
	}
	if len(letters[0].Providers) != 1 || letters[0].Providers[0] != "doomed" {
		t.Errorf("Expected tried list [doomed], got %v", letters[0].Providers)
	}

	recs := journal.records()
	if len(recs) != 1 || recs[0].Outcome != domain.UploadExhausted {
		t.Fatalf("Expected one exhausted journal record, got %+v", recs)
	}
	if recs[0].Attempts != 2 {
		t.Errorf("Expected 2 attempts journaled, got %d", recs[0].Attempts)
	}
}

func TestEngine_OfflineProviderNeverCalled(t *testing.T) {
	var puts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewEngine(EngineConfig{Retry: testRetry})
	if err := engine.Register(context.Background(), Registration{Settings: restSettings("down", srv.URL), Priority: 1}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// The probe failed, so the provider stays offline
	_, err := engine.Upload(context.Background(), *domain.NewUploadRequest("/frames/1.bin", make([]byte, 64)))
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("Expected ErrNoProviderAvailable, got %v", err)
	}
	if got := puts.Load(); got != 0 {
		t.Errorf("Expected zero transport calls, got %d", got)
	}
	if engine.OverallHealth() != domain.HealthOffline {
		t.Errorf("Expected offline overall health, got %s", engine.OverallHealth())
	}
}

func TestEngine_BudgetCrossingEmitsOnce(t *testing.T) {
	srv := blobServer(http.StatusOK, nil)
	defer srv.Close()

	events := &budgetEvents{}
	engine := NewEngine(EngineConfig{
		BudgetCeiling: decimal.NewFromInt(1),
		Retry:         testRetry,
		Notifier:      events,
	})
	err := engine.Register(context.Background(), Registration{
		Settings:  restSettings("edge", srv.URL),
		Priority:  1,
		RatePerMB: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := engine.Upload(context.Background(), *domain.NewUploadRequest("/frames/x.bin", make([]byte, testMB))); err != nil {
			t.Fatalf("Upload %d: %v", i, err)
		}
	}

	// Spend went 1.00 -> 2.00 -> 3.00; only the first crossing fires
	if events.count() != 1 {
		t.Errorf("Expected one budget event, got %d", events.count())
	}
	if engine.WithinBudget() {
		t.Error("Expected spend over budget")
	}
}

func TestEngine_UploadBatch(t *testing.T) {
	srvA := blobServer(http.StatusOK, nil)
	defer srvA.Close()
	srvB := blobServer(http.StatusOK, nil)
	defer srvB.Close()

	journal := &memJournal{}
	engine := NewEngine(EngineConfig{Retry: testRetry, Journal: journal})
	for i, srv := range []*httptest.Server{srvA, srvB} {
		name := []string{"east", "west"}[i]
		if err := engine.Register(context.Background(), Registration{Settings: restSettings(name, srv.URL), Priority: i + 1}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	reqs := []domain.UploadRequest{
		{RemotePath: "/frames/1.bin", Payload: make([]byte, 128)},
		{RemotePath: "/frames/2.bin", Payload: make([]byte, 128)},
		{RemotePath: "/frames/3.bin", Payload: make([]byte, 128)},
	}
	for i := range reqs {
		reqs[i].MaxRetries = 1
	}

	results := engine.UploadBatch(context.Background(), reqs)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("Result %d: %v", i, res.Err)
		}
		if res.Receipt == nil {
			t.Fatalf("Result %d: missing receipt", i)
		}
		if res.Request.ID == "" || res.Receipt.RequestID != res.Request.ID {
			t.Errorf("Result %d: expected an assigned request ID", i)
		}
	}
	if len(journal.records()) != 3 {
		t.Errorf("Expected 3 journal records, got %d", len(journal.records()))
	}
}
