package routing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
)

var fastPolicy = Policy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestBackoffDelay_Bounds(t *testing.T) {
	for k := 0; k < 5; k++ {
		lo := time.Duration(1000*math.Pow(2, float64(k))) * time.Millisecond
		hi := lo + lo/4

		for i := 0; i < 100; i++ {
			d := backoffDelay(k, DefaultPolicy)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", k, d, lo, hi)
			}
		}
	}
}

func TestBackoffDelay_Cap(t *testing.T) {
	for k := 5; k < 12; k++ {
		for i := 0; i < 20; i++ {
			if d := backoffDelay(k, DefaultPolicy); d != 30*time.Second {
				t.Fatalf("attempt %d: delay %v, want the 30s cap", k, d)
			}
		}
	}
}

func TestRetrier_SucceedsAfterFailures(t *testing.T) {
	f := &fakeProvider{name: "alpha", failFirst: 2}
	_, tracker, _, budget := newBench(t, f)

	r := NewRetrier(tracker, budget, fastPolicy)
	req := domain.NewUploadRequest("/blobs/1", make([]byte, 2048))

	res, err := r.Run(context.Background(), f, *req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", res.Attempts)
	}
	if res.BytesTransferred != 2048 {
		t.Errorf("Expected 2048 bytes, got %d", res.BytesTransferred)
	}
	if budget.spendCount() != 1 {
		t.Errorf("Expected one spend record, got %d", budget.spendCount())
	}

	st, ok := tracker.Status("alpha")
	if !ok {
		t.Fatal("Missing status for alpha")
	}
	if st.TotalAttempts != 3 || st.FailedAttempts != 2 {
		t.Errorf("Expected 3 attempts with 2 failures, got %d/%d", st.TotalAttempts, st.FailedAttempts)
	}
}

func TestRetrier_Exhaustion(t *testing.T) {
	cause := errors.New("disk full")
	f := &fakeProvider{name: "alpha", alwaysErr: cause}
	_, tracker, _, budget := newBench(t, f)

	r := NewRetrier(tracker, budget, fastPolicy)
	req := domain.NewUploadRequest("/blobs/1", make([]byte, 512))
	req.MaxRetries = 2

	res, err := r.Run(context.Background(), f, *req)
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("Expected maxRetries+1 = 3 attempts, got %d", res.Attempts)
	}
	if budget.spendCount() != 0 {
		t.Errorf("Expected no spend on failure, got %d", budget.spendCount())
	}

	st, _ := tracker.Status("alpha")
	if st.FailedAttempts != 3 {
		t.Errorf("Expected 3 recorded failures, got %d", st.FailedAttempts)
	}
}

func TestRetrier_ContextCancel(t *testing.T) {
	f := &fakeProvider{name: "alpha", alwaysErr: errors.New("unreachable")}
	_, tracker, _, budget := newBench(t, f)

	// Long enough that cancellation lands during the first backoff
	r := NewRetrier(tracker, budget, Policy{BaseDelay: time.Minute, MaxDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, f, *domain.NewUploadRequest("/blobs/1", make([]byte, 64)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if f.callCount() != 1 {
		t.Errorf("Expected a single attempt before cancel, got %d", f.callCount())
	}
}
