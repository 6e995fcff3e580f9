package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/uplink/internal/control"
	"github.com/vietddude/uplink/internal/core/config"
	"github.com/vietddude/uplink/internal/core/domain"
)

// acceptAll answers probes on HEAD and accepts every PUT.
func acceptAll() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func restProvider(name, endpoint string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:      name,
		Platform:  "custom",
		Transport: "rest",
		Endpoint:  endpoint,
		Bucket:    "blobs",
		Priority:  priority,
		Timeout:   2 * time.Second,
	}
}

func TestGracefulShutdown(t *testing.T) {
	srv := acceptAll()
	defer srv.Close()

	// Memory storage, no Redis: enough to start every component
	cfg := control.Config{
		Port: 0,
		Providers: []config.ProviderConfig{
			restProvider("edge", srv.URL, 1),
		},
		Budget: config.BudgetConfig{MonthlyCeiling: 10},
	}

	uplink, err := control.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create uplink: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	startError := make(chan error, 1)
	go func() {
		startError <- uplink.Start(ctx)
	}()

	// Let the background loops spin up
	time.Sleep(500 * time.Millisecond)

	// Work should flow while running
	if _, err := uplink.Engine().Upload(ctx, *domain.NewUploadRequest("/blobs/x.bin", []byte("x"))); err != nil {
		t.Errorf("Upload during run failed: %v", err)
	}

	// Trigger shutdown
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := uplink.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case err := <-startError:
		if err != nil && err != context.Canceled {
			t.Errorf("Uplink.Start returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("Uplink.Start did not return within 10s of Stop")
	}

	// Ledger flush on Stop leaves the spend recoverable
	states, err := uplink.Store().Ledger().LoadStates(context.Background())
	if err != nil {
		t.Fatalf("LoadStates failed: %v", err)
	}
	if len(states) == 0 {
		t.Error("expected persisted ledger state after Stop")
	}
}
