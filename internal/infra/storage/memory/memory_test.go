package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/storage"
)

func TestStore_JournalRecentOrder(t *testing.T) {
	store := NewStore()
	journal := store.Journal()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := domain.UploadRecord{
			ID:        []string{"first", "second", "third"}[i],
			Outcome:   domain.UploadDelivered,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := journal.RecordUpload(context.Background(), rec); err != nil {
			t.Fatalf("RecordUpload: %v", err)
		}
	}

	recent, err := journal.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "third" || recent[1].ID != "second" {
		t.Errorf("Expected newest first, got %+v", recent)
	}
}

func TestStore_JournalPruneAndCount(t *testing.T) {
	store := NewStore()
	journal := store.Journal()

	now := time.Now()
	records := []domain.UploadRecord{
		{ID: "old", Outcome: domain.UploadExhausted, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", Outcome: domain.UploadDelivered, CreatedAt: now},
	}
	for _, rec := range records {
		if err := journal.RecordUpload(context.Background(), rec); err != nil {
			t.Fatalf("RecordUpload: %v", err)
		}
	}

	removed, err := journal.PruneOlderThan(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 pruned record, got %d", removed)
	}

	counts, err := journal.CountByOutcome(context.Background())
	if err != nil {
		t.Fatalf("CountByOutcome: %v", err)
	}
	if counts[domain.UploadDelivered] != 1 || counts[domain.UploadExhausted] != 0 {
		t.Errorf("Expected only the delivered record, got %v", counts)
	}
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	store := NewStore()
	ledger := store.Ledger()

	states := []storage.LedgerState{
		{Provider: "zeta", Spend: decimal.NewFromFloat(1.5), PeriodStart: time.Now()},
		{Provider: "alpha", Spend: decimal.NewFromFloat(0.25), PeriodStart: time.Now()},
	}
	if err := ledger.SaveStates(context.Background(), states); err != nil {
		t.Fatalf("SaveStates: %v", err)
	}

	loaded, err := ledger.LoadStates(context.Background())
	if err != nil {
		t.Fatalf("LoadStates: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Provider != "alpha" || loaded[1].Provider != "zeta" {
		t.Errorf("Expected sorted providers, got %+v", loaded)
	}
	if !loaded[0].Spend.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("Expected spend 0.25, got %s", loaded[0].Spend)
	}

	if err := ledger.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	loaded, _ = ledger.LoadStates(context.Background())
	if len(loaded) != 0 {
		t.Errorf("Expected empty ledger after reset, got %+v", loaded)
	}
}
