// Package memory provides an in-process storage backend used when no
// database is configured. State lives and dies with the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/storage"
)

// Store holds journal rows and ledger accumulators in process memory.
type Store struct {
	mu      sync.RWMutex
	journal []domain.UploadRecord
	ledger  map[string]storage.LedgerState
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		ledger: make(map[string]storage.LedgerState),
	}
}

func (s *Store) Journal() storage.JournalRepository { return &JournalRepo{store: s} }
func (s *Store) Ledger() storage.LedgerRepository   { return &LedgerRepo{store: s} }
func (s *Store) Health(ctx context.Context) error   { return nil }
func (s *Store) Close() error                       { return nil }

// -----------------------------------------------------------------------------
// Journal Repository
// -----------------------------------------------------------------------------

type JournalRepo struct {
	store *Store
}

func NewJournalRepo(store *Store) *JournalRepo {
	return &JournalRepo{store: store}
}

func (r *JournalRepo) RecordUpload(_ context.Context, rec domain.UploadRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.journal = append(r.store.journal, rec)
	return nil
}

func (r *JournalRepo) Recent(_ context.Context, limit int) ([]domain.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := len(r.store.journal)
	if limit > n {
		limit = n
	}
	out := make([]domain.UploadRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.store.journal[i])
	}
	return out, nil
}

func (r *JournalRepo) CountByOutcome(_ context.Context) (map[domain.UploadOutcome]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[domain.UploadOutcome]int64)
	for _, rec := range r.store.journal {
		out[rec.Outcome]++
	}
	return out, nil
}

func (r *JournalRepo) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.journal[:0]
	var removed int64
	for _, rec := range r.store.journal {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.store.journal = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Ledger Repository
// -----------------------------------------------------------------------------

type LedgerRepo struct {
	store *Store
}

func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) SaveStates(_ context.Context, states []storage.LedgerState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, st := range states {
		r.store.ledger[st.Provider] = st
	}
	return nil
}

func (r *LedgerRepo) LoadStates(_ context.Context) ([]storage.LedgerState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]storage.LedgerState, 0, len(r.store.ledger))
	for _, st := range r.store.ledger {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (r *LedgerRepo) Reset(_ context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ledger = make(map[string]storage.LedgerState)
	return nil
}
