// Package storage defines the persistence contracts for the upload
// journal and the cost ledger. PostgreSQL implementations live in
// postgres/, an in-process fallback in memory/.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
)

// JournalRepository handles upload journal storage operations.
type JournalRepository interface {
	// RecordUpload appends one terminal outcome row
	RecordUpload(ctx context.Context, rec domain.UploadRecord) error

	// Recent retrieves the newest records, most recent first
	Recent(ctx context.Context, limit int) ([]domain.UploadRecord, error)

	// CountByOutcome returns row counts per terminal outcome
	CountByOutcome(ctx context.Context) (map[domain.UploadOutcome]int64, error)

	// PruneOlderThan deletes records created before cutoff and returns
	// the number removed
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LedgerState is one provider's persisted spend accumulator.
type LedgerState struct {
	Provider    string
	Spend       decimal.Decimal
	PeriodStart time.Time
}

// LedgerRepository persists spend accumulators so the monthly budget
// survives restarts.
type LedgerRepository interface {
	// SaveStates upserts accumulators keyed by provider
	SaveStates(ctx context.Context, states []LedgerState) error

	// LoadStates retrieves every saved accumulator
	LoadStates(ctx context.Context) ([]LedgerState, error)

	// Reset removes every accumulator
	Reset(ctx context.Context) error
}

// Store bundles the repositories one backend provides.
type Store interface {
	Journal() JournalRepository
	Ledger() LedgerRepository
	Health(ctx context.Context) error
	Close() error
}
