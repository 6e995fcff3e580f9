package postgres

import (
	"context"

	"github.com/vietddude/uplink/internal/infra/storage"
)

// Store bundles the PostgreSQL repositories behind one connection.
type Store struct {
	db      *DB
	journal *JournalRepo
	ledger  *LedgerRepo
}

// NewStore opens the database and wires the repositories.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:      db,
		journal: NewJournalRepo(db),
		ledger:  NewLedgerRepo(db),
	}, nil
}

func (s *Store) Journal() storage.JournalRepository { return s.journal }
func (s *Store) Ledger() storage.LedgerRepository   { return s.ledger }

// DB exposes the underlying connection for migrations and metrics.
func (s *Store) DB() *DB { return s.db }

// Health checks if the database is healthy.
func (s *Store) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
