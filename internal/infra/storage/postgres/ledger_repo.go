package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/infra/storage"
)

// LedgerRepo implements storage.LedgerRepository using PostgreSQL.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new PostgreSQL ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// SaveStates upserts spend accumulators keyed by provider.
func (r *LedgerRepo) SaveStates(ctx context.Context, states []storage.LedgerState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO ledger_state (provider, spend, period_start, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider) DO UPDATE SET
			spend = EXCLUDED.spend,
			period_start = EXCLUDED.period_start,
			updated_at = NOW()
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range states {
		if _, err := stmt.ExecContext(ctx, st.Provider, st.Spend, st.PeriodStart); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadStates retrieves every saved accumulator.
func (r *LedgerRepo) LoadStates(ctx context.Context) ([]storage.LedgerState, error) {
	query := `SELECT provider, spend, period_start FROM ledger_state`

	var rows []struct {
		Provider    string          `db:"provider"`
		Spend       decimal.Decimal `db:"spend"`
		PeriodStart time.Time       `db:"period_start"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	out := make([]storage.LedgerState, len(rows))
	for i, row := range rows {
		out[i] = storage.LedgerState{
			Provider:    row.Provider,
			Spend:       row.Spend,
			PeriodStart: row.PeriodStart,
		}
	}
	return out, nil
}

// Reset removes every accumulator.
func (r *LedgerRepo) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger_state`); err != nil {
		return fmt.Errorf("failed to reset ledger state: %w", err)
	}
	return nil
}
