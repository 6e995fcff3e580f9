package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
)

// JournalRepo implements storage.JournalRepository using PostgreSQL.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a new PostgreSQL journal repository.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// RecordUpload appends one terminal outcome row.
func (r *JournalRepo) RecordUpload(ctx context.Context, rec domain.UploadRecord) error {
	query := `
		INSERT INTO upload_journal (id, request_id, provider, platform, remote_path, size_bytes, cost, outcome, attempts, duration_ms, failed_over, error_msg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		id,
		rec.RequestID,
		rec.Provider,
		string(rec.Platform),
		rec.RemotePath,
		rec.SizeBytes,
		rec.Cost,
		string(rec.Outcome),
		rec.Attempts,
		rec.DurationMs,
		rec.FailedOver,
		rec.Error,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

type journalRow struct {
	ID         string          `db:"id"`
	RequestID  string          `db:"request_id"`
	Provider   string          `db:"provider"`
	Platform   string          `db:"platform"`
	RemotePath string          `db:"remote_path"`
	SizeBytes  int64           `db:"size_bytes"`
	Cost       decimal.Decimal `db:"cost"`
	Outcome    string          `db:"outcome"`
	Attempts   int             `db:"attempts"`
	DurationMs int64           `db:"duration_ms"`
	FailedOver bool            `db:"failed_over"`
	ErrorMsg   string          `db:"error_msg"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (j *journalRow) toDomain() domain.UploadRecord {
	return domain.UploadRecord{
		ID:         j.ID,
		RequestID:  j.RequestID,
		Provider:   j.Provider,
		Platform:   domain.Platform(j.Platform),
		RemotePath: j.RemotePath,
		SizeBytes:  j.SizeBytes,
		Cost:       j.Cost,
		Outcome:    domain.UploadOutcome(j.Outcome),
		Attempts:   j.Attempts,
		DurationMs: j.DurationMs,
		FailedOver: j.FailedOver,
		Error:      j.ErrorMsg,
		CreatedAt:  j.CreatedAt,
	}
}

// Recent retrieves the newest records, most recent first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]domain.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, request_id, provider, platform, remote_path, size_bytes, cost, outcome, attempts, duration_ms, failed_over, error_msg, created_at
		FROM upload_journal
		ORDER BY created_at DESC
		LIMIT $1
	`

	var rows []journalRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}

	out := make([]domain.UploadRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// CountByOutcome returns row counts per terminal outcome.
func (r *JournalRepo) CountByOutcome(ctx context.Context) (map[domain.UploadOutcome]int64, error) {
	query := `SELECT outcome, COUNT(*) AS total FROM upload_journal GROUP BY outcome`

	var rows []struct {
		Outcome string `db:"outcome"`
		Total   int64  `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count journal: %w", err)
	}

	out := make(map[domain.UploadOutcome]int64, len(rows))
	for _, row := range rows {
		out[domain.UploadOutcome(row.Outcome)] = row.Total
	}
	return out, nil
}

// PruneOlderThan deletes records created before cutoff.
func (r *JournalRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM upload_journal WHERE created_at < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}
