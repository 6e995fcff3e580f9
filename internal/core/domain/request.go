package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Priority tags an upload request. It is advisory: the engine logs it but
// never reorders or drops work by it. Ordering belongs to the queue that
// feeds the engine.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// UploadRequest is a single unit of work handed to the engine. Callers
// treat it as immutable once submitted; Retries is scratch state advanced
// by the retry engine on its own copy during one coordinator call and is
// never persisted.
type UploadRequest struct {
	ID         string
	RemotePath string
	Payload    []byte
	SizeBytes  int64
	Priority   Priority
	Retries    int
	MaxRetries int
	Deadline   time.Time
	CreatedAt  time.Time
}

// NewUploadRequest builds a request with a fresh ID and default limits.
// SizeBytes doubles as the selection estimate and the payload length.
func NewUploadRequest(remotePath string, payload []byte) *UploadRequest {
	return &UploadRequest{
		ID:         uuid.NewString(),
		RemotePath: remotePath,
		Payload:    payload,
		SizeBytes:  int64(len(payload)),
		Priority:   PriorityMedium,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
}

// UploadReceipt reports a delivered upload back to the caller.
type UploadReceipt struct {
	RequestID   string
	Provider    string
	Platform    Platform
	Bytes       int64
	DurationMs  int64
	Attempts    int
	Cost        decimal.Decimal
	FailedOver  bool
	CompletedAt time.Time
}

// UploadOutcome is the terminal state of one upload in the journal.
type UploadOutcome string

const (
	UploadDelivered UploadOutcome = "delivered"
	UploadExhausted UploadOutcome = "exhausted"
)

// UploadRecord is the journal row written for every terminal outcome.
type UploadRecord struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id"`
	Provider   string          `json:"provider"`
	Platform   Platform        `json:"platform"`
	RemotePath string          `json:"remote_path"`
	SizeBytes  int64           `json:"size_bytes"`
	Cost       decimal.Decimal `json:"cost"`
	Outcome    UploadOutcome   `json:"outcome"`
	Attempts   int             `json:"attempts"`
	DurationMs int64           `json:"duration_ms"`
	FailedOver bool            `json:"failed_over"`
	Error      string          `json:"error_msg"`
	CreatedAt  time.Time       `json:"created_at"`
}
