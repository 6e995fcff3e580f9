package domain

import "time"

// DeadLetter records an upload that exhausted every healthy provider.
// The engine only writes these; requeueing is the job of whatever feeds
// the engine.
type DeadLetter struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	RemotePath string    `json:"remote_path"`
	SizeBytes  int64     `json:"size_bytes"`
	Priority   Priority  `json:"priority"`
	Providers  []string  `json:"providers_tried"`
	Error      string    `json:"error_msg"`
	FailedAt   time.Time `json:"failed_at"`
}
