package types

import "time"

// AuditEntry is one append-only record of a decision or action. Entries
// are ordered by strictly increasing timestamp and are never mutated or
// deleted after being written.
type AuditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"`
	Decision      string    `json:"decision"`
	CorrelationID string    `json:"correlation_id"`
}
