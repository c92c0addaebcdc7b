package domain

import "time"

// Outcomes recorded on AuditLog.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditLog represents one audited request against the identity API.
type AuditLog struct {
	ID       string
	UserID   string // empty for unauthenticated requests
	Action   string
	Resource string
	Outcome  string
	IP       string
	// Metadata is a JSON object; empty means none.
	Metadata  string
	CreatedAt time.Time
}
