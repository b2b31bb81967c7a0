package models

import "time"

// Login attempt reasons recorded in the audit table
const (
	AttemptReasonOK             = "OK"
	AttemptReasonUnknown        = "User unknown"
	AttemptReasonBanned         = "User banned"
	AttemptReasonInactive       = "User inactive"
	AttemptReasonInvalidRequest = "Invalid credentials shape"
	AttemptReasonError          = "Lookup failed"
)

// LoginAttempt represents a single login attempt in the system.
// Rows are append-only.
type LoginAttempt struct {
	ID        string    `db:"id"`
	Identity  string    `db:"identity"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	UserID    *string   `db:"user_id"`
	Success   bool      `db:"success"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
