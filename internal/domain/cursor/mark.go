// Package cursor holds the idempotence gate for the ledger effect stream.
// Every observed effect inserts its paging token exactly once; the most recent
// processed token is the resume point after a restart.
package cursor

import "time"

// Mark names one position in the effect stream. A mark's first insertion wins;
// a second observation of the same token is a no-op. Marks transition
// processed:false→true once and are never deleted during normal operation.
type Mark struct {
	Token     string    `json:"token"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMark creates an unprocessed mark for a freshly observed effect.
func NewMark(token string) *Mark {
	return &Mark{
		Token:     token,
		Processed: false,
		CreatedAt: time.Now(),
	}
}
