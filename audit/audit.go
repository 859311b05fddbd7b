package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of an access decision being audited.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// Entry is a single access-decision audit record.
type Entry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Actions   []string  `json:"actions" db:"actions"`
	Outcome   Outcome   `json:"outcome" db:"outcome"`
	RequestID string    `json:"request_id,omitempty" db:"request_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// NewEntry creates an audit entry for the given decision.
func NewEntry(username string, actions []string, outcome Outcome) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Username:  username,
		Actions:   actions,
		Outcome:   outcome,
		Timestamp: time.Now(),
	}
}

// WithRequestID attaches the request correlation id.
func (e *Entry) WithRequestID(requestID string) *Entry {
	e.RequestID = requestID
	return e
}

// Recorder persists audit entries. Implementations must be safe for
// concurrent writers.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}
