package entities

import (
	"errors"
	"time"
)

// ConnectionState represents the lifecycle state of a client connection
type ConnectionState string

const (
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateStreaming    ConnectionState = "streaming"
	ConnectionStateClosingClean ConnectionState = "closing_clean"
	ConnectionStateClosingError ConnectionState = "closing_error"
	ConnectionStateClosed       ConnectionState = "closed"
)

var connectionTransitions = map[ConnectionState][]ConnectionState{
	ConnectionStateConnecting: {
		ConnectionStateStreaming,
		ConnectionStateClosingClean,
		ConnectionStateClosingError,
	},
	ConnectionStateStreaming: {
		ConnectionStateClosingClean,
		ConnectionStateClosingError,
	},
	ConnectionStateClosingClean: {ConnectionStateClosed},
	ConnectionStateClosingError: {ConnectionStateClosed},
}

// CanTransition reports whether moving from s to next is allowed.
// Closed is terminal.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	for _, allowed := range connectionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsClosing reports whether s is one of the closing states
func (s ConnectionState) IsClosing() bool {
	return s == ConnectionStateClosingClean || s == ConnectionStateClosingError
}

// ConnectionRecord is the stored summary of one client connection. It holds
// counters only, never transcript text.
type ConnectionRecord struct {
	ID         string          `json:"id" bson:"_id"`
	RemoteAddr string          `json:"remote_addr" bson:"remote_addr"`
	StartedAt  time.Time       `json:"started_at" bson:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	State      ConnectionState `json:"state" bson:"state"`
	Outcome    ConnectionState `json:"outcome,omitempty" bson:"outcome,omitempty"`
	Frames     int64           `json:"frames" bson:"frames"`
	AudioBytes int64           `json:"audio_bytes" bson:"audio_bytes"`
	Messages   int64           `json:"messages" bson:"messages"`
	ErrorKind  string          `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
}

// NewConnectionRecord creates a record for a connection that is just starting
func NewConnectionRecord(id, remoteAddr string) *ConnectionRecord {
	return &ConnectionRecord{
		ID:         id,
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
		State:      ConnectionStateConnecting,
	}
}

// Finish marks the record closed with the closing state the connection went
// through and the backend error kind, if any.
func (r *ConnectionRecord) Finish(outcome ConnectionState, errorKind string) {
	now := time.Now()
	r.EndedAt = &now
	r.State = ConnectionStateClosed
	r.Outcome = outcome
	r.ErrorKind = errorKind
}

// Duration returns how long the connection lasted, or has lasted so far.
func (r *ConnectionRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Validate validates the record data
func (r *ConnectionRecord) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	if r.State == ConnectionStateClosed && !r.Outcome.IsClosing() {
		return errors.New("closed record needs a closing outcome")
	}
	return nil
}
