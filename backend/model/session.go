package model

import "time"

// CaptureProgress is a point-in-time view of a capture session
type CaptureProgress struct {
	Active               bool   `json:"active"`
	StableCount          int    `json:"stable_count"`
	RequiredStableFrames int    `json:"required_stable_frames"`
	Triggered            bool   `json:"triggered"`
	Frames               uint64 `json:"frames"`
}

// SessionSnapshot is what the agent reports about a session, live or finished
type SessionSnapshot struct {
	ID          string             `json:"session_id"`
	Owner       string             `json:"owner,omitempty"`
	Kind        SessionKind        `json:"kind"`
	State       string             `json:"state"`
	Transaction *TransactionRecord `json:"transaction,omitempty"`
	Capture     *CaptureProgress   `json:"capture,omitempty"`
	Attempts    int                `json:"attempts,omitempty"`
	Outcome     *Outcome           `json:"outcome,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Finished reports whether the session produced its outcome
func (s *SessionSnapshot) Finished() bool {
	return s.Outcome != nil
}
