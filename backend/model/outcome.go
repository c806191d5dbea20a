package model

import "time"

// OutcomeStatus is the user-facing verdict of a session
type OutcomeStatus string

// OutcomeStatus constants
const (
	StatusAccepted OutcomeStatus = "ACCEPTED"
	StatusDeclined OutcomeStatus = "DECLINED"
	StatusFailed   OutcomeStatus = "FAILED"
)

// SessionKind tells payment sessions from enrollment sessions
type SessionKind string

// SessionKind constants
const (
	KindPayment    SessionKind = "payment"
	KindEnrollment SessionKind = "enrollment"
)

// Risk labels shown next to an outcome
const (
	RiskAmountUnusual      = "AMOUNT IS MORE THAN USUAL"
	RiskFaceMismatch       = "FACE_MISMATCH"
	RiskTechnicalError     = "TECHNICAL_ERROR"
	RiskCaptureUnavailable = "CAPTURE_UNAVAILABLE"
	RiskInvariantViolation = "INVARIANT_VIOLATION"
	RiskCancelled          = "CANCELLED"
	RiskLow                = "LOW"
	RiskHigh               = "HIGH"
)

// Outcome is emitted exactly once when a session reaches a terminal state
type Outcome struct {
	SessionID     string        `json:"session_id"`
	Owner         string        `json:"owner,omitempty"`
	Kind          SessionKind   `json:"kind"`
	Status        OutcomeStatus `json:"status"`
	Decision      Decision      `json:"decision"`
	Risk          string        `json:"risk,omitempty"`
	RiskScore     *float64      `json:"risk_score,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Reasons       []string      `json:"reasons,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	State         string        `json:"state"`
	At            time.Time     `json:"at"`
}
