package model

import (
	"errors"
	"fmt"
	"time"
)

// Decision is the lifecycle value of a transaction record
type Decision string

// Decision constants
const (
	DecisionPending      Decision = "pending"
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionManualReview Decision = "manual_review"
	DecisionFailed       Decision = "failed"
)

// ErrDecisionFinal is returned when a terminal decision would be changed
var ErrDecisionFinal = errors.New("transaction decision is final")

// IsFinal reports whether the decision can no longer change
func (d Decision) IsFinal() bool {
	return d == DecisionApproved || d == DecisionRejected || d == DecisionFailed
}

// Valid reports whether d belongs to the decision vocabulary
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected, DecisionManualReview, DecisionFailed:
		return true
	}
	return false
}

// TransactionRecord represents one payment attempt
type TransactionRecord struct {
	ID        string    `json:"id,omitempty"`
	Amount    float64   `json:"amount"`
	Merchant  string    `json:"merchant,omitempty"`
	Purpose   string    `json:"purpose,omitempty"`
	Decision  Decision  `json:"decision"`
	RiskScore *float64  `json:"risk_score,omitempty"`
	Reasons   []string  `json:"reasons,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTransactionRecord creates a pending record for the given amount
func NewTransactionRecord(amount float64, merchant, purpose string) *TransactionRecord {
	return &TransactionRecord{
		Amount:    amount,
		Merchant:  merchant,
		Purpose:   purpose,
		Decision:  DecisionPending,
		CreatedAt: time.Now(),
	}
}

// Advance moves the record to next. Decisions only move forward:
// pending may become anything, manual_review may only become final.
func (r *TransactionRecord) Advance(next Decision) error {
	if r.Decision == next {
		return nil
	}
	if r.Decision.IsFinal() {
		return fmt.Errorf("%w: %s -> %s", ErrDecisionFinal, r.Decision, next)
	}
	if !next.Valid() || next == DecisionPending {
		return fmt.Errorf("invalid decision transition %s -> %s", r.Decision, next)
	}
	if r.Decision == DecisionManualReview && !next.IsFinal() {
		return fmt.Errorf("invalid decision transition %s -> %s", r.Decision, next)
	}
	r.Decision = next
	return nil
}

// Clone returns a deep copy safe to hand to callers
func (r *TransactionRecord) Clone() TransactionRecord {
	out := *r
	if r.RiskScore != nil {
		score := *r.RiskScore
		out.RiskScore = &score
	}
	if r.Reasons != nil {
		out.Reasons = append([]string(nil), r.Reasons...)
	}
	return out
}
