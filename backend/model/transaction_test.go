package model

import (
	"errors"
	"testing"
)

func TestNewTransactionRecord(t *testing.T) {
	record := NewTransactionRecord(150.5, "Coffee Shop", "")

	if record.ID != "" {
		t.Errorf("Expected empty ID before initiation, got '%s'", record.ID)
	}
	if record.Decision != DecisionPending {
		t.Errorf("Expected decision '%s', got '%s'", DecisionPending, record.Decision)
	}
	if record.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestTransactionRecordAdvance(t *testing.T) {
	tests := []struct {
		name    string
		from    Decision
		to      Decision
		wantErr bool
	}{
		{"pending to manual review", DecisionPending, DecisionManualReview, false},
		{"pending to approved", DecisionPending, DecisionApproved, false},
		{"manual review to approved", DecisionManualReview, DecisionApproved, false},
		{"manual review to rejected", DecisionManualReview, DecisionRejected, false},
		{"manual review to failed", DecisionManualReview, DecisionFailed, false},
		{"same decision", DecisionApproved, DecisionApproved, false},
		{"approved to rejected", DecisionApproved, DecisionRejected, true},
		{"failed to approved", DecisionFailed, DecisionApproved, true},
		{"manual review back to pending", DecisionManualReview, DecisionPending, true},
		{"unknown decision", DecisionPending, Decision("maybe"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &TransactionRecord{Decision: tt.from}
			err := record.Advance(tt.to)
			if tt.wantErr && err == nil {
				t.Errorf("Expected error for %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.wantErr && record.Decision != tt.from {
				t.Errorf("Expected decision to stay '%s', got '%s'", tt.from, record.Decision)
			}
		})
	}
}

func TestTransactionRecordAdvanceFinal(t *testing.T) {
	record := &TransactionRecord{Decision: DecisionRejected}
	err := record.Advance(DecisionApproved)
	if !errors.Is(err, ErrDecisionFinal) {
		t.Errorf("Expected ErrDecisionFinal, got %v", err)
	}
}

func TestTransactionRecordClone(t *testing.T) {
	score := 42.0
	record := &TransactionRecord{
		ID:        "T1",
		RiskScore: &score,
		Reasons:   []string{"high_amount"},
	}

	clone := record.Clone()
	*clone.RiskScore = 7
	clone.Reasons[0] = "changed"

	if *record.RiskScore != 42 {
		t.Errorf("Expected original risk score 42, got %v", *record.RiskScore)
	}
	if record.Reasons[0] != "high_amount" {
		t.Errorf("Expected original reason high_amount, got %s", record.Reasons[0])
	}
}
