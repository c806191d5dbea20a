// Package orchestrator drives biometric step-up payment authorization and
// face enrollment sessions: risk evaluation, transaction initiation, live
// capture, verification and settlement, with exactly one outcome per session.
package orchestrator

import (
	"errors"
	"math"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrResourceUnavailable is the capture package's error, re-exported for callers of this package
	ErrResourceUnavailable = capture.ErrResourceUnavailable
	ErrCaptureStartFailed  = errors.New("capture could not be started")
	ErrExtraction          = capture.ErrExtraction
	ErrNetworkFailure      = errors.New("backend gateway call failed")
	// ErrInvariantViolation means the protocol reached a step without data it requires, e.g. no transaction id at verification
	ErrInvariantViolation = errors.New("session invariant violated")
	ErrSessionClosed      = errors.New("session is closed")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrCancelled          = errors.New("session cancelled")
	ErrSessionBusy        = errors.New("another session is still running for this user")
)

// ValidateAmount rejects zero, negative and non-finite amounts
func ValidateAmount(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}
