package orchestrator

import (
	"context"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
)

// Enroller stores a reference face for the caller
type Enroller interface {
	EnrollFace(ctx context.Context, descriptor model.Descriptor) error
}

const defaultMaxAttempts = 3

// Enrollment captures a face with the stricter enrollment policy and uploads
// its descriptor. A failed upload resamples a fresh descriptor on the same
// open resource until the attempt budget is spent.
type Enrollment struct {
	*session

	enroller    Enroller
	maxAttempts int
	attempts    int
}

// NewEnrollment creates an idle enrollment session
func NewEnrollment(enroller Enroller, deps CaptureDeps, opts ...Option) *Enrollment {
	e := &Enrollment{enroller: enroller}
	var o options
	e.session, o = newSession(model.KindEnrollment, capture.EnrollmentPolicy, deps, opts)
	e.maxAttempts = o.maxAttempts
	if e.maxAttempts <= 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	return e
}

// Start acquires the resource and starts sampling
func (e *Enrollment) Start(ctx context.Context) error {
	ctx, err := e.begin(ctx, StateIdle, nil)
	if err != nil {
		return err
	}
	return e.startCapture(ctx, e.onStable)
}

// Attempts returns how many uploads were tried
func (e *Enrollment) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Snapshot returns a copy of the session state
func (e *Enrollment) Snapshot() model.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshotLocked()
	snap.Attempts = e.attempts
	return snap
}

func (e *Enrollment) onStable(ctx context.Context, det model.Detection) {
	if !e.claimVerification() {
		return
	}
	metrics.RecordStabilityTrigger(string(e.kind))

	e.mu.Lock()
	e.attempts++
	attempt := e.attempts
	e.mu.Unlock()

	logger.Info(ctx, "enrolling face", "attempt", attempt)
	err := e.enroller.EnrollFace(ctx, det.Descriptor)
	if err == nil {
		e.finish(ctx, StateConfirmed, model.Outcome{
			Status:   model.StatusAccepted,
			Decision: model.DecisionApproved,
			Risk:     model.RiskLow,
			Reason:   "Face enrolled successfully",
		}, nil)
		return
	}

	if ctx.Err() != nil {
		return
	}
	if attempt >= e.maxAttempts {
		e.fail(ctx, ErrNetworkFailure, model.RiskTechnicalError, "Face enrollment failed", err)
		return
	}

	logger.Warn(ctx, "face enrollment failed, resampling", "attempt", attempt, "max_attempts", e.maxAttempts, "error", err)

	// Rearm under mu so a concurrent finish cannot stop the loop before it restarts
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Terminal() {
		return
	}
	e.verifying = false
	e.setStateLocked(StateCapturing)
	e.loop.Rearm(ctx)
}
