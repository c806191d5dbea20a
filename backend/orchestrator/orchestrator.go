package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/service"
)

// Gateway is the remote side of a payment session
type Gateway interface {
	EvaluateRisk(ctx context.Context, amount float64, merchant, purpose string) (*service.RiskResponse, error)
	InitiateTransaction(ctx context.Context, amount float64, idempotencyKey string) (string, error)
	VerifyFace(ctx context.Context, descriptor model.Descriptor, amount float64) (*service.VerifyResponse, error)
	ConfirmTransaction(ctx context.Context, req service.ConfirmRequest) error
}

// StartRequest describes the payment to authorize
type StartRequest struct {
	Amount   float64
	Merchant string
	Purpose  string
}

// Orchestrator authorizes one payment. The risk engine decides on its own
// unless it asks for manual review; then the orchestrator creates the
// transaction once, captures a stable face, verifies it and settles.
type Orchestrator struct {
	*session

	gateway   Gateway
	record    *model.TransactionRecord
	initGroup singleflight.Group
}

// New creates an idle payment session
func New(gw Gateway, deps CaptureDeps, opts ...Option) *Orchestrator {
	o := &Orchestrator{gateway: gw}
	o.session, _ = newSession(model.KindPayment, capture.StepUpPolicy, deps, opts)
	o.session.onFinish = o.finalizeRecord
	return o
}

// Start runs the protocol up to the point where it waits for frames.
// Automatic decisions finish the session before Start returns. Errors other
// than ErrInvalidAmount, ErrAlreadyStarted and ErrSessionClosed mean the
// session already ended Failed and published its outcome.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) error {
	if err := ValidateAmount(req.Amount); err != nil {
		return err
	}

	ctx, err := o.begin(ctx, StateRiskPending, func() {
		o.record = model.NewTransactionRecord(req.Amount, req.Merchant, req.Purpose)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "evaluating risk", "amount", req.Amount)
	risk, err := o.gateway.EvaluateRisk(ctx, req.Amount, req.Merchant, req.Purpose)
	if err != nil {
		o.fail(ctx, ErrNetworkFailure, model.RiskTechnicalError, "Risk evaluation failed", err)
		return o.Err()
	}

	if !risk.StepUp() {
		o.decide(ctx, risk)
		return o.Err()
	}

	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		return o.Err()
	}
	if err := o.record.Advance(model.DecisionManualReview); err != nil {
		o.mu.Unlock()
		o.fail(ctx, ErrInvariantViolation, model.RiskInvariantViolation, "Transaction record out of order", err)
		return o.Err()
	}
	o.setStateLocked(StateStepUpRequired)
	o.mu.Unlock()
	logger.Info(ctx, "step-up verification required", "decision", risk.Decision, "require_face", risk.RequireFace)

	txID, err := o.EnsureTransaction(ctx)
	if err != nil {
		o.fail(ctx, ErrNetworkFailure, model.RiskTechnicalError, "Transaction could not be initiated", err)
		return o.Err()
	}

	return o.startCapture(logger.With(ctx, logger.TransactionIDKey, txID), o.onStable)
}

// EnsureTransaction returns the backend transaction id, creating the
// transaction on first use. Concurrent callers share one initiation call and
// the id is remembered, so at most one record exists per session.
func (o *Orchestrator) EnsureTransaction(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.record == nil {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: no transaction record before start", ErrInvariantViolation)
	}
	if o.record.ID != "" {
		id := o.record.ID
		o.mu.Unlock()
		return id, nil
	}
	amount := o.record.Amount
	o.mu.Unlock()

	v, err, _ := o.initGroup.Do(o.id, func() (any, error) {
		o.mu.Lock()
		if o.record.ID != "" {
			id := o.record.ID
			o.mu.Unlock()
			return id, nil
		}
		o.mu.Unlock()

		id, err := o.gateway.InitiateTransaction(ctx, amount, o.id)
		if err != nil {
			return "", err
		}

		o.mu.Lock()
		if o.record.ID == "" {
			o.record.ID = id
		}
		id = o.record.ID
		o.mu.Unlock()

		logger.Info(ctx, "transaction initiated", "transaction_id", id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Snapshot returns a copy of the session state
func (o *Orchestrator) Snapshot() model.SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := o.snapshotLocked()
	if o.record != nil {
		rec := o.record.Clone()
		snap.Transaction = &rec
	}
	return snap
}

func (o *Orchestrator) decide(ctx context.Context, risk *service.RiskResponse) {
	out := model.Outcome{
		Status:    model.StatusDeclined,
		Decision:  model.DecisionRejected,
		Risk:      model.RiskHigh,
		RiskScore: risk.Risk,
		Reason:    "Transaction declined by risk engine",
		Reasons:   risk.Reasons,
	}
	state := StateRejectedAuto
	if risk.Decision == model.DecisionApproved {
		out.Status = model.StatusAccepted
		out.Decision = model.DecisionApproved
		out.Risk = model.RiskLow
		out.Reason = "Transaction approved"
		state = StateApprovedAuto
	}
	o.finish(ctx, state, out, nil)
}

// onStable runs on the loop iteration that crossed the threshold
func (o *Orchestrator) onStable(ctx context.Context, det model.Detection) {
	if !o.claimVerification() {
		return
	}
	metrics.RecordStabilityTrigger(string(o.kind))

	if err := o.resource.Release(); err != nil {
		logger.Warn(ctx, "failed to release capture resource", "error", err)
	}

	o.mu.Lock()
	txID := o.record.ID
	amount := o.record.Amount
	o.mu.Unlock()

	if txID == "" {
		o.fail(ctx, ErrInvariantViolation, model.RiskInvariantViolation, "Transaction id missing at verification", nil)
		return
	}

	logger.Info(ctx, "verifying face")
	verdict, err := o.gateway.VerifyFace(ctx, det.Descriptor, amount)
	if err != nil {
		o.fail(ctx, ErrNetworkFailure, model.RiskTechnicalError, "Server error during verification", err)
		return
	}

	decision := model.DecisionRejected
	if verdict.Decision == model.DecisionApproved {
		decision = model.DecisionApproved
	}

	err = o.gateway.ConfirmTransaction(ctx, service.ConfirmRequest{
		TransactionID: txID,
		Decision:      decision,
		RiskScore:     verdict.Risk,
		Reasons:       verdict.Reasons,
	})
	if err != nil {
		o.fail(ctx, ErrNetworkFailure, model.RiskTechnicalError, "Server error during verification", err)
		return
	}

	score := verdict.Risk
	out := model.Outcome{
		Decision:  decision,
		RiskScore: &score,
		Reasons:   verdict.Reasons,
	}
	if decision == model.DecisionApproved {
		out.Status = model.StatusAccepted
		out.Risk = model.RiskAmountUnusual
		out.Reason = "Face verification successful"
		o.finish(ctx, StateConfirmed, out, nil)
		return
	}
	out.Status = model.StatusDeclined
	out.Risk = model.RiskFaceMismatch
	out.Reason = "Face verification failed"
	o.finish(ctx, StateRejected, out, nil)
}

// finalizeRecord brings the record in line with the outcome. Runs under mu.
func (o *Orchestrator) finalizeRecord(out *model.Outcome) {
	if o.record == nil {
		return
	}
	out.TransactionID = o.record.ID
	if o.record.Decision.IsFinal() {
		return
	}
	if err := o.record.Advance(out.Decision); err != nil {
		return
	}
	// the record carries a score only once a face was verified
	if o.verifying && out.RiskScore != nil {
		score := *out.RiskScore
		o.record.RiskScore = &score
	}
	if out.Reasons != nil {
		o.record.Reasons = append([]string(nil), out.Reasons...)
	}
}
