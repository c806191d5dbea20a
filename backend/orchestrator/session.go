package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
)

// State is the position of a session in its protocol
type State string

// Session states
const (
	StateIdle           State = "idle"
	StateRiskPending    State = "risk_pending"
	StateApprovedAuto   State = "approved_auto"
	StateRejectedAuto   State = "rejected_auto"
	StateStepUpRequired State = "step_up_required"
	StateCapturing      State = "capturing"
	StateVerifying      State = "verifying"
	StateConfirmed      State = "confirmed"
	StateRejected       State = "rejected"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	switch s {
	case StateApprovedAuto, StateRejectedAuto, StateConfirmed, StateRejected, StateFailed:
		return true
	}
	return false
}

// OutcomeSink receives the single outcome of every session
type OutcomeSink interface {
	Publish(ctx context.Context, out model.Outcome) error
}

// OutcomeSinkFunc adapts a function to OutcomeSink
type OutcomeSinkFunc func(ctx context.Context, out model.Outcome) error

// Publish implements OutcomeSink
func (f OutcomeSinkFunc) Publish(ctx context.Context, out model.Outcome) error {
	return f(ctx, out)
}

// CaptureDeps are the capabilities a session needs to sample faces
type CaptureDeps struct {
	Extractor capture.Extractor
	Device    capture.Device
	Scheduler capture.Scheduler
}

// Option configures a session
type Option func(*options)

type options struct {
	id          string
	owner       string
	sinks       []OutcomeSink
	policy      *capture.Policy
	timeout     time.Duration
	maxAttempts int
}

// WithID sets the session id. It doubles as the idempotency key of the transaction.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithOwner tags the session and its outcome with the user it belongs to
func WithOwner(owner string) Option {
	return func(o *options) { o.owner = owner }
}

// WithOutcomeSink adds a receiver for the session outcome
func WithOutcomeSink(sink OutcomeSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sink) }
}

// WithPolicy overrides the stability policy
func WithPolicy(p capture.Policy) Option {
	return func(o *options) { o.policy = &p }
}

// WithTimeout bounds the lifetime of a started session. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxAttempts bounds enrollment uploads
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

const publishTimeout = 10 * time.Second

// session holds what payment and enrollment sessions share: the state
// machine, the capture resource and loop, and the single outcome.
type session struct {
	id        string
	owner     string
	kind      model.SessionKind
	extractor capture.Extractor
	scheduler capture.Scheduler
	resource  *capture.ResourceController
	policy    capture.Policy
	sinks     []OutcomeSink
	timeout   time.Duration
	createdAt time.Time

	// onFinish runs under mu when the session turns terminal
	onFinish func(out *model.Outcome)

	mu        sync.Mutex
	state     State
	started   bool
	verifying bool
	loop      *capture.SamplingLoop
	outcome   *model.Outcome
	err       error
	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool
	updatedAt time.Time

	done chan struct{}
}

func newSession(kind model.SessionKind, policy capture.Policy, deps CaptureDeps, opts []Option) (*session, options) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.policy != nil {
		policy = *o.policy
	}

	now := time.Now()
	s := &session{
		id:        o.id,
		owner:     o.owner,
		kind:      kind,
		extractor: deps.Extractor,
		scheduler: deps.Scheduler,
		resource:  capture.NewResourceController(deps.Device),
		policy:    policy,
		sinks:     o.sinks,
		timeout:   o.timeout,
		createdAt: now,
		state:     StateIdle,
		updatedAt: now,
		done:      make(chan struct{}),
	}
	s.ctx = logger.With(context.Background(), logger.SessionIDKey, s.id)
	if o.owner != "" {
		s.ctx = logger.With(s.ctx, logger.UsernameKey, o.owner)
	}
	return s, o
}

// ID returns the session id
func (s *session) ID() string { return s.id }

// Owner returns the user the session belongs to
func (s *session) Owner() string { return s.owner }

// Kind tells payment from enrollment sessions
func (s *session) Kind() model.SessionKind { return s.kind }

// State returns the current state
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the outcome was published and every resource released
func (s *session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the outcome once the session is terminal
func (s *session) Outcome() (model.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return model.Outcome{}, false
	}
	return cloneOutcome(*s.outcome), true
}

// Err returns the cause of a failed session
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop ends the session. It is safe in any state, including before Start
// and after the outcome: a session that is not terminal yet ends Failed
// with ErrCancelled and any in-flight call is cancelled.
func (s *session) Stop(reason string) {
	if reason == "" {
		reason = "Session cancelled"
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.fail(ctx, ErrCancelled, model.RiskCancelled, reason, nil)
}

// begin moves an idle session to next and derives the session context.
// The context survives the caller's request but not Stop.
func (s *session) begin(ctx context.Context, next State, init func()) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, ErrSessionClosed
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true
	if init != nil {
		init()
	}
	s.setStateLocked(next)

	sctx := logger.With(context.WithoutCancel(ctx), logger.SessionIDKey, s.id)
	var cancel context.CancelFunc
	if s.timeout > 0 {
		sctx, cancel = context.WithTimeout(sctx, s.timeout)
	} else {
		sctx, cancel = context.WithCancel(sctx)
	}
	s.ctx = sctx
	s.cancel = cancel
	s.stopWatch = context.AfterFunc(sctx, func() {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			s.fail(context.WithoutCancel(sctx), ErrCancelled, model.RiskCancelled, "Session timed out", sctx.Err())
		}
	})

	metrics.RecordSessionStarted(string(s.kind))
	return sctx, nil
}

// startCapture loads the extractor, acquires the resource and starts sampling.
// Any failure ends the session; nothing is retried.
func (s *session) startCapture(ctx context.Context, onStable capture.StableFunc) error {
	if init, ok := s.extractor.(capture.Initializer); ok {
		if err := init.Init(ctx); err != nil {
			s.fail(ctx, ErrCaptureStartFailed, model.RiskCaptureUnavailable, "Face models could not be loaded", err)
			return s.Err()
		}
	}

	src, err := s.resource.Acquire(ctx)
	if err != nil {
		s.fail(ctx, ErrCaptureStartFailed, model.RiskCaptureUnavailable, "Camera access failed", err)
		return s.Err()
	}

	loop := capture.NewSamplingLoop(src, s.extractor, capture.NewStabilityAccumulator(s.policy), s.scheduler, onStable)
	loop.OnSignal(func(sig capture.Signal, count, required int) {
		if sig == capture.SignalLost && count == 0 {
			return
		}
		logger.Debug(ctx, "hold steady", "signal", sig.String(), "stable_count", count, "required", required)
	})

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		if err := s.resource.Release(); err != nil {
			logger.Warn(ctx, "failed to release capture resource", "error", err)
		}
		return s.Err()
	}
	s.loop = loop
	s.setStateLocked(StateCapturing)
	loop.Start(ctx)
	s.mu.Unlock()

	logger.Info(ctx, "capture started", "policy", s.policy.Name, "required_stable_frames", s.policy.RequiredStableFrames)
	return nil
}

// claimVerification moves Capturing to Verifying exactly once per trigger
func (s *session) claimVerification() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing || s.verifying {
		return false
	}
	s.verifying = true
	s.setStateLocked(StateVerifying)
	return true
}

func (s *session) fail(ctx context.Context, cause error, risk, reason string, err error) bool {
	full := cause
	if err != nil {
		full = fmt.Errorf("%w: %w", cause, err)
	}
	return s.finish(ctx, StateFailed, model.Outcome{
		Status:   model.StatusFailed,
		Decision: model.DecisionFailed,
		Risk:     risk,
		Reason:   reason,
	}, full)
}

// finish moves the session to a terminal state. Only the first caller wins;
// it stops the loop, cancels in-flight calls, releases the resource and
// publishes the outcome before closing Done.
func (s *session) finish(ctx context.Context, state State, out model.Outcome, cause error) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.setStateLocked(state)
	out.SessionID = s.id
	out.Owner = s.owner
	out.Kind = s.kind
	out.State = string(state)
	out.At = s.updatedAt
	if s.onFinish != nil {
		s.onFinish(&out)
	}
	s.outcome = &out
	s.err = cause
	loop := s.loop
	started := s.started
	cancel := s.cancel
	stopWatch := s.stopWatch
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if loop != nil {
		loop.Stop()
	}
	if cancel != nil {
		cancel()
	}

	var errs error
	if err := s.resource.Release(); err != nil {
		errs = multierr.Append(errs, err)
	}

	pubCtx, cancelPub := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	for _, sink := range s.sinks {
		if err := sink.Publish(pubCtx, cloneOutcome(out)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to publish outcome: %w", err))
		}
	}
	cancelPub()

	if started {
		metrics.RecordOutcome(string(s.kind), string(out.Status), out.Risk)
	}
	if errs != nil {
		logger.Warn(ctx, "session teardown incomplete", "error", errs)
	}
	if cause != nil {
		logger.Info(ctx, "session finished", "state", state, "status", out.Status, "risk", out.Risk, "error", cause)
	} else {
		logger.Info(ctx, "session finished", "state", state, "status", out.Status, "risk", out.Risk)
	}

	close(s.done)
	return true
}

func (s *session) setStateLocked(next State) {
	s.state = next
	s.updatedAt = time.Now()
}

func (s *session) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		ID:        s.id,
		Owner:     s.owner,
		Kind:      s.kind,
		State:     string(s.state),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.loop != nil {
		progress := s.loop.Session()
		snap.Capture = &progress
	}
	if s.outcome != nil {
		out := cloneOutcome(*s.outcome)
		snap.Outcome = &out
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func cloneOutcome(out model.Outcome) model.Outcome {
	if out.RiskScore != nil {
		score := *out.RiskScore
		out.RiskScore = &score
	}
	if out.Reasons != nil {
		out.Reasons = append([]string(nil), out.Reasons...)
	}
	return out
}
