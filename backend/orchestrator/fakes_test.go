package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture/capturetest"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/service"
)

var errBackend = errors.New("backend unavailable")

type fakeGateway struct {
	mu sync.Mutex

	risk    service.RiskResponse
	riskErr error

	txID        string
	initErr     error
	initStarted chan struct{}
	initRelease chan struct{}

	verdict       service.VerifyResponse
	verifyErr     error
	verifyStarted chan struct{}
	verifyBlock   bool

	confirmErr error
	enrollErrs []error

	calls        map[string]int
	idemKeys     []string
	descriptors  []model.Descriptor
	confirms     []service.ConfirmRequest
	verifyCtxErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		risk:    service.RiskResponse{Decision: model.DecisionManualReview},
		txID:    "T1",
		verdict: service.VerifyResponse{Decision: model.DecisionApproved, Risk: 0.12, Reasons: []string{"face match"}},
		calls:   make(map[string]int),
	}
}

func (g *fakeGateway) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[call]
}

func (g *fakeGateway) EvaluateRisk(ctx context.Context, amount float64, merchant, purpose string) (*service.RiskResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["risk"]++
	if g.riskErr != nil {
		return nil, g.riskErr
	}
	resp := g.risk
	return &resp, nil
}

func (g *fakeGateway) InitiateTransaction(ctx context.Context, amount float64, key string) (string, error) {
	g.mu.Lock()
	g.calls["init"]++
	g.idemKeys = append(g.idemKeys, key)
	started, release := g.initStarted, g.initRelease
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.txID, nil
}

func (g *fakeGateway) VerifyFace(ctx context.Context, descriptor model.Descriptor, amount float64) (*service.VerifyResponse, error) {
	g.mu.Lock()
	g.calls["verify"]++
	g.descriptors = append(g.descriptors, descriptor)
	started, block := g.verifyStarted, g.verifyBlock
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block {
		<-ctx.Done()
		g.mu.Lock()
		g.verifyCtxErr = ctx.Err()
		g.mu.Unlock()
		return nil, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	resp := g.verdict
	return &resp, nil
}

func (g *fakeGateway) ConfirmTransaction(ctx context.Context, req service.ConfirmRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["confirm"]++
	g.confirms = append(g.confirms, req)
	return g.confirmErr
}

func (g *fakeGateway) EnrollFace(ctx context.Context, descriptor model.Descriptor) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["enroll"]++
	g.descriptors = append(g.descriptors, descriptor)
	n := g.calls["enroll"]
	if n <= len(g.enrollErrs) {
		return g.enrollErrs[n-1]
	}
	return nil
}

// outcomeRecorder is an OutcomeSink that keeps everything it receives
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	err      error
}

func (r *outcomeRecorder) Publish(ctx context.Context, out model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
	return r.err
}

func (r *outcomeRecorder) all() []model.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Outcome(nil), r.outcomes...)
}

type harness struct {
	gw        *fakeGateway
	device    *capturetest.Device
	extractor *capturetest.Extractor
	sched     *capturetest.StepScheduler
	sink      *outcomeRecorder
}

func newHarness(gw *fakeGateway) *harness {
	return &harness{
		gw:        gw,
		device:    &capturetest.Device{},
		extractor: &capturetest.Extractor{},
		sched:     &capturetest.StepScheduler{},
		sink:      &outcomeRecorder{},
	}
}

func (h *harness) deps() orchestrator.CaptureDeps {
	return orchestrator.CaptureDeps{
		Extractor: h.extractor,
		Device:    h.device,
		Scheduler: h.sched,
	}
}

func (h *harness) payment(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{orchestrator.WithOutcomeSink(h.sink), orchestrator.WithID("session-1")}, opts...)
	return orchestrator.New(h.gw, h.deps(), opts...)
}

func (h *harness) enrollment(opts ...orchestrator.Option) *orchestrator.Enrollment {
	opts = append([]orchestrator.Option{orchestrator.WithOutcomeSink(h.sink)}, opts...)
	return orchestrator.NewEnrollment(h.gw, h.deps(), opts...)
}

// requireClosed fails unless ch is already closed
func requireClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	default:
		t.Fatal("expected channel to be closed")
	}
}
