package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture/capturetest"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
)

func TestEnrollmentUsesStricterPolicy(t *testing.T) {
	h := newHarness(newFakeGateway())
	h.extractor.Default = capturetest.Yes
	e := h.enrollment()

	require.NoError(t, e.Start(context.Background()))
	assert.NotEmpty(t, e.ID())
	assert.Equal(t, model.KindEnrollment, e.Kind())

	for i := 0; i < capture.EnrollmentPolicy.RequiredStableFrames-1; i++ {
		require.True(t, h.sched.Step())
	}
	assert.Equal(t, 0, h.gw.count("enroll"))
	require.True(t, h.sched.Step())

	assert.Equal(t, orchestrator.StateConfirmed, e.State())
	requireClosed(t, e.Done())
	assert.Equal(t, 1, h.gw.count("enroll"))
	assert.Equal(t, 1, e.Attempts())
	assert.Equal(t, 0, h.device.OpenNow())

	outcomes := h.sink.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusAccepted, outcomes[0].Status)
	assert.Equal(t, model.KindEnrollment, outcomes[0].Kind)
	assert.Equal(t, "Face enrolled successfully", outcomes[0].Reason)
	assert.Empty(t, outcomes[0].TransactionID)
}

func TestEnrollmentRetriesWithFreshDescriptor(t *testing.T) {
	gw := newFakeGateway()
	gw.enrollErrs = []error{errBackend}
	h := newHarness(gw)
	h.extractor.Default = capturetest.Yes
	e := h.enrollment()

	require.NoError(t, e.Start(context.Background()))
	h.sched.RunUntilIdle(100)

	assert.Equal(t, orchestrator.StateConfirmed, e.State())
	assert.Equal(t, 2, gw.count("enroll"))
	assert.Equal(t, 2, e.Attempts())
	assert.Equal(t, 1, h.device.Opened(), "resource stays open between attempts")

	required := capture.EnrollmentPolicy.RequiredStableFrames
	require.Len(t, gw.descriptors, 2)
	assert.Equal(t, float32(required), gw.descriptors[0][0])
	assert.Equal(t, float32(2*required), gw.descriptors[1][0], "second attempt uses a new stable run")

	snap := e.Snapshot()
	assert.Equal(t, 2, snap.Attempts)
	assert.True(t, snap.Finished())
}

func TestEnrollmentGivesUpAfterMaxAttempts(t *testing.T) {
	gw := newFakeGateway()
	gw.enrollErrs = []error{errBackend, errBackend, errBackend}
	h := newHarness(gw)
	h.extractor.Default = capturetest.Yes
	e := h.enrollment(orchestrator.WithMaxAttempts(2))

	require.NoError(t, e.Start(context.Background()))
	h.sched.RunUntilIdle(100)

	assert.Equal(t, orchestrator.StateFailed, e.State())
	assert.ErrorIs(t, e.Err(), orchestrator.ErrNetworkFailure)
	assert.ErrorIs(t, e.Err(), errBackend)
	assert.Equal(t, 2, gw.count("enroll"))
	assert.Equal(t, 0, h.device.OpenNow())
	assert.Equal(t, 0, h.sched.Pending())

	out, ok := e.Outcome()
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, out.Status)
	assert.Equal(t, "Face enrollment failed", out.Reason)
}

func TestEnrollmentDefaultAttempts(t *testing.T) {
	gw := newFakeGateway()
	gw.enrollErrs = []error{errBackend, errBackend, errBackend, errBackend}
	h := newHarness(gw)
	h.extractor.Default = capturetest.Yes
	e := h.enrollment()

	require.NoError(t, e.Start(context.Background()))
	h.sched.RunUntilIdle(100)

	assert.Equal(t, orchestrator.StateFailed, e.State())
	assert.Equal(t, 3, gw.count("enroll"))
}

func TestEnrollmentDoubleStart(t *testing.T) {
	h := newHarness(newFakeGateway())
	e := h.enrollment()

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), orchestrator.ErrAlreadyStarted)
	assert.Equal(t, 1, h.device.Opened())

	e.Stop("")
	assert.ErrorIs(t, e.Start(context.Background()), orchestrator.ErrSessionClosed)
}

func TestEnrollmentStop(t *testing.T) {
	h := newHarness(newFakeGateway())
	h.extractor.Default = capturetest.No
	e := h.enrollment()

	require.NoError(t, e.Start(context.Background()))
	h.sched.RunUntilIdle(10)
	e.Stop("user left")

	assert.Equal(t, orchestrator.StateFailed, e.State())
	assert.ErrorIs(t, e.Err(), orchestrator.ErrCancelled)
	assert.Equal(t, 0, h.device.OpenNow())
	assert.Equal(t, 0, h.gw.count("enroll"))

	outcomes := h.sink.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "user left", outcomes[0].Reason)
}

func TestEnrollmentCaptureUnavailable(t *testing.T) {
	h := newHarness(newFakeGateway())
	h.device.OpenErr = capture.ErrPermissionDenied
	e := h.enrollment()

	err := e.Start(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrCaptureStartFailed)
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Equal(t, orchestrator.StateFailed, e.State())
}
