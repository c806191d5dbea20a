package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSessionLifecycle(t *testing.T) {
	Reset()

	RecordSessionStarted("payment")
	RecordSessionStarted("payment")
	RecordSessionStarted("enrollment")
	RecordOutcome("payment", "ACCEPTED", "LOW")

	assert.Equal(t, 2.0, testutil.ToFloat64(sessionsStarted.WithLabelValues("payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsActive.WithLabelValues("payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsActive.WithLabelValues("enrollment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("payment", "ACCEPTED", "LOW")))
}

func TestRecordFrames(t *testing.T) {
	Reset()

	RecordFrame(FrameDetected)
	RecordFrame(FrameDetected)
	RecordFrame(FrameNoFace)
	RecordFrame(FrameError)
	RecordStabilityTrigger("payment")

	assert.Equal(t, 2.0, testutil.ToFloat64(framesProcessed.WithLabelValues(FrameDetected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesProcessed.WithLabelValues(FrameNoFace)))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesProcessed.WithLabelValues(FrameError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(stabilityTriggers.WithLabelValues("payment")))
}

func TestObserveGatewayCall(t *testing.T) {
	Reset()

	ObserveGatewayCall("face_verify", 20*time.Millisecond, nil)
	ObserveGatewayCall("face_verify", 40*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1, testutil.CollectAndCount(gatewayDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(gatewayErrors.WithLabelValues("face_verify")))
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	Reset()
	Register()
	Register()
	RecordSessionStarted("payment")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stepup_agent_sessions_started_total"))
}
