package capture_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture/capturetest"
)

func TestResourceControllerAcquireRelease(t *testing.T) {
	device := &capturetest.Device{}
	ctrl := capture.NewResourceController(device)

	src, err := ctrl.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.True(t, ctrl.Active())

	_, err = ctrl.Acquire(context.Background())
	assert.ErrorIs(t, err, capture.ErrResourceUnavailable)
	assert.ErrorIs(t, err, capture.ErrResourceBusy)
	assert.Equal(t, 1, device.Opened(), "a second acquire must not open the device")

	require.NoError(t, ctrl.Release())
	require.NoError(t, ctrl.Release())
	assert.False(t, ctrl.Active())
	assert.Equal(t, 1, device.Closed())
	assert.Equal(t, 1, ctrl.Releases())
}

func TestResourceControllerReleaseWithoutAcquire(t *testing.T) {
	ctrl := capture.NewResourceController(&capturetest.Device{})
	assert.NoError(t, ctrl.Release())
	assert.Equal(t, 0, ctrl.Releases())
}

func TestResourceControllerFailsFast(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"permission denied", capture.ErrPermissionDenied},
		{"no device", capture.ErrNoDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &capturetest.Device{OpenErr: tt.cause}
			ctrl := capture.NewResourceController(device)

			_, err := ctrl.Acquire(context.Background())
			assert.ErrorIs(t, err, capture.ErrResourceUnavailable)
			assert.ErrorIs(t, err, tt.cause)
			assert.False(t, ctrl.Active())
			assert.Equal(t, 0, ctrl.Acquires())
		})
	}
}

func TestFeedDevice(t *testing.T) {
	device := capture.NewFeedDevice()

	_, err := device.Push([]byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, capture.ErrNotStreaming)

	src, err := device.Open(context.Background())
	require.NoError(t, err)
	assert.True(t, device.Streaming())
	assert.False(t, src.Ready(), "no frame pushed yet")

	_, err = device.Open(context.Background())
	assert.ErrorIs(t, err, capture.ErrResourceBusy)

	_, err = device.Push([]byte("a"), "image/jpeg")
	require.NoError(t, err)
	seq, err := device.Push([]byte("b"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, src.Ready())

	frame, err := src.Frame()
	require.NoError(t, err)
	assert.Equal(t, seq, frame.Seq, "only the latest frame is kept")
	assert.Equal(t, []byte("b"), frame.Data)
	assert.False(t, src.Ready(), "frames are consumed once")

	_, err = src.Frame()
	assert.ErrorIs(t, err, capture.ErrNoFrame)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.False(t, device.Streaming())

	_, err = device.Push([]byte("c"), "image/jpeg")
	assert.ErrorIs(t, err, capture.ErrNotStreaming)

	_, err = device.Open(context.Background())
	assert.NoError(t, err, "device can be reopened after close")
}

func TestFeedDeviceDisabled(t *testing.T) {
	device := capture.NewFeedDevice()
	device.Disable()

	ctrl := capture.NewResourceController(device)
	_, err := ctrl.Acquire(context.Background())
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.ErrorIs(t, err, capture.ErrResourceUnavailable)
}
