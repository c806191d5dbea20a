// Package capture owns the live video resource and the sampling loop that turns
// a stream of frames into one stable face detection.
package capture

import "errors"

var (
	// ErrResourceUnavailable is returned when the video resource cannot be acquired.
	// It wraps the device-level cause.
	ErrResourceUnavailable = errors.New("capture resource unavailable")
	// ErrPermissionDenied is returned by a device the user has not granted access to.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNoDevice is returned when no capture device exists.
	ErrNoDevice = errors.New("no capture device")
	// ErrResourceBusy is returned when a resource is already open.
	ErrResourceBusy = errors.New("capture resource already in use")
	// ErrNotStreaming is returned when frames are pushed to a closed resource.
	ErrNotStreaming = errors.New("capture resource is not streaming")
	// ErrNoFrame is returned by a source that has no unread frame.
	ErrNoFrame = errors.New("no frame available")
	// ErrExtraction marks a failed detection call. The loop absorbs it.
	ErrExtraction = errors.New("face extraction failed")
)
