package capture

import (
	"context"
	"sync"
	"time"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// FeedDevice is a camera whose frames are pushed in by the UI layer.
// Only the latest unread frame is kept; older ones are dropped.
type FeedDevice struct {
	mu       sync.Mutex
	disabled bool
	open     *feedSource
	seq      uint64
}

// NewFeedDevice creates an enabled feed device
func NewFeedDevice() *FeedDevice {
	return &FeedDevice{}
}

// Disable revokes camera access. Later Open calls fail with ErrPermissionDenied.
func (d *FeedDevice) Disable() {
	d.mu.Lock()
	d.disabled = true
	d.mu.Unlock()
}

// Open starts streaming
func (d *FeedDevice) Open(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disabled {
		return nil, ErrPermissionDenied
	}
	if d.open != nil {
		return nil, ErrResourceBusy
	}

	d.open = &feedSource{device: d}
	return d.open, nil
}

// Streaming reports whether a source is open
func (d *FeedDevice) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open != nil
}

// Push delivers a frame to the open source and returns its sequence number
func (d *FeedDevice) Push(data []byte, contentType string) (uint64, error) {
	d.mu.Lock()
	src := d.open
	if src == nil {
		d.mu.Unlock()
		return 0, ErrNotStreaming
	}
	d.seq++
	frame := model.Frame{
		Seq:         d.seq,
		Data:        data,
		ContentType: contentType,
		CapturedAt:  time.Now(),
	}
	d.mu.Unlock()

	if !src.put(frame) {
		return 0, ErrNotStreaming
	}
	return frame.Seq, nil
}

func (d *FeedDevice) detach(s *feedSource) {
	d.mu.Lock()
	if d.open == s {
		d.open = nil
	}
	d.mu.Unlock()
}

type feedSource struct {
	device *FeedDevice

	mu     sync.Mutex
	latest *model.Frame
	closed bool
}

func (s *feedSource) put(frame model.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.latest = &frame
	return true
}

func (s *feedSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.latest != nil
}

func (s *feedSource) Frame() (model.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Frame{}, ErrNotStreaming
	}
	if s.latest == nil {
		return model.Frame{}, ErrNoFrame
	}
	frame := *s.latest
	s.latest = nil
	return frame, nil
}

func (s *feedSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.latest = nil
	s.mu.Unlock()

	s.device.detach(s)
	return nil
}
