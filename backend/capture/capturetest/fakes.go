// Package capturetest provides deterministic fakes for driving capture sessions in tests.
package capturetest

import (
	"context"
	"errors"
	"sync"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// StepScheduler queues tasks until the test runs them
type StepScheduler struct {
	mu    sync.Mutex
	queue []*stepTask
}

type stepTask struct {
	fn        func()
	cancelled bool
}

// Schedule implements capture.Scheduler
func (s *StepScheduler) Schedule(task func()) func() {
	t := &stepTask{fn: task}
	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Pending returns the number of queued, non-cancelled tasks
func (s *StepScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.queue {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Step runs the oldest queued task in the calling goroutine.
// Cancelled tasks are dropped. It returns false when nothing was run.
func (s *StepScheduler) Step() bool {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return false
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		cancelled := t.cancelled
		s.mu.Unlock()

		if !cancelled {
			t.fn()
			return true
		}
	}
}

// RunUntilIdle steps until the queue is empty or max tasks ran; it returns the count
func (s *StepScheduler) RunUntilIdle(max int) int {
	n := 0
	for n < max && s.Step() {
		n++
	}
	return n
}

// RunStale runs every queued task, even cancelled ones. It simulates a
// scheduler that could not withdraw a task in time.
func (s *StepScheduler) RunStale() int {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range batch {
		t.fn()
	}
	return len(batch)
}

// Device is a fake camera
type Device struct {
	mu       sync.Mutex
	OpenErr  error
	opened   int
	closed   int
	NotReady int
}

// Open implements capture.Device
func (d *Device) Open(ctx context.Context) (capture.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.opened++
	return &Source{device: d, notReady: d.NotReady}, nil
}

// Opened returns how many sources were opened
func (d *Device) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed returns how many sources were closed
func (d *Device) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// OpenNow returns how many sources are open right now
func (d *Device) OpenNow() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened - d.closed
}

// Source is a fake stream that yields a new frame on every call once ready
type Source struct {
	device   *Device
	mu       sync.Mutex
	notReady int
	seq      uint64
	closed   bool
}

// Ready reports false for the first NotReady polls
func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.notReady > 0 {
		s.notReady--
		return false
	}
	return true
}

// Frame returns a synthetic frame
func (s *Source) Frame() (model.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Frame{}, capture.ErrNotStreaming
	}
	s.seq++
	return model.Frame{Seq: s.seq, Data: []byte{byte(s.seq)}, ContentType: "image/jpeg"}, nil
}

// Close implements capture.Source
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.device.mu.Lock()
	s.device.closed++
	s.device.mu.Unlock()
	return nil
}

// ErrScripted is returned by Extractor for Fail steps
var ErrScripted = errors.New("scripted extraction failure")

// Step is one scripted extractor result
type Step int

// Scripted results
const (
	No Step = iota
	Yes
	Fail
)

// Extractor replays a script of detections. After the script ends it repeats Default.
type Extractor struct {
	mu      sync.Mutex
	Script  []Step
	Default Step
	InitErr error
	calls   int
	inits   int
}

// Init implements capture.Initializer
func (e *Extractor) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
	return e.InitErr
}

// DetectFace implements capture.Extractor
func (e *Extractor) DetectFace(ctx context.Context, frame model.Frame) (*model.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.Default
	if e.calls < len(e.Script) {
		step = e.Script[e.calls]
	}
	e.calls++

	switch step {
	case Yes:
		return &model.Detection{
			Box:        model.BoundingBox{X: 10, Y: 10, Width: 100, Height: 100},
			Descriptor: Descriptor(float32(frame.Seq)),
			Score:      0.9,
		}, nil
	case Fail:
		return nil, ErrScripted
	default:
		return nil, nil
	}
}

// Calls returns how many detections were requested
func (e *Extractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Inits returns how many times Init was called
func (e *Extractor) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

// Descriptor builds a full-length descriptor filled with v
func Descriptor(v float32) model.Descriptor {
	d := make(model.Descriptor, model.DescriptorSize)
	for i := range d {
		d[i] = v
	}
	return d
}
