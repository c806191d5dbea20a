package capture

import (
	"time"

	"k8s.io/utils/clock"
)

// Scheduler runs a task once, later. The returned func cancels the task if it has not started.
type Scheduler interface {
	Schedule(task func()) (cancel func())
}

// FrameScheduler runs each task one frame interval after it was scheduled
type FrameScheduler struct {
	clock    clock.WithDelayedExecution
	interval time.Duration
}

// NewFrameScheduler creates a scheduler on the real clock
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	return NewFrameSchedulerWithClock(clock.RealClock{}, interval)
}

// NewFrameSchedulerWithClock creates a scheduler on the given clock
func NewFrameSchedulerWithClock(c clock.WithDelayedExecution, interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &FrameScheduler{clock: c, interval: interval}
}

// Schedule implements Scheduler
func (s *FrameScheduler) Schedule(task func()) func() {
	timer := s.clock.AfterFunc(s.interval, task)
	return func() { timer.Stop() }
}

// Interval returns the frame cadence
func (s *FrameScheduler) Interval() time.Duration {
	return s.interval
}
