package capture

import "sync"

// Signal is what the accumulator reports for one observed frame
type Signal int

const (
	// SignalProgress means a face was seen and the threshold is not reached yet
	SignalProgress Signal = iota
	// SignalLost means the face was lost and the counter went back to zero
	SignalLost
	// SignalThresholdReached fires once per session, on the frame the counter first equals the threshold
	SignalThresholdReached
)

func (s Signal) String() string {
	switch s {
	case SignalProgress:
		return "progress"
	case SignalLost:
		return "lost"
	case SignalThresholdReached:
		return "threshold_reached"
	default:
		return "unknown"
	}
}

// Policy is a named stability threshold
type Policy struct {
	Name                 string
	RequiredStableFrames int
}

// Default policies. Enrollment trades latency for accuracy, step-up does not.
var (
	StepUpPolicy     = Policy{Name: "step_up", RequiredStableFrames: 3}
	EnrollmentPolicy = Policy{Name: "enrollment", RequiredStableFrames: 6}
)

// WithFrames returns a copy of p with a different threshold. Non-positive values keep p.
func (p Policy) WithFrames(n int) Policy {
	if n > 0 {
		p.RequiredStableFrames = n
	}
	return p
}

// StabilityAccumulator counts consecutive positive detections
type StabilityAccumulator struct {
	mu       sync.Mutex
	required int
	count    int
	fired    bool
}

// NewStabilityAccumulator creates an accumulator for the given policy
func NewStabilityAccumulator(p Policy) *StabilityAccumulator {
	required := p.RequiredStableFrames
	if required < 1 {
		required = 1
	}
	return &StabilityAccumulator{required: required}
}

// Observe records one frame result.
// The threshold check is strict equality so the signal stays single-shot
// even if the caller keeps feeding frames after it.
func (a *StabilityAccumulator) Observe(detected bool) Signal {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !detected {
		a.count = 0
		return SignalLost
	}

	a.count++
	if a.count == a.required && !a.fired {
		a.fired = true
		return SignalThresholdReached
	}
	return SignalProgress
}

// Reset drops accumulated evidence but keeps the fired flag
func (a *StabilityAccumulator) Reset() {
	a.mu.Lock()
	a.count = 0
	a.mu.Unlock()
}

// Rearm makes the accumulator fire again, for sessions that resample after a failed action
func (a *StabilityAccumulator) Rearm() {
	a.mu.Lock()
	a.count = 0
	a.fired = false
	a.mu.Unlock()
}

// Count returns the current consecutive detection count
func (a *StabilityAccumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Required returns the threshold
func (a *StabilityAccumulator) Required() int {
	return a.required
}

// Fired reports whether the threshold signal was already emitted
func (a *StabilityAccumulator) Fired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired
}
