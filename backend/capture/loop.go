package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
)

// Extractor is the face detection capability. A nil detection with a nil
// error means no face was found in the frame.
type Extractor interface {
	DetectFace(ctx context.Context, frame model.Frame) (*model.Detection, error)
}

// Initializer is implemented by extractors that must load models before the first frame
type Initializer interface {
	Init(ctx context.Context) error
}

// StableFunc receives the detection of the frame that crossed the threshold
type StableFunc func(ctx context.Context, det model.Detection)

// SignalFunc observes every accumulator signal, e.g. to drive a "hold steady" indicator
type SignalFunc func(sig Signal, count, required int)

// SamplingLoop pulls one frame per iteration, asks the extractor for a detection
// and feeds the accumulator. Each iteration reschedules the next one instead of
// blocking, and checks the liveness flag before doing any work.
type SamplingLoop struct {
	source    Source
	extractor Extractor
	acc       *StabilityAccumulator
	scheduler Scheduler
	onStable  StableFunc
	onSignal  SignalFunc

	ctx       context.Context
	live      atomic.Bool
	triggered atomic.Bool
	frames    atomic.Uint64

	mu     sync.Mutex
	cancel func()
}

// NewSamplingLoop creates a stopped loop
func NewSamplingLoop(src Source, extractor Extractor, acc *StabilityAccumulator, scheduler Scheduler, onStable StableFunc) *SamplingLoop {
	return &SamplingLoop{
		source:    src,
		extractor: extractor,
		acc:       acc,
		scheduler: scheduler,
		onStable:  onStable,
		ctx:       context.Background(),
	}
}

// OnSignal registers an observer for accumulator signals. Call before Start.
func (l *SamplingLoop) OnSignal(fn SignalFunc) {
	l.onSignal = fn
}

// Start schedules the first iteration. It is a no-op if the loop is running
// or has already triggered.
func (l *SamplingLoop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.live.Load() || l.triggered.Load() {
		l.mu.Unlock()
		return
	}
	l.ctx = ctx
	l.live.Store(true)
	l.mu.Unlock()

	l.schedule()
}

// Stop prevents any further iteration from running, including one already queued
func (l *SamplingLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.live.Store(false)
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Rearm clears the one-shot guard and the accumulator, then starts sampling again
func (l *SamplingLoop) Rearm(ctx context.Context) {
	l.Stop()
	l.acc.Rearm()
	l.triggered.Store(false)
	l.Start(ctx)
}

// Live reports whether iterations are still being scheduled
func (l *SamplingLoop) Live() bool {
	return l.live.Load()
}

// Triggered reports whether the loop already handed a detection to OnStable
func (l *SamplingLoop) Triggered() bool {
	return l.triggered.Load()
}

// Session returns a snapshot of the loop state
func (l *SamplingLoop) Session() model.CaptureProgress {
	return model.CaptureProgress{
		Active:               l.live.Load(),
		StableCount:          l.acc.Count(),
		RequiredStableFrames: l.acc.Required(),
		Triggered:            l.triggered.Load(),
		Frames:               l.frames.Load(),
	}
}

func (l *SamplingLoop) schedule() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.live.Load() {
		return
	}
	l.cancel = l.scheduler.Schedule(l.iterate)
}

func (l *SamplingLoop) iterate() {
	if !l.live.Load() {
		return
	}

	l.mu.Lock()
	ctx := l.ctx
	l.mu.Unlock()
	if ctx.Err() != nil {
		l.Stop()
		return
	}

	if !l.source.Ready() {
		l.schedule()
		return
	}

	frame, err := l.source.Frame()
	if err != nil {
		if !errors.Is(err, ErrNoFrame) {
			logger.Debug(ctx, "frame read failed", "error", err)
		}
		l.schedule()
		return
	}
	l.frames.Add(1)

	det, err := l.extractor.DetectFace(ctx, frame)
	if !l.live.Load() {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordFrame(metrics.FrameError)
		logger.Warn(ctx, "face extraction failed, resetting stability", "frame_seq", frame.Seq, "error", err)
		l.acc.Reset()
		l.notify(SignalLost)
		l.schedule()
		return
	}

	if det != nil {
		metrics.RecordFrame(metrics.FrameDetected)
	} else {
		metrics.RecordFrame(metrics.FrameNoFace)
	}
	sig := l.acc.Observe(det != nil)
	l.notify(sig)

	if sig == SignalThresholdReached && l.triggered.CompareAndSwap(false, true) {
		l.Stop()
		logger.Debug(ctx, "stability threshold reached", "frame_seq", frame.Seq, "required", l.acc.Required())
		l.onStable(ctx, *det)
		return
	}

	l.schedule()
}

func (l *SamplingLoop) notify(sig Signal) {
	if l.onSignal != nil {
		l.onSignal(sig, l.acc.Count(), l.acc.Required())
	}
}
