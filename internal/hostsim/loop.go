package hostsim

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/touchlink/internal/adapter"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

// LoopConfig configures a Loop.
type LoopConfig struct {
	// FrameInterval is the period between Update calls.
	FrameInterval time.Duration
	// ResyncInterval triggers a periodic resync when non-zero.
	ResyncInterval time.Duration
	// TraceLen is the number of frames kept for the height trace.
	TraceLen int
	Clock    timeutil.Clock
}

// Loop runs the host's two actors: the frame actor, which calls
// Device.Update under the host update lock once per frame, and the resync
// actor, which rebuilds the joint list on request.
type Loop struct {
	host   *Host
	device *adapter.Device
	cfg    LoopConfig

	resync chan struct{}
	trace  *Trace
}

// NewLoop returns a loop driving device on behalf of host.
func NewLoop(host *Host, device *adapter.Device, cfg LoopConfig) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 90
	}
	return &Loop{
		host:   host,
		device: device,
		cfg:    cfg,
		resync: make(chan struct{}, 1),
		trace:  NewTrace(cfg.TraceLen),
	}
}

// RequestResync asks the resync actor to rebuild the joint list. Requests
// made while one is already pending are merged.
func (l *Loop) RequestResync() {
	select {
	case l.resync <- struct{}{}:
	default:
	}
}

// Run drives both actors until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.runResync(ctx)
	}()
	defer wg.Wait()

	frames := l.cfg.Clock.NewTicker(l.cfg.FrameInterval)
	defer frames.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-frames.C():
			l.frame()
		}
	}
}

func (l *Loop) frame() {
	l.host.frameMu.Lock()
	defer l.host.frameMu.Unlock()
	l.device.Update()
	l.trace.Record(l.device.TrackedJoints().Snapshot())
}

// Trace returns the joint height trace recorded by the frame actor.
func (l *Loop) Trace() *Trace { return l.trace }

func (l *Loop) runResync(ctx context.Context) {
	var periodic <-chan time.Time
	if l.cfg.ResyncInterval > 0 {
		t := l.cfg.Clock.NewTicker(l.cfg.ResyncInterval)
		defer t.Stop()
		periodic = t.C()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.resync:
			l.device.Resync()
		case <-periodic:
			l.device.Resync()
		}
	}
}
