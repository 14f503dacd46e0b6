package handler

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/touchlink/internal/status"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

// Synthetic is a Handler that needs no tracking service. It reports the
// default object set moving on horizontal circles, for dev mode and demos.
type Synthetic struct {
	clock timeutil.Clock

	// Radius of the circular paths in metres.
	Radius float64
	// Period of one revolution.
	Period time.Duration

	mu           sync.Mutex
	start        time.Time
	initialized  bool
	statusResult int32
	objects      []Object
	logSink      func(string)

	keepAlive    bool
	reduceRes    bool
	predictionMs int
}

var _ Handler = (*Synthetic)(nil)

// NewSynthetic returns a synthetic handler driven by clock.
func NewSynthetic(clock timeutil.Clock) *Synthetic {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Synthetic{
		clock:        clock,
		Radius:       0.3,
		Period:       4 * time.Second,
		statusResult: status.CodeNotStarted,
		objects:      defaultObjects(),
	}
}

func (s *Synthetic) Initialize() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = s.clock.Now()
	s.initialized = true
	s.statusResult = status.CodeSuccess
	s.objects = defaultObjects()
	if s.logSink != nil {
		s.logSink(FormatLog(SeverityInfo, "Synthetic tracking source started"))
	}
	return s.statusResult
}

func (s *Synthetic) Shutdown() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.statusResult = status.CodeNotStarted
	return 0
}

// Update recomputes every object's pose for the current clock time, looking
// predictionMs into the future.
func (s *Synthetic) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	elapsed := s.clock.Since(s.start) + time.Duration(s.predictionMs)*time.Millisecond
	omega := 2 * math.Pi / s.Period.Seconds()

	objs := make([]Object, len(DefaultObjectNames))
	for i, name := range DefaultObjectNames {
		phase := omega*elapsed.Seconds() + float64(i)*2*math.Pi/float64(len(DefaultObjectNames))
		sin, cos := math.Sincos(phase)
		height := 1.0
		if i == len(DefaultObjectNames)-1 {
			height = 1.7
		}
		half := phase / 2
		objs[i] = Object{
			Name:                name,
			Position:            r3.Vec{X: s.Radius * cos, Y: height, Z: s.Radius * sin},
			Orientation:         quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)},
			Velocity:            r3.Vec{X: -s.Radius * omega * sin, Z: s.Radius * omega * cos},
			Acceleration:        r3.Vec{X: -s.Radius * omega * omega * cos, Z: -s.Radius * omega * omega * sin},
			AngularVelocity:     r3.Vec{Y: omega},
			AngularAcceleration: r3.Vec{},
		}
	}
	s.objects = objs
	return nil
}

func (s *Synthetic) TrackedObjects() ([]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyObjects(s.objects), nil
}

func (s *Synthetic) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Synthetic) StatusResult() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusResult
}

func (s *Synthetic) SetLogSink(f func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSink = f
}

func (s *Synthetic) SetKeepAlive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAlive = v
}

func (s *Synthetic) SetReduceResolution(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reduceRes = v
}

func (s *Synthetic) SetPredictionMs(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictionMs = v
}
