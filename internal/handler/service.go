package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/touchlink/internal/monitoring"
	"github.com/banshee-data/touchlink/internal/serialmux"
	"github.com/banshee-data/touchlink/internal/status"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

// DefaultKeepAliveInterval is how often the keep-alive nudge is repeated.
const DefaultKeepAliveInterval = 10 * time.Minute

// Commands understood by the tracking service.
const (
	cmdStart     = "S"
	cmdStop      = "X"
	cmdKeepAlive = "KA"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Path is the serial device the tracking service is attached to.
	Path string
	// Port holds the serial line parameters.
	Port serialmux.PortOptions
	// KeepAliveInterval defaults to DefaultKeepAliveInterval.
	KeepAliveInterval time.Duration
	// Open defaults to serialmux.Open.
	Open serialmux.Opener
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Service is a Handler talking newline-delimited JSON to the tracking
// service over a serial link. Frames arrive asynchronously and are applied
// on Update, so TrackedObjects is stable between two Update calls.
type Service struct {
	cfg  ServiceConfig
	logf func(format string, v ...interface{})

	mu           sync.Mutex
	initialized  bool
	statusResult int32
	keepAlive    bool
	reduceRes    bool
	predictionMs int
	logSink      func(string)

	mux         *serialmux.SerialMux[serialmux.SerialPorter]
	cancel      context.CancelFunc
	monitorDone chan struct{}
	monitorErr  error
	readerDone  chan struct{}

	keepAliveStop chan struct{}
	keepAliveDone chan struct{}

	frameMu   sync.Mutex
	latest    []Object
	haveFrame bool
	objects   []Object
	frames    uint64
}

var _ Handler = (*Service)(nil)

// NewService returns an uninitialized Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.Open == nil {
		cfg.Open = serialmux.Open
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Service{
		cfg:          cfg,
		logf:         monitoring.Component("TrackingService"),
		statusResult: status.CodeNotStarted,
		reduceRes:    true,
		predictionMs: 11,
		objects:      defaultObjects(),
	}
}

// Initialize opens the serial link, pushes the current settings and starts
// streaming. An already initialized service is shut down first.
func (s *Service) Initialize() int32 {
	if s.IsInitialized() {
		s.log(SeverityWarning, "Handler already initialized, shutting down prior to reinitialization!")
		s.Shutdown()
	}

	port, err := s.cfg.Open(s.cfg.Path, s.cfg.Port)
	if err != nil {
		s.log(SeverityError, fmt.Sprintf("Could not open the tracking service link: %v", err))
		return s.finishInit(status.CodeInitFailed)
	}

	mux := serialmux.NewSerialMux(port)
	_, lines := mux.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})
	readerDone := make(chan struct{})

	s.mu.Lock()
	s.mux = mux
	s.cancel = cancel
	s.monitorDone = monitorDone
	s.monitorErr = nil
	s.readerDone = readerDone
	commands := []string{
		fmt.Sprintf("P=%d", s.predictionMs),
		"R=" + flag(s.reduceRes),
		cmdStart,
	}
	s.mu.Unlock()

	s.frameMu.Lock()
	s.latest, s.haveFrame, s.objects = nil, false, defaultObjects()
	s.frameMu.Unlock()

	go func() {
		defer close(readerDone)
		for line := range lines {
			s.handleLine(line)
		}
	}()
	go func() {
		err := mux.Monitor(ctx)
		s.mu.Lock()
		s.monitorErr = err
		s.mu.Unlock()
		close(monitorDone)
	}()

	for _, cmd := range commands {
		if err := mux.SendCommand(cmd); err != nil {
			s.log(SeverityError, fmt.Sprintf("Could not configure the tracking service (%s): %v", cmd, err))
			s.teardown()
			return s.finishInit(status.CodeInitFailed)
		}
	}

	return s.finishInit(status.CodeSuccess)
}

func (s *Service) finishInit(code int32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusResult = code
	s.initialized = true
	return code
}

// Shutdown stops streaming, the keep-alive loop and the monitor, then
// closes the port.
func (s *Service) Shutdown() int32 {
	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()

	s.stopKeepAlive()

	if err := s.teardown(); err != nil {
		s.log(SeverityError, fmt.Sprintf("Could not close the tracking service link: %v", err))
		s.mu.Lock()
		s.statusResult = status.CodeInitFailed
		s.mu.Unlock()
		return CodeShutdownFailed
	}

	s.mu.Lock()
	s.statusResult = status.CodeNotStarted
	s.mu.Unlock()
	return 0
}

// teardown closes the link if one is open and waits for its goroutines.
func (s *Service) teardown() error {
	s.mu.Lock()
	mux, cancel := s.mux, s.cancel
	monitorDone, readerDone := s.monitorDone, s.readerDone
	s.mux, s.cancel = nil, nil
	s.mu.Unlock()

	if mux == nil {
		return nil
	}

	if err := mux.SendCommand(cmdStop); err != nil {
		s.logf("stop command failed: %v", err)
	}
	cancel()
	err := mux.Close()
	<-monitorDone
	<-readerDone
	return err
}

// Update applies the most recent frame and reconciles the keep-alive loop
// with the keep-alive setting. It fails once the link has dropped.
func (s *Service) Update() error {
	s.mu.Lock()
	if !s.initialized || s.statusResult != status.CodeSuccess {
		s.mu.Unlock()
		return nil
	}
	monitorDone := s.monitorDone
	wantKeepAlive := s.keepAlive
	s.mu.Unlock()

	select {
	case <-monitorDone:
		s.mu.Lock()
		err := s.monitorErr
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	default:
	}

	if wantKeepAlive {
		s.startKeepAlive()
	} else {
		s.stopKeepAlive()
	}

	s.frameMu.Lock()
	if s.haveFrame {
		s.objects = s.latest
	}
	s.frames++
	s.frameMu.Unlock()
	return nil
}

// TrackedObjects returns a copy of the objects applied by the last Update.
func (s *Service) TrackedObjects() ([]Object, error) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return copyObjects(s.objects), nil
}

// Frames returns the number of successful Update calls.
func (s *Service) Frames() uint64 {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frames
}

func (s *Service) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Service) StatusResult() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusResult
}

func (s *Service) SetLogSink(f func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSink = f
}

func (s *Service) SetKeepAlive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAlive = v
}

// SetReduceResolution stores the flag and pushes it to a connected service.
func (s *Service) SetReduceResolution(v bool) {
	s.mu.Lock()
	s.reduceRes = v
	mux := s.mux
	s.mu.Unlock()
	s.push(mux, "R="+flag(v))
}

// SetPredictionMs stores the offset and pushes it to a connected service.
func (s *Service) SetPredictionMs(v int) {
	s.mu.Lock()
	s.predictionMs = v
	mux := s.mux
	s.mu.Unlock()
	s.push(mux, fmt.Sprintf("P=%d", v))
}

// Mux returns the live link, or nil while disconnected.
func (s *Service) Mux() serialmux.Mux {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mux == nil {
		return nil
	}
	return s.mux
}

// AttachAdminRoutes mounts the raw link routes. They resolve the current
// link per request, so they work across reconnects and answer 503 while
// disconnected.
func (s *Service) AttachAdminRoutes(mux *http.ServeMux) {
	serialmux.AttachLinkRoutes(mux, s.Mux)
}

func (s *Service) push(mux *serialmux.SerialMux[serialmux.SerialPorter], cmd string) {
	if mux == nil {
		return
	}
	if err := mux.SendCommand(cmd); err != nil {
		s.log(SeverityWarning, fmt.Sprintf("Could not push %s to the tracking service: %v", cmd, err))
	}
}

func (s *Service) startKeepAlive() {
	s.mu.Lock()
	if s.keepAliveStop != nil || s.mux == nil {
		s.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	s.keepAliveStop, s.keepAliveDone = stop, done
	mux := s.mux
	s.mu.Unlock()

	s.logf("keep-alive started (every %v)", s.cfg.KeepAliveInterval)
	go s.keepAliveLoop(mux, stop, done)
}

func (s *Service) stopKeepAlive() {
	s.mu.Lock()
	stop, done := s.keepAliveStop, s.keepAliveDone
	s.keepAliveStop, s.keepAliveDone = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logf("keep-alive stopped")
}

func (s *Service) keepAliveLoop(mux *serialmux.SerialMux[serialmux.SerialPorter], stop, done chan struct{}) {
	defer close(done)

	ticker := s.cfg.Clock.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	s.nudge(mux)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.nudge(mux)
		}
	}
}

func (s *Service) nudge(mux *serialmux.SerialMux[serialmux.SerialPorter]) {
	if err := mux.SendCommand(cmdKeepAlive); err != nil {
		s.logf("keep-alive nudge failed: %v", err)
	}
}

func (s *Service) log(severity int, message string) {
	s.mu.Lock()
	sink := s.logSink
	s.mu.Unlock()
	if sink == nil {
		s.logf("%s", FormatLog(severity, message))
		return
	}
	sink(FormatLog(severity, message))
}

// Wire format of the lines sent by the tracking service.
type wireObject struct {
	Name                string      `json:"name"`
	Position            [3]float64  `json:"position"`
	Orientation         *[4]float64 `json:"orientation"` // x, y, z, w
	Velocity            [3]float64  `json:"velocity"`
	Acceleration        [3]float64  `json:"acceleration"`
	AngularVelocity     [3]float64  `json:"angular_velocity"`
	AngularAcceleration [3]float64  `json:"angular_acceleration"`
}

type wireFrame struct {
	Objects []wireObject `json:"objects"`
}

type wireLog struct {
	Severity int    `json:"severity"`
	Message  string `json:"message"`
}

type wireStatus struct {
	Code int32 `json:"code"`
}

func (s *Service) handleLine(line string) {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineTypeFrame:
		objs, err := decodeFrame(line)
		if err != nil {
			s.logf("dropping malformed frame: %v", err)
			return
		}
		s.frameMu.Lock()
		s.latest, s.haveFrame = objs, true
		s.frameMu.Unlock()
	case serialmux.LineTypeLog:
		var l wireLog
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			s.logf("dropping malformed log line: %v", err)
			return
		}
		s.log(l.Severity, l.Message)
	case serialmux.LineTypeStatus:
		var st wireStatus
		if err := json.Unmarshal([]byte(line), &st); err != nil {
			s.logf("dropping malformed status line: %v", err)
			return
		}
		s.mu.Lock()
		s.statusResult = st.Code
		s.mu.Unlock()
		s.logf("service reported status %d (%s)", st.Code, status.Translate(st.Code).State)
	default:
		s.logf("ignoring line: %q", line)
	}
}

func decodeFrame(line string) ([]Object, error) {
	var f wireFrame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	objs := make([]Object, len(f.Objects))
	for i, w := range f.Objects {
		orientation := quat.Number{Real: 1}
		if w.Orientation != nil {
			o := w.Orientation
			orientation = NormalizeOrientation(quat.Number{Real: o[3], Imag: o[0], Jmag: o[1], Kmag: o[2]})
		}
		objs[i] = Object{
			Name:                w.Name,
			Position:            vec(w.Position),
			Orientation:         orientation,
			Velocity:            vec(w.Velocity),
			Acceleration:        vec(w.Acceleration),
			AngularVelocity:     vec(w.AngularVelocity),
			AngularAcceleration: vec(w.AngularAcceleration),
		}
	}
	return objs, nil
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
