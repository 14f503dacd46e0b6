package handler

import (
	"sync"

	"github.com/banshee-data/touchlink/internal/status"
)

// Mock is a scriptable Handler for tests. Exported fields may be changed
// between calls; all access goes through the mutex.
type Mock struct {
	mu sync.Mutex

	// InitializeResult is returned by Initialize.
	InitializeResult int32
	// ShutdownResult is returned by Shutdown.
	ShutdownResult int32
	// Objects is returned by TrackedObjects.
	Objects []Object
	// ObjectsError is returned by TrackedObjects when set.
	ObjectsError error
	// UpdateError is returned by Update when set.
	UpdateError error
	// ObjectsHook runs at the start of every TrackedObjects call.
	ObjectsHook func()

	initialized  bool
	statusResult int32
	logSink      func(string)

	KeepAlive        bool
	ReduceResolution bool
	PredictionMs     int

	InitializeCalls int
	ShutdownCalls   int
	UpdateCalls     int
	ObjectsCalls    int
}

var _ Handler = (*Mock)(nil)

// NewMock returns a mock that initializes successfully with no objects.
func NewMock() *Mock {
	return &Mock{
		InitializeResult: status.CodeSuccess,
		statusResult:     status.CodeNotStarted,
	}
}

func (m *Mock) Initialize() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitializeCalls++
	m.initialized = true
	m.statusResult = m.InitializeResult
	return m.statusResult
}

func (m *Mock) Shutdown() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShutdownCalls++
	m.initialized = false
	return m.ShutdownResult
}

func (m *Mock) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	return m.UpdateError
}

func (m *Mock) TrackedObjects() ([]Object, error) {
	m.mu.Lock()
	hook := m.ObjectsHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ObjectsCalls++
	if m.ObjectsError != nil {
		return nil, m.ObjectsError
	}
	return copyObjects(m.Objects), nil
}

func (m *Mock) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *Mock) StatusResult() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusResult
}

// SetStatus overrides the status without going through Initialize.
func (m *Mock) SetStatus(code int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusResult = code
}

// SetObjects replaces the object list.
func (m *Mock) SetObjects(objs []Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects = objs
}

// SetErrors installs the Update and TrackedObjects errors.
func (m *Mock) SetErrors(update, objects error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateError = update
	m.ObjectsError = objects
}

func (m *Mock) SetLogSink(f func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logSink = f
}

// Emit sends a log line through the installed sink.
func (m *Mock) Emit(severity int, message string) {
	m.mu.Lock()
	sink := m.logSink
	m.mu.Unlock()
	if sink != nil {
		sink(FormatLog(severity, message))
	}
}

func (m *Mock) SetKeepAlive(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KeepAlive = v
}

func (m *Mock) SetReduceResolution(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReduceResolution = v
}

func (m *Mock) SetPredictionMs(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PredictionMs = v
}

// Calls returns the Update and TrackedObjects call counts.
func (m *Mock) Calls() (update, objects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpdateCalls, m.ObjectsCalls
}
