// Package handler defines the contract between the joint bridge and the
// service that actually tracks objects, along with the implementations used
// in production, development and tests.
package handler

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/touchlink/internal/settings"
)

// CodeShutdownFailed is returned by Shutdown when releasing the service
// connection failed.
const CodeShutdownFailed int32 = 0x00010003

// Log severities used in "[n] message" lines.
const (
	SeverityInfo    = 0
	SeverityWarning = 1
	SeverityError   = 2
	SeverityFatal   = 3
)

var (
	// ErrNotInitialized is returned by operations that need a live connection.
	ErrNotInitialized = errors.New("handler not initialized")
	// ErrConnectionLost is returned by Update once the service link is gone.
	ErrConnectionLost = errors.New("tracking service connection lost")
)

// DefaultObjectNames is the object set reported before the service has
// delivered its first frame.
var DefaultObjectNames = []string{
	"Left Touch Controller",
	"Right Touch Controller",
	"Oculus VR Headset",
}

// Object is one tracked object as reported by the service. Objects are
// produced fresh on every poll and are never shared with the caller's
// previous results.
type Object struct {
	Name                string
	Position            r3.Vec
	Orientation         quat.Number
	Velocity            r3.Vec
	Acceleration        r3.Vec
	AngularVelocity     r3.Vec
	AngularAcceleration r3.Vec
}

func (o Object) String() string {
	return fmt.Sprintf("%s @ (%.3f, %.3f, %.3f)", o.Name, o.Position.X, o.Position.Y, o.Position.Z)
}

// Handler is the tracking service connection consumed by the adapter.
type Handler interface {
	settings.Target

	// Initialize connects to the service and returns a raw status code.
	// Calling it on an initialized handler re-initializes it.
	Initialize() int32
	// Shutdown releases the connection and returns 0 on success.
	Shutdown() int32
	// Update advances the handler by one frame.
	Update() error
	// TrackedObjects returns the current object list. A nil slice with a nil
	// error means the service reports no objects.
	TrackedObjects() ([]Object, error)
	// IsInitialized reports whether Initialize has run since the last Shutdown.
	IsInitialized() bool
	// StatusResult returns the most recent raw status code.
	StatusResult() int32
	// SetLogSink installs the receiver for "[severity] message" lines.
	SetLogSink(func(string))
}

// FormatLog renders a handler log line.
func FormatLog(severity int, message string) string {
	return fmt.Sprintf("[%d] %s", severity, message)
}

// NormalizeOrientation scales q to unit length. A zero quaternion becomes
// the identity.
func NormalizeOrientation(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func copyObjects(src []Object) []Object {
	if src == nil {
		return nil
	}
	out := make([]Object, len(src))
	copy(out, src)
	return out
}

func defaultObjects() []Object {
	objs := make([]Object, len(DefaultObjectNames))
	for i, name := range DefaultObjectNames {
		objs[i] = Object{Name: name, Orientation: quat.Number{Real: 1}}
	}
	return objs
}
