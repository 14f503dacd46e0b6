// Package status maps the raw result codes reported by a tracking handler
// onto the lifecycle states the host understands.
package status

import "fmt"

// Raw handler result codes. Anything else is reported as Undefined.
const (
	CodeSuccess    int32 = 0
	CodeInitFailed int32 = 0x00010001
	CodeNotStarted int32 = 0x00010002
)

// Localization keys for the known states.
const (
	KeyNotStarted  = "/Plugins/TouchLink/Statuses/NotStarted"
	KeySuccess     = "/Plugins/TouchLink/Statuses/Success"
	KeyInitFailure = "/Plugins/TouchLink/Statuses/InitFailure"
)

// State is the lifecycle state of the tracking service connection.
type State int

const (
	Undefined State = iota
	Success
	NotStarted
	ErrorInitFailed
)

func (s State) String() string {
	switch s {
	case Success:
		return "Success"
	case NotStarted:
		return "NotStarted"
	case ErrorInitFailed:
		return "ErrorInitFailed"
	default:
		return "Undefined"
	}
}

// Status is a translated handler result. Code is kept for every state but
// only carries diagnostic meaning when State is Undefined.
type Status struct {
	State      State
	Code       int32
	MessageKey string
}

// Translate converts a raw handler code into a Status.
func Translate(code int32) Status {
	switch code {
	case CodeSuccess:
		return Status{State: Success, Code: code, MessageKey: KeySuccess}
	case CodeNotStarted:
		return Status{State: NotStarted, Code: code, MessageKey: KeyNotStarted}
	case CodeInitFailed:
		return Status{State: ErrorInitFailed, Code: code, MessageKey: KeyInitFailure}
	default:
		return Status{State: Undefined, Code: code}
	}
}

// Ready reports whether the device may drive the host.
func (s Status) Ready() bool {
	return s.State == Success
}

// Undefined returns the raw code and true when the status is not one of the
// known states.
func (s Status) Undefined() (int32, bool) {
	if s.State != Undefined {
		return 0, false
	}
	return s.Code, true
}

// UndefinedMessage is the diagnostic text shown for unknown codes.
func UndefinedMessage(code int32) string {
	return fmt.Sprintf("Undefined: %d\nE_UNDEFINED\nSomething weird has happened, though we can't tell what.", code)
}

// Text renders the status for display. Known states are resolved through
// the host's localization; unknown states, and every state before the
// plugin finished loading, fall back to UndefinedMessage.
func (s Status) Text(resolve func(key string) string, loaded bool) string {
	if !loaded || s.State == Undefined || resolve == nil {
		return UndefinedMessage(s.Code)
	}
	return resolve(s.MessageKey)
}
