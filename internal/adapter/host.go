// Package adapter bridges a tracking handler into the host's tracking-device
// surface: lifecycle and status reporting, joint list resync and the
// per-frame pose copy.
package adapter

import (
	"github.com/banshee-data/touchlink/internal/settings"
)

// Severity is the level of a host log record.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Sound is a host sound cue.
type Sound int

const (
	SoundInvoke Sound = iota
	SoundToggleOn
	SoundToggleOff
)

func (s Sound) String() string {
	switch s {
	case SoundInvoke:
		return "invoke"
	case SoundToggleOn:
		return "toggle_on"
	case SoundToggleOff:
		return "toggle_off"
	default:
		return "unknown"
	}
}

// TryLocker is the host's frame update lock. *sync.Mutex satisfies it.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// Host is everything the device needs from the application embedding it.
type Host interface {
	Log(message string, severity Severity)
	RequestLocalizedString(key string) string
	Settings() settings.Store
	PlayAppSound(sound Sound)
	// UpdateLock is held by the host while it runs its per-frame pass.
	// It may return nil when the host has no such lock.
	UpdateLock() TryLocker
	RefreshStatusInterface()
}
