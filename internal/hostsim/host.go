// Package hostsim is a small standalone host for the tracking device: it
// provides the host services the adapter consumes, drives the per-frame
// update loop and exposes the device over debug HTTP routes.
package hostsim

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/touchlink/internal/adapter"
	"github.com/banshee-data/touchlink/internal/monitoring"
	"github.com/banshee-data/touchlink/internal/settings"
	"github.com/banshee-data/touchlink/internal/status"
)

var logf = monitoring.Component("host")

// DefaultStrings are the English texts for the status keys.
var DefaultStrings = map[string]string{
	status.KeyNotStarted:  "The TouchLink service is not running. Start it and restart the device.",
	status.KeySuccess:     "Success! (Code 0)\nI_OK\n\nEverything's good!",
	status.KeyInitFailure: "Couldn't connect to the TouchLink service.\nE_INIT_FAILED\n\nCheck that the service is installed and the port is correct.",
}

// Host implements adapter.Host for a standalone process.
type Host struct {
	store   settings.Store
	strings map[string]string

	frameMu   sync.Mutex
	refreshes atomic.Uint64
	sounds    atomic.Uint64
}

var _ adapter.Host = (*Host)(nil)

// New returns a host backed by store. overrides take precedence over
// DefaultStrings.
func New(store settings.Store, overrides map[string]string) *Host {
	strs := make(map[string]string, len(DefaultStrings)+len(overrides))
	for k, v := range DefaultStrings {
		strs[k] = v
	}
	for k, v := range overrides {
		strs[k] = v
	}
	return &Host{store: store, strings: strs}
}

func (h *Host) Log(message string, severity adapter.Severity) {
	logf("%s: %s", severity, message)
}

// RequestLocalizedString resolves key, falling back to the key itself.
func (h *Host) RequestLocalizedString(key string) string {
	if s, ok := h.strings[key]; ok {
		return s
	}
	return key
}

func (h *Host) Settings() settings.Store { return h.store }

func (h *Host) PlayAppSound(sound adapter.Sound) {
	h.sounds.Add(1)
	logf("sound: %s", sound)
}

func (h *Host) UpdateLock() adapter.TryLocker { return &h.frameMu }

func (h *Host) RefreshStatusInterface() {
	h.refreshes.Add(1)
}

// Refreshes returns how many status refreshes were requested.
func (h *Host) Refreshes() uint64 { return h.refreshes.Load() }

// SoundsPlayed returns how many sound cues were played.
func (h *Host) SoundsPlayed() uint64 { return h.sounds.Load() }
