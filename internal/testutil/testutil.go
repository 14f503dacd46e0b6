// Package testutil provides shared test fixtures.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/banshee-data/touchlink/internal/adapter"
	"github.com/banshee-data/touchlink/internal/settings"
)

// LogRecord is one captured host log call.
type LogRecord struct {
	Message  string
	Severity adapter.Severity
}

// FakeHost is an adapter.Host that records every call.
type FakeHost struct {
	mu        sync.Mutex
	logs      []LogRecord
	sounds    []adapter.Sound
	refreshes int

	// Strings maps localization keys to text. Missing keys resolve to the key.
	Strings map[string]string
	// Store backs Settings.
	Store settings.Store
	// Lock is returned by UpdateLock. Set it to nil to simulate a host
	// without one.
	Lock adapter.TryLocker
}

var _ adapter.Host = (*FakeHost)(nil)

// NewFakeHost returns a host with an empty in-memory settings store.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		Strings: map[string]string{},
		Store:   settings.NewMemoryStore(),
		Lock:    &sync.Mutex{},
	}
}

func (h *FakeHost) Log(message string, severity adapter.Severity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, LogRecord{Message: message, Severity: severity})
}

func (h *FakeHost) RequestLocalizedString(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.Strings[key]; ok {
		return s
	}
	return key
}

func (h *FakeHost) Settings() settings.Store { return h.Store }

func (h *FakeHost) PlayAppSound(sound adapter.Sound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sounds = append(h.sounds, sound)
}

func (h *FakeHost) UpdateLock() adapter.TryLocker { return h.Lock }

func (h *FakeHost) RefreshStatusInterface() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes++
}

// Logs returns a copy of the captured log records.
func (h *FakeHost) Logs() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogRecord(nil), h.logs...)
}

// HasLog reports whether any record contains substr at the given severity.
func (h *FakeHost) HasLog(substr string, severity adapter.Severity) bool {
	for _, r := range h.Logs() {
		if r.Severity == severity && strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// Sounds returns the played sound cues in order.
func (h *FakeHost) Sounds() []adapter.Sound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]adapter.Sound(nil), h.sounds...)
}

// Refreshes returns how many times RefreshStatusInterface was called.
func (h *FakeHost) Refreshes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshes
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
