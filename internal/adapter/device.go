package adapter

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/touchlink/internal/handler"
	"github.com/banshee-data/touchlink/internal/joints"
	"github.com/banshee-data/touchlink/internal/monitoring"
	"github.com/banshee-data/touchlink/internal/settings"
	"github.com/banshee-data/touchlink/internal/status"
)

var logf = monitoring.Component("adapter")

// Device is the tracking device exposed to the host. Update is called from
// the host's frame actor; every other method may be called from any
// goroutine.
type Device struct {
	host    Host
	handler handler.Handler
	joints  *joints.Registry

	loaded atomic.Bool

	settingsMu sync.Mutex
	settings   settings.Settings

	frames        atomic.Uint64
	failedTicks   atomic.Uint64
	resyncs       atomic.Uint64
	failedResyncs atomic.Uint64
}

// NewDevice returns a device driving h on behalf of host. The joint list
// starts out holding only the INVALID sentinel.
func NewDevice(host Host, h handler.Handler) *Device {
	return &Device{
		host:     host,
		handler:  h,
		joints:   joints.New(),
		settings: settings.Defaults(),
	}
}

// Capability flags reported to the host.
func (d *Device) IsSkeletonTracked() bool               { return true }
func (d *Device) IsPositionFilterBlockingEnabled() bool { return true }
func (d *Device) IsPhysicsOverrideEnabled() bool        { return true }
func (d *Device) IsSelfUpdateEnabled() bool             { return false }
func (d *Device) IsFlipSupported() bool                 { return false }
func (d *Device) IsAppOrientationSupported() bool       { return false }

// IsSettingsDaemonSupported reports whether the settings panel should be
// enabled, which is only while the service is healthy.
func (d *Device) IsSettingsDaemonSupported() bool {
	return d.Status().Ready()
}

// SignalJoint is accepted and ignored.
func (d *Device) SignalJoint(int) {}

// IsInitialized reports whether the handler has been initialized.
func (d *Device) IsInitialized() bool { return d.handler.IsInitialized() }

// DeviceStatus returns the raw handler status code.
func (d *Device) DeviceStatus() int32 { return d.handler.StatusResult() }

// Status returns the translated handler status.
func (d *Device) Status() status.Status { return status.Translate(d.handler.StatusResult()) }

// DeviceStatusString returns the localized status text, or the undefined
// diagnostic when the device has not finished loading.
func (d *Device) DeviceStatusString() string {
	return d.Status().Text(d.host.RequestLocalizedString, d.loaded.Load())
}

// TrackedJoints returns the live joint registry.
func (d *Device) TrackedJoints() *joints.Registry { return d.joints }

// Loaded reports whether OnLoad has completed.
func (d *Device) Loaded() bool { return d.loaded.Load() }

// OnLoad reads the persisted settings, forwards them to the handler and
// hooks the handler's log output into the host log.
func (d *Device) OnLoad() {
	s := settings.Load(d.host.Settings())

	d.settingsMu.Lock()
	d.settings = s
	d.settingsMu.Unlock()

	d.handler.SetLogSink(d.forwardLog)
	s.Apply(d.handler)

	logf("loaded settings: prediction=%dms keepalive=%t reduceres=%t",
		s.PredictionMs, s.KeepAlive, s.ReduceResolution)
	d.loaded.Store(true)
}

// Initialize starts the handler, reports the outcome and rebuilds the joint
// list.
func (d *Device) Initialize() {
	code := d.handler.Initialize()
	st := status.Translate(code)
	switch st.State {
	case status.Success:
		d.host.Log(fmt.Sprintf("Successfully initialized the TouchLink device handler! Status: %s", st.State), SeverityInfo)
	case status.NotStarted:
		d.host.Log(fmt.Sprintf("Couldn't initialize the TouchLink device handler! Status: %s", st.State), SeverityWarning)
	case status.ErrorInitFailed:
		d.host.Log(fmt.Sprintf("Couldn't initialize the TouchLink device handler! Status: %s", st.State), SeverityError)
	default:
		d.host.Log(fmt.Sprintf("TouchLink device handler returned an unknown status: %d", code), SeverityWarning)
	}

	d.Resync()
}

// Shutdown stops the handler. The joint list is left as it was.
func (d *Device) Shutdown() {
	if code := d.handler.Shutdown(); code != 0 {
		d.host.Log(fmt.Sprintf("Tried to shutdown the TouchLink device handler, exception occurred! (code %d)", code), SeverityError)
		return
	}
	d.host.Log(fmt.Sprintf("Tried to shutdown the TouchLink device handler with status: %d", d.handler.StatusResult()), SeverityInfo)
}

// Settings returns the current adapter settings.
func (d *Device) Settings() settings.Settings {
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	return d.settings
}

// SetPredictionMs applies a prediction offset entered by the user. The value
// is sanitized, persisted and forwarded; the applied value is returned.
func (d *Device) SetPredictionMs(v float64) int {
	ms := settings.SanitizePredictionMs(v)

	d.settingsMu.Lock()
	d.settings.PredictionMs = ms
	d.settingsMu.Unlock()

	d.persist(settings.SetInt(d.host.Settings(), settings.KeyPredictionMs, ms))
	d.handler.SetPredictionMs(ms)
	d.host.PlayAppSound(SoundInvoke)
	return ms
}

// SetKeepAlive toggles the headset keep-alive.
func (d *Device) SetKeepAlive(on bool) {
	d.settingsMu.Lock()
	d.settings.KeepAlive = on
	d.settingsMu.Unlock()

	d.persist(settings.SetBool(d.host.Settings(), settings.KeyKeepAlive, on))
	d.handler.SetKeepAlive(on)
	d.host.PlayAppSound(toggleSound(on))
}

// SetReduceResolution toggles reduced-resolution tracking.
func (d *Device) SetReduceResolution(on bool) {
	d.settingsMu.Lock()
	d.settings.ReduceResolution = on
	d.settingsMu.Unlock()

	d.persist(settings.SetBool(d.host.Settings(), settings.KeyReduceResolution, on))
	d.handler.SetReduceResolution(on)
	d.host.PlayAppSound(toggleSound(on))
}

func (d *Device) persist(err error) {
	if err != nil {
		d.host.Log(fmt.Sprintf("Couldn't save TouchLink settings! %v", err), SeverityWarning)
	}
}

func toggleSound(on bool) Sound {
	if on {
		return SoundToggleOn
	}
	return SoundToggleOff
}

// forwardLog relays a "[n] message" handler line to the host. The severity
// digit is clamped to the known range; anything unparsable is Info.
func (d *Device) forwardLog(line string) {
	d.host.Log(line, ParseSeverity(line))
}

// ParseSeverity extracts the severity digit from a "[n] message" line.
func ParseSeverity(line string) Severity {
	if len(line) < 2 {
		return SeverityInfo
	}
	n, err := strconv.Atoi(line[1:2])
	if err != nil {
		return SeverityInfo
	}
	return Severity(min(max(n, int(SeverityInfo)), int(SeverityFatal)))
}

// Stats are running counters for the admin surface.
type Stats struct {
	Frames        uint64 `json:"frames"`
	FailedTicks   uint64 `json:"failed_ticks"`
	Resyncs       uint64 `json:"resyncs"`
	FailedResyncs uint64 `json:"failed_resyncs"`
}

// Stats returns the current counters.
func (d *Device) Stats() Stats {
	return Stats{
		Frames:        d.frames.Load(),
		FailedTicks:   d.failedTicks.Load(),
		Resyncs:       d.resyncs.Load(),
		FailedResyncs: d.failedResyncs.Load(),
	}
}

// guard runs fn and turns a panic inside the handler into an error so it
// never reaches the host.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
