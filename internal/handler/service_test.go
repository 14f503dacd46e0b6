package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/touchlink/internal/serialmux"
	"github.com/banshee-data/touchlink/internal/status"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

const waitFor = 2 * time.Second
const pollEvery = 5 * time.Millisecond

type portFixture struct {
	mu    sync.Mutex
	ports []*serialmux.TestableSerialPort
	err   error
	paths []string
}

func (f *portFixture) open(path string, _ serialmux.PortOptions) (serialmux.SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	p := serialmux.NewTestableSerialPort()
	f.ports = append(f.ports, p)
	return p, nil
}

func (f *portFixture) last() *serialmux.TestableSerialPort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ports[len(f.ports)-1]
}

func newTestService(t *testing.T) (*Service, *portFixture, *timeutil.MockClock) {
	t.Helper()
	fx := &portFixture{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	svc := NewService(ServiceConfig{
		Path:              "/dev/ttyTEST",
		KeepAliveInterval: time.Minute,
		Open:              fx.open,
		Clock:             clock,
	})
	t.Cleanup(func() { svc.Shutdown() })
	return svc, fx, clock
}

func TestService_InitializeSendsSettings(t *testing.T) {
	svc, fx, _ := newTestService(t)
	svc.SetPredictionMs(25)
	svc.SetReduceResolution(false)

	require.Equal(t, status.CodeSuccess, svc.Initialize())
	assert.True(t, svc.IsInitialized())
	assert.Equal(t, status.CodeSuccess, svc.StatusResult())
	assert.Equal(t, []string{"/dev/ttyTEST"}, fx.paths)
	assert.Equal(t, []string{"P=25", "R=0", "S"}, fx.last().Commands())

	objs, err := svc.TrackedObjects()
	require.NoError(t, err)
	require.Len(t, objs, 3)
	for i, o := range objs {
		assert.Equal(t, DefaultObjectNames[i], o.Name)
	}
}

func TestService_InitializeOpenFailure(t *testing.T) {
	svc, fx, _ := newTestService(t)
	fx.err = errors.New("no such device")

	var lines []string
	svc.SetLogSink(func(l string) { lines = append(lines, l) })

	assert.Equal(t, status.CodeInitFailed, svc.Initialize())
	assert.True(t, svc.IsInitialized())
	assert.Equal(t, status.CodeInitFailed, svc.StatusResult())
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "[2] ")
	assert.NoError(t, svc.Update(), "update is a no-op while not ready")
}

func TestService_FramesAppliedOnUpdate(t *testing.T) {
	svc, fx, _ := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())

	fx.last().AddLine(`{"type":"frame","objects":[` +
		`{"name":"Left","position":[1,0,0],"orientation":[0,0,0,2],"velocity":[0,1,0]},` +
		`{"name":"Right","position":[0,1,0]}]}`)

	require.Eventually(t, func() bool {
		if svc.Update() != nil {
			return false
		}
		objs, _ := svc.TrackedObjects()
		return len(objs) == 2
	}, waitFor, pollEvery)

	objs, err := svc.TrackedObjects()
	require.NoError(t, err)
	assert.Equal(t, "Left", objs[0].Name)
	assert.Equal(t, r3.Vec{X: 1}, objs[0].Position)
	assert.Equal(t, quat.Number{Real: 1}, objs[0].Orientation, "orientation is normalised")
	assert.Equal(t, r3.Vec{Y: 1}, objs[0].Velocity)
	assert.Equal(t, quat.Number{Real: 1}, objs[1].Orientation, "missing orientation is identity")
	assert.GreaterOrEqual(t, svc.Frames(), uint64(1))

	// Callers get copies.
	objs[0].Name = "mutated"
	again, _ := svc.TrackedObjects()
	assert.Equal(t, "Left", again[0].Name)
}

func TestService_LogAndStatusLines(t *testing.T) {
	svc, fx, _ := newTestService(t)

	var mu sync.Mutex
	var lines []string
	svc.SetLogSink(func(l string) {
		mu.Lock()
		lines = append(lines, l)
		mu.Unlock()
	})
	require.Equal(t, status.CodeSuccess, svc.Initialize())

	fx.last().AddLine(`{"type":"log","severity":1,"message":"guardian lost"}`)
	fx.last().AddLine(`{"type":"status","code":65537}`)

	require.Eventually(t, func() bool {
		return svc.StatusResult() == status.CodeInitFailed
	}, waitFor, pollEvery)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, lines, "[1] guardian lost")
}

func TestService_ConnectionLost(t *testing.T) {
	svc, fx, _ := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())

	fx.last().FailRead(errors.New("cable pulled"))

	require.Eventually(t, func() bool {
		return errors.Is(svc.Update(), ErrConnectionLost)
	}, waitFor, pollEvery)
}

func TestService_KeepAlive(t *testing.T) {
	svc, fx, clock := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())
	port := fx.last()

	countKA := func() int {
		n := 0
		for _, c := range port.Commands() {
			if c == "KA" {
				n++
			}
		}
		return n
	}

	svc.SetKeepAlive(true)
	require.NoError(t, svc.Update())
	require.Eventually(t, func() bool { return countKA() == 1 && clock.Tickers() == 1 }, waitFor, pollEvery)

	// A second Update must not start another loop.
	require.NoError(t, svc.Update())
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return countKA() == 2 }, waitFor, pollEvery)
	assert.Equal(t, 1, clock.Tickers())

	svc.SetKeepAlive(false)
	require.NoError(t, svc.Update())
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, countKA())
}

func TestService_ShutdownAndReinitialize(t *testing.T) {
	svc, fx, _ := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())
	first := fx.last()

	// Re-initializing shuts the first link down.
	require.Equal(t, status.CodeSuccess, svc.Initialize())
	assert.True(t, first.Closed())
	assert.Contains(t, first.Commands(), "X")
	assert.Len(t, fx.ports, 2)
	assert.NotNil(t, svc.Mux())

	assert.Equal(t, int32(0), svc.Shutdown())
	assert.False(t, svc.IsInitialized())
	assert.Equal(t, status.CodeNotStarted, svc.StatusResult())
	assert.True(t, fx.last().Closed())
	assert.Nil(t, svc.Mux())

	// Shutting down twice is harmless.
	assert.Equal(t, int32(0), svc.Shutdown())
}

func TestService_ShutdownCloseError(t *testing.T) {
	svc, fx, _ := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())
	fx.last().CloseError = errors.New("busy")

	assert.Equal(t, CodeShutdownFailed, svc.Shutdown())
	assert.False(t, svc.IsInitialized())
	assert.Equal(t, status.CodeInitFailed, svc.StatusResult())
	assert.False(t, status.Translate(svc.StatusResult()).Ready())
}

func TestService_AdminRoutesFollowLink(t *testing.T) {
	svc, fx, _ := newTestService(t)

	httpMux := http.NewServeMux()
	svc.AttachAdminRoutes(httpMux)

	send := func(command string) int {
		form := url.Values{"command": {command}}
		req := httptest.NewRequest(http.MethodPost, "/debug/service-command", strings.NewReader(form.Encode()))
		req.RemoteAddr = "127.0.0.1:12345"
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		httpMux.ServeHTTP(rec, req)
		return rec.Code
	}

	// Not connected yet.
	assert.Equal(t, http.StatusServiceUnavailable, send("KA"))

	require.Equal(t, status.CodeSuccess, svc.Initialize())
	assert.Equal(t, http.StatusOK, send("KA"))
	assert.Contains(t, fx.last().Commands(), "KA")

	// A reconnect moves the routes to the new link.
	require.Equal(t, status.CodeSuccess, svc.Initialize())
	second := fx.last()
	assert.NotContains(t, second.Commands(), "KA")
	assert.Equal(t, http.StatusOK, send("KA"))
	assert.Contains(t, second.Commands(), "KA")

	assert.Equal(t, int32(0), svc.Shutdown())
	assert.Equal(t, http.StatusServiceUnavailable, send("KA"))
}

func TestService_SettingsPushedWhileConnected(t *testing.T) {
	svc, fx, _ := newTestService(t)
	require.Equal(t, status.CodeSuccess, svc.Initialize())

	svc.SetPredictionMs(40)
	svc.SetReduceResolution(true)
	assert.Equal(t, []string{"P=11", "R=1", "S", "P=40", "R=1"}, fx.last().Commands())
}

func TestNormalizeOrientation(t *testing.T) {
	assert.Equal(t, quat.Number{Real: 1}, NormalizeOrientation(quat.Number{}))
	got := NormalizeOrientation(quat.Number{Real: 3, Imag: 4})
	assert.InDelta(t, 1.0, quat.Abs(got), 1e-12)
	assert.InDelta(t, 0.6, got.Real, 1e-12)
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[2] oops", FormatLog(SeverityError, "oops"))
}
