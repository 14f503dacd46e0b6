package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// localHostRequest creates an httptest request that appears to come from localhost.
// This satisfies tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestSerialMux_SubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, _ := mux.Subscribe()
	require.NotEqual(t, id1, id2)

	mux.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")

	// Unknown IDs are ignored.
	mux.Unsubscribe("missing")
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("P=11"))
	require.NoError(t, mux.SendCommand("S\n"))
	assert.Equal(t, []string{"P=11", "S"}, port.Commands())

	port.SetWriteError(errors.New("unplugged"))
	assert.EqualError(t, mux.SendCommand("KA"), "unplugged")
}

func TestSerialMux_MonitorFansOut(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddLine(`{"type":"log","message":"hi"}`)

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case line := <-ch:
			assert.Equal(t, `{"type":"log","message":"hi"}`, line)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for line")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop after cancel")
	}
	port.Close()
}

func TestSerialMux_MonitorReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	port.FailRead(errors.New("link reset"))

	select {
	case err := <-done:
		assert.EqualError(t, err, "link reset")
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after read error")
	}
}

func TestSerialMux_MonitorEOFOnClose(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.Closed())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after close")
	}
}

func TestClassifyLine(t *testing.T) {
	tests := map[string]string{
		`{"type":"frame","objects":[]}`: LineTypeFrame,
		`{"type":"log","message":"x"}`:  LineTypeLog,
		`{"type":"status","code":0}`:    LineTypeStatus,
		`{"type":"other"}`:              LineTypeUnknown,
		`{"type":`:                      LineTypeUnknown,
		`plain text`:                    LineTypeUnknown,
		``:                              LineTypeUnknown,
	}
	for line, want := range tests {
		assert.Equal(t, want, ClassifyLine(line), "line %q", line)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = PortOptions{DataBits: 9}.SerialMode()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.SerialMode()
	assert.Error(t, err)
}

func TestAttachAdminRoutes_ServiceCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name       string
		method     string
		form       url.Values
		wantStatus int
	}{
		{name: "valid", method: http.MethodPost, form: url.Values{"command": {"KA"}}, wantStatus: http.StatusOK},
		{name: "empty", method: http.MethodPost, form: url.Values{"command": {"  "}}, wantStatus: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := localHostRequest(tc.method, "/debug/service-command", strings.NewReader(tc.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}

	assert.Equal(t, []string{"KA"}, port.Commands())
}

func TestAttachLinkRoutes_FollowsCurrentLink(t *testing.T) {
	var link Mux
	httpMux := http.NewServeMux()
	AttachLinkRoutes(httpMux, func() Mux { return link })

	post := func() int {
		form := url.Values{"command": {"S"}}
		req := localHostRequest(http.MethodPost, "/debug/service-command", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		httpMux.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, post())

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/service-tail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	first := NewTestableSerialPort()
	link = NewSerialMux(first)
	assert.Equal(t, http.StatusOK, post())

	second := NewTestableSerialPort()
	link = NewSerialMux(second)
	assert.Equal(t, http.StatusOK, post())

	assert.Equal(t, []string{"S"}, first.Commands())
	assert.Equal(t, []string{"S"}, second.Commands())
}
