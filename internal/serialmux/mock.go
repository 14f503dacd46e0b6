package serialmux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements SerialPorter with configurable behaviour for
// testing. Reads block until data is queued, the port is closed, or a read
// error is injected, which is how a real tracking service link behaves.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuffer  bytes.Buffer
	writeBuffer bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error
	// WriteError is returned by every Write call while set
	WriteError error
	// CloseError is returned by Close if set
	CloseError error

	closed     bool
	writeCalls int
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	t := &TestableSerialPort{}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

// Read blocks until data, an injected error, or Close.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.closed && t.ReadError == nil && t.readBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.readBuffer.Len() > 0 {
		return t.readBuffer.Read(p)
	}
	return 0, io.EOF
}

// Write records p unless the port is closed or a write error is set.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeCalls++
	if t.closed {
		return 0, ErrPortClosed
	}
	if t.WriteError != nil {
		return 0, t.WriteError
	}
	return t.writeBuffer.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddLine queues one newline-terminated line for Read.
func (t *TestableSerialPort) AddLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readBuffer.WriteString(strings.TrimSuffix(line, "\n") + "\n")
	t.readCond.Broadcast()
}

// FailRead makes the next (or currently blocked) Read return err.
func (t *TestableSerialPort) FailRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
	t.readCond.Broadcast()
}

// SetWriteError installs or clears the write error.
func (t *TestableSerialPort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteError = err
}

// Commands returns the newline-separated commands written so far.
func (t *TestableSerialPort) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw := strings.TrimSuffix(t.writeBuffer.String(), "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// Closed reports whether Close was called.
func (t *TestableSerialPort) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
