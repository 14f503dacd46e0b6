package serialmux

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// Opener opens a serial port at path. Open is the production opener; tests
// substitute their own to hand back a TestableSerialPort.
type Opener func(path string, opts PortOptions) (SerialPorter, error)
