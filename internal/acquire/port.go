// internal/acquire/port.go
package acquire

import (
	"errors"
	"time"

	"go.bug.st/serial"
)

// Port is the slice of a serial port the acquisition strategies need.
// go.bug.st/serial ports satisfy it directly; tests script it.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// OpenFunc opens a serial port at the given baud rate, 8N1 framing.
type OpenFunc func(name string, baudRate int) (Port, error)

// OpenSerial is the production OpenFunc.
func OpenSerial(name string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// isTransient reports whether a serial error is the kind that clears on its
// own, which is common immediately after a device reset or re-enumeration.
func isTransient(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy, serial.PermissionDenied, serial.PortNotFound:
			return true
		}
	}
	return false
}

// ReadWindow accumulates whatever the device emits within the window. The
// per-read timeout keeps a mute device from pinning the worker for the whole
// window in one blocking call. maxBytes of 0 means unbounded.
func ReadWindow(port Port, window time.Duration, maxBytes int) []byte {
	_ = port.SetReadTimeout(100 * time.Millisecond)

	buf := make([]byte, 0, 256)
	chunk := make([]byte, 128)
	deadline := time.Now().Add(window)

	for time.Now().Before(deadline) {
		n, err := port.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if maxBytes > 0 && len(buf) >= maxBytes {
				return buf[:maxBytes]
			}
		}
		if err != nil {
			break
		}
	}
	return buf
}
