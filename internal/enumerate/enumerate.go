// internal/enumerate/enumerate.go
package enumerate

import (
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"board-service/internal/model"
)

// RawPort carries the OS-level description of a serial interface, with
// vendor/product identifiers already normalized to integers.
type RawPort struct {
	Name         string
	VendorID     *model.USBID
	ProductID    *model.USBID
	SerialNumber string
	Manufacturer string
	Product      string
}

// ListFunc is the underlying OS query, overridable in tests.
type ListFunc func() ([]*enumerator.PortDetails, error)

// Enumerator lists currently attached serial interfaces. A single OS query
// per call; no side effects, no retries. Enumeration failure is never fatal
// to the caller.
type Enumerator struct {
	logger *zap.Logger
	list   ListFunc
}

// New creates an enumerator backed by the OS serial layer.
func New(logger *zap.Logger) *Enumerator {
	return &Enumerator{
		logger: logger.With(zap.String("component", "enumerator")),
		list:   enumerator.GetDetailedPortsList,
	}
}

// NewWithLister creates an enumerator with an injected OS query, for tests.
func NewWithLister(logger *zap.Logger, list ListFunc) *Enumerator {
	return &Enumerator{
		logger: logger.With(zap.String("component", "enumerator")),
		list:   list,
	}
}

// List returns the currently attached ports. An OS-layer error yields an
// empty list and one diagnostic line.
func (e *Enumerator) List() []RawPort {
	details, err := e.list()
	if err != nil {
		e.logger.Warn("Serial port enumeration failed", zap.Error(err))
		return nil
	}

	ports := make([]RawPort, 0, len(details))
	for _, d := range details {
		p := RawPort{
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			p.VendorID = parseID(d.VID)
			p.ProductID = parseID(d.PID)
		}
		ports = append(ports, p)
	}
	return ports
}

// parseID normalizes a reported vendor/product identifier to an integer, or
// nil when unparsable. The serial enumerator reports zero-padded hex without
// a prefix; other OS layers hand us "0x"-prefixed hex or plain decimal, so
// all three forms are accepted. Never fails loudly: a bad id is just absent.
func parseID(s string) *model.USBID {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	} else if !isHexShaped(s) {
		// No hex letters and no padding: could only have been decimal.
		if v, err := strconv.ParseUint(s, 10, 16); err == nil {
			id := model.USBID(v)
			return &id
		}
		return nil
	}

	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return nil
	}
	id := model.USBID(v)
	return &id
}

// isHexShaped reports whether s looks like the enumerator's zero-padded hex
// form rather than a decimal number: hex letters, or the leading zero padding
// decimal reporters never emit. All-digit strings without padding stay
// decimal, matching what integer-reporting OS layers hand us.
func isHexShaped(s string) bool {
	if len(s) > 1 && s[0] == '0' {
		return true
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			return true
		}
	}
	return false
}
