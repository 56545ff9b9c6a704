package enumerate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"board-service/internal/model"
)

func TestListNormalizesIdentifiers(t *testing.T) {
	e := NewWithLister(zap.NewNop(), func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "0483", PID: "5740", SerialNumber: "066BFF3"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0x10C4", PID: "0xEA60"},
			{Name: "/dev/ttyS0", IsUSB: false},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "bogus", PID: ""},
		}, nil
	})

	ports := e.List()
	require.Len(t, ports, 4)

	require.NotNil(t, ports[0].VendorID)
	assert.Equal(t, model.USBID(0x0483), *ports[0].VendorID)
	assert.Equal(t, model.USBID(0x5740), *ports[0].ProductID)
	assert.Equal(t, "066BFF3", ports[0].SerialNumber)

	assert.Equal(t, model.USBID(0x10C4), *ports[1].VendorID)
	assert.Equal(t, model.USBID(0xEA60), *ports[1].ProductID)

	assert.Nil(t, ports[2].VendorID, "non-USB port carries no ids")

	// Unparsable ids are absent, never an error.
	assert.Nil(t, ports[3].VendorID)
	assert.Nil(t, ports[3].ProductID)
}

func TestListOSFailureYieldsEmpty(t *testing.T) {
	e := NewWithLister(zap.NewNop(), func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("udev unavailable")
	})
	assert.Empty(t, e.List())
}

func TestParseIDForms(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"0483", 0x0483, true},  // enumerator zero-padded hex
		{"EA60", 0xEA60, true},  // hex with letters
		{"0x2341", 0x2341, true},
		{"9025", 9025, true},    // plain decimal, no hex shape
		{"303A", 0x303A, true},
		{"", 0, false},
		{"xyzzy", 0, false},
	}
	for _, tt := range tests {
		got := parseID(tt.in)
		if !tt.ok {
			assert.Nil(t, got, "input %q", tt.in)
			continue
		}
		require.NotNil(t, got, "input %q", tt.in)
		assert.Equal(t, model.USBID(tt.want), *got, "input %q", tt.in)
	}
}
