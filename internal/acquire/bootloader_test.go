package acquire

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/model"
)

// scriptedPort simulates a device byte-for-byte: each write shifts the next
// scripted reply into the read buffer. An empty buffer reads as a zero-byte
// timeout, matching the serial layer's contract.
type scriptedPort struct {
	replies [][]byte
	pending []byte
	wrote   [][]byte
	closed  bool
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.wrote = append(p.wrote, append([]byte(nil), b...))
	if len(p.replies) > 0 {
		p.pending = append(p.pending, p.replies[0]...)
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil // read timeout
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptedPort) Close() error                      { p.closed = true; return nil }
func (p *scriptedPort) SetReadTimeout(time.Duration) error { return nil }

func uidPayload(data []byte, checksum byte) []byte {
	return append(append([]byte(nil), data...), checksum)
}

func newBootloaderProbe(port *scriptedPort) *BootloaderProbe {
	return &BootloaderProbe{
		Open:     func(string, int) (Port, error) { return port, nil },
		BaudRate: 115200,
		Timeout:  time.Second,
		logger:   zap.NewNop(),
	}
}

func TestBootloaderHappyPath(t *testing.T) {
	data, err := hex.DecodeString("303035323334510d24353834")
	require.NoError(t, err)
	require.Len(t, data, 12)

	port := &scriptedPort{replies: [][]byte{
		{ack}, // entry
		{ack}, // read-memory command
		{ack}, // address frame
		append([]byte{ack}, uidPayload(data, xorChecksum(data))...), // length frame + payload
	}}

	uid, err := newBootloaderProbe(port).Attempt(context.Background(), Target{Port: "COM3", Kind: model.BoardStm32})
	require.NoError(t, err)
	assert.Equal(t, "303035323334510D24353834", uid)
	assert.True(t, port.closed)

	// Frames on the wire: init, command+complement, 4-byte address+xor,
	// encoded length.
	require.Len(t, port.wrote, 4)
	assert.Equal(t, []byte{0x7F}, port.wrote[0])
	assert.Equal(t, []byte{0x11, 0xEE}, port.wrote[1])
	assert.Equal(t, []byte{0x1F, 0xFF, 0xF7, 0xE8, 0x1F ^ 0xFF ^ 0xF7 ^ 0xE8}, port.wrote[2])
	assert.Equal(t, []byte{0xBC}, port.wrote[3])
}

func TestBootloaderChecksumMismatchFailsWithoutRetry(t *testing.T) {
	data := make([]byte, 12)
	port := &scriptedPort{replies: [][]byte{
		{ack}, {ack}, {ack},
		append([]byte{ack}, uidPayload(data, 0xFF)...), // wrong trailing checksum
	}}

	uid, err := newBootloaderProbe(port).Attempt(context.Background(), Target{Port: "COM3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Empty(t, uid)
	// Exactly one full exchange was attempted.
	assert.Len(t, port.wrote, 4)
}

func TestBootloaderNonAckAbortsImmediately(t *testing.T) {
	port := &scriptedPort{replies: [][]byte{
		{ack},
		{0x1F}, // NACK on the read-memory command
	}}

	_, err := newBootloaderProbe(port).Attempt(context.Background(), Target{Port: "COM3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-memory command")
	// The address and length frames were never sent.
	assert.Len(t, port.wrote, 2)
}

func TestBootloaderSilentDeviceTimesOut(t *testing.T) {
	port := &scriptedPort{} // never replies

	_, err := newBootloaderProbe(port).Attempt(context.Background(), Target{Port: "COM3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootloader entry")
}

func TestParamsFor(t *testing.T) {
	stm := ParamsFor(model.BoardStm32)
	assert.Equal(t, uint32(0x1FFFF7E8), stm.Address)
	assert.Equal(t, byte(0xBC), stm.LengthByte)

	// Kinds without an entry fall back to the default constants.
	assert.Equal(t, stm, ParamsFor(model.BoardUnknown))
}

func TestXorChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), xorChecksum(nil))
	assert.Equal(t, byte(0xA5), xorChecksum([]byte{0xA5}))
	assert.Equal(t, byte(0x0F), xorChecksum([]byte{0x03, 0x0C}))
}

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aabbccddeeff001122334455", "AABBCCDDEEFF001122334455"},
		{"0xAABBCCDDEEFF001122334455", "AABBCCDDEEFF001122334455"},
		{"AA:BB:CC:DD:EE:FF:00:11:22:33:44:55", "AABBCCDDEEFF001122334455"},
		{"AA-BB-CC-DD-EE-FF-00-11-22-33-44-55", "AABBCCDDEEFF001122334455"},
		{"  aabbccddeeff001122334455  ", "AABBCCDDEEFF001122334455"},
		{"AABBCC", ""},                          // too short
		{"GGBBCCDDEEFF001122334455", ""},        // non-hex
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeUID(tt.in), "input %q", tt.in)
	}
}

func TestParseMemoryWords(t *testing.T) {
	// Vendor programmer CLI shape.
	cli := "Reading 32-bit memory content\n0x1FFFF7E8 : 0043002F 31385114 30333532\n"
	assert.Equal(t, "0043002F3138511430333532", parseMemoryWords(cli, 0x1FFFF7E8))

	// OpenOCD mdw shape.
	ocd := "Open On-Chip Debugger 0.12.0\n0x1ffff7e8: 0043002f 31385114 30333532\nshutdown command invoked\n"
	assert.Equal(t, "0043002F3138511430333532", parseMemoryWords(ocd, 0x1FFFF7E8))

	// Banners full of 8-digit tokens must not be mistaken for payload.
	banner := "SEGGER J-Link V7.88, compiled 20230712\nCannot connect to target.\n"
	assert.Empty(t, parseMemoryWords(banner, 0x1FFFF7E8))

	// Fewer than three words is no UID.
	short := "0x1FFFF7E8 : 0043002F 31385114\n"
	assert.Empty(t, parseMemoryWords(short, 0x1FFFF7E8))
}

func TestToolProbeSkipsMissingTools(t *testing.T) {
	probe := &ToolProbe{
		Run:     func(context.Context, string, ...string) ([]byte, error) { return nil, nil },
		Timeout: time.Second,
		tools:   nil, // nothing installed
		logger:  zap.NewNop(),
	}
	_, err := probe.Attempt(context.Background(), Target{Port: "COM3", Kind: model.BoardStm32})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no programmer tool"))
}
