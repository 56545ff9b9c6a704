// internal/acquire/bootloader.go
package acquire

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"board-service/internal/config"
	"board-service/internal/model"
)

// Bootloader wire protocol constants.
const (
	ack            = 0x79
	bootloaderInit = 0x7F
	cmdReadMemory  = 0x11
	cmdReadMemoryC = 0xEE // one's complement of cmdReadMemory

	uidBytes      = 12
	payloadLength = uidBytes + 1 // trailing XOR checksum byte
)

// BootloaderParams fixes the silicon-specific UID location for one board
// family. The address and the wire encoding of the read length are vendor
// constants, configuration rather than architecture.
type BootloaderParams struct {
	Address    uint32
	LengthByte byte
}

// defaultBootloaderParams covers the STM32F1-family UID base; it also serves
// as the fallback for kinds with no entry, since the bootloader strategy is
// only ever reached on boards speaking this vendor protocol.
var defaultBootloaderParams = BootloaderParams{
	Address:    0x1FFFF7E8,
	LengthByte: 0xBC,
}

var bootloaderParamsByKind = map[model.BoardKind]BootloaderParams{
	model.BoardStm32: defaultBootloaderParams,
}

// ParamsFor returns the bootloader constants for a board kind.
func ParamsFor(kind model.BoardKind) BootloaderParams {
	if p, ok := bootloaderParamsByKind[kind]; ok {
		return p
	}
	return defaultBootloaderParams
}

// BootloaderProbe reads the silicon UID through the vendor bootloader's
// binary request/response protocol, for boards not yet running UID-reporting
// firmware. Every step that expects an ACK and does not receive exactly one
// aborts the whole exchange: retrying a desynchronized binary protocol
// without a full device reset is unsafe, so partial success is total
// failure.
type BootloaderProbe struct {
	Open     OpenFunc
	BaudRate int
	Timeout  time.Duration
	logger   *zap.Logger
}

// NewBootloaderProbe builds the binary bootloader strategy from
// configuration.
func NewBootloaderProbe(cfg *config.AcquireConfig, logger *zap.Logger) *BootloaderProbe {
	return &BootloaderProbe{
		Open:     OpenSerial,
		BaudRate: cfg.TextBaudRate,
		Timeout:  cfg.BootloaderTimeout,
		logger:   logger.With(zap.String("strategy", "bootloader")),
	}
}

func (b *BootloaderProbe) Name() string { return "bootloader" }

// Attempt runs the full exchange once. No mid-sequence retries.
func (b *BootloaderProbe) Attempt(ctx context.Context, target Target) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	port, err := b.Open(target.Port, b.BaudRate)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", target.Port, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(b.Timeout); err != nil {
		return "", fmt.Errorf("set read timeout: %w", err)
	}

	params := ParamsFor(target.Kind)
	uid, err := b.exchange(port, params)
	if err != nil {
		return "", err
	}
	return uid, nil
}

// exchange performs the framed request/response sequence against an open
// port.
func (b *BootloaderProbe) exchange(port Port, params BootloaderParams) (string, error) {
	// Bootloader entry.
	if err := writeExpectAck(port, []byte{bootloaderInit}); err != nil {
		return "", fmt.Errorf("bootloader entry: %w", err)
	}

	// Read-memory command with complement checksum.
	if err := writeExpectAck(port, []byte{cmdReadMemory, cmdReadMemoryC}); err != nil {
		return "", fmt.Errorf("read-memory command: %w", err)
	}

	// UID base address, big-endian, XOR checksum over the four bytes.
	addr := make([]byte, 5)
	binary.BigEndian.PutUint32(addr, params.Address)
	addr[4] = xorChecksum(addr[:4])
	if err := writeExpectAck(port, addr); err != nil {
		return "", fmt.Errorf("address frame: %w", err)
	}

	// Encoded read length.
	if err := writeExpectAck(port, []byte{params.LengthByte}); err != nil {
		return "", fmt.Errorf("length frame: %w", err)
	}

	// 12 data bytes plus trailing XOR checksum.
	payload := make([]byte, payloadLength)
	if err := readExact(port, payload); err != nil {
		return "", fmt.Errorf("payload read: %w", err)
	}
	// A checksum mismatch is a framing error, not transient noise: fail
	// without retry.
	if got, want := xorChecksum(payload[:uidBytes]), payload[uidBytes]; got != want {
		return "", fmt.Errorf("payload checksum mismatch: computed %02X, received %02X", got, want)
	}

	return strings.ToUpper(hex.EncodeToString(payload[:uidBytes])), nil
}

// writeExpectAck sends a frame and requires a single ACK byte back.
func writeExpectAck(port Port, frame []byte) error {
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	reply := make([]byte, 1)
	if err := readExact(port, reply); err != nil {
		return fmt.Errorf("await ack: %w", err)
	}
	if reply[0] != ack {
		return fmt.Errorf("expected ack 0x%02X, got 0x%02X", ack, reply[0])
	}
	return nil
}

// readExact fills buf completely or fails. The serial layer signals a read
// timeout as a zero-byte read with a nil error, so that case is an explicit
// failure here rather than a reason to keep waiting.
func readExact(port Port, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := port.Read(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("timeout after %d of %d bytes", total, len(buf))
		}
		total += n
	}
	return nil
}

// xorChecksum XORs all bytes together.
func xorChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}
