package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/model"
)

// chatterPort emits a fixed transcript regardless of what is written.
type chatterPort struct {
	transcript []byte
	offset     int
}

func (p *chatterPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *chatterPort) Read(b []byte) (int, error) {
	if p.offset >= len(p.transcript) {
		return 0, nil
	}
	n := copy(b, p.transcript[p.offset:])
	p.offset += n
	return n, nil
}

func (p *chatterPort) Close() error                       { return nil }
func (p *chatterPort) SetReadTimeout(time.Duration) error { return nil }

func newTextProbe(open OpenFunc) *TextProbe {
	return &TextProbe{
		Open:       open,
		BaudRate:   115200,
		ReadWindow: 50 * time.Millisecond,
		Retries:    5,
		RetryDelay: time.Millisecond,
		logger:     zap.NewNop(),
	}
}

func TestTextProbeExtractsUID(t *testing.T) {
	port := &chatterPort{transcript: []byte(
		"boot v2.4.1\nUID: 0x30303532-3334510D-24353834 flash=128K\nready\n",
	)}
	probe := newTextProbe(func(string, int) (Port, error) { return port, nil })

	uid, err := probe.Attempt(context.Background(), Target{Port: "/dev/ttyACM0", Kind: model.BoardStm32})
	require.NoError(t, err)
	assert.Equal(t, "303035323334510D24353834", uid)
}

func TestTextProbeRejectsShortUID(t *testing.T) {
	port := &chatterPort{transcript: []byte("UID: ABCD1234\n")}
	probe := newTextProbe(func(string, int) (Port, error) { return port, nil })

	_, err := probe.Attempt(context.Background(), Target{Port: "/dev/ttyACM0"})
	assert.Error(t, err)
}

func TestTextProbeNoUIDLineFails(t *testing.T) {
	port := &chatterPort{transcript: []byte("hello world\nstatus: ok\n")}
	probe := newTextProbe(func(string, int) (Port, error) { return port, nil })

	_, err := probe.Attempt(context.Background(), Target{Port: "/dev/ttyACM0"})
	assert.Error(t, err)
}

func TestTextProbeDoesNotRetryPermanentErrors(t *testing.T) {
	opens := 0
	probe := newTextProbe(func(string, int) (Port, error) {
		opens++
		return nil, errors.New("no such device")
	})

	_, err := probe.Attempt(context.Background(), Target{Port: "/dev/ttyACM0"})
	require.Error(t, err)
	assert.Equal(t, 1, opens, "a non-transient error must not be retried")
}

func TestExtractUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "UID: AABBCCDDEEFF001122334455", "AABBCCDDEEFF001122334455"},
		{"mid line", "chip UID: aabbccddeeff001122334455 rev 2", "AABBCCDDEEFF001122334455"},
		{"token stops at whitespace", "UID: AABBCCDDEEFF001122334455 AABB", "AABBCCDDEEFF001122334455"},
		{"second line wins when first is short", "UID: ABCD\nUID: AABBCCDDEEFF001122334455\n", "AABBCCDDEEFF001122334455"},
		{"no marker", "serial 1234", ""},
		{"empty after marker", "UID:\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUID(tt.in))
		})
	}
}

// countingStrategy records invocations and returns a fixed result.
type countingStrategy struct {
	name  string
	uid   string
	err   error
	calls int
}

func (s *countingStrategy) Name() string { return s.name }

func (s *countingStrategy) Attempt(context.Context, Target) (string, error) {
	s.calls++
	return s.uid, s.err
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &countingStrategy{name: "first", uid: "AABBCCDDEEFF001122334455"}
	second := &countingStrategy{name: "second"}

	chain := NewChain(zap.NewNop(), first, second)
	uid, ok := chain.Acquire(context.Background(), Target{Port: "COM1"})

	assert.True(t, ok)
	assert.Equal(t, "AABBCCDDEEFF001122334455", uid)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later strategies must not run after a success")
}

func TestChainProceedsPastFailures(t *testing.T) {
	first := &countingStrategy{name: "first", err: errors.New("port busy")}
	second := &countingStrategy{name: "second", uid: "303035323334510D24353834"}

	chain := NewChain(zap.NewNop(), first, second)
	uid, ok := chain.Acquire(context.Background(), Target{Port: "COM1"})

	assert.True(t, ok)
	assert.Equal(t, "303035323334510D24353834", uid)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestChainAllFailuresYieldsNoUID(t *testing.T) {
	first := &countingStrategy{name: "first", err: errors.New("nope")}
	second := &countingStrategy{name: "second", err: errors.New("also nope")}

	chain := NewChain(zap.NewNop(), first, second)
	uid, ok := chain.Acquire(context.Background(), Target{Port: "COM1"})

	assert.False(t, ok)
	assert.Empty(t, uid)
}
