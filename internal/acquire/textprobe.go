// internal/acquire/textprobe.go
package acquire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"board-service/internal/config"
)

// uidToken is the line marker UID-reporting firmware emits.
const uidToken = "UID:"

// TextProbe reads the UID from boards already running UID-reporting
// firmware: write a single ASCII probe byte, accumulate the response for the
// read window, and scan for a "UID:" line. The open/write/read cycle retries
// on transient port errors, which are routine right after a reset
// re-enumerates the port.
type TextProbe struct {
	Open       OpenFunc
	BaudRate   int
	ReadWindow time.Duration
	Retries    int
	RetryDelay time.Duration
	logger     *zap.Logger
}

// NewTextProbe builds the direct text protocol strategy from configuration.
func NewTextProbe(cfg *config.AcquireConfig, logger *zap.Logger) *TextProbe {
	return &TextProbe{
		Open:       OpenSerial,
		BaudRate:   cfg.TextBaudRate,
		ReadWindow: cfg.TextReadWindow,
		Retries:    cfg.TextRetries,
		RetryDelay: cfg.TextRetryDelay,
		logger:     logger.With(zap.String("strategy", "text-probe")),
	}
}

func (t *TextProbe) Name() string { return "text-probe" }

// Attempt runs the probe cycle with retries on transient errors.
func (t *TextProbe) Attempt(ctx context.Context, target Target) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= t.Retries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		uid, err := t.probeOnce(target.Port)
		if err == nil {
			return uid, nil
		}
		lastErr = err

		if !isTransient(err) {
			return "", err
		}
		t.logger.Debug("Transient port error, retrying",
			zap.String("port", target.Port),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.RetryDelay):
		}
	}
	return "", fmt.Errorf("text probe exhausted %d attempts: %w", t.Retries, lastErr)
}

// probeOnce performs one open+write+read cycle.
func (t *TextProbe) probeOnce(portName string) (string, error) {
	port, err := t.Open(portName, t.BaudRate)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", portName, err)
	}
	defer port.Close()

	if _, err := port.Write([]byte{'I'}); err != nil {
		return "", fmt.Errorf("write probe byte: %w", err)
	}

	buf := ReadWindow(port, t.ReadWindow, 0)
	uid := extractUID(string(buf))
	if uid == "" {
		return "", fmt.Errorf("no UID line in %d bytes of output", len(buf))
	}
	return uid, nil
}

// extractUID scans output line by line for the UID token and returns the
// normalized identifier following it, or "".
func extractUID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, uidToken)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(uidToken):])
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if uid := NormalizeUID(fields[0]); uid != "" {
			return uid
		}
	}
	return ""
}
