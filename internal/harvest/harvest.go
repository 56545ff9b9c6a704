// internal/harvest/harvest.go

// Package harvest opens a short serial session on an identified board and
// turns whatever free-form text it emits into structured device metadata.
// Firmware output varies wildly: some boards print a JSON blob, some print
// key:value lines, some print nothing but a bare hex identifier. The parser
// tries each shape in precedence order and never discards data it cannot
// model, stashing unrecognized keys and the raw capture in extra_info.
package harvest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"board-service/internal/acquire"
	"board-service/internal/config"
	"board-service/internal/model"
)

// rawOutputKey holds the unparsed capture for diagnostics.
const rawOutputKey = "raw_output"

// hexRunPattern is the last-resort UID sniff: any run of 24+ hex digits.
var hexRunPattern = regexp.MustCompile(`[0-9A-Fa-f]{24,}`)

// probeCommands are written before reading; common firmwares answer at least
// one of them with an info dump.
var probeCommands = []string{"info\r\n", "I\r\n", "?\r\n"}

// Harvester reads and parses board metadata over serial.
type Harvester struct {
	Open       acquire.OpenFunc
	BaudRates  []int
	MaxBytes   int
	ReadWindow time.Duration
	logger     *zap.Logger
}

// New builds a harvester from configuration.
func New(cfg *config.HarvestConfig, logger *zap.Logger) *Harvester {
	return &Harvester{
		Open:       acquire.OpenSerial,
		BaudRates:  cfg.BaudRates,
		MaxBytes:   cfg.MaxBytes,
		ReadWindow: cfg.ReadWindow,
		logger:     logger.With(zap.String("component", "harvester")),
	}
}

// Harvest captures output from the port and merges the parsed attributes
// onto dev. It never fails the caller: a board that stays silent simply
// contributes nothing.
func (h *Harvester) Harvest(dev *model.Device) {
	raw, err := h.capture(dev.Port)
	if err != nil {
		h.logger.Debug("Metadata capture failed",
			zap.String("port", dev.Port),
			zap.Error(err),
		)
		return
	}
	if strings.TrimSpace(raw) == "" {
		return
	}

	attrs := Parse(raw)
	Apply(dev, attrs)
	dev.SetExtra(rawOutputKey, raw)
}

// capture tries each configured baud rate until one yields output.
func (h *Harvester) capture(portName string) (string, error) {
	var lastErr error
	for _, baud := range h.BaudRates {
		out, err := h.captureAt(portName, baud)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(out) != "" {
			return out, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", nil
}

func (h *Harvester) captureAt(portName string, baud int) (string, error) {
	port, err := h.Open(portName, baud)
	if err != nil {
		return "", fmt.Errorf("open %s at %d: %w", portName, baud, err)
	}
	defer port.Close()

	for _, cmd := range probeCommands {
		if _, err := port.Write([]byte(cmd)); err != nil {
			return "", fmt.Errorf("write probe command: %w", err)
		}
	}

	buf := acquire.ReadWindow(port, h.ReadWindow, h.MaxBytes)
	return string(buf), nil
}

// Parse extracts a flat string-to-string attribute map from raw output.
// Precedence: a balanced JSON object span, then key:value / key=value
// lines, then a bare hex run treated as a UID.
func Parse(raw string) map[string]string {
	if attrs := parseJSONSpan(raw); len(attrs) > 0 {
		return attrs
	}
	if attrs := parseKeyValueLines(raw); len(attrs) > 0 {
		return attrs
	}
	if uid := hexRunPattern.FindString(raw); uid != "" {
		return map[string]string{"uid": uid}
	}
	return nil
}

// parseJSONSpan finds the first balanced {...} span and decodes it. Keys are
// lower-cased; scalar values are stringified; nested arrays and objects are
// re-serialized rather than dropped.
func parseJSONSpan(raw string) map[string]string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil
	}

	depth := 0
	end := -1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil
	}

	attrs := make(map[string]string, len(decoded))
	for key, value := range decoded {
		attrs[strings.ToLower(strings.TrimSpace(key))] = stringify(value)
	}
	return attrs
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// parseKeyValueLines accepts any line containing ':' or '=' as a pair.
func parseKeyValueLines(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		sep := strings.IndexAny(line, ":=")
		if sep <= 0 {
			continue
		}

		key := strings.ToLower(strings.Join(strings.Fields(line[:sep]), "_"))
		value := strings.TrimSpace(line[sep+1:])
		if key == "" {
			continue
		}
		attrs[key] = value
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// Apply writes recognized attribute keys onto the device's typed fields and
// preserves everything else in extra_info.
func Apply(dev *model.Device, attrs map[string]string) {
	for key, value := range attrs {
		if value == "" {
			continue
		}
		switch key {
		case "uid":
			if uid := acquire.NormalizeUID(value); uid != "" && dev.UID == "" {
				dev.UID = uid
			} else if dev.UID == "" {
				dev.UID = strings.ToUpper(value)
			}
		case "serial_number", "serial":
			if dev.SerialNumber == "" {
				dev.SerialNumber = value
			}
		case "chip_id", "chipid":
			dev.ChipID = value
		case "mac", "mac_address":
			dev.MACAddress = value
		case "firmware", "firmware_version":
			dev.FirmwareVersion = value
		case "hardware_version":
			dev.HardwareVersion = value
		case "flash_size":
			dev.FlashSize = value
		case "cpu_frequency", "cpu_freq":
			dev.CPUFrequency = value
		case "manufacturer":
			if dev.Manufacturer == "" {
				dev.Manufacturer = value
			}
		case "description":
			if dev.Description == "" {
				dev.Description = value
			}
		default:
			dev.SetExtra(key, value)
		}
	}
}
