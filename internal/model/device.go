// internal/model/device.go
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BoardKind represents the classification of a detected board
type BoardKind string

const (
	BoardStm32   BoardKind = "STM32"
	BoardEsp32   BoardKind = "ESP32"
	BoardEsp8266 BoardKind = "ESP8266"
	BoardArduino BoardKind = "Arduino"
	BoardUnknown BoardKind = "Unknown"
)

// ParseBoardKind reconstructs a BoardKind from its string form.
// Unrecognized values map to BoardUnknown rather than failing.
func ParseBoardKind(s string) BoardKind {
	switch BoardKind(s) {
	case BoardStm32, BoardEsp32, BoardEsp8266, BoardArduino:
		return BoardKind(s)
	default:
		return BoardUnknown
	}
}

// DeviceStatus represents the current connection status of a device
type DeviceStatus string

const (
	StatusConnected    DeviceStatus = "CONNECTED"
	StatusDisconnected DeviceStatus = "DISCONNECTED"
)

// USBID is a 16-bit USB vendor or product identifier. It marshals to the
// conventional 0x-prefixed hex form and unmarshals from hex text, decimal
// text, or a plain JSON number, since OS layers report all three.
type USBID uint16

func (id USBID) String() string {
	return fmt.Sprintf("0x%04X", uint16(id))
}

// MarshalJSON renders the id as "0xXXXX".
func (id USBID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts "0x0483", "1155", or 1155.
func (id *USBID) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, ok := ParseUSBID(asString)
		if !ok {
			return fmt.Errorf("invalid usb id %q", asString)
		}
		*id = parsed
		return nil
	}

	var asNumber uint16
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("invalid usb id %s", string(data))
	}
	*id = USBID(asNumber)
	return nil
}

// ParseUSBID normalizes an OS-reported vendor/product identifier. The
// underlying layer may report decimal ("1155") or hex ("0x0483" or "0483")
// text; both forms are accepted. Returns false on anything unparsable.
func ParseUSBID(s string) (USBID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 16)
		if err != nil {
			return 0, false
		}
		return USBID(v), true
	}

	// Decimal first: that is what pyserial-style OS layers report. Bare
	// 4-digit hex (some udev builds) is the fallback.
	if v, err := strconv.ParseUint(s, 10, 16); err == nil {
		return USBID(v), true
	}
	if v, err := strconv.ParseUint(s, 16, 16); err == nil {
		return USBID(v), true
	}
	return 0, false
}

// Device represents a serial-attached board and everything learned about it.
// Identity fields are volatile except UID; descriptive fields are populated
// opportunistically and never required for correctness.
type Device struct {
	// Identity
	Port         string `json:"port"`
	VendorID     *USBID `json:"vendor_id,omitempty"`
	ProductID    *USBID `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	UID          string `json:"uid,omitempty"`

	// Classification
	BoardKind BoardKind `json:"board_kind"`

	// Descriptive
	Manufacturer    string `json:"manufacturer,omitempty"`
	Description     string `json:"description,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	HardwareVersion string `json:"hardware_version,omitempty"`
	FlashSize       string `json:"flash_size,omitempty"`
	CPUFrequency    string `json:"cpu_frequency,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`
	ChipID          string `json:"chip_id,omitempty"`

	// Lifecycle
	FirstDetected   time.Time    `json:"first_detected"`
	LastSeen        time.Time    `json:"last_seen"`
	ConnectionCount int          `json:"connection_count"`
	Status          DeviceStatus `json:"status"`
	HealthScore     int          `json:"health_score"`

	// User annotations
	CustomName string            `json:"custom_name,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	ExtraInfo  map[string]string `json:"extra_info,omitempty"`
}

// UniqueID derives the key used everywhere for device identity, with strict
// precedence: uid > serial number > "vid:pid" > "port_kind". The key becomes
// more stable as more information is acquired and may therefore change over a
// device's lifetime; callers re-key registry entries rather than assuming
// immutability.
func (d *Device) UniqueID() string {
	if d.UID != "" {
		return d.UID
	}
	if d.SerialNumber != "" {
		return d.SerialNumber
	}
	if d.VendorID != nil && d.ProductID != nil {
		return fmt.Sprintf("%04X:%04X", uint16(*d.VendorID), uint16(*d.ProductID))
	}
	return fmt.Sprintf("%s_%s", d.Port, d.BoardKind)
}

// DisplayName returns the user-facing name for the device.
func (d *Device) DisplayName() string {
	if d.CustomName != "" {
		return d.CustomName
	}
	if d.Description != "" {
		return d.Description
	}
	return d.UniqueID()
}

// IsConnected reports whether the device was present in the last scan.
func (d *Device) IsConnected() bool {
	return d.Status == StatusConnected
}

// HasTag reports whether the device carries the given tag.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag adds a tag if not already present.
func (d *Device) AddTag(tag string) {
	if tag == "" || d.HasTag(tag) {
		return
	}
	d.Tags = append(d.Tags, tag)
}

// SetExtra records a harvested key that has no typed field.
func (d *Device) SetExtra(key, value string) {
	if d.ExtraInfo == nil {
		d.ExtraInfo = make(map[string]string)
	}
	d.ExtraInfo[key] = value
}

// ComputeHealthScore returns a heuristic completeness/stability signal in
// [0, 100]: 100 baseline, -20 while disconnected, +5 for each identifying
// field that has been acquired. It is not a precise diagnostic.
func (d *Device) ComputeHealthScore() int {
	score := 100

	if d.Status == StatusDisconnected {
		score -= 20
	}

	for _, field := range []string{
		d.FirmwareVersion, d.UID, d.ChipID, d.MACAddress, d.Manufacturer,
	} {
		if isMeaningful(field) {
			score += 5
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// isMeaningful filters out the placeholder values OS layers and firmware
// commonly report instead of leaving a field empty.
func isMeaningful(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "none", "unknown", "null":
		return false
	}
	return true
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	out := *d
	if d.VendorID != nil {
		v := *d.VendorID
		out.VendorID = &v
	}
	if d.ProductID != nil {
		p := *d.ProductID
		out.ProductID = &p
	}
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	if d.ExtraInfo != nil {
		out.ExtraInfo = make(map[string]string, len(d.ExtraInfo))
		for k, v := range d.ExtraInfo {
			out.ExtraInfo[k] = v
		}
	}
	return &out
}
