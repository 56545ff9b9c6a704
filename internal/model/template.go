// internal/model/template.go
package model

import "time"

// DeviceTemplate is a named, reusable snapshot of a device's classification
// and metadata. Volatile identity (port, UID, serial number) is deliberately
// not captured; a template pre-populates a freshly connected device without
// re-running acquisition.
type DeviceTemplate struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BoardKind   BoardKind `json:"board_kind"`

	Manufacturer    string            `json:"manufacturer,omitempty"`
	FirmwareVersion string            `json:"firmware_version,omitempty"`
	HardwareVersion string            `json:"hardware_version,omitempty"`
	FlashSize       string            `json:"flash_size,omitempty"`
	CPUFrequency    string            `json:"cpu_frequency,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	ExtraInfo       map[string]string `json:"extra_info,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTemplateFromDevice captures the reusable parts of a device.
func NewTemplateFromDevice(name, description string, d *Device) *DeviceTemplate {
	tpl := &DeviceTemplate{
		Name:            name,
		Description:     description,
		BoardKind:       d.BoardKind,
		Manufacturer:    d.Manufacturer,
		FirmwareVersion: d.FirmwareVersion,
		HardwareVersion: d.HardwareVersion,
		FlashSize:       d.FlashSize,
		CPUFrequency:    d.CPUFrequency,
		Notes:           d.Notes,
		CreatedAt:       time.Now(),
	}
	if d.Tags != nil {
		tpl.Tags = append([]string(nil), d.Tags...)
	}
	if d.ExtraInfo != nil {
		tpl.ExtraInfo = make(map[string]string, len(d.ExtraInfo))
		for k, v := range d.ExtraInfo {
			tpl.ExtraInfo[k] = v
		}
	}
	return tpl
}

// Apply clones the template's metadata onto a fresh identity anchored at the
// given port. Connection bookkeeping is reset: the result counts as a first
// detection.
func (t *DeviceTemplate) Apply(port string) *Device {
	now := time.Now()
	d := &Device{
		Port:            port,
		BoardKind:       t.BoardKind,
		Manufacturer:    t.Manufacturer,
		FirmwareVersion: t.FirmwareVersion,
		HardwareVersion: t.HardwareVersion,
		FlashSize:       t.FlashSize,
		CPUFrequency:    t.CPUFrequency,
		Notes:           t.Notes,
		FirstDetected:   now,
		LastSeen:        now,
		ConnectionCount: 1,
		Status:          StatusConnected,
	}
	if t.Tags != nil {
		d.Tags = append([]string(nil), t.Tags...)
	}
	if t.ExtraInfo != nil {
		d.ExtraInfo = make(map[string]string, len(t.ExtraInfo))
		for k, v := range t.ExtraInfo {
			d.ExtraInfo[k] = v
		}
	}
	d.HealthScore = d.ComputeHealthScore()
	return d
}
