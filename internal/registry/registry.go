// internal/registry/registry.go

// Package registry is the persisted store of every board the engine has ever
// identified, keyed by the strongest identity available for each. It owns the
// JSON files on disk; all mutation goes through a single writer lock so the
// files never see interleaved writes.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"board-service/internal/model"
)

// DefaultSearchFields are matched when the caller does not narrow the search.
var DefaultSearchFields = []string{"name", "manufacturer", "description", "tags", "notes"}

// Statistics summarizes the registry by connection status and board kind.
type Statistics struct {
	Total        int            `json:"total"`
	Connected    int            `json:"connected"`
	Disconnected int            `json:"disconnected"`
	ByBoardKind  map[string]int `json:"by_board_kind"`
	Templates    int            `json:"templates"`
}

// Registry holds devices and templates in memory and mirrors them to disk.
// The in-memory state is authoritative: a failed write is logged and retried
// on the next mutation rather than surfaced to the caller.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*model.Device
	templates map[string]*model.DeviceTemplate

	devicesPath   string
	templatesPath string
	logger        *zap.Logger
}

// New loads the stores from disk, recovering from corrupt files by renaming
// them aside and starting empty.
func New(devicesPath, templatesPath string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		devices:       make(map[string]*model.Device),
		templates:     make(map[string]*model.DeviceTemplate),
		devicesPath:   devicesPath,
		templatesPath: templatesPath,
		logger:        logger.With(zap.String("component", "registry")),
	}

	if err := os.MkdirAll(filepath.Dir(devicesPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	loadStore(devicesPath, &r.devices, r.logger)
	loadStore(templatesPath, &r.templates, r.logger)

	r.logger.Info("Registry loaded",
		zap.Int("devices", len(r.devices)),
		zap.Int("templates", len(r.templates)),
	)
	return r, nil
}

// loadStore reads a JSON map from path into dst. A missing file is an empty
// store; an unreadable or corrupt file is renamed to <path>.backup and the
// store starts empty, so one bad write can never brick the service.
func loadStore[T any](path string, dst *map[string]T, logger *zap.Logger) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger.Warn("Failed to read store, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}

	if err := json.Unmarshal(data, dst); err != nil {
		backup := path + ".backup"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			logger.Error("Corrupt store could not be moved aside",
				zap.String("path", path),
				zap.Error(renameErr),
			)
		} else {
			logger.Warn("Corrupt store moved aside, starting empty",
				zap.String("path", path),
				zap.String("backup", backup),
				zap.Error(err),
			)
		}
		*dst = make(map[string]T)
	}
}

// persistDevices writes the device store. Callers hold the write lock.
func (r *Registry) persistDevices() {
	persistStore(r.devicesPath, r.devices, r.logger)
}

func (r *Registry) persistTemplates() {
	persistStore(r.templatesPath, r.templates, r.logger)
}

func persistStore[T any](path string, src map[string]T, logger *zap.Logger) {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		logger.Error("Failed to encode store", zap.String("path", path), zap.Error(err))
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logger.Error("Failed to write store", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		logger.Error("Failed to replace store", zap.String("path", path), zap.Error(err))
	}
}

// Upsert records a device under its current unique id, merging with any
// existing record: first-detected time, annotations and harvested extras
// survive a reconnect, the connection counter advances, and the health score
// is recomputed.
func (r *Registry) Upsert(dev *model.Device) *model.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := dev.UniqueID()
	stored := dev.Clone()
	now := time.Now()

	if existing, ok := r.devices[id]; ok {
		stored.FirstDetected = existing.FirstDetected
		stored.ConnectionCount = existing.ConnectionCount + 1

		if stored.CustomName == "" {
			stored.CustomName = existing.CustomName
		}
		if stored.Notes == "" {
			stored.Notes = existing.Notes
		}
		for _, tag := range existing.Tags {
			stored.AddTag(tag)
		}
		for k, v := range existing.ExtraInfo {
			if _, present := stored.ExtraInfo[k]; !present {
				stored.SetExtra(k, v)
			}
		}
	} else {
		if stored.FirstDetected.IsZero() {
			stored.FirstDetected = now
		}
		if stored.ConnectionCount == 0 {
			stored.ConnectionCount = 1
		}
	}

	stored.LastSeen = now
	stored.Status = model.StatusConnected
	stored.HealthScore = stored.ComputeHealthScore()

	r.devices[id] = stored
	r.persistDevices()
	return stored.Clone()
}

// Get returns a copy of the device stored under id.
func (r *Registry) Get(id string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	return dev.Clone(), true
}

// All returns copies of every stored device.
func (r *Registry) All() []*model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev.Clone())
	}
	return out
}

// Remove deletes the device stored under id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	r.persistDevices()
	return true
}

// MarkDisconnected flips the device's status without removing its history.
func (r *Registry) MarkDisconnected(id string) (*model.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	dev.Status = model.StatusDisconnected
	dev.HealthScore = dev.ComputeHealthScore()
	r.persistDevices()
	return dev.Clone(), true
}

// Search returns devices whose selected fields contain the query,
// case-insensitively. An empty field list means DefaultSearchFields; an
// empty query matches nothing.
func (r *Registry) Search(query string, fields []string) []*model.Device {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Device
	for _, dev := range r.devices {
		if deviceMatches(dev, query, fields) {
			out = append(out, dev.Clone())
		}
	}
	return out
}

func deviceMatches(dev *model.Device, query string, fields []string) bool {
	for _, field := range fields {
		switch field {
		case "name":
			if contains(dev.CustomName, query) || contains(dev.DisplayName(), query) {
				return true
			}
		case "manufacturer":
			if contains(dev.Manufacturer, query) {
				return true
			}
		case "description":
			if contains(dev.Description, query) {
				return true
			}
		case "tags":
			for _, tag := range dev.Tags {
				if contains(tag, query) {
					return true
				}
			}
		case "notes":
			if contains(dev.Notes, query) {
				return true
			}
		case "uid":
			if contains(dev.UID, query) {
				return true
			}
		case "port":
			if contains(dev.Port, query) {
				return true
			}
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// AnnotationUpdate carries a partial edit of the user-facing fields. Nil
// means "leave unchanged".
type AnnotationUpdate struct {
	CustomName *string   `json:"custom_name,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}

// UpdateAnnotations applies a partial annotation edit to the device under id.
func (r *Registry) UpdateAnnotations(id string, update AnnotationUpdate) (*model.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil, false
	}

	if update.CustomName != nil {
		dev.CustomName = *update.CustomName
	}
	if update.Tags != nil {
		dev.Tags = append([]string(nil), (*update.Tags)...)
	}
	if update.Notes != nil {
		dev.Notes = *update.Notes
	}

	r.persistDevices()
	return dev.Clone(), true
}

// TagMany adds a tag to every listed device and returns how many were found.
func (r *Registry) TagMany(ids []string, tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	tagged := 0
	for _, id := range ids {
		if dev, ok := r.devices[id]; ok {
			dev.AddTag(tag)
			tagged++
		}
	}
	if tagged > 0 {
		r.persistDevices()
	}
	return tagged
}

// SaveTemplate snapshots a device's reusable metadata under a name.
func (r *Registry) SaveTemplate(name, description string, dev *model.Device) (*model.DeviceTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tpl := model.NewTemplateFromDevice(name, description, dev)
	r.templates[name] = tpl
	r.persistTemplates()
	return tpl, nil
}

// ApplyTemplate instantiates the named template on a port and registers the
// resulting device.
func (r *Registry) ApplyTemplate(name, port string) (*model.Device, error) {
	r.mu.Lock()
	tpl, ok := r.templates[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}

	dev := tpl.Apply(port)
	return r.Upsert(dev), nil
}

// Templates returns every stored template.
func (r *Registry) Templates() []*model.DeviceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.DeviceTemplate, 0, len(r.templates))
	for _, tpl := range r.templates {
		out = append(out, tpl)
	}
	return out
}

// GetTemplate returns the template stored under name.
func (r *Registry) GetTemplate(name string) (*model.DeviceTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[name]
	return tpl, ok
}

// RemoveTemplate deletes the named template and reports whether it existed.
func (r *Registry) RemoveTemplate(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[name]; !ok {
		return false
	}
	delete(r.templates, name)
	r.persistTemplates()
	return true
}

// Statistics counts devices by status and board kind.
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		Total:       len(r.devices),
		ByBoardKind: make(map[string]int),
		Templates:   len(r.templates),
	}
	for _, dev := range r.devices {
		if dev.IsConnected() {
			stats.Connected++
		} else {
			stats.Disconnected++
		}
		stats.ByBoardKind[string(dev.BoardKind)]++
	}
	return stats
}
