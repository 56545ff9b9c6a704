package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := New(
		filepath.Join(dir, "devices.json"),
		filepath.Join(dir, "templates.json"),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return r
}

func sampleDevice(port, uid string) *model.Device {
	return &model.Device{
		Port:         port,
		UID:          uid,
		BoardKind:    model.BoardStm32,
		Manufacturer: "STMicroelectronics",
		Description:  "Nucleo dev board",
	}
}

func TestUpsertNewDevice(t *testing.T) {
	r := newTestRegistry(t)

	stored := r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))

	assert.Equal(t, 1, stored.ConnectionCount)
	assert.Equal(t, model.StatusConnected, stored.Status)
	assert.False(t, stored.FirstDetected.IsZero())

	got, ok := r.Get("AABBCCDDEEFF001122334455")
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyACM0", got.Port)
}

func TestUpsertReconnectPreservesHistoryAndAnnotations(t *testing.T) {
	r := newTestRegistry(t)
	id := "AABBCCDDEEFF001122334455"

	first := r.Upsert(sampleDevice("/dev/ttyACM0", id))
	_, ok := r.UpdateAnnotations(id, AnnotationUpdate{
		CustomName: strPtr("bench rig 3"),
		Notes:      strPtr("left USB hub"),
	})
	require.True(t, ok)

	// Same board shows up on a different port with no annotations.
	second := r.Upsert(sampleDevice("/dev/ttyACM1", id))

	assert.Equal(t, 2, second.ConnectionCount)
	assert.Equal(t, first.FirstDetected, second.FirstDetected)
	assert.Equal(t, "bench rig 3", second.CustomName)
	assert.Equal(t, "left USB hub", second.Notes)
	assert.Equal(t, "/dev/ttyACM1", second.Port)
}

func TestUpsertReKeysWhenUIDAppears(t *testing.T) {
	r := newTestRegistry(t)

	// First seen with serial number only.
	weak := &model.Device{Port: "COM4", SerialNumber: "SN-001", BoardKind: model.BoardEsp32}
	r.Upsert(weak)
	_, ok := r.Get("SN-001")
	require.True(t, ok)

	// Later acquisition yields a UID; the device keys under the stronger id.
	strong := &model.Device{Port: "COM4", SerialNumber: "SN-001", UID: "303035323334510D24353834", BoardKind: model.BoardEsp32}
	r.Upsert(strong)

	_, ok = r.Get("303035323334510D24353834")
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	r := newTestRegistry(t)
	r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))

	assert.True(t, r.Remove("AABBCCDDEEFF001122334455"))
	assert.False(t, r.Remove("AABBCCDDEEFF001122334455"))
	_, ok := r.Get("AABBCCDDEEFF001122334455")
	assert.False(t, ok)
}

func TestMarkDisconnectedKeepsHistory(t *testing.T) {
	r := newTestRegistry(t)
	id := "AABBCCDDEEFF001122334455"
	r.Upsert(sampleDevice("/dev/ttyACM0", id))

	dev, ok := r.MarkDisconnected(id)
	require.True(t, ok)
	assert.Equal(t, model.StatusDisconnected, dev.Status)
	assert.Equal(t, 1, dev.ConnectionCount)
}

func TestSearchDefaultFields(t *testing.T) {
	r := newTestRegistry(t)
	dev := sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455")
	dev.Tags = []string{"production", "batch-7"}
	dev.Notes = "flaky at 9600 baud"
	r.Upsert(dev)
	r.Upsert(sampleDevice("/dev/ttyACM1", "FFEEDDCCBBAA001122334455"))

	assert.Len(t, r.Search("batch-7", nil), 1)
	assert.Len(t, r.Search("FLAKY", nil), 1)
	assert.Len(t, r.Search("stmicro", nil), 2)
	assert.Empty(t, r.Search("nonexistent", nil))
	assert.Empty(t, r.Search("", nil))
}

func TestSearchRestrictedFields(t *testing.T) {
	r := newTestRegistry(t)
	dev := sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455")
	dev.Notes = "stmicro clone?"
	r.Upsert(dev)

	// Restricting to notes must not hit the manufacturer field.
	hits := r.Search("stmicroelectronics", []string{"notes"})
	assert.Empty(t, hits)
}

func TestTemplatesRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	dev := sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455")
	dev.FirmwareVersion = "2.4.1"
	dev.Tags = []string{"golden"}

	_, err := r.SaveTemplate("nucleo-golden", "known-good nucleo setup", dev)
	require.NoError(t, err)

	applied, err := r.ApplyTemplate("nucleo-golden", "COM9")
	require.NoError(t, err)

	assert.Equal(t, "COM9", applied.Port)
	assert.Equal(t, "2.4.1", applied.FirmwareVersion)
	assert.Equal(t, []string{"golden"}, applied.Tags)
	assert.Empty(t, applied.UID, "volatile identity must not carry over")
	assert.Equal(t, 1, applied.ConnectionCount)

	_, err = r.ApplyTemplate("missing", "COM9")
	assert.Error(t, err)

	assert.True(t, r.RemoveTemplate("nucleo-golden"))
	assert.False(t, r.RemoveTemplate("nucleo-golden"))
}

func TestSaveTemplateRejectsEmptyName(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.SaveTemplate("  ", "", sampleDevice("COM1", "AABBCCDDEEFF001122334455"))
	assert.Error(t, err)
}

func TestTagMany(t *testing.T) {
	r := newTestRegistry(t)
	r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))
	r.Upsert(sampleDevice("/dev/ttyACM1", "FFEEDDCCBBAA001122334455"))

	n := r.TagMany([]string{"AABBCCDDEEFF001122334455", "FFEEDDCCBBAA001122334455", "ghost"}, "audit-2026")
	assert.Equal(t, 2, n)

	dev, _ := r.Get("AABBCCDDEEFF001122334455")
	assert.True(t, dev.HasTag("audit-2026"))
}

func TestStatistics(t *testing.T) {
	r := newTestRegistry(t)
	r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))
	esp := sampleDevice("/dev/ttyUSB0", "FFEEDDCCBBAA001122334455")
	esp.BoardKind = model.BoardEsp32
	r.Upsert(esp)
	r.MarkDisconnected("FFEEDDCCBBAA001122334455")

	stats := r.Statistics()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Connected)
	assert.Equal(t, 1, stats.Disconnected)
	assert.Equal(t, 1, stats.ByBoardKind[string(model.BoardStm32)])
	assert.Equal(t, 1, stats.ByBoardKind[string(model.BoardEsp32)])
}

func TestPersistenceSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "devices.json")
	tplPath := filepath.Join(dir, "templates.json")

	r1, err := New(devPath, tplPath, zap.NewNop())
	require.NoError(t, err)
	r1.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))
	_, err = r1.SaveTemplate("golden", "", sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))
	require.NoError(t, err)

	r2, err := New(devPath, tplPath, zap.NewNop())
	require.NoError(t, err)

	dev, ok := r2.Get("AABBCCDDEEFF001122334455")
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyACM0", dev.Port)

	_, ok = r2.GetTemplate("golden")
	assert.True(t, ok)
}

func TestCorruptStoreMovedAsideOnLoad(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "devices.json")
	require.NoError(t, os.WriteFile(devPath, []byte("{not json"), 0o644))

	r, err := New(devPath, filepath.Join(dir, "templates.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, r.All())

	_, err = os.Stat(devPath + ".backup")
	assert.NoError(t, err, "corrupt file should be preserved as a backup")
}

func TestStoreFileIsWellFormedJSON(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "devices.json")

	r, err := New(devPath, filepath.Join(dir, "templates.json"), zap.NewNop())
	require.NoError(t, err)
	r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))

	data, err := os.ReadFile(devPath)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "AABBCCDDEEFF001122334455")
}

// Health scoring is a heuristic completeness signal, not a diagnostic; the
// exact weights below document the current tuning.
func TestHealthScoreRefreshedOnStatusChange(t *testing.T) {
	r := newTestRegistry(t)

	connected := r.Upsert(&model.Device{Port: "COM7", SerialNumber: "SN-77"})
	assert.Equal(t, 100, connected.HealthScore)

	bare, ok := r.MarkDisconnected("SN-77")
	require.True(t, ok)

	r.Upsert(sampleDevice("/dev/ttyACM0", "AABBCCDDEEFF001122334455"))
	full, ok := r.MarkDisconnected("AABBCCDDEEFF001122334455")
	require.True(t, ok)

	// Disconnected scores sit below 100 and reward acquired identity fields.
	assert.Less(t, bare.HealthScore, 100)
	assert.Greater(t, full.HealthScore, bare.HealthScore)
}

func strPtr(s string) *string { return &s }
