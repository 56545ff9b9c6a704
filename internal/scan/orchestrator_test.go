package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/acquire"
	"board-service/internal/config"
	"board-service/internal/enumerate"
	"board-service/internal/model"
)

type fakeLister struct {
	mu    sync.Mutex
	ports []enumerate.RawPort
}

func (f *fakeLister) List() []enumerate.RawPort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enumerate.RawPort(nil), f.ports...)
}

func (f *fakeLister) set(ports []enumerate.RawPort) {
	f.mu.Lock()
	f.ports = ports
	f.mu.Unlock()
}

type fakeChain struct {
	mu   sync.Mutex
	uids map[string]string
	// inflight tracks concurrent Acquire calls to verify the pool bound.
	inflight    int
	maxInflight int
	delay       time.Duration
}

func (f *fakeChain) Acquire(ctx context.Context, target acquire.Target) (string, bool) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inflight--
	uid, ok := f.uids[target.Port]
	f.mu.Unlock()
	return uid, ok
}

type fakeHarvester struct{}

func (fakeHarvester) Harvest(*model.Device) {}

type panickyHarvester struct {
	badPort string
}

func (p panickyHarvester) Harvest(dev *model.Device) {
	if dev.Port == p.badPort {
		panic("probe exploded")
	}
}

type fakeStore struct {
	mu           sync.Mutex
	upserts      []*model.Device
	disconnected []string
}

func (f *fakeStore) Upsert(dev *model.Device) *model.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, dev)
	return dev
}

func (f *fakeStore) MarkDisconnected(id string) (*model.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, id)
	return &model.Device{UID: id, Status: model.StatusDisconnected}, true
}

func (f *fakeStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

type recordingJournal struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (j *recordingJournal) Record(_ context.Context, event model.ChangeEvent) {
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
}

func testConfig() *config.ScanConfig {
	return &config.ScanConfig{
		MaxWorkers:      10,
		MonitorInterval: 20 * time.Millisecond,
		StopTimeout:     2 * time.Second,
	}
}

func stm32Port(name string) enumerate.RawPort {
	vid, pid := model.USBID(0x0483), model.USBID(0x5740)
	return enumerate.RawPort{Name: name, VendorID: &vid, ProductID: &pid}
}

func TestScanOnceIdentifiesAndStores(t *testing.T) {
	lister := &fakeLister{ports: []enumerate.RawPort{stm32Port("/dev/ttyACM0")}}
	chain := &fakeChain{uids: map[string]string{"/dev/ttyACM0": "AABBCCDDEEFF001122334455"}}
	store := &fakeStore{}

	o := New(testConfig(), Deps{
		Lister:    lister,
		Chain:     chain,
		Harvester: fakeHarvester{},
		Store:     store,
	}, zap.NewNop())

	devices := o.ScanOnce(context.Background())

	require.Len(t, devices, 1)
	assert.Equal(t, "AABBCCDDEEFF001122334455", devices[0].UID)
	assert.Equal(t, model.BoardStm32, devices[0].BoardKind)
	assert.Equal(t, 1, store.upsertCount())
}

func TestScanOnceBoundsWorkerPool(t *testing.T) {
	var ports []enumerate.RawPort
	for _, name := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"} {
		ports = append(ports, enumerate.RawPort{Name: name})
	}
	lister := &fakeLister{ports: ports}
	chain := &fakeChain{uids: map[string]string{}, delay: 10 * time.Millisecond}

	cfg := testConfig()
	cfg.MaxWorkers = 3
	o := New(cfg, Deps{
		Lister:    lister,
		Chain:     chain,
		Harvester: fakeHarvester{},
		Store:     &fakeStore{},
	}, zap.NewNop())

	devices := o.ScanOnce(context.Background())

	assert.Len(t, devices, 8)
	assert.LessOrEqual(t, chain.maxInflight, 3)
}

func TestScanOnceIsolatesPortFaults(t *testing.T) {
	lister := &fakeLister{ports: []enumerate.RawPort{
		{Name: "good"},
		{Name: "bad"},
	}}
	o := New(testConfig(), Deps{
		Lister:    lister,
		Chain:     &fakeChain{uids: map[string]string{}},
		Harvester: panickyHarvester{badPort: "bad"},
		Store:     &fakeStore{},
	}, zap.NewNop())

	devices := o.ScanOnce(context.Background())

	require.Len(t, devices, 1)
	assert.Equal(t, "good", devices[0].Port)
}

func TestScanOnceNoPortsYieldsEmpty(t *testing.T) {
	o := New(testConfig(), Deps{
		Lister:    &fakeLister{},
		Chain:     &fakeChain{},
		Harvester: fakeHarvester{},
		Store:     &fakeStore{},
	}, zap.NewNop())

	assert.Empty(t, o.ScanOnce(context.Background()))
}

func collectEvents(t *testing.T) (Callback, func() []model.ChangeEvent) {
	t.Helper()
	var mu sync.Mutex
	var events []model.ChangeEvent
	cb := func(e model.ChangeEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	snapshot := func() []model.ChangeEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]model.ChangeEvent(nil), events...)
	}
	return cb, snapshot
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestMonitorEmitsConnectAndDisconnect(t *testing.T) {
	lister := &fakeLister{}
	chain := &fakeChain{uids: map[string]string{"COM3": "AABBCCDDEEFF001122334455"}}
	store := &fakeStore{}
	journal := &recordingJournal{}

	o := New(testConfig(), Deps{
		Lister:    lister,
		Chain:     chain,
		Harvester: fakeHarvester{},
		Store:     store,
		Journal:   journal,
	}, zap.NewNop())

	cb, events := collectEvents(t)
	require.NoError(t, o.StartMonitor(cb))
	defer o.StopMonitor()

	lister.set([]enumerate.RawPort{{Name: "COM3"}})
	waitFor(t, func() bool { return len(events()) >= 1 })

	got := events()
	assert.Equal(t, model.EventConnected, got[0].Kind)
	assert.Equal(t, "AABBCCDDEEFF001122334455", got[0].UniqueID)

	lister.set(nil)
	waitFor(t, func() bool { return len(events()) >= 2 })

	got = events()
	assert.Equal(t, model.EventDisconnected, got[1].Kind)
	assert.Equal(t, "AABBCCDDEEFF001122334455", got[1].UniqueID)

	journal.mu.Lock()
	assert.Len(t, journal.events, 2)
	journal.mu.Unlock()
}

func TestMonitorUnchangedSetIsNoOp(t *testing.T) {
	lister := &fakeLister{ports: []enumerate.RawPort{{Name: "COM3"}}}
	chain := &fakeChain{uids: map[string]string{"COM3": "AABBCCDDEEFF001122334455"}}
	store := &fakeStore{}

	o := New(testConfig(), Deps{
		Lister:    lister,
		Chain:     chain,
		Harvester: fakeHarvester{},
		Store:     store,
	}, zap.NewNop())

	cb, events := collectEvents(t)
	require.NoError(t, o.StartMonitor(cb))
	defer o.StopMonitor()

	waitFor(t, func() bool { return len(events()) == 1 })

	// Let several intervals elapse with a stable device set.
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, events(), 1, "stable set must not re-emit")
	assert.Equal(t, 1, store.upsertCount(), "stable set must not thrash the store")
}

func TestMonitorPauseSkipsScans(t *testing.T) {
	lister := &fakeLister{}
	o := New(testConfig(), Deps{
		Lister:    lister,
		Chain:     &fakeChain{uids: map[string]string{}},
		Harvester: fakeHarvester{},
		Store:     &fakeStore{},
	}, zap.NewNop())

	cb, events := collectEvents(t)
	require.NoError(t, o.StartMonitor(cb))
	defer o.StopMonitor()

	o.Pause()
	assert.True(t, o.IsPaused())

	lister.set([]enumerate.RawPort{{Name: "COM3"}})
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, events(), "paused monitor must not scan")

	o.Resume()
	waitFor(t, func() bool { return len(events()) == 1 })
}

func TestMonitorStartStopLifecycle(t *testing.T) {
	o := New(testConfig(), Deps{
		Lister:    &fakeLister{},
		Chain:     &fakeChain{},
		Harvester: fakeHarvester{},
		Store:     &fakeStore{},
	}, zap.NewNop())

	require.NoError(t, o.StartMonitor(nil))
	assert.True(t, o.IsRunning())
	assert.Error(t, o.StartMonitor(nil), "double start must fail")

	require.NoError(t, o.StopMonitor())
	assert.False(t, o.IsRunning())

	// A stopped orchestrator can be started again.
	require.NoError(t, o.StartMonitor(nil))
	require.NoError(t, o.StopMonitor())
}
