// internal/scan/orchestrator.go

// Package scan drives the identification pipeline: enumerate ports, classify,
// acquire UIDs, harvest metadata, and keep the registry and change feed in
// sync with what is physically attached. One-shot scans run on a bounded
// worker pool; monitoring is exactly one long-lived background goroutine.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"board-service/internal/acquire"
	"board-service/internal/classify"
	"board-service/internal/config"
	"board-service/internal/enumerate"
	"board-service/internal/model"
	"board-service/internal/utils"
)

// PortLister enumerates attached serial interfaces.
type PortLister interface {
	List() []enumerate.RawPort
}

// PortEnricher backfills descriptor strings the serial layer did not report.
type PortEnricher interface {
	Enrich(port *enumerate.RawPort)
}

// UIDAcquirer runs the strategy chain against one port.
type UIDAcquirer interface {
	Acquire(ctx context.Context, target acquire.Target) (string, bool)
}

// MetadataHarvester merges free-form board output onto the device.
type MetadataHarvester interface {
	Harvest(dev *model.Device)
}

// DeviceStore is the slice of the registry the orchestrator needs.
type DeviceStore interface {
	Upsert(dev *model.Device) *model.Device
	MarkDisconnected(id string) (*model.Device, bool)
}

// Journal records change events for audit. Implementations must not block
// the monitor loop on failure.
type Journal interface {
	Record(ctx context.Context, event model.ChangeEvent)
}

// Callback receives change-feed events from the monitor loop.
type Callback func(event model.ChangeEvent)

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Lister    PortLister
	Enricher  PortEnricher // optional
	Chain     UIDAcquirer
	Harvester MetadataHarvester
	Store     DeviceStore
	Journal   Journal
}

// Orchestrator coordinates scans and the background monitor loop.
type Orchestrator struct {
	deps        Deps
	maxWorkers  int
	interval    time.Duration
	stopTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	known   map[string]*model.Device
	paused  bool
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds an orchestrator from configuration and collaborators.
func New(cfg *config.ScanConfig, deps Deps, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		deps:        deps,
		maxWorkers:  cfg.MaxWorkers,
		interval:    cfg.MonitorInterval,
		stopTimeout: cfg.StopTimeout,
		logger:      logger.With(zap.String("component", "orchestrator")),
		known:       make(map[string]*model.Device),
	}
}

// ScanOnce probes every attached port and returns the identified devices.
// Each result has already been upserted into the store.
func (o *Orchestrator) ScanOnce(ctx context.Context) []*model.Device {
	devices := o.scan(ctx, false)

	stored := make([]*model.Device, 0, len(devices))
	for _, dev := range devices {
		stored = append(stored, o.deps.Store.Upsert(dev))
	}
	return stored
}

// scan runs the per-port pipeline concurrently, bounded by maxWorkers. A
// failure identifying one port never aborts the batch.
func (o *Orchestrator) scan(ctx context.Context, silent bool) []*model.Device {
	ports := o.deps.Lister.List()
	if len(ports) == 0 {
		return nil
	}

	workers := o.maxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(ports) {
		workers = len(ports)
	}

	jobs := make(chan enumerate.RawPort, len(ports))
	results := make(chan *model.Device, len(ports))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				if dev := o.probePort(ctx, raw, silent); dev != nil {
					results <- dev
				}
			}
		}()
	}

	for _, raw := range ports {
		jobs <- raw
	}
	close(jobs)
	wg.Wait()
	close(results)

	devices := make([]*model.Device, 0, len(ports))
	for dev := range results {
		devices = append(devices, dev)
	}
	return devices
}

// probePort identifies a single port. It never panics the batch: a probe
// that blows up is logged and excluded from the result.
func (o *Orchestrator) probePort(ctx context.Context, raw enumerate.RawPort, silent bool) (dev *model.Device) {
	plog := utils.NewProbeLogger(o.logger, raw.Name, silent)

	defer func() {
		if rec := recover(); rec != nil {
			plog.Warn("Port probe panicked", zap.Any("panic", rec))
			dev = nil
		}
	}()

	if ctx.Err() != nil {
		return nil
	}

	if o.deps.Enricher != nil {
		o.deps.Enricher.Enrich(&raw)
	}

	now := time.Now()
	dev = &model.Device{
		Port:          raw.Name,
		VendorID:      raw.VendorID,
		ProductID:     raw.ProductID,
		SerialNumber:  raw.SerialNumber,
		Manufacturer:  raw.Manufacturer,
		Description:   raw.Product,
		BoardKind:     classify.Classify(raw.VendorID, raw.ProductID),
		FirstDetected: now,
		LastSeen:      now,
		Status:        model.StatusConnected,
	}

	if uid, ok := o.deps.Chain.Acquire(ctx, acquire.Target{Port: raw.Name, Kind: dev.BoardKind}); ok {
		dev.UID = uid
		plog.Info("UID acquired", zap.String("uid", uid))
	} else {
		plog.Debug("No UID available")
	}

	o.deps.Harvester.Harvest(dev)

	dev.HealthScore = dev.ComputeHealthScore()
	plog.Info("Port identified",
		zap.String("board_kind", string(dev.BoardKind)),
		zap.String("unique_id", dev.UniqueID()),
	)
	return dev
}

// StartMonitor launches the background loop. It returns an error when a
// monitor is already running.
func (o *Orchestrator) StartMonitor(callback Callback) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("monitor already running")
	}
	o.running = true
	o.paused = false
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})

	go o.monitorLoop(callback, o.stopCh, o.doneCh)

	o.logger.Info("Monitor started", zap.Duration("interval", o.interval))
	return nil
}

// Pause makes the loop skip scanning while keeping the goroutine alive.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
	o.logger.Info("Monitor paused")
}

// Resume re-enables scanning after a Pause.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	o.logger.Info("Monitor resumed")
}

// IsPaused reports whether the loop is currently skipping scans.
func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// IsRunning reports whether the monitor goroutine is alive.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// StopMonitor signals the loop and waits for it to exit, bounded by the
// configured stop timeout.
func (o *Orchestrator) StopMonitor() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	stopCh, doneCh := o.stopCh, o.doneCh
	o.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(o.stopTimeout):
		return fmt.Errorf("monitor did not stop within %s", o.stopTimeout)
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	o.logger.Info("Monitor stopped")
	return nil
}

func (o *Orchestrator) monitorLoop(callback Callback, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if o.IsPaused() {
				continue
			}
			o.tick(callback)
		}
	}
}

// tick runs one silent scan and emits the delta against the previous scan.
/// An unchanged id set is a strict no-op: no callback, no registry write.
func (o *Orchestrator) tick(callback Callback) {
	ctx, cancel := context.WithTimeout(context.Background(), o.interval*10)
	defer cancel()

	devices := o.scan(ctx, true)

	current := make(map[string]*model.Device, len(devices))
	for _, dev := range devices {
		current[dev.UniqueID()] = dev
	}

	o.mu.Lock()
	previous := o.known
	o.known = current
	o.mu.Unlock()

	now := time.Now()

	for id, dev := range current {
		if _, seen := previous[id]; seen {
			continue
		}
		stored := o.deps.Store.Upsert(dev)
		event := model.ChangeEvent{
			Kind:      model.EventConnected,
			UniqueID:  id,
			Device:    stored,
			Timestamp: now,
		}
		o.emit(ctx, callback, event)
	}

	for id := range previous {
		if _, still := current[id]; still {
			continue
		}
		marked, _ := o.deps.Store.MarkDisconnected(id)
		event := model.ChangeEvent{
			Kind:      model.EventDisconnected,
			UniqueID:  id,
			Device:    marked,
			Timestamp: now,
		}
		o.emit(ctx, callback, event)
	}
}

func (o *Orchestrator) emit(ctx context.Context, callback Callback, event model.ChangeEvent) {
	o.logger.Debug("Device change",
		zap.String("kind", string(event.Kind)),
		zap.String("unique_id", event.UniqueID),
	)
	if o.deps.Journal != nil {
		o.deps.Journal.Record(ctx, event)
	}
	if callback != nil {
		callback(event)
	}
}
