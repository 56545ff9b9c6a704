// internal/enumerate/usb.go
package enumerate

import (
	"github.com/google/gousb"
	"go.uber.org/zap"

	"board-service/internal/model"
)

// Enricher backfills manufacturer/product strings from USB descriptors when
// the OS serial layer reports none. Entirely best-effort: a missing libusb
// context or unopenable device just leaves the port as reported.
type Enricher struct {
	logger *zap.Logger
	ctx    *gousb.Context
}

// NewEnricher creates a USB descriptor enricher. Returns nil if the USB
// context cannot be initialized; callers treat a nil enricher as disabled.
func NewEnricher(logger *zap.Logger) (e *Enricher) {
	defer func() {
		// gousb panics when libusb is unavailable on the host.
		if r := recover(); r != nil {
			logger.Warn("USB descriptor enrichment unavailable", zap.Any("reason", r))
			e = nil
		}
	}()

	return &Enricher{
		logger: logger.With(zap.String("component", "usb-enricher")),
		ctx:    gousb.NewContext(),
	}
}

// Close releases the USB context.
func (e *Enricher) Close() error {
	if e == nil || e.ctx == nil {
		return nil
	}
	return e.ctx.Close()
}

// Enrich fills empty Manufacturer/Product fields on the port from the USB
// device descriptor matching its vendor/product pair.
func (e *Enricher) Enrich(port *RawPort) {
	if e == nil || port.VendorID == nil || port.ProductID == nil {
		return
	}
	if port.Manufacturer != "" && port.Product != "" {
		return
	}

	vid := gousb.ID(uint16(*port.VendorID))
	pid := gousb.ID(uint16(*port.ProductID))

	devices, err := e.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()
	if err != nil || len(devices) == 0 {
		// Permission denied on the USB node is common and not worth more
		// than a debug line.
		e.logger.Debug("USB descriptor lookup failed",
			zap.String("port", port.Name),
			zap.Error(err),
		)
		return
	}

	dev := devices[0]
	if port.Manufacturer == "" {
		if m, err := dev.Manufacturer(); err == nil {
			port.Manufacturer = m
		}
	}
	if port.Product == "" {
		if p, err := dev.Product(); err == nil {
			port.Product = p
		}
	}
}
