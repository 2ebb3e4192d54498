// 📁 internal/discovery/scanner.go - Device Discovery
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

// Prober is the platform's device-and-driver query capability
type Prober interface {
	// ListDrivers returns attached devices claimed by a serial driver, in a
	// stable order.
	ListDrivers(ctx context.Context) ([]model.DriverBinding, error)
	// GetPorts returns the logical ports the driver exposes, ordered by index.
	GetPorts(ctx context.Context, binding model.DriverBinding) ([]model.PortHandle, error)
}

// Finder selects the device a connection attempt will use
type Finder struct {
	prober Prober
	logger *zap.Logger
}

// NewFinder creates a new finder on top of prober
func NewFinder(prober Prober, logger *zap.Logger) *Finder {
	return &Finder{
		prober: prober,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// FindCandidate returns the first attached device that exposes at least one
// port. It fails with model.ErrNoDevice when there is none and with a
// *model.DiscoveryError when the platform query itself fails.
func (f *Finder) FindCandidate(ctx context.Context) (*model.DriverBinding, error) {
	startTime := time.Now()
	f.logger.Info("Starting device discovery")

	bindings, err := f.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		f.logger.Warn("No serial driver found", zap.Duration("scan_duration", time.Since(startTime)))
		return nil, model.ErrNoDevice
	}

	candidate := bindings[0]
	f.logger.Info("Device discovery completed",
		zap.String("device", candidate.Device.String()),
		zap.String("driver", string(candidate.Driver)),
		zap.Int("ports", len(candidate.Ports)),
		zap.Int("devices_found", len(bindings)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return &candidate, nil
}

// Scan lists every attached device with its ports resolved and its access
// node set to the tty of port 0. Devices whose driver exposes no ports are
// left out.
func (f *Finder) Scan(ctx context.Context) ([]model.DriverBinding, error) {
	bindings, err := f.prober.ListDrivers(ctx)
	if err != nil {
		f.logger.Error("Device enumeration failed", zap.Error(err))
		return nil, &model.DiscoveryError{Op: "list drivers", Err: err}
	}

	var result []model.DriverBinding
	for _, binding := range bindings {
		ports, err := f.prober.GetPorts(ctx, binding)
		if err != nil {
			f.logger.Error("Port enumeration failed",
				zap.String("device", binding.Device.String()),
				zap.Error(err),
			)
			return nil, &model.DiscoveryError{Op: "get ports", Err: err}
		}
		if len(ports) == 0 {
			f.logger.Debug("Skipping device without ports", zap.String("device", binding.Device.String()))
			continue
		}
		binding.Ports = ports
		// permission is checked on the node the session will open
		binding.Device.Path = ports[0].Name
		result = append(result, binding)
	}

	return result, nil
}
