// internal/permission/gate.go
package permission

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

// DefaultPollInterval is the wait between two permission checks
const DefaultPollInterval = time.Second

// Service is the platform permission capability
type Service interface {
	HasPermission(device model.DeviceHandle) bool
	// RequestPermission asks the platform for access. Repeated requests for
	// a device with a request already outstanding must not register another
	// listener. onResult may be called from any goroutine.
	RequestPermission(device model.DeviceHandle, onResult func(granted bool)) error
	// Unregister drops the listener registered for device, if any.
	Unregister(device model.DeviceHandle)
}

// Gate blocks a connection attempt until access to the device is granted
type Gate struct {
	service  Service
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	polls atomic.Int64
}

// NewGate creates a gate. A zero timeout waits until granted or cancelled.
func NewGate(service Service, interval, timeout time.Duration, logger *zap.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Gate{
		service:  service,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "permission")),
	}
}

// Ensure returns nil once the device is accessible. It fails with a
// *model.PermissionError when the request is denied, the timeout expires or
// ctx is cancelled.
func (g *Gate) Ensure(ctx context.Context, device model.DeviceHandle) error {
	g.polls.Store(0)

	results := make(chan bool, 1)
	onResult := func(granted bool) {
		select {
		case results <- granted:
		default:
		}
	}

	var deadline <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	logger := g.logger.With(zap.String("device", device.String()))

	for {
		poll := g.polls.Add(1)
		if g.service.HasPermission(device) {
			logger.Info("Permission granted", zap.Int64("polls", poll))
			return nil
		}

		if err := g.service.RequestPermission(device, onResult); err != nil {
			logger.Error("Permission request failed", zap.Error(err))
			return &model.PermissionError{Reason: model.PermissionDenied, Device: device, Err: err}
		}
		logger.Info("Waiting for permission",
			zap.Int64("poll", poll),
			zap.Duration("interval", g.interval),
		)

		wait := time.NewTimer(g.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return &model.PermissionError{Reason: model.PermissionCancelled, Device: device, Err: ctx.Err()}
		case <-deadline:
			wait.Stop()
			logger.Warn("Permission request timed out", zap.Duration("timeout", g.timeout))
			return &model.PermissionError{Reason: model.PermissionTimedOut, Device: device}
		case granted := <-results:
			wait.Stop()
			if !granted {
				logger.Warn("Permission denied")
				return &model.PermissionError{Reason: model.PermissionDenied, Device: device}
			}
			// re-check right away
		case <-wait.C:
		}
	}
}

// Release unregisters the platform listener for device
func (g *Gate) Release(device model.DeviceHandle) {
	g.service.Unregister(device)
}

// Polls returns how many permission checks the latest Ensure performed
func (g *Gate) Polls() int64 {
	return g.polls.Load()
}
