// internal/service/connection_manager.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/event"
	"serial-bridge/internal/model"
	"serial-bridge/internal/protocol"
	"serial-bridge/internal/reader"
	"serial-bridge/internal/session"
	"serial-bridge/internal/utils"
)

// DeviceFinder selects the device to connect to
type DeviceFinder interface {
	FindCandidate(ctx context.Context) (*model.DriverBinding, error)
}

// PermissionGate blocks until the device may be accessed
type PermissionGate interface {
	Ensure(ctx context.Context, device model.DeviceHandle) error
	Release(device model.DeviceHandle)
}

// ConnectionManager owns the connection state machine: discover, gate on
// permission, open the port, run the reader, and tear down in order.
type ConnectionManager struct {
	finder    DeviceFinder
	gate      PermissionGate
	transport protocol.Transport
	bus       *event.Bus
	config    *config.Config
	logger    *utils.ServiceLogger

	mutex         sync.Mutex
	state         model.ConnectionState
	failureReason string
	binding       *model.DriverBinding
	session       *session.Session
	reader        *reader.Reader
	connectedAt   time.Time

	// attempt identifies the running connect sequence; readerGen the reader
	// whose callbacks are still delivered
	attempt   uint64
	readerGen uint64

	// permissionDevice is set while a permission listener may be registered
	permissionDevice *model.DeviceHandle

	cancelConnect context.CancelFunc
	connectDone   chan struct{}
	closing       chan struct{}

	// unwinding is the done channel of a sequence Shutdown stopped waiting
	// for; the next sequence does not open a port before it closes
	unwinding chan struct{}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(
	finder DeviceFinder,
	gate PermissionGate,
	transport protocol.Transport,
	bus *event.Bus,
	config *config.Config,
	logger *zap.Logger,
) *ConnectionManager {
	return &ConnectionManager{
		finder:    finder,
		gate:      gate,
		transport: transport,
		bus:       bus,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "connection-manager"),
		state:     model.StateUninitialized,
	}
}

// Start begins a connect sequence in the background. It is a no-op while a
// sequence is running, while connected and while closing.
func (cm *ConnectionManager) Start() {
	cm.mutex.Lock()
	if cm.state.IsActive() {
		cm.logger.Debug("Start ignored", zap.String("state", cm.state.String()))
		cm.mutex.Unlock()
		return
	}

	// listener left behind by a failed attempt
	stale := cm.permissionDevice
	cm.permissionDevice = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	cm.attempt++
	attempt := cm.attempt
	previous := cm.unwinding
	select {
	case <-previous:
		previous = nil
		cm.unwinding = nil
	default:
	}
	cm.cancelConnect = cancel
	cm.connectDone = done
	cm.failureReason = ""
	cm.binding = nil
	cm.closing = nil

	cm.setState(model.StateDiscovering, "")
	cm.mutex.Unlock()

	if stale != nil {
		cm.gate.Release(*stale)
	}
	go cm.connect(ctx, attempt, done, previous)
}

// connect runs discover, permission, open and reader start. Every step
// re-checks the state so that a concurrent Shutdown wins. When previous is
// set the sequence first waits for it, so two sessions are never open at once.
func (cm *ConnectionManager) connect(ctx context.Context, attempt uint64, done, previous chan struct{}) {
	defer close(done)

	if previous != nil {
		cm.logger.Info("Waiting for the previous connect sequence to release the port")
		select {
		case <-previous:
		case <-ctx.Done():
			return
		}
	}

	binding, err := cm.finder.FindCandidate(ctx)
	if err != nil {
		cm.fail(attempt, model.StateDiscovering, err)
		return
	}

	cm.mutex.Lock()
	if !cm.owns(attempt, model.StateDiscovering) {
		cm.mutex.Unlock()
		return
	}
	cm.binding = binding
	device := binding.Device
	cm.permissionDevice = &device
	cm.setState(model.StateAwaitingPermission, "")
	cm.mutex.Unlock()

	if err := cm.gate.Ensure(ctx, binding.Device); err != nil {
		cm.fail(attempt, model.StateAwaitingPermission, err)
		return
	}

	if !cm.advance(attempt, model.StateAwaitingPermission, model.StateConnecting) {
		return
	}

	sess, err := session.Open(ctx, cm.transport, *binding, cm.config.Serial.PortConfig(), cm.logger.Logger)
	connLogger := utils.NewConnectionLogger(cm.logger.Logger, portName(binding), string(binding.Driver))
	if err != nil {
		connLogger.LogConnection("open", false, err)
		cm.fail(attempt, model.StateConnecting, err)
		return
	}
	connLogger.LogConnection("open", true, nil)

	cm.mutex.Lock()
	if !cm.owns(attempt, model.StateConnecting) {
		cm.mutex.Unlock()
		cm.logger.Info("Connect sequence aborted after open, closing port")
		sess.Close()
		return
	}

	cm.readerGen++
	gen := cm.readerGen
	rd := reader.New(sess, reader.Callbacks{
		OnData:  func(text string) { cm.onReaderData(gen, text) },
		OnError: func(err error) { cm.onReaderError(gen, err) },
	}, reader.Options{
		PollInterval: cm.config.Reader.PollInterval,
		BufferSize:   cm.config.Reader.BufferSize,
		Logger:       connLogger.Logger,
	})

	cm.session = sess
	cm.reader = rd
	cm.connectedAt = time.Now()
	rd.Start()

	cm.setState(model.StateConnected, "")
	cm.bus.Publish(model.NewEvent(model.EventConnected, sess.Port().Name))
	cm.mutex.Unlock()
}

// advance moves from one in-progress state to the next unless Shutdown has
// taken over in the meantime
func (cm *ConnectionManager) advance(attempt uint64, from, to model.ConnectionState) bool {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if !cm.owns(attempt, from) {
		return false
	}
	cm.setState(to, "")
	return true
}

// fail ends the connect sequence. Failures caused by Shutdown cancelling the
// sequence are not reported.
func (cm *ConnectionManager) fail(attempt uint64, from model.ConnectionState, err error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if !cm.owns(attempt, from) {
		cm.logger.Debug("Connect sequence ended after shutdown", zap.Error(err))
		return
	}

	cm.logger.Error("Connect sequence failed",
		zap.String("stage", from.String()),
		zap.Error(err),
	)
	cm.failureReason = err.Error()
	cm.setState(model.StateFailed, cm.failureReason)
	cm.bus.Publish(model.NewEvent(model.EventError, errorMessage(err)))
}

// Write sends text followed by the configured line terminator. Failures are
// published as error events and returned as *model.WriteError.
func (cm *ConnectionManager) Write(ctx context.Context, text string) error {
	cm.mutex.Lock()
	sess := cm.session
	connected := cm.state == model.StateConnected && sess != nil
	cm.mutex.Unlock()

	if !connected {
		err := &model.WriteError{Reason: model.WriteNotConnected}
		cm.logger.Warn("Write rejected", zap.Error(err))
		cm.bus.Publish(model.NewEvent(model.EventError, errorMessage(err)))
		return err
	}

	payload := []byte(text + cm.config.Serial.LineTerminator)
	if err := sess.Write(ctx, payload, cm.config.Serial.WriteTimeout); err != nil {
		cm.logger.Error("Write failed", zap.Error(err))
		cm.bus.Publish(model.NewEvent(model.EventError, errorMessage(err)))
		return err
	}
	return nil
}

// Shutdown stops the reader, closes the port and unregisters the permission
// listener, in that order. It is safe from any state and concurrently with a
// connect sequence; ctx bounds only the wait for that sequence to unwind.
func (cm *ConnectionManager) Shutdown(ctx context.Context) error {
	cm.mutex.Lock()
	switch cm.state {
	case model.StateClosed:
		cm.mutex.Unlock()
		return nil
	case model.StateClosing:
		closing := cm.closing
		cm.mutex.Unlock()
		select {
		case <-closing:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	from := cm.state
	cm.attempt++
	cm.setState(model.StateClosing, "")

	cancel := cm.cancelConnect
	connectDone := cm.connectDone
	rd := cm.reader
	sess := cm.session
	device := cm.permissionDevice
	startedAt := cm.connectedAt

	cm.readerGen++
	cm.reader = nil
	cm.session = nil
	cm.permissionDevice = nil
	cm.cancelConnect = nil
	cm.connectDone = nil
	closing := make(chan struct{})
	cm.closing = closing
	cm.mutex.Unlock()

	cm.logger.Info("Shutting down connection", zap.String("from", from.String()))

	if cancel != nil {
		cancel()
	}

	if rd != nil {
		if err := rd.Stop(cm.config.Reader.StopGrace); err != nil {
			cm.logger.Warn("Reader did not stop in time, forcing port release", zap.Error(err))
		}
	}

	if sess != nil {
		stats := sess.Stats()
		sess.Close()
		utils.NewConnectionLogger(cm.logger.Logger, sess.Port().Name, string(sess.Binding().Driver)).
			LogTransfer(stats.BytesRead, stats.BytesWritten, stats.ErrorCount, time.Since(startedAt))
	}

	var waitErr error
	var unwinding chan struct{}
	if connectDone != nil {
		select {
		case <-connectDone:
		case <-ctx.Done():
			waitErr = fmt.Errorf("connect sequence still unwinding: %w", ctx.Err())
			unwinding = connectDone
			cm.logger.Warn("Shutdown did not wait for connect sequence", zap.Error(waitErr))
		}
	}

	if device != nil {
		cm.gate.Release(*device)
	}

	cm.mutex.Lock()
	if unwinding != nil {
		cm.unwinding = unwinding
	}
	cm.setState(model.StateClosed, "")
	close(closing)
	cm.mutex.Unlock()

	return waitErr
}

// State returns the current connection state
func (cm *ConnectionManager) State() model.ConnectionState {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return cm.state
}

// Status returns a snapshot of the manager
func (cm *ConnectionManager) Status() model.ConnectionStatus {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	status := model.ConnectionStatus{
		State:         cm.state,
		FailureReason: cm.failureReason,
		PortConfig:    cm.config.Serial.PortConfig(),
	}
	if cm.binding != nil {
		binding := *cm.binding
		status.Device = &binding
	}
	if cm.session != nil {
		stats := cm.session.Stats()
		status.PortConfig = cm.session.Config()
		status.Port = cm.session.Port().Name
		status.BytesRead = stats.BytesRead
		status.BytesWritten = stats.BytesWritten
	}
	if cm.reader != nil {
		status.ReaderRunning = cm.reader.Running()
	}
	return status
}

// Subscribe registers a listener for every event the manager raises
func (cm *ConnectionManager) Subscribe(listener event.Listener) uuid.UUID {
	return cm.bus.Subscribe(listener)
}

// Unsubscribe removes a listener
func (cm *ConnectionManager) Unsubscribe(id uuid.UUID) {
	cm.bus.Unsubscribe(id)
}

func (cm *ConnectionManager) onReaderData(gen uint64, text string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if gen != cm.readerGen || cm.state != model.StateConnected {
		return
	}
	cm.bus.Publish(model.NewEvent(model.EventDataReceived, text))
}

// onReaderError surfaces a reader failure. The session stays open until an
// explicit Shutdown.
func (cm *ConnectionManager) onReaderError(gen uint64, err error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if gen != cm.readerGen || cm.state != model.StateConnected {
		return
	}
	if errors.Is(err, model.ErrInvalidUTF8) {
		cm.logger.Warn("Received undecodable bytes", zap.Error(err))
	} else {
		cm.logger.Error("Reader loop terminated", zap.Error(err))
	}
	cm.bus.Publish(model.NewEvent(model.EventError, errorMessage(err)))
}

// owns reports whether the connect sequence attempt still drives the state.
// Must be called with mutex held.
func (cm *ConnectionManager) owns(attempt uint64, state model.ConnectionState) bool {
	return cm.attempt == attempt && cm.state == state
}

// setState must be called with mutex held
func (cm *ConnectionManager) setState(state model.ConnectionState, reason string) {
	from := cm.state
	cm.state = state
	cm.logger.LogStateTransition(from.String(), state.String(), reason)
	cm.bus.Publish(model.NewStateEvent(state, reason))
}

// errorMessage renders err for OnError subscribers
func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNoDevice):
		return "No serial driver found"
	case errors.Is(err, model.ErrNotConnected):
		return "Device not connected"
	}
	return err.Error()
}

func portName(binding *model.DriverBinding) string {
	if port, ok := binding.PrimaryPort(); ok {
		return port.Name
	}
	return ""
}
