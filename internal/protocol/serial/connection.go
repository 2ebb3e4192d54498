// internal/protocol/serial/connection.go
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"serial-bridge/internal/model"
	"serial-bridge/internal/protocol"
)

// portHandle is the subset of serial.Port the transport relies on
type portHandle interface {
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// allow tests to override the driver
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// Transport opens tty ports through go.bug.st/serial
type Transport struct {
	logger *zap.Logger
}

// NewTransport creates a new serial transport
func NewTransport(logger *zap.Logger) *Transport {
	return &Transport{
		logger: logger.With(zap.String("protocol", "serial")),
	}
}

// Open opens the port with default line settings; callers apply their own
// configuration through SetParameters.
func (t *Transport) Open(ctx context.Context, port model.PortHandle) (protocol.Connection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	mode, err := toMode(model.DefaultPortConfig())
	if err != nil {
		return nil, err
	}

	p, err := openPort(port.Name, mode)
	if err != nil {
		t.logger.Error("Failed to open serial port",
			zap.Error(err),
			zap.String("port", port.Name),
		)
		return nil, fmt.Errorf("failed to open serial port %s: %w", port.Name, classify(err))
	}

	t.logger.Debug("Serial port opened", zap.String("port", port.Name))
	return &Connection{
		name:        port.Name,
		port:        p,
		readTimeout: -1,
		logger:      t.logger.With(zap.String("port", port.Name)),
	}, nil
}

// Connection wraps an open go.bug.st/serial port
type Connection struct {
	name   string
	port   portHandle
	logger *zap.Logger

	// readMutex guards readTimeout; writeMutex serializes writes that may
	// still be in flight after their caller timed out.
	readMutex   sync.Mutex
	readTimeout time.Duration
	writeMutex  sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// SetParameters applies the line configuration
func (c *Connection) SetParameters(cfg model.PortConfig) error {
	mode, err := toMode(cfg)
	if err != nil {
		return err
	}
	if err := c.port.SetMode(mode); err != nil {
		return fmt.Errorf("failed to set mode %s: %w", cfg, classify(err))
	}

	c.logger.Info("Serial port configured",
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Int("data_bits", cfg.DataBits),
		zap.Int("stop_bits", cfg.StopBits),
		zap.String("parity", string(cfg.Parity)),
	)
	return nil
}

// Read reads whatever is available, waiting at most timeout
func (c *Connection) Read(p []byte, timeout time.Duration) (int, error) {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	if timeout != c.readTimeout {
		if err := c.port.SetReadTimeout(timeout); err != nil {
			return 0, fmt.Errorf("failed to set read timeout: %w", classify(err))
		}
		c.readTimeout = timeout
	}

	n, err := c.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("failed to read from serial port: %w", classify(err))
	}
	return n, nil
}

// Write writes p, giving up after timeout. A write that timed out keeps
// running in the background until the driver returns or the port is closed.
func (c *Connection) Write(p []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		c.writeMutex.Lock()
		defer c.writeMutex.Unlock()
		n, err := c.port.Write(p)
		done <- result{n: n, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return r.n, fmt.Errorf("failed to write to serial port: %w", classify(r.err))
		}
		if r.n != len(p) {
			return r.n, fmt.Errorf("incomplete write: wrote %d of %d bytes", r.n, len(p))
		}
		return r.n, nil
	case <-timer.C:
		c.logger.Warn("Serial write timed out",
			zap.Duration("timeout", timeout),
			zap.Int("bytes", len(p)),
		)
		return 0, protocol.ErrWriteTimeout
	}
}

// Close releases the port. Only the first call reaches the driver.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if err := c.port.Close(); err != nil {
			c.closeErr = fmt.Errorf("failed to close serial port: %w", err)
			return
		}
		c.logger.Debug("Serial port closed")
	})
	return c.closeErr
}

// toMode converts a PortConfig into a driver mode
func toMode(cfg model.PortConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %d", protocol.ErrInvalidSettings, cfg.StopBits)
	}

	switch cfg.Parity {
	case model.ParityNone, "":
		mode.Parity = serial.NoParity
	case model.ParityOdd:
		mode.Parity = serial.OddParity
	case model.ParityEven:
		mode.Parity = serial.EvenParity
	case model.ParityMark:
		mode.Parity = serial.MarkParity
	case model.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %q", protocol.ErrInvalidSettings, cfg.Parity)
	}

	return mode, nil
}

// classify wraps driver errors with the matching protocol sentinel
func classify(err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return err
	}

	var kind error
	switch portErr.Code() {
	case serial.PortBusy:
		kind = protocol.ErrPortBusy
	case serial.PortNotFound, serial.InvalidSerialPort:
		kind = protocol.ErrPortNotFound
	case serial.PermissionDenied:
		kind = protocol.ErrPortAccess
	case serial.PortClosed:
		kind = protocol.ErrPortClosed
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
		serial.InvalidStopBits, serial.InvalidTimeoutValue:
		kind = protocol.ErrInvalidSettings
	default:
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
