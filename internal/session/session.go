// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"serial-bridge/internal/model"
	"serial-bridge/internal/protocol"
)

// DefaultWriteTimeout bounds a single write
const DefaultWriteTimeout = 1000 * time.Millisecond

// Session owns an open serial port
type Session struct {
	binding model.DriverBinding
	port    model.PortHandle
	config  model.PortConfig
	conn    protocol.Connection
	logger  *zap.Logger

	mutex  sync.RWMutex
	isOpen bool

	// reads and writes hold at most the read side of mutex
	statsMutex sync.Mutex
	stats      protocol.ProtocolStats
}

// Open obtains an exclusive connection to port 0 of the binding and applies
// cfg. A connection opened before a configuration failure is closed again.
func Open(ctx context.Context, transport protocol.Transport, binding model.DriverBinding, cfg model.PortConfig, logger *zap.Logger) (*Session, error) {
	port, ok := binding.PrimaryPort()
	if !ok {
		return nil, &model.OpenError{
			Reason: model.OpenConnectionRefused,
			Port:   binding.Device.String(),
			Err:    errors.New("driver exposes no ports"),
		}
	}

	logger = logger.With(
		zap.String("component", "session"),
		zap.String("port", port.Name),
		zap.String("driver", string(binding.Driver)),
	)

	if err := cfg.Validate(); err != nil {
		return nil, &model.OpenError{Reason: model.OpenConfigurationRejected, Port: port.Name, Err: err}
	}

	logger.Info("Opening port session", zap.String("config", cfg.String()))

	conn, err := transport.Open(ctx, port)
	if err != nil {
		return nil, &model.OpenError{Reason: model.OpenConnectionRefused, Port: port.Name, Err: err}
	}

	if err := conn.SetParameters(cfg); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("Failed to close rejected port", zap.Error(closeErr))
		}
		reason := model.OpenConfigurationRejected
		if protocol.IsRefusal(err) {
			reason = model.OpenConnectionRefused
		}
		return nil, &model.OpenError{Reason: reason, Port: port.Name, Err: err}
	}

	s := &Session{
		binding: binding,
		port:    port,
		config:  cfg,
		conn:    conn,
		logger:  logger,
		isOpen:  true,
	}
	s.stats.IsConnected = true
	s.stats.LastActivity = time.Now()

	logger.Info("Port session opened")
	return s, nil
}

// Write writes data within timeout
func (s *Session) Write(ctx context.Context, data []byte, timeout time.Duration) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return &model.WriteError{Reason: model.WriteNotConnected}
	}

	select {
	case <-ctx.Done():
		return &model.WriteError{Reason: model.WriteIoFailure, Err: ctx.Err()}
	default:
	}

	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	n, err := s.conn.Write(data, timeout)
	s.record(func(st *protocol.ProtocolStats) {
		st.BytesWritten += int64(n)
		st.WriteCount++
		if err != nil {
			st.ErrorCount++
		}
	})
	if err != nil {
		if errors.Is(err, protocol.ErrWriteTimeout) {
			return &model.WriteError{Reason: model.WriteTimeout, Err: err}
		}
		s.logger.Error("Serial write failed", zap.Error(err))
		return &model.WriteError{Reason: model.WriteIoFailure, Err: err}
	}

	s.logger.Debug("Serial write completed", zap.Int("bytes", n))
	return nil
}

// Read reads available bytes, waiting at most timeout. It returns
// model.ErrNotConnected once the session is closed.
func (s *Session) Read(p []byte, timeout time.Duration) (int, error) {
	s.mutex.RLock()
	open := s.isOpen
	s.mutex.RUnlock()
	if !open {
		return 0, model.ErrNotConnected
	}

	n, err := s.conn.Read(p, timeout)
	s.record(func(st *protocol.ProtocolStats) {
		st.BytesRead += int64(n)
		if err != nil {
			st.ErrorCount++
		}
	})
	return n, err
}

// Close releases the port. It is idempotent and never fails; driver errors
// are logged.
func (s *Session) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return
	}
	s.isOpen = false
	s.record(func(st *protocol.ProtocolStats) { st.IsConnected = false })

	if err := s.conn.Close(); err != nil {
		s.logger.Error("Error during closing the connection", zap.Error(err))
		return
	}
	s.logger.Info("Port session closed")
}

// IsOpen returns whether the session is open
func (s *Session) IsOpen() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isOpen
}

// Port returns the opened port
func (s *Session) Port() model.PortHandle { return s.port }

// Binding returns the driver binding the session was opened on
func (s *Session) Binding() model.DriverBinding { return s.binding }

// Config returns the applied line configuration
func (s *Session) Config() model.PortConfig { return s.config }

// Stats returns a copy of the session statistics
func (s *Session) Stats() protocol.ProtocolStats {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	return s.stats
}

func (s *Session) record(update func(*protocol.ProtocolStats)) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	update(&s.stats)
	s.stats.LastActivity = time.Now()
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.port.Name, s.binding.Driver, s.config)
}
