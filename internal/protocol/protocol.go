// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"serial-bridge/internal/model"
)

// Transport opens logical serial ports
type Transport interface {
	Open(ctx context.Context, port model.PortHandle) (Connection, error)
}

// Connection is an open, exclusive channel to a single port
type Connection interface {
	// SetParameters applies line settings; an error means the port rejected them.
	SetParameters(cfg model.PortConfig) error

	// Read returns (0, nil) when no data arrived within timeout.
	Read(p []byte, timeout time.Duration) (int, error)

	// Write must return within timeout, with ErrWriteTimeout if it did not complete.
	Write(p []byte, timeout time.Duration) (int, error)

	Close() error
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	WriteCount   int64     `json:"write_count"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	IsConnected  bool      `json:"is_connected"`
}
