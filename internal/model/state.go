// internal/model/state.go
package model

// ConnectionState represents where the connection manager is in its lifecycle
type ConnectionState string

const (
	StateUninitialized      ConnectionState = "UNINITIALIZED"
	StateDiscovering        ConnectionState = "DISCOVERING"
	StateAwaitingPermission ConnectionState = "AWAITING_PERMISSION"
	StateConnecting         ConnectionState = "CONNECTING"
	StateConnected          ConnectionState = "CONNECTED"
	StateClosing            ConnectionState = "CLOSING"
	StateClosed             ConnectionState = "CLOSED"
	StateFailed             ConnectionState = "FAILED"
)

// String implements fmt.Stringer
func (s ConnectionState) String() string {
	return string(s)
}

// InProgress reports whether a connect sequence owns the state
func (s ConnectionState) InProgress() bool {
	switch s {
	case StateDiscovering, StateAwaitingPermission, StateConnecting:
		return true
	}
	return false
}

// IsActive reports whether start() must be a no-op in this state
func (s ConnectionState) IsActive() bool {
	return s.InProgress() || s == StateConnected || s == StateClosing
}

// ConnectionStatus is a point-in-time snapshot of the manager
type ConnectionStatus struct {
	State         ConnectionState `json:"state"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Device        *DriverBinding  `json:"device,omitempty"`
	Port          string          `json:"port,omitempty"`
	PortConfig    PortConfig      `json:"port_config"`
	ReaderRunning bool            `json:"reader_running"`
	BytesRead     int64           `json:"bytes_read"`
	BytesWritten  int64           `json:"bytes_written"`
}
