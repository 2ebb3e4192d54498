// internal/protocol/connection.go
package protocol

import "errors"

// Transport level failures, classified so callers can map them onto the
// session error taxonomy without knowing the driver.
var (
	ErrWriteTimeout    = errors.New("write timed out")
	ErrPortClosed      = errors.New("port closed")
	ErrPortBusy        = errors.New("port busy")
	ErrPortNotFound    = errors.New("port not found")
	ErrPortAccess      = errors.New("port access denied")
	ErrInvalidSettings = errors.New("invalid port settings")
)

// IsRefusal reports whether err means the device-level connection could not
// be obtained (busy, unplugged, access revoked).
func IsRefusal(err error) bool {
	return errors.Is(err, ErrPortBusy) || errors.Is(err, ErrPortNotFound) ||
		errors.Is(err, ErrPortAccess) || errors.Is(err, ErrPortClosed)
}
