// internal/model/errors.go
package model

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevice            = errors.New("no serial driver found")
	ErrNotConnected        = errors.New("device not connected")
	ErrInvalidUTF8         = errors.New("received bytes are not valid UTF-8")
	ErrPlatformUnsupported = errors.New("USB serial access is not available on this platform")
)

// DiscoveryError reports a failure of the platform device query itself
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s failed: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// PermissionReason classifies a PermissionError
type PermissionReason string

const (
	PermissionDenied    PermissionReason = "DENIED"
	PermissionTimedOut  PermissionReason = "TIMED_OUT"
	PermissionCancelled PermissionReason = "CANCELLED"
)

// PermissionError reports that access to a device was not obtained
type PermissionError struct {
	Reason PermissionReason
	Device DeviceHandle
	Err    error
}

func (e *PermissionError) Error() string {
	var what string
	switch e.Reason {
	case PermissionTimedOut:
		what = "request timed out"
	case PermissionCancelled:
		what = "request cancelled"
	default:
		what = "denied"
	}
	msg := fmt.Sprintf("permission %s for %s", what, e.Device)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PermissionError) Unwrap() error { return e.Err }

// OpenReason classifies an OpenError
type OpenReason string

const (
	OpenConnectionRefused     OpenReason = "CONNECTION_REFUSED"
	OpenConfigurationRejected OpenReason = "CONFIGURATION_REJECTED"
)

// OpenError reports that a port session could not be established
type OpenError struct {
	Reason OpenReason
	Port   string
	Err    error
}

func (e *OpenError) Error() string {
	switch e.Reason {
	case OpenConfigurationRejected:
		return fmt.Sprintf("port %s rejected configuration: %v", e.Port, e.Err)
	default:
		return fmt.Sprintf("unable to open USB connection to %s: %v", e.Port, e.Err)
	}
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteReason classifies a WriteError
type WriteReason string

const (
	WriteNotConnected WriteReason = "NOT_CONNECTED"
	WriteIoFailure    WriteReason = "IO_FAILURE"
	WriteTimeout      WriteReason = "TIMEOUT"
)

// WriteError reports a failed write. It never terminates the connection.
type WriteError struct {
	Reason WriteReason
	Err    error
}

func (e *WriteError) Error() string {
	switch e.Reason {
	case WriteNotConnected:
		return ErrNotConnected.Error()
	case WriteTimeout:
		return fmt.Sprintf("error during writing: timed out: %v", e.Err)
	default:
		return fmt.Sprintf("error during writing: %v", e.Err)
	}
}

func (e *WriteError) Unwrap() error {
	if e.Reason == WriteNotConnected && e.Err == nil {
		return ErrNotConnected
	}
	return e.Err
}

// ReaderError reports an I/O failure that terminated the reader loop
type ReaderError struct {
	Err error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("I/O Error: %v", e.Err)
}

func (e *ReaderError) Unwrap() error { return e.Err }

// WriteErrorReason extracts the reason of a WriteError, or "" if err is not one
func WriteErrorReason(err error) WriteReason {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Reason
	}
	return ""
}
