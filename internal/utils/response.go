// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serial-bridge/internal/model"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode, err),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// DomainErrorResponse sends err with the status its kind maps to
func DomainErrorResponse(c *gin.Context, message string, err error) {
	ErrorResponse(c, StatusFor(err), message, err)
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// StatusFor maps connection errors to HTTP status codes
func StatusFor(err error) int {
	var (
		writeErr      *model.WriteError
		permissionErr *model.PermissionError
		openErr       *model.OpenError
		discoveryErr  *model.DiscoveryError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &writeErr):
		switch writeErr.Reason {
		case model.WriteNotConnected:
			return http.StatusConflict
		case model.WriteTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	case errors.Is(err, model.ErrNoDevice):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPlatformUnsupported):
		return http.StatusNotImplemented
	case errors.As(err, &permissionErr):
		return http.StatusForbidden
	case errors.As(err, &openErr), errors.As(err, &discoveryErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on the error kind, falling back to
// the HTTP status
func getErrorCode(statusCode int, err error) string {
	if reason := model.WriteErrorReason(err); reason != "" {
		return "WRITE_" + string(reason)
	}
	var permissionErr *model.PermissionError
	if errors.As(err, &permissionErr) {
		return "PERMISSION_" + string(permissionErr.Reason)
	}
	var openErr *model.OpenError
	if errors.As(err, &openErr) {
		return "OPEN_" + string(openErr.Reason)
	}
	if errors.Is(err, model.ErrNoDevice) {
		return "NO_DEVICE"
	}

	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
