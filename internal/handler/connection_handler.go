// internal/handler/connection_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-bridge/internal/event"
	"serial-bridge/internal/model"
	"serial-bridge/internal/utils"
)

// ConnectionController is the connection lifecycle the HTTP layer drives
type ConnectionController interface {
	Start()
	Shutdown(ctx context.Context) error
	Write(ctx context.Context, text string) error
	State() model.ConnectionState
	Status() model.ConnectionStatus
	Subscribe(listener event.Listener) uuid.UUID
	Unsubscribe(id uuid.UUID)
}

// ConnectionHandler handles connection lifecycle requests
type ConnectionHandler struct {
	connection      ConnectionController
	shutdownTimeout time.Duration
	logger          *utils.ServiceLogger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connection ConnectionController, shutdownTimeout time.Duration, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connection:      connection,
		shutdownTimeout: shutdownTimeout,
		logger:          utils.NewServiceLogger(logger, "connection-handler"),
	}
}

// RegisterRoutes registers connection routes
func (h *ConnectionHandler) RegisterRoutes(router *gin.RouterGroup) {
	connection := router.Group("/connection")
	{
		connection.GET("", h.GetStatus)
		connection.POST("/start", h.Start)
		connection.POST("/shutdown", h.Shutdown)
		connection.POST("/write", h.Write)
	}
}

// GetStatus returns the connection status
// @Summary Connection status
// @Description Get the connection state, bound device, port and transfer counters
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.ConnectionStatus} "Status retrieved"
// @Router /api/v1/connection [get]
func (h *ConnectionHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Status retrieved", h.connection.Status())
}

// Start begins a connect sequence
// @Summary Start connection
// @Description Discover the adapter, wait for permission and open the port in the background
// @Tags Connection
// @Produce json
// @Success 202 {object} utils.APIResponse{data=model.ConnectionStatus} "Connect sequence started"
// @Router /api/v1/connection/start [post]
func (h *ConnectionHandler) Start(c *gin.Context) {
	h.connection.Start()
	utils.SuccessResponse(c, http.StatusAccepted, "Connect sequence started", h.connection.Status())
}

// Shutdown tears the connection down
// @Summary Shutdown connection
// @Description Stop the reader, close the port and release the permission listener
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.ConnectionStatus} "Connection closed"
// @Failure 504 {object} utils.APIResponse "Shutdown did not complete in time"
// @Router /api/v1/connection/shutdown [post]
func (h *ConnectionHandler) Shutdown(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.shutdownTimeout)
	defer cancel()

	if err := h.connection.Shutdown(ctx); err != nil {
		h.logger.Error("Shutdown incomplete", zap.Error(err))
		utils.ErrorResponse(c, http.StatusGatewayTimeout, "Shutdown did not complete in time", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Connection closed", h.connection.Status())
}

// Write sends a line to the device
// @Summary Write line
// @Description Write text followed by the configured line terminator
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Text to send"
// @Success 200 {object} utils.APIResponse "Line written"
// @Failure 400 {object} utils.APIResponse "Invalid request or validation failed"
// @Failure 409 {object} utils.APIResponse "Device not connected"
// @Failure 504 {object} utils.APIResponse "Write timed out"
// @Router /api/v1/connection/write [post]
func (h *ConnectionHandler) Write(c *gin.Context) {
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			utils.ValidationErrorResponse(c, fieldErrors(invalid))
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.connection.Write(c.Request.Context(), *req.Text); err != nil {
		utils.DomainErrorResponse(c, "Write failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Line written", gin.H{
		"bytes": len(*req.Text),
	})
}

// WriteRequest represents a write request
type WriteRequest struct {
	Text *string `json:"text" binding:"required"`
}

// fieldErrors maps each rejected field to the rule it failed, keyed by its
// JSON name
func fieldErrors(invalid validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return fields
}
