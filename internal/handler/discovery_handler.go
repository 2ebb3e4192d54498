// internal/handler/discovery_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-bridge/internal/discovery"
	"serial-bridge/internal/model"
	"serial-bridge/internal/utils"
)

// DeviceScanner lists the serial adapters currently attached
type DeviceScanner interface {
	Scan(ctx context.Context) ([]model.DriverBinding, error)
}

// AdapterCatalog lists the adapters recognised by vendor and product ID
type AdapterCatalog interface {
	SupportedAdapters() []discovery.SupportedAdapter
}

// DiscoveryHandler handles device discovery requests
type DiscoveryHandler struct {
	scanner DeviceScanner
	catalog AdapterCatalog
	logger  *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanner DeviceScanner, catalog AdapterCatalog, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanner: scanner,
		catalog: catalog,
		logger:  utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discoveryGroup := router.Group("/discovery")
	{
		discoveryGroup.GET("/devices", h.ListDevices)
		discoveryGroup.GET("/supported", h.GetSupportedDevices)
	}
}

// ListDevices scans for attached adapters
// @Summary List devices
// @Description Enumerate attached USB serial adapters and their ports
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{devices_found=int,devices=[]model.DriverBinding}} "Device scan completed"
// @Failure 503 {object} utils.APIResponse "Scan failed"
// @Router /api/v1/discovery/devices [get]
func (h *DiscoveryHandler) ListDevices(c *gin.Context) {
	devices, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to scan devices", zap.Error(err))
		utils.DomainErrorResponse(c, "Failed to scan devices", err)
		return
	}
	if devices == nil {
		devices = []model.DriverBinding{}
	}

	utils.SuccessResponse(c, http.StatusOK, "Device scan completed", gin.H{
		"devices_found": len(devices),
		"devices":       devices,
	})
}

// GetSupportedDevices returns the known adapters
// @Summary Get supported devices
// @Description Get the adapters identified by vendor and product ID
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]discovery.SupportedAdapter} "Supported devices retrieved"
// @Router /api/v1/discovery/supported [get]
func (h *DiscoveryHandler) GetSupportedDevices(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Supported devices retrieved", h.catalog.SupportedAdapters())
}
