// 📁 internal/discovery/usb/scanner.go - USB Serial Prober
package usb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"serial-bridge/internal/discovery"
	"serial-bridge/internal/model"
)

var _ discovery.Prober = (*Scanner)(nil)

// Config for USB scanner
type Config struct {
	EnableDebug   bool `json:"enable_debug"`
	FilterByClass bool `json:"filter_by_class"`
}

// Scanner enumerates USB serial adapters through libusb descriptors and
// resolves their tty ports through the serial enumerator.
type Scanner struct {
	logger       *zap.Logger
	knownDevices *discovery.DeviceDatabase
	config       *Config

	listDescriptors func(debugLevel int) ([]*gousb.DeviceDesc, error)
	listSerialPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			EnableDebug:   false,
			FilterByClass: true,
		}
	}

	return &Scanner{
		logger:          logger.With(zap.String("scanner", "usb")),
		knownDevices:    discovery.NewDeviceDatabase(),
		config:          config,
		listDescriptors: enumerateDescriptors,
		listSerialPorts: enumerator.GetDetailedPortsList,
	}
}

// IsAvailable checks if the USB subsystem can be initialised
func (s *Scanner) IsAvailable() bool {
	if _, err := s.listDescriptors(0); err != nil {
		s.logger.Warn("USB subsystem not accessible", zap.Error(err))
		return false
	}
	return true
}

// ListDrivers returns serial-capable devices ordered by bus and address
func (s *Scanner) ListDrivers(ctx context.Context) ([]model.DriverBinding, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	debugLevel := 0
	if s.config.EnableDebug {
		debugLevel = 3
	}

	descs, err := s.listDescriptors(debugLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var bindings []model.DriverBinding
	for _, desc := range descs {
		driver, ok := s.identifyDriver(desc)
		if !ok {
			continue
		}
		bindings = append(bindings, model.DriverBinding{
			Device: handleFor(desc),
			Driver: driver,
		})
	}

	sort.Slice(bindings, func(i, j int) bool {
		a, b := bindings[i].Device, bindings[j].Device
		if a.Bus != b.Bus {
			return a.Bus < b.Bus
		}
		return a.Address < b.Address
	})

	s.logger.Info("USB scan completed",
		zap.Int("devices_examined", len(descs)),
		zap.Int("devices_found", len(bindings)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return bindings, nil
}

// GetPorts resolves the tty ports belonging to the binding's VID/PID
func (s *Scanner) GetPorts(ctx context.Context, binding model.DriverBinding) ([]model.PortHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.listSerialPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	vid := binding.Device.VendorID.String()
	pid := binding.Device.ProductID.String()

	var ports []model.PortHandle
	for _, d := range details {
		if !d.IsUSB || !strings.EqualFold(d.VID, vid) || !strings.EqualFold(d.PID, pid) {
			continue
		}
		ports = append(ports, model.PortHandle{
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	for i := range ports {
		ports[i].Index = i
	}

	s.logger.Debug("Resolved serial ports",
		zap.String("device", binding.Device.String()),
		zap.Int("port_count", len(ports)),
	)
	return ports, nil
}

// identifyDriver decides which serial driver would claim the device
func (s *Scanner) identifyDriver(desc *gousb.DeviceDesc) (model.DriverType, bool) {
	if vendorInfo := s.knownDevices.GetVendorInfo(model.USBID(desc.Vendor)); vendorInfo != nil {
		productModel := fmt.Sprintf("Unknown-%s", desc.Product)
		if productInfo := vendorInfo.GetProductInfo(model.USBID(desc.Product)); productInfo != nil {
			productModel = productInfo.Model
		}
		s.logger.Debug("Found known vendor device",
			zap.String("vendor_id", fmt.Sprintf("0x%04X", uint16(desc.Vendor))),
			zap.String("product_id", fmt.Sprintf("0x%04X", uint16(desc.Product))),
			zap.String("vendor", vendorInfo.Name),
			zap.String("model", productModel),
		)
		return vendorInfo.Driver, true
	}

	if s.config.FilterByClass && isCommunicationsDevice(desc) {
		s.logger.Debug("Found CDC device by class",
			zap.String("vendor_id", fmt.Sprintf("0x%04X", uint16(desc.Vendor))),
			zap.String("product_id", fmt.Sprintf("0x%04X", uint16(desc.Product))),
			zap.String("class", desc.Class.String()),
		)
		return model.DriverCDCACM, true
	}

	return "", false
}

// isCommunicationsDevice checks the device class, then the interface classes
// of composite devices
func isCommunicationsDevice(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassComm {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassComm {
					return true
				}
			}
		}
	}
	return false
}

// handleFor leaves Path empty; the finder sets it once ports are resolved
func handleFor(desc *gousb.DeviceDesc) model.DeviceHandle {
	return model.DeviceHandle{
		Bus:       desc.Bus,
		Address:   desc.Address,
		VendorID:  model.USBID(desc.Vendor),
		ProductID: model.USBID(desc.Product),
		Class:     model.USBClass(desc.Class),
	}
}

// enumerateDescriptors walks the bus without opening any device
func enumerateDescriptors(debugLevel int) (descs []*gousb.DeviceDesc, err error) {
	// gousb panics when libusb cannot be initialised
	defer func() {
		if r := recover(); r != nil {
			descs = nil
			err = fmt.Errorf("%w: %v", model.ErrPlatformUnsupported, r)
		}
	}()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()
	usbCtx.Debug(debugLevel)

	_, err = usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		descs = append(descs, desc)
		return false
	})
	if err != nil {
		return nil, err
	}
	return descs, nil
}
