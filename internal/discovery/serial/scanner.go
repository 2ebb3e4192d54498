// 📁 internal/discovery/serial/scanner.go - Serial Port Enumerator Prober
package serial

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"serial-bridge/internal/discovery"
	"serial-bridge/internal/model"
)

var _ discovery.Prober = (*Scanner)(nil)

// Scanner discovers USB serial adapters from the operating system's serial
// port list alone. It serves hosts without libusb: devices carry no bus
// address and their access node is the tty itself.
type Scanner struct {
	logger       *zap.Logger
	knownDevices *discovery.DeviceDatabase

	listSerialPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a new serial port scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:          logger.With(zap.String("scanner", "serial")),
		knownDevices:    discovery.NewDeviceDatabase(),
		listSerialPorts: enumerator.GetDetailedPortsList,
	}
}

// IsAvailable checks if the port list can be read
func (s *Scanner) IsAvailable() bool {
	_, err := s.listSerialPorts()
	return err == nil
}

// ListDrivers groups USB tty ports by adapter, ordered by port name
func (s *Scanner) ListDrivers(ctx context.Context) ([]model.DriverBinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bindings, err := s.group()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Serial port scan completed", zap.Int("adapters_found", len(bindings)))
	return bindings, nil
}

// GetPorts returns the tty ports of binding
func (s *Scanner) GetPorts(ctx context.Context, binding model.DriverBinding) ([]model.PortHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bindings, err := s.group()
	if err != nil {
		return nil, err
	}

	for _, b := range bindings {
		d := b.Device
		if d.VendorID == binding.Device.VendorID && d.ProductID == binding.Device.ProductID && d.Path == binding.Device.Path {
			return b.Ports, nil
		}
	}
	return nil, nil
}

// group lists the ports and folds them into one binding per adapter.
// Ports of one adapter share VID, PID and serial number.
func (s *Scanner) group() ([]model.DriverBinding, error) {
	details, err := s.listSerialPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	byKey := make(map[string]*model.DriverBinding)
	var order []string
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		vid, err1 := model.ParseUSBID(d.VID)
		pid, err2 := model.ParseUSBID(d.PID)
		if err1 != nil || err2 != nil {
			s.logger.Debug("Skipping port with unparseable USB IDs",
				zap.String("port", d.Name),
				zap.String("vid", d.VID),
				zap.String("pid", d.PID),
			)
			continue
		}

		driver, ok := s.identifyDriver(vid, d.Name)
		if !ok {
			s.logger.Debug("Skipping port of unknown adapter",
				zap.String("port", d.Name),
				zap.String("vid", d.VID),
				zap.String("pid", d.PID),
			)
			continue
		}

		key := strings.Join([]string{vid.String(), pid.String(), d.SerialNumber}, ":")
		b, exists := byKey[key]
		if !exists {
			b = &model.DriverBinding{
				Device: model.DeviceHandle{VendorID: vid, ProductID: pid},
				Driver: driver,
			}
			byKey[key] = b
			order = append(order, key)
		}
		b.Ports = append(b.Ports, model.PortHandle{
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
		})
	}

	bindings := make([]model.DriverBinding, 0, len(order))
	for _, key := range order {
		b := byKey[key]
		sort.Slice(b.Ports, func(i, j int) bool { return b.Ports[i].Name < b.Ports[j].Name })
		for i := range b.Ports {
			b.Ports[i].Index = i
		}
		b.Device.Path = b.Ports[0].Name
		bindings = append(bindings, *b)
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Device.Path < bindings[j].Device.Path
	})
	return bindings, nil
}

// identifyDriver matches the vendor database first, then CDC-ACM node names
func (s *Scanner) identifyDriver(vid model.USBID, portName string) (model.DriverType, bool) {
	if vendor := s.knownDevices.GetVendorInfo(vid); vendor != nil {
		return vendor.Driver, true
	}
	if strings.Contains(portName, "ttyACM") || strings.Contains(portName, "usbmodem") {
		return model.DriverCDCACM, true
	}
	return model.DriverUnknown, false
}
