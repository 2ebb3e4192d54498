// internal/model/device.go
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// USBID is a 16-bit vendor or product identifier
type USBID uint16

// String renders the ID the way sysfs and lsusb print it
func (id USBID) String() string {
	return fmt.Sprintf("%04x", uint16(id))
}

// ParseUSBID parses a hexadecimal ID such as "0403", "EA60" or "0x1a86"
func ParseUSBID(hex string) (USBID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(hex), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB ID %q: %w", hex, err)
	}
	return USBID(v), nil
}

// USBClass is a device or interface class code
type USBClass uint8

const (
	ClassPerInterface USBClass = 0x00
	ClassComm         USBClass = 0x02
	ClassHID          USBClass = 0x03
	ClassData         USBClass = 0x0a
	ClassVendorSpec   USBClass = 0xff
)

var classNames = map[USBClass]string{
	ClassPerInterface: "per-interface",
	ClassComm:         "communications",
	ClassHID:          "human interface device",
	ClassData:         "data",
	ClassVendorSpec:   "vendor-specific",
}

// String implements fmt.Stringer
func (c USBClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(c))
}

// DriverType names the serial protocol implementation able to operate a device
type DriverType string

const (
	DriverFTDI    DriverType = "FTDI"
	DriverCP210x  DriverType = "CP210X"
	DriverCH34x   DriverType = "CH34X"
	DriverPL2303  DriverType = "PL2303"
	DriverCDCACM  DriverType = "CDC_ACM"
	DriverUnknown DriverType = "UNKNOWN"
)

// DeviceHandle identifies a physical USB device as seen by the platform
type DeviceHandle struct {
	Bus       int      `json:"bus"`
	Address   int      `json:"address"`
	VendorID  USBID    `json:"vendor_id"`
	ProductID USBID    `json:"product_id"`
	Class     USBClass `json:"class"`
	// Path is the node the session opens and permission is checked on: the
	// tty of port 0.
	Path string `json:"path"`
}

// Key returns a stable identity string for the device
func (d DeviceHandle) Key() string {
	return fmt.Sprintf("%03d:%03d:%s:%s", d.Bus, d.Address, d.VendorID, d.ProductID)
}

// String implements fmt.Stringer
func (d DeviceHandle) String() string {
	return fmt.Sprintf("USB %s:%s (bus %d, address %d)", d.VendorID, d.ProductID, d.Bus, d.Address)
}

// PortHandle is a logical serial channel exposed by a driver
type PortHandle struct {
	Name         string `json:"name"`
	Index        int    `json:"index"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// DriverBinding pairs a device with the driver that can talk to it and the
// ports that driver exposes.
type DriverBinding struct {
	Device DeviceHandle `json:"device"`
	Driver DriverType   `json:"driver"`
	Ports  []PortHandle `json:"ports"`
}

// PrimaryPort returns port index 0
func (b *DriverBinding) PrimaryPort() (PortHandle, bool) {
	if b == nil || len(b.Ports) == 0 {
		return PortHandle{}, false
	}
	return b.Ports[0], true
}
