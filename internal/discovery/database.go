// 📁 internal/discovery/database.go - USB Serial Adapter Database
package discovery

import (
	"sort"

	"serial-bridge/internal/model"
)

// DeviceDatabase contains known USB serial adapters for identification
type DeviceDatabase struct {
	vendors map[model.USBID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	Driver   model.DriverType
	products map[model.USBID]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Model string
	// Ports is the number of UARTs the chip exposes.
	Ports int
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[model.USBID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known adapters
func (db *DeviceDatabase) initializeDatabase() {
	// FTDI (0x0403)
	db.AddVendor(0x0403, &VendorInfo{Name: "Future Technology Devices International", Driver: model.DriverFTDI})
	db.AddProduct(0x0403, 0x6001, &ProductInfo{Model: "FT232R", Ports: 1})
	db.AddProduct(0x0403, 0x6010, &ProductInfo{Model: "FT2232", Ports: 2})
	db.AddProduct(0x0403, 0x6011, &ProductInfo{Model: "FT4232", Ports: 4})
	db.AddProduct(0x0403, 0x6014, &ProductInfo{Model: "FT232H", Ports: 1})
	db.AddProduct(0x0403, 0x6015, &ProductInfo{Model: "FT-X", Ports: 1})

	// Silicon Labs (0x10C4)
	db.AddVendor(0x10C4, &VendorInfo{Name: "Silicon Laboratories", Driver: model.DriverCP210x})
	db.AddProduct(0x10C4, 0xEA60, &ProductInfo{Model: "CP2102", Ports: 1})
	db.AddProduct(0x10C4, 0xEA70, &ProductInfo{Model: "CP2105", Ports: 2})
	db.AddProduct(0x10C4, 0xEA71, &ProductInfo{Model: "CP2108", Ports: 4})

	// WCH (0x1A86)
	db.AddVendor(0x1A86, &VendorInfo{Name: "Jiangsu Qinheng (WCH)", Driver: model.DriverCH34x})
	db.AddProduct(0x1A86, 0x7523, &ProductInfo{Model: "CH340", Ports: 1})
	db.AddProduct(0x1A86, 0x5523, &ProductInfo{Model: "CH341", Ports: 1})
	db.AddProduct(0x1A86, 0x55D4, &ProductInfo{Model: "CH9102", Ports: 1})

	// Prolific (0x067B)
	db.AddVendor(0x067B, &VendorInfo{Name: "Prolific Technology", Driver: model.DriverPL2303})
	db.AddProduct(0x067B, 0x2303, &ProductInfo{Model: "PL2303", Ports: 1})
	db.AddProduct(0x067B, 0x23A3, &ProductInfo{Model: "PL2303GC", Ports: 1})
}

// GetVendorInfo retrieves vendor information
func (db *DeviceDatabase) GetVendorInfo(vendorID model.USBID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetProductInfo retrieves product information from vendor
func (vi *VendorInfo) GetProductInfo(productID model.USBID) *ProductInfo {
	return vi.products[productID]
}

// AddVendor adds a new vendor to the database
func (db *DeviceDatabase) AddVendor(vendorID model.USBID, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[model.USBID]*ProductInfo)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new product to an existing vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID model.USBID, info *ProductInfo) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = info
	}
}

// SupportedAdapter is one known vendor/product pair
type SupportedAdapter struct {
	VendorID  model.USBID      `json:"vendor_id"`
	ProductID model.USBID      `json:"product_id"`
	Vendor    string           `json:"vendor"`
	Model     string           `json:"model"`
	Driver    model.DriverType `json:"driver"`
	Ports     int              `json:"ports"`
}

// SupportedAdapters lists every known adapter ordered by vendor and product
// ID. CDC-ACM devices are matched by class and are not listed.
func (db *DeviceDatabase) SupportedAdapters() []SupportedAdapter {
	var adapters []SupportedAdapter
	for vid, vendor := range db.vendors {
		for pid, product := range vendor.products {
			adapters = append(adapters, SupportedAdapter{
				VendorID:  vid,
				ProductID: pid,
				Vendor:    vendor.Name,
				Model:     product.Model,
				Driver:    vendor.Driver,
				Ports:     product.Ports,
			})
		}
	}
	sort.Slice(adapters, func(i, j int) bool {
		if adapters[i].VendorID != adapters[j].VendorID {
			return adapters[i].VendorID < adapters[j].VendorID
		}
		return adapters[i].ProductID < adapters[j].ProductID
	})
	return adapters
}
