package discovery

import (
	"testing"

	"serial-bridge/internal/model"
)

func TestDeviceDatabase(t *testing.T) {
	db := NewDeviceDatabase()

	tests := []struct {
		vendor model.USBID
		driver model.DriverType
	}{
		{0x0403, model.DriverFTDI},
		{0x10C4, model.DriverCP210x},
		{0x1A86, model.DriverCH34x},
		{0x067B, model.DriverPL2303},
	}
	for _, tt := range tests {
		info := db.GetVendorInfo(tt.vendor)
		if info == nil || info.Driver != tt.driver {
			t.Errorf("vendor %s: got %+v, want driver %s", tt.vendor, info, tt.driver)
		}
	}
	if db.GetVendorInfo(0x046D) != nil {
		t.Error("0x046D should not be a known serial vendor")
	}
	if p := db.GetVendorInfo(0x0403).GetProductInfo(0x6011); p == nil || p.Ports != 4 {
		t.Errorf("FT4232 = %+v", p)
	}
}

func TestSupportedAdaptersSorted(t *testing.T) {
	adapters := NewDeviceDatabase().SupportedAdapters()

	if len(adapters) != 13 {
		t.Fatalf("got %d adapters, want 13", len(adapters))
	}
	if first := adapters[0]; first.VendorID != 0x0403 || first.ProductID != 0x6001 || first.Model != "FT232R" {
		t.Errorf("first adapter = %+v", first)
	}
	if last := adapters[len(adapters)-1]; last.VendorID != 0x1A86 || last.ProductID != 0x7523 {
		t.Errorf("last adapter = %+v", last)
	}
}
