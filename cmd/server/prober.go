//go:build !nousb

// cmd/server/prober.go
package main

import (
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/discovery"
	serialdiscovery "serial-bridge/internal/discovery/serial"
	"serial-bridge/internal/discovery/usb"
)

// newProber prefers libusb enumeration and falls back to the serial port
// list when libusb cannot be initialised
func newProber(cfg *config.Config, logger *zap.Logger) discovery.Prober {
	usbScanner := usb.NewScanner(logger, &usb.Config{
		EnableDebug:   cfg.USB.Debug,
		FilterByClass: cfg.USB.FilterByClass,
	})
	if usbScanner.IsAvailable() {
		return usbScanner
	}

	logger.Warn("USB subsystem unavailable, falling back to serial port enumeration")
	return newSerialProber(logger)
}
