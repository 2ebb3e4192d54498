//go:build nousb

// cmd/server/prober_nousb.go
package main

import (
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/discovery"
)

// newProber enumerates through the serial port list only; this build does
// not link libusb
func newProber(cfg *config.Config, logger *zap.Logger) discovery.Prober {
	return newSerialProber(logger)
}
