// cmd/server/ports.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/discovery"
	"serial-bridge/internal/model"
)

// portsCmd lists the adapters the connection manager would consider
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List attached USB serial adapters and their ports",
	Long: `List the USB serial adapters the connection manager can bind to.

Adapters are identified by vendor and product ID (FTDI, CP210x, CH34x,
PL2303) or by the CDC-ACM interface class. The first adapter listed is the
one a connect sequence selects, and its first port is the one it opens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithViper(v, configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		tableFormat, _ := cmd.Flags().GetBool("table")

		finder := discovery.NewFinder(newProber(cfg, zap.NewNop()), zap.NewNop())

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		bindings, err := finder.Scan(ctx)
		if err != nil {
			return err
		}

		if len(bindings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No USB serial adapters found")
			return nil
		}

		if tableFormat {
			renderTable(cmd.OutOrStdout(), bindings)
		} else {
			renderSimple(cmd.OutOrStdout(), bindings)
		}
		return nil
	},
}

func init() {
	portsCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	portsCmd.Flags().Duration("timeout", 10*time.Second, "Enumeration timeout")
}

// renderTable renders bindings in a styled static table format
func renderTable(w io.Writer, bindings []model.DriverBinding) {
	fmt.Fprintf(w, "Found %d adapter(s):\n\n", len(bindings))

	const (
		portWidth   = 16
		driverWidth = 10
		idWidth     = 11
		busWidth    = 9
	)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	selectedStyle := cellStyle.
		Foreground(lipgloss.Color("42"))

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
		portWidth, "Port",
		driverWidth, "Driver",
		idWidth, "VID:PID",
		busWidth, "Bus/Addr",
		"Serial")
	fmt.Fprintln(w, headerStyle.Render(header))

	for i, binding := range bindings {
		for j, port := range binding.Ports {
			row := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
				portWidth, port.Name,
				driverWidth, binding.Driver,
				idWidth, fmt.Sprintf("%s:%s", binding.Device.VendorID, binding.Device.ProductID),
				busWidth, fmt.Sprintf("%03d/%03d", binding.Device.Bus, binding.Device.Address),
				port.SerialNumber)

			style := cellStyle
			if i == 0 && j == 0 {
				style = selectedStyle
			}
			fmt.Fprintln(w, style.Render(row))
		}
	}
}

// renderSimple renders one adapter per line in selection order
func renderSimple(w io.Writer, bindings []model.DriverBinding) {
	for _, binding := range bindings {
		names := make([]string, 0, len(binding.Ports))
		for _, port := range binding.Ports {
			names = append(names, port.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s:%s\n",
			strings.Join(names, ","),
			binding.Driver,
			binding.Device.VendorID,
			binding.Device.ProductID)
	}
}
