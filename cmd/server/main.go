// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "serial-bridge/docs"
)

var (
	configFile string
	v          = viper.New()
)

// rootCmd represents the base command; without a subcommand it serves
var rootCmd = &cobra.Command{
	Use:   "serial-bridge",
	Short: "USB serial connection manager with an HTTP and WebSocket control surface",
	Long: `serial-bridge discovers an attached USB serial adapter, waits until the
process may access it, opens its first port and streams every received line
to subscribers.

Lines can be written back through the HTTP API or the WebSocket event stream.
Events are optionally mirrored to an MQTT broker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// serveCmd runs the connection manager and the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connection manager and HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApplication(v, configFile)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return app.Start()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default searches ./config.yaml, ./config/, /etc/serial-bridge/)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("usb-debug", false, "enable libusb debug output")

	for _, flags := range []*cobra.Command{rootCmd, serveCmd} {
		flags.Flags().String("port", "", "HTTP listen port")
		flags.Flags().IntP("baud", "b", 0, "baud rate")
		flags.Flags().String("parity", "", "parity: none, odd, even, mark, space")
		flags.Flags().Bool("auto-start", true, "connect as soon as the service is up")
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
}

// bindFlags maps explicitly set flags onto config keys
func bindFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"log-level":  "logging.level",
		"usb-debug":  "usb.debug",
		"port":       "server.port",
		"baud":       "serial.baud_rate",
		"parity":     "serial.parity",
		"auto-start": "app.auto_start",
	}

	for name, key := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// @title Serial Bridge API
// @version 1.0.0
// @description USB serial connection manager: discovery, permission, port lifecycle and line I/O

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
