// cmd/server/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/discovery"
	serialdiscovery "serial-bridge/internal/discovery/serial"
	"serial-bridge/internal/event"
	"serial-bridge/internal/permission"
	"serial-bridge/internal/permission/devnode"
	"serial-bridge/internal/protocol/serial"
	"serial-bridge/internal/routes"
	"serial-bridge/internal/service"
	"serial-bridge/internal/sink/mqtt"
	"serial-bridge/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *routes.Router

	bus         *event.Bus
	adapters    *discovery.DeviceDatabase
	finder      *discovery.Finder
	permissions *devnode.Service
	connection  *service.ConnectionManager
	publisher   *mqtt.Publisher
}

// NewApplication creates a new application instance
func NewApplication(v *viper.Viper, configFile string) (*Application, error) {
	cfg, err := config.LoadWithViper(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeConnection()

	if err := app.initializeSinks(); err != nil {
		return nil, fmt.Errorf("failed to initialize event sinks: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeConnection wires discovery, permission and transport into the
// connection manager
func (app *Application) initializeConnection() {
	app.bus = event.NewBus(app.logger)

	app.adapters = discovery.NewDeviceDatabase()
	app.finder = discovery.NewFinder(newProber(app.config, app.logger), app.logger)

	app.permissions = devnode.NewService(app.logger)
	gate := permission.NewGate(
		app.permissions,
		app.config.Permission.PollInterval,
		app.config.Permission.Timeout,
		app.logger,
	)

	app.connection = service.NewConnectionManager(
		app.finder,
		gate,
		serial.NewTransport(app.logger),
		app.bus,
		app.config,
		app.logger,
	)

	app.logger.Info("Connection manager initialized",
		zap.String("port_config", app.config.Serial.PortConfig().String()),
		zap.Duration("permission_poll_interval", app.config.Permission.PollInterval),
	)
}

// newSerialProber builds the enumerator-only prober
func newSerialProber(logger *zap.Logger) discovery.Prober {
	scanner := serialdiscovery.NewScanner(logger)
	if !scanner.IsAvailable() {
		logger.Warn("Serial port list unavailable, discovery will fail until it is")
	}
	return scanner
}

// initializeSinks subscribes optional event consumers to the bus
func (app *Application) initializeSinks() error {
	if !app.config.MQTT.Enabled {
		return nil
	}

	publisher, err := mqtt.NewPublisher(&app.config.MQTT, app.logger)
	if err != nil {
		return err
	}
	app.publisher = publisher
	app.bus.Subscribe(publisher.Handle)

	app.logger.Info("MQTT event sink enabled",
		zap.String("broker", app.config.MQTT.Broker),
		zap.String("topic", app.config.MQTT.Topic),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.connection,
		app.finder,
		app.adapters,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Start runs the server and, if configured, the connect sequence, then
// blocks until a shutdown signal or a server failure
func (app *Application) Start() error {
	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if app.config.App.AutoStart {
		app.connection.Start()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		utils.LogError(app.logger, "HTTP server failed", err)
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	app.shutdown()
	return runErr
}

// shutdown performs graceful shutdown: HTTP first so no new writes arrive,
// then the connection, then the event consumers
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		utils.LogError(app.logger, "HTTP server shutdown error", err)
	} else {
		app.logger.Info("HTTP server stopped")
	}
	app.router.Close()

	if err := app.connection.Shutdown(ctx); err != nil {
		utils.LogError(app.logger, "Connection shutdown incomplete", err, zap.String("state", app.connection.State().String()))
	}
	app.permissions.Close()

	app.bus.Close()
	if app.publisher != nil {
		app.publisher.Close()
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}
