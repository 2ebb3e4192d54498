// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"serial-bridge/internal/model"
)

// EnvPrefix is the prefix of environment overrides, e.g. SERIAL_BRIDGE_SERIAL_BAUD_RATE
const EnvPrefix = "SERIAL_BRIDGE"

// Config represents the application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Permission PermissionConfig `mapstructure:"permission"`
	Reader     ReaderConfig     `mapstructure:"reader"`
	USB        USBConfig        `mapstructure:"usb"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	// AutoStart begins the connect sequence as soon as the service is up.
	AutoStart bool `mapstructure:"auto_start"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig represents serial line configuration
type SerialConfig struct {
	BaudRate       int           `mapstructure:"baud_rate"`
	DataBits       int           `mapstructure:"data_bits"`
	StopBits       int           `mapstructure:"stop_bits"`
	Parity         string        `mapstructure:"parity"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	LineTerminator string        `mapstructure:"line_terminator"`
}

// PermissionConfig represents the permission handshake configuration
type PermissionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Timeout of zero waits until the permission is granted or the attempt
	// is shut down.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReaderConfig represents reader loop configuration
type ReaderConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BufferSize   int           `mapstructure:"buffer_size"`
	StopGrace    time.Duration `mapstructure:"stop_grace"`
}

// USBConfig represents USB enumeration configuration
type USBConfig struct {
	Debug         bool `mapstructure:"debug"`
	FilterByClass bool `mapstructure:"filter_by_class"`
}

// MQTTConfig represents the optional MQTT event sink
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	return LoadWithViper(viper.New(), configFile)
}

// LoadWithViper loads configuration into v, which may already carry bound
// command line flags. An empty configFile searches the default locations; a
// missing file is not an error.
func LoadWithViper(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/serial-bridge")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "serial-bridge")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.auto_start", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Serial defaults
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", string(model.ParityNone))
	v.SetDefault("serial.write_timeout", "1s")
	v.SetDefault("serial.line_terminator", "\n")

	// Permission defaults
	v.SetDefault("permission.poll_interval", "1s")
	v.SetDefault("permission.timeout", "0s")

	// Reader defaults
	v.SetDefault("reader.poll_interval", "100ms")
	v.SetDefault("reader.buffer_size", 4096)
	v.SetDefault("reader.stop_grace", "2s")

	// USB defaults
	v.SetDefault("usb.debug", false)
	v.SetDefault("usb.filter_by_class", true)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "serial-bridge/events")
	v.SetDefault("mqtt.client_id", "serial-bridge")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if err := config.Serial.PortConfig().Validate(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if config.Serial.WriteTimeout <= 0 {
		return fmt.Errorf("serial.write_timeout must be positive")
	}
	if config.Permission.PollInterval <= 0 {
		return fmt.Errorf("permission.poll_interval must be positive")
	}
	if config.Permission.Timeout < 0 {
		return fmt.Errorf("permission.timeout must not be negative")
	}
	if config.Reader.PollInterval <= 0 {
		return fmt.Errorf("reader.poll_interval must be positive")
	}
	if config.Reader.BufferSize <= 0 {
		return fmt.Errorf("reader.buffer_size must be positive")
	}

	if config.MQTT.Enabled && (config.MQTT.Broker == "" || config.MQTT.Topic == "") {
		return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled")
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// PortConfig returns the line settings as an immutable model value
func (s SerialConfig) PortConfig() model.PortConfig {
	return model.PortConfig{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		StopBits: s.StopBits,
		Parity:   model.Parity(strings.ToLower(s.Parity)),
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
