// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Device    DeviceConfig    `mapstructure:"device"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
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

// StoreConfig represents printer configuration persistence
type StoreConfig struct {
	Path        string        `mapstructure:"path"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// DiscoveryConfig represents discovery probe configuration
type DiscoveryConfig struct {
	ScanTimeout time.Duration       `mapstructure:"scan_timeout"`
	USB         ScannerToggle       `mapstructure:"usb"`
	Spooler     ScannerToggle       `mapstructure:"spooler"`
	Serial      ScannerToggle       `mapstructure:"serial"`
	Network     NetworkProbeConfig  `mapstructure:"network"`
	MDNS        MDNSDiscoveryConfig `mapstructure:"mdns"`
}

// ScannerToggle enables or disables one scanner
type ScannerToggle struct {
	Enabled bool `mapstructure:"enabled"`
}

// NetworkProbeConfig represents raw-port probing of candidate hosts
type NetworkProbeConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Candidates    []string      `mapstructure:"candidates"`
	Port          int           `mapstructure:"port"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

// MDNSDiscoveryConfig represents zeroconf browsing
type MDNSDiscoveryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Service string        `mapstructure:"service"`
	Domain  string        `mapstructure:"domain"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeviceConfig represents transport defaults applied to every printer
type DeviceConfig struct {
	StatusReadTimeout time.Duration    `mapstructure:"status_read_timeout"`
	RetryDelay        time.Duration    `mapstructure:"retry_delay"`
	DefaultPort       DevicePortConfig `mapstructure:"default_ports"`
}

// DevicePortConfig represents default port configurations
type DevicePortConfig struct {
	Serial SerialPortConfig `mapstructure:"serial"`
	TCP    TCPPortConfig    `mapstructure:"tcp"`
	USB    USBPortConfig    `mapstructure:"usb"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TCPPortConfig represents TCP port configuration
type TCPPortConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
}

// USBPortConfig represents USB port configuration
type USBPortConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Interface int           `mapstructure:"interface"`
	Endpoint  int           `mapstructure:"endpoint"`
}

// Load loads configuration from an optional file and environment variables.
// An empty path searches ./config.yaml and ./config/config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix("PRINTER_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "printer-service")
	v.SetDefault("app.version", "1.0.0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Store defaults
	v.SetDefault("store.path", "./data/printers.db")
	v.SetDefault("store.open_timeout", "2s")

	// Discovery defaults
	v.SetDefault("discovery.scan_timeout", "10s")
	v.SetDefault("discovery.usb.enabled", true)
	v.SetDefault("discovery.spooler.enabled", true)
	v.SetDefault("discovery.serial.enabled", true)
	v.SetDefault("discovery.network.enabled", true)
	v.SetDefault("discovery.network.candidates", []string{
		"192.168.1.87", "192.168.1.100", "192.168.0.100", "192.168.123.100", "192.168.192.168",
	})
	v.SetDefault("discovery.network.port", 9100)
	v.SetDefault("discovery.network.timeout", "1s")
	v.SetDefault("discovery.network.max_concurrent", 8)
	v.SetDefault("discovery.mdns.enabled", false)
	v.SetDefault("discovery.mdns.service", "_pdl-datastream._tcp")
	v.SetDefault("discovery.mdns.domain", "local.")
	v.SetDefault("discovery.mdns.timeout", "2s")

	// Device defaults
	v.SetDefault("device.status_read_timeout", "500ms")
	v.SetDefault("device.retry_delay", "200ms")

	v.SetDefault("device.default_ports.serial.baud_rate", 9600)
	v.SetDefault("device.default_ports.serial.data_bits", 8)
	v.SetDefault("device.default_ports.serial.stop_bits", 1)
	v.SetDefault("device.default_ports.serial.parity", "none")
	v.SetDefault("device.default_ports.serial.timeout", "5s")

	v.SetDefault("device.default_ports.tcp.connect_timeout", "5s")
	v.SetDefault("device.default_ports.tcp.read_timeout", "5s")
	v.SetDefault("device.default_ports.tcp.write_timeout", "10s")
	v.SetDefault("device.default_ports.tcp.keep_alive", true)

	v.SetDefault("device.default_ports.usb.timeout", "5s")
	v.SetDefault("device.default_ports.usb.interface", 0)
	v.SetDefault("device.default_ports.usb.endpoint", 1)
}

// validate validates the configuration
func validate(config *Config) error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if config.Discovery.Network.Port < 1 || config.Discovery.Network.Port > 65535 {
		return fmt.Errorf("discovery.network.port must be in [1, 65535]")
	}
	if config.Discovery.Network.Timeout <= 0 {
		return fmt.Errorf("discovery.network.timeout must be positive")
	}
	if config.Discovery.Network.MaxConcurrent < 1 {
		return fmt.Errorf("discovery.network.max_concurrent must be at least 1")
	}
	if config.Device.DefaultPort.Serial.BaudRate <= 0 {
		return fmt.Errorf("device.default_ports.serial.baud_rate must be positive")
	}

	return nil
}
