package utils

import (
	"fmt"
	"time"

	"github.com/benmeehan/location-agent/pkg/file"
	"github.com/benmeehan/location-agent/pkg/location"
)

// Config represents the structure of the configuration file.
type Config struct {
	LogLevel string `yaml:"log_level"` // zerolog level name, defaults to info

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, plain TCP when empty
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Services struct {
		Location LocationConfig `yaml:"location"`
	} `yaml:"services"`
}

// LocationConfig configures the location service and the positioning sources.
type LocationConfig struct {
	Enabled      bool          `yaml:"enabled"`       // Enable/disable location service
	Topic        string        `yaml:"topic"`         // MQTT topic for location messages
	QOS          int           `yaml:"qos"`           // MQTT QoS level for location messages
	HighAccuracy bool          `yaml:"high_accuracy"` // Request the fine accuracy tier
	Source       string        `yaml:"source"`        // Source to register with
	PollInterval time.Duration `yaml:"poll_interval"` // Minimum interval between two reads of a source
	DisableAfter int           `yaml:"disable_after"` // Consecutive failures before a source is reported disabled
	Permissions  []string      `yaml:"permissions"`   // Granted permissions: coarse, fine

	GPS struct {
		Enabled     bool          `yaml:"enabled"`      // Enable/disable the serial GPS source
		DevicePort  string        `yaml:"device_port"`  // UNIX Port where the GPS sensor is mounted
		BaudRate    int           `yaml:"baud_rate"`    // The Baud rate for GPS sensor
		ReadTimeout time.Duration `yaml:"read_timeout"` // Per-read timeout on the serial port
	} `yaml:"gps"`

	Network struct {
		Enabled    bool          `yaml:"enabled"`      // Enable/disable the geolocation API source
		MapsAPIKey string        `yaml:"maps_api_key"` // Google maps API Key
		ModemIndex int           `yaml:"modem_index"`  // ModemManager index used for the cell scan
		Timeout    time.Duration `yaml:"timeout"`      // Timeout for a geolocation request
	} `yaml:"network"`
}

// LoadConfig loads the YAML configuration from the specified file and fills in defaults.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if _, err := config.Services.Location.ParsePermissions(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	loc := &c.Services.Location
	if loc.Source == "" {
		loc.Source = location.SourceNetwork
	}
	if loc.PollInterval <= 0 {
		loc.PollInterval = location.DefaultPollInterval
	}
	if loc.DisableAfter <= 0 {
		loc.DisableAfter = location.DefaultDisableAfter
	}
	if loc.GPS.BaudRate <= 0 {
		loc.GPS.BaudRate = 9600
	}
	if loc.GPS.ReadTimeout <= 0 {
		loc.GPS.ReadTimeout = 2 * time.Second
	}
	if loc.Network.Timeout <= 0 {
		loc.Network.Timeout = 10 * time.Second
	}
}

// ParsePermissions converts the configured permission names.
func (l *LocationConfig) ParsePermissions() ([]location.Permission, error) {
	perms := make([]location.Permission, 0, len(l.Permissions))
	for _, name := range l.Permissions {
		p, err := location.ParsePermission(name)
		if err != nil {
			return nil, fmt.Errorf("services.location.permissions: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// HostConfig builds the positioning host configuration.
func (l *LocationConfig) HostConfig() (location.HostConfig, error) {
	perms, err := l.ParsePermissions()
	if err != nil {
		return location.HostConfig{}, err
	}

	var hc location.HostConfig
	hc.Manager = location.ManagerConfig{
		Permissions:  perms,
		PollInterval: l.PollInterval,
		DisableAfter: l.DisableAfter,
	}
	hc.GPS.Enabled = l.GPS.Enabled
	hc.GPS.DevicePort = l.GPS.DevicePort
	hc.GPS.BaudRate = l.GPS.BaudRate
	hc.GPS.ReadTimeout = l.GPS.ReadTimeout
	hc.Network.Enabled = l.Network.Enabled
	hc.Network.MapsAPIKey = l.Network.MapsAPIKey
	hc.Network.ModemIndex = l.Network.ModemIndex
	hc.Network.Timeout = l.Network.Timeout
	return hc, nil
}
