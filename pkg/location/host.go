package location

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HostConfig describes which sources the system host may build.
type HostConfig struct {
	Manager ManagerConfig

	GPS struct {
		Enabled     bool
		DevicePort  string
		BaudRate    int
		ReadTimeout time.Duration
	}

	Network struct {
		Enabled    bool
		MapsAPIKey string
		ModemIndex int
		Timeout    time.Duration
	}
}

// SystemHost lazily builds the SourceManager from configuration on first use.
type SystemHost struct {
	config     HostConfig
	dispatcher Dispatcher
	logger     zerolog.Logger

	mu      sync.Mutex
	manager *SourceManager
}

// NewSystemHost creates a host. Nothing is opened until Manager is called.
func NewSystemHost(config HostConfig, dispatcher Dispatcher, logger zerolog.Logger) *SystemHost {
	return &SystemHost{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Manager returns the positioning service, building it on the first call. A
// failed build is not cached.
func (h *SystemHost) Manager() (Manager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.manager != nil {
		return h.manager, nil
	}

	sources := h.buildSources()
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no location source configured", ErrServiceUnavailable)
	}

	h.manager = NewSourceManager(sources, h.dispatcher, h.config.Manager, h.logger)
	h.logger.Info().Int("sources", len(sources)).Msg("Location manager created")
	return h.manager, nil
}

// Close shuts down the manager if it was built.
func (h *SystemHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.manager == nil {
		return nil
	}
	err := h.manager.Close()
	h.manager = nil
	return err
}

func (h *SystemHost) buildSources() []Source {
	var sources []Source

	if net := h.config.Network; net.Enabled {
		timeout := net.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if net.MapsAPIKey == "" {
			h.logger.Warn().Msg("Network location source enabled without a Maps API key, skipping")
		} else if src, err := NewGoogleGeolocationProvider(net.MapsAPIKey, net.ModemIndex, timeout, h.logger); err != nil {
			h.logger.Error().Err(err).Msg("Failed to create Google Geolocation provider")
		} else {
			sources = append(sources, src)
		}
	}

	if gps := h.config.GPS; gps.Enabled {
		if gps.DevicePort == "" {
			h.logger.Warn().Msg("GPS location source enabled without a device port, skipping")
		} else {
			sources = append(sources, NewDeviceSensorProvider(gps.DevicePort, gps.BaudRate, gps.ReadTimeout))
		}
	}

	return sources
}
