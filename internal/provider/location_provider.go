// Package provider adapts the host positioning service to the application.
//
// LocationProvider is confined to one execution context: Start, Stop and every
// listener callback must run on the same goroutine (the agent runs them all on a
// utils.Looper). The provider does no locking of its own; builds tagged
// locationdebug panic when they detect concurrent entry.
package provider

import (
	"errors"

	"github.com/benmeehan/location-agent/pkg/location"
	"github.com/rs/zerolog"
)

// Component is the value of the "component" field on every log line.
const Component = "location_provider"

// State is the registration state of a LocationProvider.
type State int

const (
	Unregistered State = iota
	Registered
)

func (s State) String() string {
	if s == Registered {
		return "registered"
	}
	return "unregistered"
}

// Consumer receives the positions forwarded by the provider.
type Consumer interface {
	PositionChanged(pos location.Position)
}

// LocationProvider registers with the positioning service and forwards position
// updates to a Consumer.
type LocationProvider struct {
	host     location.Host
	manager  location.Manager // Created lazily on the first Start
	consumer Consumer
	source   string
	state    State
	logger   zerolog.Logger
	guard    accessGuard
}

// Option configures a LocationProvider.
type Option func(*LocationProvider)

// WithSource selects the source to register with. Defaults to location.SourceNetwork.
func WithSource(name string) Option {
	return func(p *LocationProvider) {
		p.source = name
	}
}

// New creates a provider in the Unregistered state.
func New(host location.Host, consumer Consumer, logger zerolog.Logger, opts ...Option) *LocationProvider {
	p := &LocationProvider{
		host:     host,
		consumer: consumer,
		source:   location.SourceNetwork,
		state:    Unregistered,
		logger:   logger.With().Str("component", Component).Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current registration state.
func (p *LocationProvider) State() State {
	return p.state
}

// Start registers for location updates. Failures are logged and leave the
// provider Unregistered; they are never returned to the caller.
func (p *LocationProvider) Start(highAccuracy bool) {
	defer p.guard.enter()()

	err := p.register(highAccuracy)
	switch {
	case err == nil:
	case errors.Is(err, location.ErrServiceUnavailable):
		p.logger.Error().Err(err).Msg("Could not get location manager")
	case errors.Is(err, location.ErrPermissionDenied):
		p.logger.Error().Err(err).Msg("Caught permission error while registering for location updates " +
			"from the system. The application does not have sufficient geolocation permissions.")
		p.unregister()
		p.logger.Debug().Msg("Application does not have sufficient geolocation permissions")
	case errors.Is(err, location.ErrInvalidRequest):
		p.logger.Error().Err(err).Msg("Caught invalid request registering for location updates")
		p.unregister()
		assertf(false, "invalid location request: %v", err)
	default:
		p.logger.Error().Err(err).Msg("Failed to register for location updates")
		p.unregister()
	}
}

// Stop unregisters from location updates. Safe to call at any time.
func (p *LocationProvider) Stop() {
	defer p.guard.enter()()

	p.unregister()
}

// register acquires the service handle and requests updates from the configured
// source. The returned error carries the failure kind.
func (p *LocationProvider) register(highAccuracy bool) error {
	if err := p.ensureManager(); err != nil {
		return err
	}

	available := p.manager.Sources(true)
	if len(available) == 0 {
		p.logger.Warn().Msg("No enabled location sources")
	}
	for _, name := range available {
		p.logger.Debug().Str("source", name).Msg("Location source available")
	}

	criteria := location.NewCriteria(highAccuracy)
	if err := p.manager.RequestUpdates(p.source, criteria.MinTime, criteria.MinDistance, p); err != nil {
		if errors.Is(err, location.ErrServiceUnavailable) {
			// The handle is gone; acquire a fresh one on the next Start
			p.manager = nil
		}
		return err
	}

	p.state = Registered
	p.logger.Info().
		Str("source", p.source).
		Stringer("accuracy", criteria.Accuracy).
		Msg("Registered for location updates")
	return nil
}

// ensureManager obtains the service handle once. A failed attempt is retried on
// the next call.
func (p *LocationProvider) ensureManager() error {
	if p.manager != nil {
		return nil
	}

	m, err := p.host.Manager()
	if err != nil {
		return err
	}
	if m == nil {
		return location.ErrServiceUnavailable
	}
	p.manager = m
	return nil
}

func (p *LocationProvider) unregister() {
	if p.manager != nil {
		p.manager.RemoveUpdates(p)
	}
	if p.state == Registered {
		p.logger.Info().Msg("Unregistered from location updates")
	}
	p.state = Unregistered
}

// OnPositionChanged forwards pos to the consumer. Callbacks are queued by the
// service, so this can run after Stop; such late positions are dropped.
func (p *LocationProvider) OnPositionChanged(pos location.Position) {
	defer p.guard.enter()()

	if p.state != Registered {
		p.logger.Debug().Stringer("position", pos).Msg("Dropping position received while unregistered")
		return
	}
	p.consumer.PositionChanged(pos)
}

func (p *LocationProvider) OnStatusChanged(event location.StatusEvent) {
	defer p.guard.enter()()

	p.logger.Debug().
		Str("provider", event.Provider).
		Stringer("status", event.Status).
		Interface("extras", event.Extras).
		Msg("Location provider status changed")
}

func (p *LocationProvider) OnProviderEnabled(name string) {
	defer p.guard.enter()()

	p.logger.Debug().Str("provider", name).Msg("Location provider enabled")
}

func (p *LocationProvider) OnProviderDisabled(name string) {
	defer p.guard.enter()()

	p.logger.Debug().Str("provider", name).Msg("Location provider disabled")
}
