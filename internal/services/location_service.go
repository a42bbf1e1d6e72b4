package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/location-agent/internal/models"
	"github.com/benmeehan/location-agent/internal/provider"
	"github.com/benmeehan/location-agent/pkg/identity"
	"github.com/benmeehan/location-agent/pkg/location"
	"github.com/benmeehan/location-agent/pkg/mqtt"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Runner executes a task on the provider's execution context and waits for it.
type Runner interface {
	Run(task func()) bool
}

// LocationService drives a LocationProvider and publishes the positions it
// forwards to an MQTT topic.
type LocationService struct {
	// Configuration fields
	topic        string
	qos          int
	highAccuracy bool

	// Dependencies
	deviceInfo identity.DeviceInfoInterface
	mqttClient mqtt.MQTTClient
	runner     Runner
	logger     zerolog.Logger
	provider   *provider.LocationProvider

	running bool
	pending sync.WaitGroup // Publishes still waiting for their token
}

// NewLocationService creates a LocationService. Provider calls are made through
// runner, which must be the same execution context the host dispatches on.
func NewLocationService(topic string, qos int, highAccuracy bool, source string, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, host location.Host, runner Runner, logger zerolog.Logger) *LocationService {
	l := &LocationService{
		topic:        topic,
		qos:          qos,
		highAccuracy: highAccuracy,
		deviceInfo:   deviceInfo,
		mqttClient:   mqttClient,
		runner:       runner,
		logger:       logger,
	}
	l.provider = provider.New(host, l, logger, provider.WithSource(source))
	return l
}

// Start registers the provider for location updates.
func (l *LocationService) Start() error {
	if l.running {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	var state provider.State
	if !l.runner.Run(func() {
		l.provider.Start(l.highAccuracy)
		state = l.provider.State()
	}) {
		return errors.New("location service runner is closed")
	}
	l.running = true

	if state != provider.Registered {
		l.logger.Warn().Msg("LocationService started without a location registration, no positions will be published")
	}
	l.logger.Info().
		Str("topic", l.topic).
		Int("qos", l.qos).
		Bool("high_accuracy", l.highAccuracy).
		Msg("LocationService started")
	return nil
}

// Stop unregisters the provider.
func (l *LocationService) Stop() error {
	if !l.running {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	if !l.runner.Run(l.provider.Stop) {
		return errors.New("location service runner is closed")
	}
	l.pending.Wait()

	l.running = false
	l.logger.Info().Msg("LocationService stopped")
	return nil
}

// PositionChanged publishes pos. It runs on the provider's execution context, so
// the publish is acknowledged on a separate goroutine.
func (l *LocationService) PositionChanged(pos location.Position) {
	token, err := l.publishPosition(pos)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to publish location")
		return
	}

	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		if err := l.awaitPublish(token); err != nil {
			l.logger.Error().Err(err).Msg("Failed to publish location")
			return
		}
		l.logger.Debug().
			Str("topic", l.topic).
			Float64("latitude", pos.Latitude).
			Float64("longitude", pos.Longitude).
			Msg("Location published successfully")
	}()
}

func (l *LocationService) publishPosition(pos location.Position) (paho.Token, error) {
	locationMessage := models.Location{
		DeviceID:  l.deviceInfo.GetDeviceID(),
		Timestamp: pos.Time,
		Source:    pos.Source,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
		Altitude:  pos.Altitude,
		Speed:     pos.Speed,
		Heading:   pos.Heading,
	}
	if locationMessage.Timestamp.IsZero() {
		locationMessage.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(locationMessage)
	if err != nil {
		return nil, err
	}
	return l.mqttClient.Publish(l.topic, byte(l.qos), false, payload), nil
}

func (l *LocationService) awaitPublish(token paho.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("timed out publishing location message")
	}
	return token.Error()
}
