package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/location-agent/internal/mocks"
	"github.com/benmeehan/location-agent/internal/models"
	"github.com/benmeehan/location-agent/pkg/location"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type locationServiceFixture struct {
	host       *mocks.MockHost
	manager    *mocks.MockManager
	runner     *mocks.MockRunner
	mqttClient *mocks.MockMQTTClient
	deviceInfo *mocks.MockDeviceInfo
	service    *LocationService
}

func newLocationServiceFixture() *locationServiceFixture {
	f := &locationServiceFixture{
		host:       new(mocks.MockHost),
		manager:    new(mocks.MockManager),
		runner:     new(mocks.MockRunner),
		mqttClient: new(mocks.MockMQTTClient),
		deviceInfo: new(mocks.MockDeviceInfo),
	}
	f.runner.On("Run").Return(true)
	f.deviceInfo.On("GetDeviceID").Return("test-device-id")
	f.service = NewLocationService("test-topic", 1, true, location.SourceNetwork, f.deviceInfo,
		f.mqttClient, f.host, f.runner, zerolog.Nop())
	return f
}

func (f *locationServiceFixture) expectRegistration() {
	f.host.On("Manager").Return(f.manager, nil)
	f.manager.On("Sources", true).Return([]string{location.SourceNetwork})
	f.manager.On("RequestUpdates", location.SourceNetwork, time.Duration(0), float64(0), mock.Anything).Return(nil)
	f.manager.On("RemoveUpdates", mock.Anything).Return()
}

// TestLocationService_Start_Success tests the successful start of the LocationService.
func TestLocationService_Start_Success(t *testing.T) {
	f := newLocationServiceFixture()
	f.expectRegistration()

	err := f.service.Start()
	assert.NoError(t, err)

	// Try to start again (should fail)
	err = f.service.Start()
	assert.EqualError(t, err, "location service is already running")

	err = f.service.Stop()
	assert.NoError(t, err)
	f.manager.AssertNumberOfCalls(t, "RequestUpdates", 1)
	f.manager.AssertNumberOfCalls(t, "RemoveUpdates", 1)
}

// TestLocationService_Start_ServiceUnavailable tests that a missing positioning service does not fail the agent.
func TestLocationService_Start_ServiceUnavailable(t *testing.T) {
	f := newLocationServiceFixture()
	f.host.On("Manager").Return(nil, location.ErrServiceUnavailable)

	err := f.service.Start()
	assert.NoError(t, err)

	err = f.service.Stop()
	assert.NoError(t, err)
}

// TestLocationService_Stop_NotRunning tests stopping a service that was never started.
func TestLocationService_Stop_NotRunning(t *testing.T) {
	f := newLocationServiceFixture()

	err := f.service.Stop()
	assert.EqualError(t, err, "location service is not running")
}

// TestLocationService_Start_RunnerClosed tests starting after the runner has shut down.
func TestLocationService_Start_RunnerClosed(t *testing.T) {
	f := newLocationServiceFixture()
	f.runner.ExpectedCalls = nil
	f.runner.On("Run").Return(false)

	err := f.service.Start()
	assert.EqualError(t, err, "location service runner is closed")
	f.host.AssertNotCalled(t, "Manager")
}

// TestLocationService_PublishesPositions tests that forwarded positions are published to MQTT.
func TestLocationService_PublishesPositions(t *testing.T) {
	f := newLocationServiceFixture()
	f.expectRegistration()

	token := new(mocks.MockToken)
	token.On("WaitTimeout", publishTimeout).Return(true)
	token.On("Error").Return(nil)

	var payload []byte
	f.mqttClient.On("Publish", "test-topic", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(3).([]byte) }).
		Return(token)

	require.NoError(t, f.service.Start())

	altitude := 12.5
	ts := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	f.service.provider.OnPositionChanged(location.Position{
		Latitude:  37.0,
		Longitude: -122.0,
		Accuracy:  10,
		Time:      ts,
		Source:    location.SourceNetwork,
		Altitude:  &altitude,
	})

	f.service.pending.Wait()

	var msg models.Location
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "test-device-id", msg.DeviceID)
	assert.True(t, ts.Equal(msg.Timestamp))
	assert.Equal(t, location.SourceNetwork, msg.Source)
	assert.InDelta(t, 37.0, msg.Latitude, 1e-9)
	assert.InDelta(t, -122.0, msg.Longitude, 1e-9)
	assert.InDelta(t, 10.0, msg.Accuracy, 1e-9)
	require.NotNil(t, msg.Altitude)
	assert.InDelta(t, 12.5, *msg.Altitude, 1e-9)
	assert.Nil(t, msg.Speed)

	f.mqttClient.AssertExpectations(t)
	token.AssertExpectations(t)
}

// TestLocationService_PublishError tests that publish failures are logged, not propagated.
func TestLocationService_PublishError(t *testing.T) {
	f := newLocationServiceFixture()

	token := new(mocks.MockToken)
	token.On("WaitTimeout", publishTimeout).Return(true)
	token.On("Error").Return(errors.New("publish failed"))
	f.mqttClient.On("Publish", "test-topic", byte(1), false, mock.Anything).Return(token)

	published, err := f.service.publishPosition(location.Position{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.EqualError(t, f.service.awaitPublish(published), "publish failed")

	assert.NotPanics(t, func() {
		f.service.PositionChanged(location.Position{Latitude: 1, Longitude: 2})
		f.service.pending.Wait()
	})
}

// TestLocationService_PublishTimeout tests a publish that never completes.
func TestLocationService_PublishTimeout(t *testing.T) {
	f := newLocationServiceFixture()

	token := new(mocks.MockToken)
	token.On("WaitTimeout", publishTimeout).Return(false)

	err := f.service.awaitPublish(token)
	assert.EqualError(t, err, "timed out publishing location message")
	token.AssertNotCalled(t, "Error")
}

// TestLocationService_PositionChangedDoesNotWaitForAck tests that an unacknowledged
// publish does not hold up the caller, and that Stop waits for it.
func TestLocationService_PositionChangedDoesNotWaitForAck(t *testing.T) {
	f := newLocationServiceFixture()
	f.expectRegistration()

	release := make(chan struct{})
	token := new(mocks.MockToken)
	token.On("WaitTimeout", publishTimeout).Run(func(mock.Arguments) { <-release }).Return(true)
	token.On("Error").Return(nil)
	f.mqttClient.On("Publish", "test-topic", byte(1), false, mock.Anything).Return(token)

	require.NoError(t, f.service.Start())

	returned := make(chan struct{})
	go func() {
		f.service.provider.OnPositionChanged(location.Position{Latitude: 1, Longitude: 2})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("PositionChanged blocked on the publish acknowledgement")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- f.service.Stop() }()
	select {
	case <-stopped:
		t.Fatal("Stop returned before the pending publish completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	token.AssertExpectations(t)
}
