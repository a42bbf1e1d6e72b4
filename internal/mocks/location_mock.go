package mocks

import (
	"time"

	"github.com/benmeehan/location-agent/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockHost is a mock implementation of the location.Host interface
type MockHost struct {
	mock.Mock
}

func (m *MockHost) Manager() (location.Manager, error) {
	args := m.Called()
	mgr, _ := args.Get(0).(location.Manager)
	return mgr, args.Error(1)
}

// MockManager is a mock implementation of the location.Manager interface
type MockManager struct {
	mock.Mock
}

func (m *MockManager) Sources(enabledOnly bool) []string {
	args := m.Called(enabledOnly)
	sources, _ := args.Get(0).([]string)
	return sources
}

func (m *MockManager) RequestUpdates(source string, minTime time.Duration, minDistance float64, l location.Listener) error {
	args := m.Called(source, minTime, minDistance, l)
	return args.Error(0)
}

func (m *MockManager) RemoveUpdates(l location.Listener) {
	m.Called(l)
}

// MockConsumer is a mock implementation of the provider.Consumer interface
type MockConsumer struct {
	mock.Mock
}

func (m *MockConsumer) PositionChanged(pos location.Position) {
	m.Called(pos)
}

// MockRunner runs tasks inline on the calling goroutine
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(task func()) bool {
	args := m.Called()
	if args.Bool(0) {
		task()
	}
	return args.Bool(0)
}
