package location

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrServiceUnavailable is returned when no positioning service handle can be obtained.
	ErrServiceUnavailable = errors.New("location service unavailable")
	// ErrPermissionDenied is returned when the caller is not authorized to use a source.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrInvalidRequest is returned for a malformed registration request.
	ErrInvalidRequest = errors.New("invalid location request")
)

// Source produces position fixes on demand.
type Source interface {
	Name() string
	Permission() Permission // Permission required to read from the source
	GetLocation(ctx context.Context) (Position, error)
	Close() error
}

// Listener receives events from the positioning service. Methods are invoked on
// the service's dispatcher, never concurrently with each other.
type Listener interface {
	OnPositionChanged(pos Position)
	OnStatusChanged(event StatusEvent)
	OnProviderEnabled(provider string)
	OnProviderDisabled(provider string)
}

// Manager is a handle to the positioning service.
type Manager interface {
	// Sources lists the source names known to the service.
	Sources(enabledOnly bool) []string
	// RequestUpdates subscribes l to periodic fixes from source. It fails with
	// ErrPermissionDenied or ErrInvalidRequest.
	RequestUpdates(source string, minTime time.Duration, minDistance float64, l Listener) error
	// RemoveUpdates drops every subscription held by l. Safe to call when l has none.
	RemoveUpdates(l Listener)
}

// Host hands out the positioning service handle.
type Host interface {
	Manager() (Manager, error)
}

// Dispatcher runs callbacks on a single execution context.
type Dispatcher interface {
	Post(task func()) bool
}
