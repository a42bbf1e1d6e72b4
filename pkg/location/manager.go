package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultDisableAfter = 3
)

// ManagerConfig tunes a SourceManager.
type ManagerConfig struct {
	Permissions  []Permission  // Permissions granted to the application
	PollInterval time.Duration // Lower bound on the interval between two reads of a source
	DisableAfter int           // Consecutive failures before a source is reported disabled
}

// SourceManager is the positioning service. It polls sources on behalf of its
// listeners and delivers every callback through a single Dispatcher.
//
// Listeners are identified by equality, so their dynamic type must be
// comparable; pointers are the usual choice.
type SourceManager struct {
	sources      map[string]Source
	order        []string
	granted      map[Permission]struct{}
	pollInterval time.Duration
	disableAfter int
	dispatcher   Dispatcher
	logger       zerolog.Logger

	subs   cmap.ConcurrentMap[string, *subscription]
	states cmap.ConcurrentMap[string, *sourceState]

	mu          sync.Mutex // Guards closed, listenerIDs, nextID and wg.Add
	closed      bool
	listenerIDs map[Listener]uint64
	nextID      uint64
	wg          sync.WaitGroup
}

type subscription struct {
	source      Source
	listener    Listener
	interval    time.Duration
	minDistance float64
	cancel      context.CancelFunc

	// Owned by the polling goroutine
	last *Position
}

// sourceState is the availability of one source, shared by all of its subscriptions.
type sourceState struct {
	mu       sync.Mutex
	failures int
	disabled bool
}

// NewSourceManager creates a manager over the given sources. Sources are listed in
// the order given.
func NewSourceManager(sources []Source, dispatcher Dispatcher, cfg ManagerConfig, logger zerolog.Logger) *SourceManager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.DisableAfter <= 0 {
		cfg.DisableAfter = DefaultDisableAfter
	}

	m := &SourceManager{
		sources:      make(map[string]Source, len(sources)),
		granted:      make(map[Permission]struct{}, len(cfg.Permissions)),
		pollInterval: cfg.PollInterval,
		disableAfter: cfg.DisableAfter,
		dispatcher:   dispatcher,
		logger:       logger,
		subs:         cmap.New[*subscription](),
		states:       cmap.New[*sourceState](),
		listenerIDs:  make(map[Listener]uint64),
	}
	for _, s := range sources {
		if _, dup := m.sources[s.Name()]; dup {
			continue
		}
		m.sources[s.Name()] = s
		m.order = append(m.order, s.Name())
		m.states.Set(s.Name(), &sourceState{})
	}
	for _, p := range cfg.Permissions {
		m.granted[p] = struct{}{}
	}
	return m
}

// Sources returns the source names, optionally omitting the disabled ones.
func (m *SourceManager) Sources(enabledOnly bool) []string {
	names := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if enabledOnly && m.isDisabled(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// RequestUpdates starts polling source for l. A previous subscription of l on the
// same source is replaced. After Close it fails with ErrServiceUnavailable.
func (m *SourceManager) RequestUpdates(source string, minTime time.Duration, minDistance float64, l Listener) error {
	if l == nil {
		return fmt.Errorf("%w: nil listener", ErrInvalidRequest)
	}
	if !reflect.TypeOf(l).Comparable() {
		return fmt.Errorf("%w: listener type %T is not comparable", ErrInvalidRequest, l)
	}
	if minTime < 0 {
		return fmt.Errorf("%w: negative minimum time %s", ErrInvalidRequest, minTime)
	}
	if minDistance < 0 || math.IsNaN(minDistance) {
		return fmt.Errorf("%w: invalid minimum distance %v", ErrInvalidRequest, minDistance)
	}
	src, ok := m.sources[source]
	if !ok {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, source)
	}
	if !m.allowed(src.Permission()) {
		return fmt.Errorf("%w: source %q requires %s location access", ErrPermissionDenied, source, src.Permission())
	}

	interval := minTime
	if interval < m.pollInterval {
		interval = m.pollInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: location manager is closed", ErrServiceUnavailable)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		source:      src,
		listener:    l,
		interval:    interval,
		minDistance: minDistance,
		cancel:      cancel,
	}

	key := m.subscriptionKeyLocked(source, l)
	if old, ok := m.subs.Pop(key); ok {
		old.cancel()
	}
	m.subs.Set(key, sub)

	m.wg.Add(1)
	go m.poll(ctx, sub)

	m.logger.Debug().
		Str("source", source).
		Dur("interval", interval).
		Float64("min_distance", minDistance).
		Msg("Location updates requested")
	return nil
}

// RemoveUpdates cancels every subscription held by l. Callbacks already handed to
// the dispatcher are still delivered.
func (m *SourceManager) RemoveUpdates(l Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}

	m.mu.Lock()
	delete(m.listenerIDs, l)
	m.mu.Unlock()

	for item := range m.subs.IterBuffered() {
		if item.Val.listener != l {
			continue
		}
		if sub, ok := m.subs.Pop(item.Key); ok {
			sub.cancel()
		}
	}
}

// Close cancels all subscriptions, waits for the pollers and closes the sources.
// Later RequestUpdates calls fail with ErrServiceUnavailable.
func (m *SourceManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	for _, key := range m.subs.Keys() {
		if sub, ok := m.subs.Pop(key); ok {
			sub.cancel()
		}
	}
	m.wg.Wait()

	var errs []error
	for _, name := range m.order {
		if err := m.sources[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close source %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *SourceManager) allowed(required Permission) bool {
	if _, ok := m.granted[PermissionFine]; ok {
		return true
	}
	if required == PermissionCoarse {
		_, ok := m.granted[PermissionCoarse]
		return ok
	}
	return false
}

func (m *SourceManager) isDisabled(name string) bool {
	state, ok := m.states.Get(name)
	if !ok {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.disabled
}

// poll reads the source immediately and then once per interval until cancelled.
func (m *SourceManager) poll(ctx context.Context, sub *subscription) {
	defer m.wg.Done()

	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()

	for {
		m.pollOnce(ctx, sub)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *SourceManager) pollOnce(ctx context.Context, sub *subscription) {
	name := sub.source.Name()

	pos, err := sub.source.GetLocation(ctx)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		m.recordFailure(name, err)
		return
	}
	m.recordSuccess(name)

	if sub.last != nil && sub.minDistance > 0 && Distance(*sub.last, pos) < sub.minDistance {
		return
	}
	sub.last = &pos

	l := sub.listener
	m.post(func() { l.OnPositionChanged(pos) })
}

// recordFailure counts a failed read and reports the transitions it causes to
// every listener of the source.
func (m *SourceManager) recordFailure(name string, err error) {
	state, _ := m.states.Get(name)

	state.mu.Lock()
	state.failures++
	failures := state.failures
	disable := !state.disabled && failures >= m.disableAfter
	unavailable := !state.disabled && !disable && failures == 1
	if disable {
		state.disabled = true
	}
	state.mu.Unlock()

	m.logger.Warn().Err(err).Str("source", name).Int("failures", failures).Msg("Failed to read location source")

	extras := map[string]any{"failures": failures, "error": err.Error()}
	switch {
	case disable:
		m.broadcast(name, func(l Listener) {
			l.OnStatusChanged(StatusEvent{Provider: name, Status: OutOfService, Extras: extras})
			l.OnProviderDisabled(name)
		})
	case unavailable:
		m.broadcast(name, func(l Listener) {
			l.OnStatusChanged(StatusEvent{Provider: name, Status: TemporarilyUnavailable, Extras: extras})
		})
	}
}

// recordSuccess resets the failure count and reports a recovery.
func (m *SourceManager) recordSuccess(name string) {
	state, _ := m.states.Get(name)

	state.mu.Lock()
	enable := state.disabled
	recovered := !enable && state.failures > 0
	state.failures = 0
	state.disabled = false
	state.mu.Unlock()

	switch {
	case enable:
		m.broadcast(name, func(l Listener) {
			l.OnProviderEnabled(name)
			l.OnStatusChanged(StatusEvent{Provider: name, Status: Available})
		})
	case recovered:
		m.broadcast(name, func(l Listener) {
			l.OnStatusChanged(StatusEvent{Provider: name, Status: Available})
		})
	}
}

// broadcast posts fn once for every listener subscribed to the source.
func (m *SourceManager) broadcast(name string, fn func(l Listener)) {
	for item := range m.subs.IterBuffered() {
		if item.Val.source.Name() != name {
			continue
		}
		l := item.Val.listener
		m.post(func() { fn(l) })
	}
}

func (m *SourceManager) post(task func()) {
	if !m.dispatcher.Post(task) {
		m.logger.Debug().Msg("Dispatcher closed, dropping location callback")
	}
}

// subscriptionKeyLocked returns the key of l's subscription on source, assigning
// l an id on first use. m.mu must be held.
func (m *SourceManager) subscriptionKeyLocked(source string, l Listener) string {
	id, ok := m.listenerIDs[l]
	if !ok {
		m.nextID++
		id = m.nextID
		m.listenerIDs[l] = id
	}
	return fmt.Sprintf("%s/%d", source, id)
}

const earthRadiusMeters = 6371008.8

// Distance returns the great-circle distance in metres between two positions.
func Distance(a, b Position) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
