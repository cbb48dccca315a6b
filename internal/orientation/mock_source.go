package orientation

import (
	"context"
	"sync"
)

// MockSource is a scripted Source for tests. Readings are pushed with Emit
// and delivered synchronously to every current subscriber.
type MockSource struct {
	mu        sync.Mutex
	supported bool
	subs      map[int]func(Reading)
	nextID    int
	total     int

	requireConsent bool
	granted        bool
	permErr        error
	permGate       chan struct{}
}

// NewMockSource creates a supported MockSource without a consent gate.
func NewMockSource() *MockSource {
	return &MockSource{
		supported: true,
		subs:      make(map[int]func(Reading)),
	}
}

// SetSupported changes what Supported reports.
func (m *MockSource) SetSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supported = supported
}

// Supported reports the configured capability.
func (m *MockSource) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

// Subscribe registers fn until the returned cancel func is called.
func (m *MockSource) Subscribe(fn func(Reading)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.total++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

// Emit delivers r to every subscriber in registration order.
func (m *MockSource) Emit(r Reading) {
	m.mu.Lock()
	fns := make([]func(Reading), 0, len(m.subs))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

// EmitAngles is a shorthand for Emit(NewReading(beta, gamma, ts)).
func (m *MockSource) EmitAngles(beta, gamma float64, ts int64) {
	m.Emit(NewReading(beta, gamma, ts))
}

// Subscribers returns the number of active subscriptions.
func (m *MockSource) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// TotalSubscriptions returns how many times Subscribe has been called.
func (m *MockSource) TotalSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// RequireConsent turns the mock into a PermissionRequester-gated source that
// answers with granted and err.
func (m *MockSource) RequireConsent(granted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireConsent = true
	m.granted = granted
	m.permErr = err
}

// HoldPermission makes RequestPermission block until the returned func is
// called, so tests can observe a pending request.
func (m *MockSource) HoldPermission() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.permGate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// RequestPermission answers with the configured consent result. Without
// RequireConsent it grants immediately.
func (m *MockSource) RequestPermission(ctx context.Context) (bool, error) {
	m.mu.Lock()
	gate := m.permGate
	requireConsent, granted, err := m.requireConsent, m.granted, m.permErr
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if !requireConsent {
		return true, nil
	}
	return granted, err
}
