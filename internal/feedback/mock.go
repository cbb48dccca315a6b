package feedback

import (
	"context"
	"sync"
	"time"
)

// MockAudio is an AudioOutput that records what was played.
type MockAudio struct {
	mu       sync.Mutex
	contexts []*MockContext
	err      error
	initial  AudioState
	panics   bool
}

// NewMockAudio creates a MockAudio whose contexts start in state initial.
func NewMockAudio(initial AudioState) *MockAudio {
	return &MockAudio{initial: initial}
}

// FailWith makes NewContext return err.
func (m *MockAudio) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// PanicOnCreate makes NewContext panic.
func (m *MockAudio) PanicOnCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = true
}

// NewContext returns a new MockContext.
func (m *MockAudio) NewContext() (AudioContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("audio backend unavailable")
	}
	if m.err != nil {
		return nil, m.err
	}
	c := &MockContext{state: m.initial}
	m.contexts = append(m.contexts, c)
	return c, nil
}

// Contexts returns every context created so far.
func (m *MockAudio) Contexts() []*MockContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockContext, len(m.contexts))
	copy(out, m.contexts)
	return out
}

// Played returns the tones played on all contexts.
func (m *MockAudio) Played() []ScheduledTone {
	var out []ScheduledTone
	for _, c := range m.Contexts() {
		out = append(out, c.Played()...)
	}
	return out
}

// MockContext is an AudioContext with a manual clock.
type MockContext struct {
	mu      sync.Mutex
	state   AudioState
	now     float64
	played  []ScheduledTone
	resumes int
	playErr error
	gate    chan struct{}
}

func (c *MockContext) State() AudioState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resume switches the context to running, after the hold gate opens.
func (c *MockContext) Resume(ctx context.Context) error {
	c.mu.Lock()
	c.resumes++
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = AudioRunning
	return nil
}

func (c *MockContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockContext) Play(t ScheduledTone) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playErr != nil {
		return c.playErr
	}
	c.played = append(c.played, t)
	return nil
}

// SetTime sets the context clock.
func (c *MockContext) SetTime(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = seconds
}

// FailPlay makes Play return err.
func (c *MockContext) FailPlay(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playErr = err
}

// HoldResume blocks Resume until release is called.
func (c *MockContext) HoldResume() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gate = gate
	c.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Played returns the tones played so far.
func (c *MockContext) Played() []ScheduledTone {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScheduledTone, len(c.played))
	copy(out, c.played)
	return out
}

// Resumes returns how many times Resume was called.
func (c *MockContext) Resumes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumes
}

// MockHaptics records vibrations.
type MockHaptics struct {
	mu     sync.Mutex
	pulses []time.Duration
	err    error
}

// FailWith makes Vibrate return err.
func (h *MockHaptics) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *MockHaptics) Vibrate(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.pulses = append(h.pulses, d)
	return nil
}

// Pulses returns recorded vibration lengths.
func (h *MockHaptics) Pulses() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.pulses))
	copy(out, h.pulses)
	return out
}
