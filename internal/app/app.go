// Package app ties sensor sessions, the active threshold profile and the
// gesture event sinks together.
package app

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/store"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// sinkQueueSize bounds the events waiting for the store and the publisher.
const sinkQueueSize = 64

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store // optional; events and profiles are not persisted without it
	Gesture   gesture.Config
	Publisher Publisher // optional
	Logger    *log.Logger
}

// GestureEvent is a recognized gesture as seen by the event sinks.
type GestureEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Gesture     string    `json:"gesture"`
	TimestampMs int64     `json:"timestamp_ms"`
	Ambiguous   bool      `json:"ambiguous"`
	At          time.Time `json:"at"`
}

// Publisher forwards gesture events to an external system.
type Publisher interface {
	Publish(ev GestureEvent) error
}

// App owns the sessions and the shared recognition settings.
type App struct {
	config Config
	logger *log.Logger

	mu            sync.RWMutex
	enabled       bool
	gestureCfg    gesture.Config
	activeProfile string
	sessions      map[string]*Session
	callbacks     []func(GestureEvent)

	sinkQ     chan GestureEvent
	sinkDone  chan struct{}
	sinkWG    sync.WaitGroup
	closeOnce sync.Once
}

// New creates a new App. Gesture recognition starts enabled. If the store
// has an active profile, its thresholds replace cfg.Gesture.
func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if err := cfg.Gesture.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config:     cfg,
		logger:     cfg.Logger,
		enabled:    true,
		gestureCfg: cfg.Gesture,
		sessions:   make(map[string]*Session),
		sinkQ:      make(chan GestureEvent, sinkQueueSize),
		sinkDone:   make(chan struct{}),
	}

	if err := a.loadSettings(); err != nil {
		return nil, err
	}

	a.sinkWG.Add(1)
	go a.runSinks()

	return a, nil
}

func (a *App) loadSettings() error {
	if a.config.Store == nil {
		return nil
	}
	settings := a.config.Store.Settings()

	if v, err := settings.Get(store.SettingEnabled); err == nil {
		enabled, perr := strconv.ParseBool(v)
		if perr == nil {
			a.enabled = enabled
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load enabled setting: %w", err)
	}

	id, err := settings.Get(store.SettingActiveProfile)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load active profile setting: %w", err)
	}

	p, err := a.config.Store.Profiles().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Printf("active profile %s no longer exists, using %q", id, a.gestureCfg.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load active profile: %w", err)
	}
	if err := p.Config.Validate(); err != nil {
		a.logger.Printf("active profile %s is invalid (%v), using %q", p.Name, err, a.gestureCfg.Name)
		return nil
	}

	a.gestureCfg = p.Config
	a.activeProfile = p.ID
	a.logger.Printf("Loaded threshold profile %q", p.Name)
	return nil
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// SetEnabled enables or disables gesture recognition for every session.
// Sessions that were started keep their intent and resume when re-enabled.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	sessions := a.sessionList()
	a.mu.Unlock()

	for _, s := range sessions {
		s.applyEnabled(enabled)
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
			a.logger.Printf("Failed to persist enabled setting: %v", err)
		}
	}
}

// IsEnabled returns whether gesture recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// GestureConfig returns the thresholds applied to new sessions.
func (a *App) GestureConfig() gesture.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gestureCfg
}

// ActiveProfile returns the ID of the active profile, or "" when the
// built-in config is in use.
func (a *App) ActiveProfile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeProfile
}

// ActivateProfile switches every session to the thresholds of a stored
// profile and remembers the choice.
func (a *App) ActivateProfile(id string) error {
	if a.config.Store == nil {
		return errors.New("no store configured")
	}

	p, err := a.config.Store.Profiles().GetByID(id)
	if err != nil {
		return err
	}
	if err := a.SetGestureConfig(p.Config); err != nil {
		return err
	}

	if err := a.config.Store.Settings().Set(store.SettingActiveProfile, p.ID); err != nil {
		return fmt.Errorf("failed to persist active profile: %w", err)
	}

	a.mu.Lock()
	a.activeProfile = p.ID
	a.mu.Unlock()

	a.logger.Printf("Activated threshold profile %q", p.Name)
	return nil
}

// SetGestureConfig applies cfg to the app and every open session.
func (a *App) SetGestureConfig(cfg gesture.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	a.gestureCfg = cfg
	a.activeProfile = ""
	sessions := a.sessionList()
	a.mu.Unlock()

	for _, s := range sessions {
		if err := s.rec.Reconfigure(cfg); err != nil {
			return fmt.Errorf("reconfigure session %s: %w", s.ID, err)
		}
	}
	return nil
}

// RegisterGestureCallback adds fn to the listeners called for every gesture.
func (a *App) RegisterGestureCallback(fn func(GestureEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// Session returns the session with the given ID.
func (a *App) Session(id string) (*Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Sessions returns all open sessions, oldest first.
func (a *App) Sessions() []*Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionList()
}

// sessionList must be called with a.mu held.
func (a *App) sessionList() []*Session {
	list := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// CloseSession stops and forgets a session.
func (a *App) CloseSession(id string) error {
	a.mu.Lock()
	s, ok := a.sessions[id]
	delete(a.sessions, id)
	a.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	a.logger.Printf("Session %s closed", id)
	return nil
}

// Close stops every session and waits for queued events to reach the
// store and the publisher.
func (a *App) Close() {
	a.mu.Lock()
	sessions := a.sessionList()
	a.sessions = make(map[string]*Session)
	a.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}

	a.closeOnce.Do(func() { close(a.sinkDone) })
	a.sinkWG.Wait()
}

// dispatch hands a gesture to the sink worker and calls the listeners. The
// store and the publisher may block, so they never run on the source's
// delivery goroutine.
func (a *App) dispatch(ev GestureEvent) {
	select {
	case a.sinkQ <- ev:
	default:
		a.logger.Printf("Gesture sink queue full, dropping event %s", ev.ID)
	}

	a.mu.RLock()
	callbacks := make([]func(GestureEvent), len(a.callbacks))
	copy(callbacks, a.callbacks)
	a.mu.RUnlock()

	for _, fn := range callbacks {
		fn(ev)
	}
}

func (a *App) runSinks() {
	defer a.sinkWG.Done()
	for {
		select {
		case ev := <-a.sinkQ:
			a.sink(ev)
		case <-a.sinkDone:
			for {
				select {
				case ev := <-a.sinkQ:
					a.sink(ev)
				default:
					return
				}
			}
		}
	}
}

// sink records ev and forwards it to the publisher.
func (a *App) sink(ev GestureEvent) {
	if a.config.Store != nil {
		err := a.config.Store.Events().Create(&store.Event{
			ID:          ev.ID,
			SessionID:   ev.SessionID,
			Gesture:     ev.Gesture,
			TimestampMs: ev.TimestampMs,
			Ambiguous:   ev.Ambiguous,
			CreatedAt:   ev.At,
		})
		if err != nil {
			a.logger.Printf("Failed to record gesture event: %v", err)
		}
	}

	if a.config.Publisher != nil {
		if err := a.config.Publisher.Publish(ev); err != nil {
			a.logger.Printf("Failed to publish gesture event: %v", err)
		}
	}
}

func newID() string {
	return uuid.NewString()
}
