package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/headsup/internal/feedback"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
	"github.com/ayusman/headsup/internal/recognizer"
)

// SessionOptions describes the devices behind a session.
type SessionOptions struct {
	Kind      string // transport name for display, e.g. "ws" or "mqtt"
	Source    orientation.Source
	Audio     feedback.AudioOutput // optional
	Haptics   feedback.Haptics     // optional
	OnGesture func(gesture.Gesture)
}

// Session is one sensor source with its own recognizer.
type Session struct {
	ID        string
	Kind      string
	CreatedAt time.Time

	app       *App
	rec       *recognizer.Recognizer
	emitter   *feedback.Emitter
	onGesture func(gesture.Gesture)

	mu          sync.Mutex
	wanted      bool
	gestures    int
	lastGesture gesture.Gesture
	lastAt      time.Time
	firedTs     int64
	firedAmbig  bool
}

// SessionStatus is a snapshot of a session for the API.
type SessionStatus struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	CreatedAt     time.Time         `json:"created_at"`
	Listening     bool              `json:"listening"`
	Gestures      int               `json:"gestures"`
	LastGesture   string            `json:"last_gesture,omitempty"`
	LastGestureAt *time.Time        `json:"last_gesture_at,omitempty"`
	Recognizer    recognizer.Status `json:"recognizer"`
}

// NewSession creates a stopped session using the app's current thresholds.
func (a *App) NewSession(opts SessionOptions) (*Session, error) {
	s := &Session{
		ID:        newID(),
		Kind:      opts.Kind,
		CreatedAt: time.Now(),
		app:       a,
		onGesture: opts.OnGesture,
		emitter: feedback.New(feedback.Config{
			Audio:   opts.Audio,
			Haptics: opts.Haptics,
			Logger:  a.logger,
		}),
	}

	rec, err := recognizer.New(recognizer.Config{
		Gesture:    a.GestureConfig(),
		Sampler:    orientation.NewSampler(opts.Source),
		Feedback:   s.emitter,
		Logger:     a.logger,
		OnDecision: s.observe,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	s.rec = rec

	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()

	a.logger.Printf("Session %s opened (%s)", s.ID, s.Kind)
	return s, nil
}

// Recognizer returns the session's recognizer.
func (s *Session) Recognizer() *recognizer.Recognizer {
	return s.rec
}

// Start begins listening. While the app is disabled the intent is kept and
// listening begins once it is re-enabled.
func (s *Session) Start() error {
	s.mu.Lock()
	s.wanted = true
	s.mu.Unlock()

	if !s.app.IsEnabled() {
		s.app.logger.Printf("Session %s: recognition disabled, start deferred", s.ID)
		return nil
	}
	return s.rec.Start(s.handle)
}

// Stop ceases listening.
func (s *Session) Stop() {
	s.mu.Lock()
	s.wanted = false
	s.mu.Unlock()

	s.rec.Stop()
}

func (s *Session) applyEnabled(enabled bool) {
	s.mu.Lock()
	wanted := s.wanted
	s.mu.Unlock()

	if !wanted {
		return
	}
	if !enabled {
		s.rec.Stop()
		return
	}
	if err := s.rec.Start(s.handle); err != nil {
		s.app.logger.Printf("Session %s: failed to resume: %v", s.ID, err)
	}
}

// RequestPermission asks the session's source for sensor access.
func (s *Session) RequestPermission(ctx context.Context) (orientation.Permission, error) {
	return s.rec.RequestPermission(ctx)
}

// Play plays cue on the session's audio output.
func (s *Session) Play(cue feedback.Cue) error {
	switch cue {
	case feedback.CueCorrect:
		s.rec.PlayCorrect()
	case feedback.CueSkip:
		s.rec.PlaySkip()
	case feedback.CueGameOver:
		s.rec.PlayGameOver()
	case feedback.CueCountdown:
		s.rec.PlayCountdown(false)
	case feedback.CueCountdownFinal:
		s.rec.PlayCountdown(true)
	default:
		return fmt.Errorf("unknown cue %q", cue)
	}
	return nil
}

// ResumeAudio resumes the session's audio output.
func (s *Session) ResumeAudio() {
	s.emitter.ResumeAudio()
}

// Status returns a snapshot of the session.
func (s *Session) Status() SessionStatus {
	st := SessionStatus{
		ID:         s.ID,
		Kind:       s.Kind,
		CreatedAt:  s.CreatedAt,
		Recognizer: s.rec.Status(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Listening = s.wanted
	st.Gestures = s.gestures
	if s.lastGesture != gesture.None {
		st.LastGesture = string(s.lastGesture)
		at := s.lastAt
		st.LastGestureAt = &at
	}
	return st
}

func (s *Session) close() {
	s.Stop()
	s.emitter.Close()
}

// observe runs before the recognizer callback and remembers the sample
// behind the gesture about to be delivered.
func (s *Session) observe(sample orientation.Sample, dec gesture.Decision) {
	if !dec.Fired() {
		return
	}
	s.mu.Lock()
	s.firedTs = sample.TimestampMs
	s.firedAmbig = dec.Ambiguous
	s.mu.Unlock()
}

func (s *Session) handle(g gesture.Gesture) {
	now := time.Now()

	s.mu.Lock()
	s.gestures++
	s.lastGesture = g
	s.lastAt = now
	ev := GestureEvent{
		ID:          newID(),
		SessionID:   s.ID,
		Gesture:     string(g),
		TimestampMs: s.firedTs,
		Ambiguous:   s.firedAmbig,
		At:          now,
	}
	s.mu.Unlock()

	if s.onGesture != nil {
		s.onGesture(g)
	}
	s.app.dispatch(ev)
}
