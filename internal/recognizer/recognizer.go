// Package recognizer turns a stream of orientation samples into up/down
// gestures with audible and haptic feedback.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/headsup/internal/feedback"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
)

// Callback receives each recognized gesture exactly once.
type Callback func(g gesture.Gesture)

// Config holds the collaborators of a Recognizer.
type Config struct {
	Gesture  gesture.Config
	Sampler  *orientation.Sampler
	Feedback *feedback.Emitter // optional
	Logger   *log.Logger

	// OnDecision, if set, observes every sample that reached the gate.
	OnDecision func(orientation.Sample, gesture.Decision)
}

// Status is a diagnostic snapshot.
type Status struct {
	IsActive          bool                   `json:"is_active"`
	HasPermission     *bool                  `json:"has_permission"`
	Permission        orientation.Permission `json:"permission"`
	IsSupported       bool                   `json:"is_supported"`
	WaitingForNeutral bool                   `json:"waiting_for_neutral"`
	LastTriggerAtMs   int64                  `json:"last_trigger_at_ms"`
	Ambiguous         bool                   `json:"ambiguous"`
	AudioState        feedback.AudioState    `json:"audio_state,omitempty"`
	Config            gesture.Config         `json:"config"`
}

// Recognizer owns one sampler subscription and the gate state fed by it.
type Recognizer struct {
	sampler    *orientation.Sampler
	feedback   *feedback.Emitter
	logger     *log.Logger
	onDecision func(orientation.Sample, gesture.Decision)

	mu        sync.Mutex
	cfg       gesture.Config
	ambiguous bool
	state     gesture.State
	callback  Callback
}

// New validates cfg.Gesture and creates a stopped Recognizer. Ambiguous
// threshold sets are accepted with a warning.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Sampler == nil {
		return nil, errors.New("recognizer: sampler is required")
	}
	if err := cfg.Gesture.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	r := &Recognizer{
		sampler:    cfg.Sampler,
		feedback:   cfg.Feedback,
		logger:     cfg.Logger,
		onDecision: cfg.OnDecision,
		cfg:        cfg.Gesture,
		ambiguous:  cfg.Gesture.Ambiguous(),
	}
	r.warnAmbiguous()
	return r, nil
}

func (r *Recognizer) warnAmbiguous() {
	if r.ambiguous {
		r.logger.Printf("gesture config %q: up and down rules overlap, up takes priority", r.cfg.Name)
	}
}

// Start begins listening and routes gestures to cb. On a source without an
// orientation sensor Start does nothing and returns nil. Calling Start again
// while active replaces cb and resets the gate without subscribing twice.
func (r *Recognizer) Start(cb Callback) error {
	if !r.sampler.IsSupported() {
		r.logger.Printf("orientation sensor not supported, recognizer stays inactive")
		return nil
	}

	r.mu.Lock()
	r.callback = cb
	r.state = gesture.Started()
	r.mu.Unlock()

	if err := r.sampler.Start(r.handle); err != nil {
		r.mu.Lock()
		r.state = gesture.State{}
		r.callback = nil
		r.mu.Unlock()

		if errors.Is(err, orientation.ErrUnsupported) {
			r.logger.Printf("orientation sensor not supported, recognizer stays inactive")
			return nil
		}
		return fmt.Errorf("start recognizer: %w", err)
	}

	r.feedback.ResumeAudio()
	return nil
}

// Stop unsubscribes, clears the callback and resets the gate. Samples still
// in flight are discarded.
func (r *Recognizer) Stop() {
	r.sampler.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = gesture.State{}
	r.callback = nil
}

// Reconfigure swaps the threshold set. The gate state is kept, so a pending
// neutral requirement and the debounce window of the last gesture still apply
// under the new thresholds.
func (r *Recognizer) Reconfigure(cfg gesture.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.ambiguous = cfg.Ambiguous()
	r.warnAmbiguous()
	return nil
}

// Config returns the active threshold set.
func (r *Recognizer) Config() gesture.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Status returns a snapshot for diagnostics.
func (r *Recognizer) Status() Status {
	r.mu.Lock()
	st := Status{
		IsActive:          r.state.Active,
		WaitingForNeutral: r.state.WaitingForNeutral,
		LastTriggerAtMs:   r.state.LastTriggerAtMs,
		Ambiguous:         r.ambiguous,
		Config:            r.cfg,
	}
	r.mu.Unlock()

	perm := r.sampler.Permission()
	st.Permission = perm
	st.HasPermission = perm.Bool()
	st.IsSupported = r.sampler.IsSupported()
	st.AudioState = r.feedback.AudioState()
	return st
}

// RequestPermission resumes audio (the request usually comes from a user
// interaction) and asks the source for sensor access. A denial is reported,
// not enforced: Start still works and it is up to the caller to check.
func (r *Recognizer) RequestPermission(ctx context.Context) (orientation.Permission, error) {
	r.feedback.ResumeAudio()
	return r.sampler.RequestPermission(ctx)
}

// PlayCorrect plays the correct cue regardless of whether the recognizer is active.
func (r *Recognizer) PlayCorrect() { r.feedback.PlayCorrect() }

// PlaySkip plays the skip cue.
func (r *Recognizer) PlaySkip() { r.feedback.PlaySkip() }

// PlayGameOver plays the game over cue.
func (r *Recognizer) PlayGameOver() { r.feedback.PlayGameOver() }

// PlayCountdown plays a countdown tick.
func (r *Recognizer) PlayCountdown(final bool) { r.feedback.PlayCountdown(final) }

func (r *Recognizer) handle(s orientation.Sample) {
	r.mu.Lock()
	if !r.state.Active || r.callback == nil {
		r.mu.Unlock()
		return
	}

	dec, next := gesture.Step(r.cfg, r.state, s)
	r.state = next
	cb := r.callback
	r.mu.Unlock()

	if r.onDecision != nil {
		r.onDecision(s, dec)
	}

	if !dec.Fired() {
		return
	}

	if dec.Ambiguous {
		r.logger.Printf("ambiguous sample beta=%.1f gamma=%.1f matched both rules, emitting %s", s.Beta, s.Gamma, dec.Gesture)
	}

	r.feedback.Gesture(dec.Gesture)
	cb(dec.Gesture)
}
