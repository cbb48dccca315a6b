package feedback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/headsup/internal/gesture"
)

// DefaultPulse is the haptic pulse length.
const DefaultPulse = 50 * time.Millisecond

// ErrNoOutput is logged when a cue is requested without an audio output.
var ErrNoOutput = errors.New("no audio output")

// Config configures an Emitter. Audio and Haptics may be nil.
type Config struct {
	Audio    AudioOutput
	Haptics  Haptics
	Pulse    time.Duration
	Envelope Envelope
	Logger   *log.Logger
}

// Emitter plays cues and pulses. Every method is best-effort: failures are
// logged and never returned, so gameplay continues without a feedback
// channel. A nil *Emitter is valid and does nothing.
type Emitter struct {
	audio    AudioOutput
	haptics  Haptics
	pulse    time.Duration
	envelope Envelope
	logger   *log.Logger

	mu       sync.Mutex
	actx     AudioContext
	resuming bool
	wg       sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates an Emitter. The audio context is not created until first use.
func New(cfg Config) *Emitter {
	if cfg.Pulse <= 0 {
		cfg.Pulse = DefaultPulse
	}
	if cfg.Envelope == (Envelope{}) {
		cfg.Envelope = DefaultEnvelope
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Emitter{
		audio:    cfg.Audio,
		haptics:  cfg.Haptics,
		pulse:    cfg.Pulse,
		envelope: cfg.Envelope,
		logger:   cfg.Logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// PlayCorrect plays the rising arpeggio.
func (e *Emitter) PlayCorrect() { e.Play(CueCorrect) }

// PlaySkip plays the falling two-note cue.
func (e *Emitter) PlaySkip() { e.Play(CueSkip) }

// PlayGameOver plays the end-of-round cue.
func (e *Emitter) PlayGameOver() { e.Play(CueGameOver) }

// PlayCountdown plays a countdown tick, or the higher final tick.
func (e *Emitter) PlayCountdown(final bool) {
	if final {
		e.Play(CueCountdownFinal)
		return
	}
	e.Play(CueCountdown)
}

// Gesture plays the cue for g and pulses. Up is a skip, Down is correct.
func (e *Emitter) Gesture(g gesture.Gesture) {
	switch g {
	case gesture.Up:
		e.PlaySkip()
	case gesture.Down:
		e.PlayCorrect()
	default:
		return
	}
	e.Pulse()
}

// Play schedules cue on the shared audio context, starting a resume first if
// the context is suspended. The resume is not awaited.
func (e *Emitter) Play(cue Cue) {
	if e == nil {
		return
	}
	e.safely("play "+string(cue), func() error {
		actx, err := e.context()
		if err != nil {
			return err
		}

		e.resumeIfSuspended(actx)

		for _, t := range Schedule(cue.Tones(), actx.CurrentTime(), e.envelope) {
			if err := actx.Play(t); err != nil {
				return fmt.Errorf("play %.2fHz: %w", t.Frequency, err)
			}
		}
		return nil
	})
}

// Pulse vibrates for the configured pulse length.
func (e *Emitter) Pulse() {
	if e == nil || e.haptics == nil {
		return
	}
	e.safely("vibrate", func() error {
		return e.haptics.Vibrate(e.pulse)
	})
}

// ResumeAudio creates the audio context if needed and resumes it when
// suspended. Callers invoke it from a user interaction so the platform
// allows playback.
func (e *Emitter) ResumeAudio() {
	if e == nil {
		return
	}
	e.safely("resume audio", func() error {
		actx, err := e.context()
		if err != nil {
			return err
		}
		e.resumeIfSuspended(actx)
		return nil
	})
}

// AudioState reports the shared context state, or "" before it exists.
func (e *Emitter) AudioState() AudioState {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	actx := e.actx
	e.mu.Unlock()
	if actx == nil {
		return ""
	}
	return actx.State()
}

// Wait blocks until in-flight resumes have finished.
func (e *Emitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}

// Close cancels in-flight resumes and waits for them.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
}

func (e *Emitter) context() (AudioContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.actx != nil {
		return e.actx, nil
	}
	if e.audio == nil {
		return nil, ErrNoOutput
	}

	actx, err := e.audio.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create audio context: %w", err)
	}
	if actx == nil {
		return nil, ErrNoOutput
	}
	e.actx = actx
	return actx, nil
}

// resumeIfSuspended starts at most one resume at a time.
func (e *Emitter) resumeIfSuspended(actx AudioContext) {
	if actx.State() != AudioSuspended {
		return
	}

	e.mu.Lock()
	if e.resuming {
		e.mu.Unlock()
		return
	}
	e.resuming = true
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			e.resuming = false
			e.mu.Unlock()
		}()
		e.safely("resume audio context", func() error {
			return actx.Resume(e.baseCtx)
		})
	}()
}

func (e *Emitter) safely(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("feedback: %s panicked: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		e.logger.Printf("feedback: %s: %v", what, err)
	}
}
