// Package feedback plays the audible and haptic cues that accompany
// recognized gestures.
package feedback

import (
	"fmt"
	"time"
)

// Waveform is an oscillator shape.
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Triangle Waveform = "triangle"
)

// Tone is one note of a cue, relative to the cue start.
type Tone struct {
	Frequency float64 // Hz
	Offset    time.Duration
	Duration  time.Duration
	Waveform  Waveform
}

// Cue names a tone sequence.
type Cue string

const (
	CueCorrect        Cue = "correct"
	CueSkip           Cue = "skip"
	CueGameOver       Cue = "gameover"
	CueCountdown      Cue = "countdown"
	CueCountdownFinal Cue = "countdown-final"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

var cues = map[Cue][]Tone{
	// rising C major arpeggio
	CueCorrect: {
		{Frequency: 523.25, Offset: 0, Duration: ms(100), Waveform: Sine},
		{Frequency: 659.25, Offset: ms(100), Duration: ms(100), Waveform: Sine},
		{Frequency: 783.99, Offset: ms(200), Duration: ms(200), Waveform: Sine},
	},
	// falling G4 to Eb4
	CueSkip: {
		{Frequency: 392.00, Offset: 0, Duration: ms(150), Waveform: Triangle},
		{Frequency: 311.13, Offset: ms(150), Duration: ms(300), Waveform: Triangle},
	},
	CueGameOver: {
		{Frequency: 880, Offset: 0, Duration: ms(100), Waveform: Square},
		{Frequency: 698.46, Offset: ms(100), Duration: ms(100), Waveform: Square},
		{Frequency: 523.25, Offset: ms(200), Duration: ms(400), Waveform: Square},
	},
	CueCountdown: {
		{Frequency: 440, Offset: 0, Duration: ms(100), Waveform: Sine},
	},
	CueCountdownFinal: {
		{Frequency: 880, Offset: 0, Duration: ms(100), Waveform: Square},
	},
}

// ParseCue validates a cue name.
func ParseCue(s string) (Cue, error) {
	c := Cue(s)
	if _, ok := cues[c]; !ok {
		return "", fmt.Errorf("unknown cue %q", s)
	}
	return c, nil
}

// Tones returns a copy of the cue's tone sequence.
func (c Cue) Tones() []Tone {
	src := cues[c]
	out := make([]Tone, len(src))
	copy(out, src)
	return out
}

// Envelope shapes the gain of every tone: silence at the start, a linear
// attack to Peak, then an exponential decay to Floor at the end of the tone.
type Envelope struct {
	Peak   float64
	Attack time.Duration
	Floor  float64
}

// DefaultEnvelope is the envelope used when none is configured.
var DefaultEnvelope = Envelope{Peak: 0.3, Attack: ms(50), Floor: 0.01}

// ScheduledTone is a tone placed on an audio context's clock.
type ScheduledTone struct {
	Frequency float64  `json:"frequency"`
	Waveform  Waveform `json:"waveform"`
	StartAt   float64  `json:"start_at"` // context seconds
	Duration  float64  `json:"duration"` // seconds
	Peak      float64  `json:"peak"`
	Attack    float64  `json:"attack"` // seconds
	Floor     float64  `json:"floor"`
}

// Schedule places tones on a clock starting at now (seconds).
func Schedule(tones []Tone, now float64, env Envelope) []ScheduledTone {
	out := make([]ScheduledTone, len(tones))
	for i, t := range tones {
		out[i] = ScheduledTone{
			Frequency: t.Frequency,
			Waveform:  t.Waveform,
			StartAt:   now + t.Offset.Seconds(),
			Duration:  t.Duration.Seconds(),
			Peak:      env.Peak,
			Attack:    env.Attack.Seconds(),
			Floor:     env.Floor,
		}
	}
	return out
}
