package feedback

import (
	"context"
	"time"
)

// AudioState mirrors the lifecycle of a browser audio context.
type AudioState string

const (
	AudioRunning   AudioState = "running"
	AudioSuspended AudioState = "suspended"
	AudioClosed    AudioState = "closed"
)

// AudioContext is a live audio output. Platforms may hand out contexts in the
// suspended state until the user has interacted with the page.
type AudioContext interface {
	State() AudioState
	Resume(ctx context.Context) error
	// CurrentTime is the context clock in seconds.
	CurrentTime() float64
	Play(t ScheduledTone) error
}

// AudioOutput creates audio contexts.
type AudioOutput interface {
	NewContext() (AudioContext, error)
}

// Haptics drives a vibration motor.
type Haptics interface {
	Vibrate(d time.Duration) error
}
