package gesture

import "github.com/ayusman/headsup/internal/orientation"

// Gesture is a recognized tilt direction.
type Gesture string

const (
	// None means no gesture.
	None Gesture = ""
	// Up is the tilt toward the sky; the game treats it as a skip.
	Up Gesture = "up"
	// Down is the tilt toward the floor; the game treats it as correct.
	Down Gesture = "down"
)

func (g Gesture) String() string {
	if g == None {
		return "none"
	}
	return string(g)
}

// Classify tests the up rule, then the down rule. ambiguous is true when both
// matched; Up is returned in that case.
func Classify(cfg Config, s orientation.Sample) (g Gesture, ambiguous bool) {
	up := cfg.Up.Matches(s)
	down := cfg.Down.Matches(s)

	switch {
	case up:
		return Up, down
	case down:
		return Down, false
	}
	return None, false
}

// IsNeutral reports whether s lies in the rest band.
func IsNeutral(cfg Config, s orientation.Sample) bool {
	return cfg.Neutral.Matches(s)
}
