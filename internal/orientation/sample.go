// Package orientation provides device tilt sources and the sampler that feeds
// normalized orientation samples to the gesture recognizer.
package orientation

import "math"

// Reading is a raw tilt event as delivered by a sensor. Either angle may be
// missing, e.g. while a browser is still warming up its sensor.
type Reading struct {
	Beta        *float64 `json:"beta"`      // front/back tilt in degrees
	Gamma       *float64 `json:"gamma"`     // left/right tilt in degrees
	TimestampMs int64    `json:"timestamp"` // milliseconds, 0 if the source has no clock
}

// Sample is a complete orientation reading.
type Sample struct {
	Beta        float64 `json:"beta"`
	Gamma       float64 `json:"gamma"`
	TimestampMs int64   `json:"timestamp"`
}

// NewReading builds a Reading with both angles present.
func NewReading(beta, gamma float64, timestampMs int64) Reading {
	return Reading{Beta: &beta, Gamma: &gamma, TimestampMs: timestampMs}
}

// Sample converts the reading into a Sample. It returns false if either
// angle is missing or not a finite number.
func (r Reading) Sample() (Sample, bool) {
	if r.Beta == nil || r.Gamma == nil {
		return Sample{}, false
	}

	beta, gamma := *r.Beta, *r.Gamma
	if !finite(beta) || !finite(gamma) {
		return Sample{}, false
	}

	return Sample{Beta: beta, Gamma: gamma, TimestampMs: r.TimestampMs}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
