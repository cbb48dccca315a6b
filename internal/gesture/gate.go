package gesture

import "github.com/ayusman/headsup/internal/orientation"

// State is the recognizer state carried between samples.
type State struct {
	Active            bool  `json:"active"`
	WaitingForNeutral bool  `json:"waiting_for_neutral"`
	LastTriggerAtMs   int64 `json:"last_trigger_at_ms"`
}

// Started returns the state of a freshly started recognizer.
func Started() State {
	return State{Active: true}
}

// Decision describes what one sample did.
type Decision struct {
	Gesture        Gesture // gesture emitted by this sample, None otherwise
	Ambiguous      bool    // both rules matched and Up won
	Debounced      bool    // a rule matched inside the debounce window
	NeutralReached bool    // the sample cleared the neutral gate
}

// Fired reports whether the sample emitted a gesture.
func (d Decision) Fired() bool {
	return d.Gesture != None
}

// Step advances st by one sample. Inactive states are returned unchanged.
//
// While waiting for neutral only the neutral rule is evaluated. Otherwise the
// sample is classified and a match fires unless it falls inside the debounce
// window measured from the last trigger. A zero LastTriggerAtMs means nothing
// has fired yet, so the first qualifying sample always fires.
func Step(cfg Config, st State, s orientation.Sample) (Decision, State) {
	if !st.Active {
		return Decision{}, st
	}

	if st.WaitingForNeutral {
		if !IsNeutral(cfg, s) {
			return Decision{}, st
		}
		st.WaitingForNeutral = false
		return Decision{NeutralReached: true}, st
	}

	g, ambiguous := Classify(cfg, s)
	if g == None {
		return Decision{}, st
	}

	if st.LastTriggerAtMs != 0 && s.TimestampMs-st.LastTriggerAtMs < cfg.DebounceMs {
		return Decision{Debounced: true, Ambiguous: ambiguous}, st
	}

	st.WaitingForNeutral = true
	st.LastTriggerAtMs = s.TimestampMs
	return Decision{Gesture: g, Ambiguous: ambiguous}, st
}
