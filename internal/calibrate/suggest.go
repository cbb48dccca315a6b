package calibrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/headsup/internal/gesture"
)

// guardMargin widens the secondary-axis guards beyond what was recorded.
const guardMargin = 5

// ErrInseparable is returned when a gesture cannot be told apart from the
// neutral pose on either axis.
var ErrInseparable = errors.New("gesture overlaps neutral on both axes")

// Suggest proposes a threshold set from a report with up, down and neutral
// labels. Each gesture is cut from neutral at the midpoint of the widest gap
// between their 5th/95th percentiles, and capped on the other axis a little
// above the range the gesture was recorded in. Primary axis and debounce come from
// base.
func Suggest(r Report, base gesture.Config) (gesture.Config, error) {
	neutral, ok := r.Label(LabelNeutral)
	if !ok {
		return gesture.Config{}, fmt.Errorf("trace has no %q samples", LabelNeutral)
	}

	cfg := gesture.Config{
		Name:        base.Name + "-calibrated",
		PrimaryAxis: base.PrimaryAxis,
		DebounceMs:  base.DebounceMs,
	}

	for _, label := range []string{LabelUp, LabelDown} {
		g, ok := r.Label(label)
		if !ok {
			return gesture.Config{}, fmt.Errorf("trace has no %q samples", label)
		}
		rule, err := gestureRule(g, neutral)
		if err != nil {
			return gesture.Config{}, fmt.Errorf("%s: %w", label, err)
		}
		if label == LabelUp {
			cfg.Up = rule
		} else {
			cfg.Down = rule
		}
	}

	p := neutral.Axis(cfg.PrimaryAxis)
	s := neutral.Axis(other(cfg.PrimaryAxis))
	cfg.Neutral = gesture.Rule{
		{Axis: cfg.PrimaryAxis, Op: gesture.OpGreaterEq, Value: round(p.P05)},
		{Axis: cfg.PrimaryAxis, Op: gesture.OpLessEq, Value: round(p.Max)},
		{Axis: other(cfg.PrimaryAxis), Op: gesture.OpLessEq, Value: round(s.P95)},
	}

	if err := cfg.Validate(); err != nil {
		return gesture.Config{}, err
	}
	return cfg, nil
}

func gestureRule(g, neutral LabelStats) (gesture.Rule, error) {
	best := gesture.Condition{}
	bestGap := math.Inf(-1)

	for _, axis := range []gesture.Axis{gesture.AxisBeta, gesture.AxisGamma} {
		ga, na := g.Axis(axis), neutral.Axis(axis)

		var gap float64
		var c gesture.Condition
		if ga.Median > na.Median {
			gap = ga.P05 - na.P95
			c = gesture.Condition{Axis: axis, Op: gesture.OpGreater, Value: round((ga.P05 + na.P95) / 2)}
		} else {
			gap = na.P05 - ga.P95
			c = gesture.Condition{Axis: axis, Op: gesture.OpLess, Value: round((ga.P95 + na.P05) / 2)}
		}
		if gap > bestGap {
			best, bestGap = c, gap
		}
	}

	if bestGap <= 0 {
		return nil, ErrInseparable
	}

	guardAxis := other(best.Axis)
	guard := gesture.Condition{
		Axis:  guardAxis,
		Op:    gesture.OpLess,
		Value: round(g.Axis(guardAxis).P95 + guardMargin),
	}
	return gesture.Rule{best, guard}, nil
}

func other(a gesture.Axis) gesture.Axis {
	if a == gesture.AxisBeta {
		return gesture.AxisGamma
	}
	return gesture.AxisBeta
}

// round keeps thresholds to half degrees.
func round(v float64) float64 {
	return math.Round(v*2) / 2
}

// Score is how often samples of one label were classified as that label.
type Score struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Hits  int     `json:"hits"`
	Rate  float64 `json:"rate"`
}

// Evaluate classifies every labeled sample with cfg, without the gate, and
// scores each of the up, down and neutral labels.
func Evaluate(cfg gesture.Config, samples []Labeled) []Score {
	scores := []Score{{Label: LabelDown}, {Label: LabelNeutral}, {Label: LabelUp}}
	index := map[string]*Score{
		LabelDown:    &scores[0],
		LabelNeutral: &scores[1],
		LabelUp:      &scores[2],
	}

	for _, s := range samples {
		sc, ok := index[s.Label]
		if !ok {
			continue
		}
		sc.Count++

		g, _ := gesture.Classify(cfg, s.Sample)
		switch s.Label {
		case LabelNeutral:
			if gesture.IsNeutral(cfg, s.Sample) && g == gesture.None {
				sc.Hits++
			}
		default:
			if string(g) == s.Label {
				sc.Hits++
			}
		}
	}

	for i := range scores {
		if scores[i].Count > 0 {
			scores[i].Rate = float64(scores[i].Hits) / float64(scores[i].Count)
		}
	}
	return scores
}
