// Package gesture classifies orientation samples into up/down gestures and
// gates them with a time debounce and a neutral-zone requirement.
package gesture

import (
	"fmt"
	"math"
	"strings"

	"github.com/ayusman/headsup/internal/orientation"
)

// Axis names a tilt angle component.
type Axis string

const (
	// AxisBeta is the front/back tilt.
	AxisBeta Axis = "beta"
	// AxisGamma is the left/right tilt.
	AxisGamma Axis = "gamma"
)

// Valid reports whether a is a known axis.
func (a Axis) Valid() bool {
	return a == AxisBeta || a == AxisGamma
}

// Abs returns the absolute angle of s on this axis.
func (a Axis) Abs(s orientation.Sample) float64 {
	switch a {
	case AxisBeta:
		return math.Abs(s.Beta)
	case AxisGamma:
		return math.Abs(s.Gamma)
	}
	return math.NaN()
}

// Op is a comparison operator.
type Op string

const (
	OpLess      Op = "<"
	OpLessEq    Op = "<="
	OpGreater   Op = ">"
	OpGreaterEq Op = ">="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// Condition compares the absolute angle on one axis with a threshold.
type Condition struct {
	Axis  Axis    `json:"axis" mapstructure:"axis"`
	Op    Op      `json:"op" mapstructure:"op"`
	Value float64 `json:"value" mapstructure:"value"`
}

// Holds reports whether s satisfies the condition.
func (c Condition) Holds(s orientation.Sample) bool {
	v := c.Axis.Abs(s)
	switch c.Op {
	case OpLess:
		return v < c.Value
	case OpLessEq:
		return v <= c.Value
	case OpGreater:
		return v > c.Value
	case OpGreaterEq:
		return v >= c.Value
	}
	return false
}

func (c Condition) String() string {
	return fmt.Sprintf("|%s| %s %g", c.Axis, c.Op, c.Value)
}

// Rule is a conjunction of conditions. An empty rule never matches.
type Rule []Condition

// Matches reports whether every condition holds for s.
func (r Rule) Matches(s orientation.Sample) bool {
	if len(r) == 0 {
		return false
	}
	for _, c := range r {
		if !c.Holds(s) {
			return false
		}
	}
	return true
}

// Uses reports whether any condition constrains axis a.
func (r Rule) Uses(a Axis) bool {
	for _, c := range r {
		if c.Axis == a {
			return true
		}
	}
	return false
}

func (r Rule) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

// interval is the set of absolute angles admitted on one axis.
type interval struct {
	lo, hi         float64
	loOpen, hiOpen bool
}

func fullInterval() interval {
	return interval{lo: 0, hi: math.Inf(1), hiOpen: true}
}

func (iv interval) constrain(c Condition) interval {
	switch c.Op {
	case OpLess:
		if c.Value < iv.hi || (c.Value == iv.hi && !iv.hiOpen) {
			iv.hi, iv.hiOpen = c.Value, true
		}
	case OpLessEq:
		if c.Value < iv.hi {
			iv.hi, iv.hiOpen = c.Value, false
		}
	case OpGreater:
		if c.Value > iv.lo || (c.Value == iv.lo && !iv.loOpen) {
			iv.lo, iv.loOpen = c.Value, true
		}
	case OpGreaterEq:
		if c.Value > iv.lo {
			iv.lo, iv.loOpen = c.Value, false
		}
	}
	return iv
}

func (iv interval) empty() bool {
	if iv.lo > iv.hi {
		return true
	}
	return iv.lo == iv.hi && (iv.loOpen || iv.hiOpen)
}

// overlaps reports whether some sample satisfies every rule at once.
func overlaps(rules ...Rule) bool {
	for _, a := range []Axis{AxisBeta, AxisGamma} {
		iv := fullInterval()
		for _, r := range rules {
			for _, c := range r {
				if c.Axis == a {
					iv = iv.constrain(c)
				}
			}
		}
		if iv.empty() {
			return false
		}
	}
	return true
}
