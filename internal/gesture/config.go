package gesture

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidConfig is returned by Validate for structurally broken configs.
var ErrInvalidConfig = errors.New("invalid gesture config")

// Config is an immutable threshold set for one device orientation.
type Config struct {
	Name        string `json:"name" mapstructure:"name"`
	PrimaryAxis Axis   `json:"primary_axis" mapstructure:"primary_axis"`
	Up          Rule   `json:"up" mapstructure:"up"`
	Down        Rule   `json:"down" mapstructure:"down"`
	Neutral     Rule   `json:"neutral" mapstructure:"neutral"`
	DebounceMs  int64  `json:"debounce_ms" mapstructure:"debounce_ms"`
}

// DefaultPreset is the preset used when nothing else is configured.
const DefaultPreset = "landscape"

// Landscape returns thresholds for a phone held sideways against the forehead.
// Gamma reads about 90 at rest; tipping the screen up or down pulls it toward 0
// while beta swings to the side the player tilts.
func Landscape() Config {
	return Config{
		Name:        "landscape",
		PrimaryAxis: AxisGamma,
		Up: Rule{
			{Axis: AxisGamma, Op: OpLess, Value: 65},
			{Axis: AxisBeta, Op: OpLess, Value: 55},
		},
		Down: Rule{
			{Axis: AxisBeta, Op: OpGreater, Value: 50},
			{Axis: AxisGamma, Op: OpGreater, Value: 60},
		},
		Neutral: Rule{
			{Axis: AxisGamma, Op: OpGreater, Value: 70},
			{Axis: AxisGamma, Op: OpLessEq, Value: 90},
			{Axis: AxisBeta, Op: OpLess, Value: 30},
		},
		DebounceMs: 1000,
	}
}

// Portrait returns thresholds for a phone held upright against the forehead.
// Beta reads about 90 at rest.
func Portrait() Config {
	return Config{
		Name:        "portrait",
		PrimaryAxis: AxisBeta,
		Up: Rule{
			{Axis: AxisBeta, Op: OpGreater, Value: 145},
			{Axis: AxisGamma, Op: OpLess, Value: 40},
		},
		Down: Rule{
			{Axis: AxisBeta, Op: OpLess, Value: 35},
			{Axis: AxisGamma, Op: OpLess, Value: 40},
		},
		Neutral: Rule{
			{Axis: AxisBeta, Op: OpGreater, Value: 70},
			{Axis: AxisBeta, Op: OpLess, Value: 110},
			{Axis: AxisGamma, Op: OpLess, Value: 30},
		},
		DebounceMs: 800,
	}
}

var presets = map[string]func() Config{
	"landscape": Landscape,
	"portrait":  Portrait,
}

// Preset returns the named built-in config.
func Preset(name string) (Config, error) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return fn(), nil
}

// PresetNames lists the built-in configs in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Debounce returns the debounce window as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Ambiguous reports whether a single sample can satisfy both the up and the
// down rule. Classification still works for ambiguous configs; Up wins.
func (c Config) Ambiguous() bool {
	if len(c.Up) == 0 || len(c.Down) == 0 {
		return false
	}
	return overlaps(c.Up, c.Down)
}

// Validate checks that the config can be evaluated.
func (c Config) Validate() error {
	if !c.PrimaryAxis.Valid() {
		return fmt.Errorf("%w: primary axis %q", ErrInvalidConfig, c.PrimaryAxis)
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("%w: negative debounce %d", ErrInvalidConfig, c.DebounceMs)
	}

	rules := []struct {
		name string
		rule Rule
	}{
		{"up", c.Up},
		{"down", c.Down},
		{"neutral", c.Neutral},
	}
	for _, r := range rules {
		if len(r.rule) == 0 {
			return fmt.Errorf("%w: %s rule is empty", ErrInvalidConfig, r.name)
		}
		for i, cond := range r.rule {
			if err := validateCondition(cond); err != nil {
				return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidConfig, r.name, i, err)
			}
		}
	}

	if !c.Up.Uses(c.PrimaryAxis) {
		return fmt.Errorf("%w: up rule has no %s condition", ErrInvalidConfig, c.PrimaryAxis)
	}
	if !c.Down.Uses(c.PrimaryAxis) {
		return fmt.Errorf("%w: down rule has no %s condition", ErrInvalidConfig, c.PrimaryAxis)
	}

	return nil
}

func validateCondition(c Condition) error {
	if !c.Axis.Valid() {
		return fmt.Errorf("unknown axis %q", c.Axis)
	}
	if !c.Op.Valid() {
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) || c.Value < 0 {
		return fmt.Errorf("threshold %v must be a finite non-negative angle", c.Value)
	}
	return nil
}
