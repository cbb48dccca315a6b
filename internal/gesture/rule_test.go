package gesture

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/headsup/internal/orientation"
)

func sample(beta, gamma float64, ts int64) orientation.Sample {
	return orientation.Sample{Beta: beta, Gamma: gamma, TimestampMs: ts}
}

func TestCondition_Holds(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		s    orientation.Sample
		want bool
	}{
		{"less passes", Condition{AxisGamma, OpLess, 65}, sample(0, 10, 0), true},
		{"less uses absolute value", Condition{AxisGamma, OpLess, 65}, sample(0, -70, 0), false},
		{"less is strict", Condition{AxisGamma, OpLess, 65}, sample(0, 65, 0), false},
		{"less-eq includes bound", Condition{AxisGamma, OpLessEq, 90}, sample(0, -90, 0), true},
		{"greater on beta", Condition{AxisBeta, OpGreater, 50}, sample(-120, 0, 0), true},
		{"greater is strict", Condition{AxisBeta, OpGreater, 50}, sample(50, 0, 0), false},
		{"greater-eq includes bound", Condition{AxisBeta, OpGreaterEq, 50}, sample(50, 0, 0), true},
		{"unknown op never holds", Condition{AxisBeta, Op("=="), 0}, sample(0, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Holds(tt.s); got != tt.want {
				t.Errorf("%v.Holds(%+v) = %v, want %v", tt.cond, tt.s, got, tt.want)
			}
		})
	}
}

func TestRule_Matches(t *testing.T) {
	up := Landscape().Up

	if !up.Matches(sample(0, 10, 0)) {
		t.Error("landscape up should match a sample tipped far from rest")
	}
	if up.Matches(sample(60, 10, 0)) {
		t.Error("secondary axis bound should reject |beta| 60")
	}
	if (Rule{}).Matches(sample(0, 0, 0)) {
		t.Error("empty rule must never match")
	}
}

func TestRule_String(t *testing.T) {
	got := Landscape().Up.String()
	want := "|gamma| < 65 && |beta| < 55"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	cfg := Landscape()

	tests := []struct {
		name          string
		s             orientation.Sample
		wantGesture   Gesture
		wantAmbiguous bool
	}{
		{"rest", sample(5, 85, 0), None, false},
		{"up", sample(0, 10, 0), Up, false},
		{"down", sample(120, 75, 0), Down, false},
		{"overlap band prefers up", sample(52, 62, 0), Up, true},
		{"incidental primary crossing", sample(80, 20, 0), None, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, amb := Classify(cfg, tt.s)
			if g != tt.wantGesture || amb != tt.wantAmbiguous {
				t.Errorf("Classify(%+v) = (%v, %v), want (%v, %v)", tt.s, g, amb, tt.wantGesture, tt.wantAmbiguous)
			}
		})
	}
}

func TestConfig_Ambiguous(t *testing.T) {
	if !Landscape().Ambiguous() {
		t.Error("landscape preset overlaps at |gamma| 60-65, |beta| 50-55 and should be ambiguous")
	}
	if Portrait().Ambiguous() {
		t.Error("portrait preset should be disjoint")
	}

	touching := Config{
		PrimaryAxis: AxisGamma,
		Up:          Rule{{AxisGamma, OpLess, 60}},
		Down:        Rule{{AxisGamma, OpGreaterEq, 60}},
	}
	if touching.Ambiguous() {
		t.Error("rules meeting at an excluded bound should not overlap")
	}

	closed := Config{
		PrimaryAxis: AxisGamma,
		Up:          Rule{{AxisGamma, OpLessEq, 60}},
		Down:        Rule{{AxisGamma, OpGreaterEq, 60}},
	}
	if !closed.Ambiguous() {
		t.Error("rules sharing an included bound should overlap")
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q) error = %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad primary axis", func(c *Config) { c.PrimaryAxis = "alpha" }},
		{"negative debounce", func(c *Config) { c.DebounceMs = -1 }},
		{"empty up", func(c *Config) { c.Up = nil }},
		{"empty neutral", func(c *Config) { c.Neutral = Rule{} }},
		{"unknown op", func(c *Config) { c.Down = Rule{{AxisGamma, Op("!="), 10}} }},
		{"unknown axis", func(c *Config) { c.Neutral = Rule{{Axis("alpha"), OpLess, 10}} }},
		{"negative threshold", func(c *Config) { c.Up = Rule{{AxisGamma, OpLess, -5}} }},
		{"NaN threshold", func(c *Config) { c.Up = Rule{{AxisGamma, OpLess, math.NaN()}} }},
		{"no primary condition", func(c *Config) { c.Down = Rule{{AxisBeta, OpGreater, 50}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Landscape()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestPreset(t *testing.T) {
	if diff := cmp.Diff([]string{"landscape", "portrait"}, PresetNames()); diff != "" {
		t.Errorf("PresetNames() mismatch (-want +got):\n%s", diff)
	}

	cfg, err := Preset(DefaultPreset)
	if err != nil {
		t.Fatalf("Preset(default) error = %v", err)
	}
	if diff := cmp.Diff(Landscape(), cfg); diff != "" {
		t.Errorf("default preset mismatch (-want +got):\n%s", diff)
	}

	if _, err := Preset("upside-down"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Preset(unknown) error = %v, want ErrInvalidConfig", err)
	}

	if got := Portrait().Debounce().Milliseconds(); got != 800 {
		t.Errorf("portrait debounce = %dms, want 800", got)
	}
}
