package calibrate

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
)

func TestParse(t *testing.T) {
	trace := `# recorded on a pixel 7
{"beta": 2, "gamma": 88, "timestamp": 10, "label": "neutral"}

{"beta": 5, "gamma": 30, "timestamp": 20, "label": "up"}
{"beta": 5, "gamma": 30, "timestamp": 30}
{"beta": null, "gamma": 30, "timestamp": 40, "label": "up"}
{"beta": -120, "gamma": 70, "timestamp": 50, "label": "down"}
`
	got, err := Parse(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Labeled{
		{Sample: orientation.Sample{Beta: 2, Gamma: 88, TimestampMs: 10}, Label: "neutral"},
		{Sample: orientation.Sample{Beta: 5, Gamma: 30, TimestampMs: 20}, Label: "up"},
		{Sample: orientation.Sample{Beta: -120, Gamma: 70, TimestampMs: 50}, Label: "down"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse(strings.NewReader("{\"beta\": 1}\nnot json\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Parse(invalid) error = %v, want line 2", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	if err := os.WriteFile(path, []byte(`{"beta": 1, "gamma": 2, "label": "x"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(got) != 1 || got[0].Label != "x" {
		t.Errorf("LoadFile() = %+v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAnalyze(t *testing.T) {
	var samples []Labeled
	for i := 1; i <= 5; i++ {
		samples = append(samples, Labeled{
			Sample: orientation.Sample{Beta: -float64(i), Gamma: 10 * float64(i)},
			Label:  "tilt",
		})
	}
	samples = append(samples, Labeled{Sample: orientation.Sample{Beta: 7, Gamma: 70}, Label: "alone"})

	report, err := Analyze(samples)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	want := Report{Labels: []LabelStats{
		{
			Label: "alone",
			Count: 1,
			Beta:  AxisStats{Mean: 7, Min: 7, P05: 7, Median: 7, P95: 7, Max: 7},
			Gamma: AxisStats{Mean: 70, Min: 70, P05: 70, Median: 70, P95: 70, Max: 70},
		},
		{
			Label: "tilt",
			Count: 5,
			Beta:  AxisStats{Mean: 3, StdDev: math.Sqrt(2.5), Min: 1, P05: 1, Median: 3, P95: 5, Max: 5},
			Gamma: AxisStats{Mean: 30, StdDev: math.Sqrt(250), Min: 10, P05: 10, Median: 30, P95: 50, Max: 50},
		},
	}}
	if diff := cmp.Diff(want, report, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}

	if _, err := Analyze(nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Analyze(nil) error = %v, want ErrNoSamples", err)
	}
}

// landscapeTrace simulates a player holding the phone sideways.
func landscapeTrace(n int) []Labeled {
	rng := rand.New(rand.NewSource(7))
	clamp := func(v float64) float64 { return math.Max(-90, math.Min(90, v)) }

	var out []Labeled
	add := func(label string, beta, betaSD, gamma, gammaSD float64) {
		for i := 0; i < n; i++ {
			out = append(out, Labeled{
				Sample: orientation.Sample{
					Beta:  beta + rng.NormFloat64()*betaSD,
					Gamma: clamp(gamma + rng.NormFloat64()*gammaSD),
				},
				Label: label,
			})
		}
	}
	add(LabelNeutral, 5, 5, 85, 3)
	add(LabelUp, 10, 6, 30, 8)
	add(LabelDown, 110, 10, 75, 5)
	return out
}

func TestSuggest(t *testing.T) {
	samples := landscapeTrace(500)
	report, err := Analyze(samples)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	cfg, err := Suggest(report, gesture.Landscape())
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	if cfg.Name != "landscape-calibrated" || cfg.PrimaryAxis != gesture.AxisGamma || cfg.DebounceMs != 1000 {
		t.Errorf("Suggest() header = %+v", cfg)
	}
	if c := cfg.Up[0]; c.Axis != gesture.AxisGamma || c.Op != gesture.OpLess {
		t.Errorf("up cut = %v, want |gamma| < x", c)
	}
	if c := cfg.Down[0]; c.Axis != gesture.AxisBeta || c.Op != gesture.OpGreater {
		t.Errorf("down cut = %v, want |beta| > x", c)
	}
	if cfg.Ambiguous() {
		t.Errorf("suggested rules overlap: up %s, down %s", cfg.Up, cfg.Down)
	}

	for _, sc := range Evaluate(cfg, samples) {
		if sc.Count != 500 {
			t.Errorf("%s: count = %d, want 500", sc.Label, sc.Count)
		}
		if sc.Rate < 0.85 {
			t.Errorf("%s: hit rate %.2f, want >= 0.85", sc.Label, sc.Rate)
		}
	}
}

func TestSuggest_Errors(t *testing.T) {
	t.Run("missing label", func(t *testing.T) {
		var samples []Labeled
		for _, s := range landscapeTrace(50) {
			if s.Label != LabelDown {
				samples = append(samples, s)
			}
		}
		report, _ := Analyze(samples)
		if _, err := Suggest(report, gesture.Landscape()); err == nil || !strings.Contains(err.Error(), `"down"`) {
			t.Errorf("Suggest() error = %v, want missing down", err)
		}
	})

	t.Run("inseparable", func(t *testing.T) {
		var samples []Labeled
		for _, s := range landscapeTrace(50) {
			if s.Label == LabelNeutral {
				samples = append(samples, s, Labeled{Sample: s.Sample, Label: LabelUp})
			} else if s.Label == LabelDown {
				samples = append(samples, s)
			}
		}
		report, _ := Analyze(samples)
		if _, err := Suggest(report, gesture.Landscape()); !errors.Is(err, ErrInseparable) {
			t.Errorf("Suggest() error = %v, want ErrInseparable", err)
		}
	})
}

func TestEvaluate_Presets(t *testing.T) {
	samples := landscapeTrace(200)

	scores := Evaluate(gesture.Portrait(), samples)
	for _, sc := range scores {
		if sc.Label == LabelUp && sc.Rate > 0.1 {
			t.Errorf("portrait thresholds should not recognize landscape up, rate %.2f", sc.Rate)
		}
	}

	labels := make([]string, len(scores))
	for i, sc := range scores {
		labels[i] = sc.Label
	}
	if diff := cmp.Diff([]string{"down", "neutral", "up"}, labels); diff != "" {
		t.Errorf("score order mismatch (-want +got):\n%s", diff)
	}
}

func TestPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	if err := Plot(landscapeTrace(20), path); err != nil {
		t.Fatalf("Plot() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}

	if err := Plot(nil, path); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Plot(nil) error = %v, want ErrNoSamples", err)
	}
}
