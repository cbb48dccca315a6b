// Package calibrate computes per-label tilt statistics from recorded,
// labeled orientation traces and proposes threshold sets from them.
package calibrate

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
)

// Labels used by Suggest. Traces may carry any other label too.
const (
	LabelUp      = "up"
	LabelDown    = "down"
	LabelNeutral = "neutral"
)

// ErrNoSamples is returned when a trace has no complete labeled sample.
var ErrNoSamples = errors.New("no labeled samples")

// Labeled is a complete sample tagged with the pose the user was holding.
type Labeled struct {
	orientation.Sample
	Label string `json:"label"`
}

type labeledLine struct {
	orientation.Reading
	Label string `json:"label"`
}

// Parse reads a JSON-lines trace of readings with a label field. Blank and
// '#' lines are skipped, as are readings that are unlabeled or incomplete.
func Parse(r io.Reader) ([]Labeled, error) {
	var out []Labeled

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var l labeledLine
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, ok := l.Reading.Sample()
		if !ok || l.Label == "" {
			continue
		}
		out = append(out, Labeled{Sample: s, Label: l.Label})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFile parses the trace at path.
func LoadFile(path string) ([]Labeled, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	samples, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return samples, nil
}

// AxisStats summarizes the absolute angle of one axis.
type AxisStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P05    float64 `json:"p05"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// LabelStats holds the statistics of every sample sharing a label.
type LabelStats struct {
	Label string    `json:"label"`
	Count int       `json:"count"`
	Beta  AxisStats `json:"beta"`
	Gamma AxisStats `json:"gamma"`
}

// Axis returns the statistics for a.
func (l LabelStats) Axis(a gesture.Axis) AxisStats {
	if a == gesture.AxisBeta {
		return l.Beta
	}
	return l.Gamma
}

// Report is the result of Analyze, ordered by label.
type Report struct {
	Labels []LabelStats `json:"labels"`
}

// Label looks up the statistics of one label.
func (r Report) Label(name string) (LabelStats, bool) {
	for _, l := range r.Labels {
		if l.Label == name {
			return l, true
		}
	}
	return LabelStats{}, false
}

// Analyze groups samples by label and summarizes |beta| and |gamma|, the
// same magnitudes the threshold rules compare against.
func Analyze(samples []Labeled) (Report, error) {
	if len(samples) == 0 {
		return Report{}, ErrNoSamples
	}

	type axes struct{ beta, gamma []float64 }
	groups := make(map[string]*axes)
	for _, s := range samples {
		g, ok := groups[s.Label]
		if !ok {
			g = &axes{}
			groups[s.Label] = g
		}
		g.beta = append(g.beta, gesture.AxisBeta.Abs(s.Sample))
		g.gamma = append(g.gamma, gesture.AxisGamma.Abs(s.Sample))
	}

	var report Report
	for label, g := range groups {
		report.Labels = append(report.Labels, LabelStats{
			Label: label,
			Count: len(g.beta),
			Beta:  summarize(g.beta),
			Gamma: summarize(g.gamma),
		})
	}
	sort.Slice(report.Labels, func(i, j int) bool {
		return report.Labels[i].Label < report.Labels[j].Label
	})
	return report, nil
}

func summarize(x []float64) AxisStats {
	sort.Float64s(x)

	st := AxisStats{
		Mean:   stat.Mean(x, nil),
		Min:    x[0],
		P05:    stat.Quantile(0.05, stat.Empirical, x, nil),
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, x, nil),
		Max:    x[len(x)-1],
	}
	if len(x) > 1 {
		st.StdDev = stat.StdDev(x, nil)
	}
	return st
}
