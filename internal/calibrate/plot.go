package calibrate

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/headsup/internal/gesture"
)

var labelColors = map[string]color.RGBA{
	LabelUp:      {R: 230, G: 140, B: 30, A: 255},
	LabelDown:    {R: 40, G: 170, B: 90, A: 255},
	LabelNeutral: {R: 90, G: 90, B: 200, A: 255},
}

// Plot renders a |gamma| vs |beta| scatter of the samples, one series per
// label. The image format follows the file extension of path.
func Plot(samples []Labeled, path string) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	byLabel := make(map[string]plotter.XYs)
	for _, s := range samples {
		byLabel[s.Label] = append(byLabel[s.Label], plotter.XY{
			X: gesture.AxisGamma.Abs(s.Sample),
			Y: gesture.AxisBeta.Abs(s.Sample),
		})
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	p := plot.New()
	p.Title.Text = "Calibration trace"
	p.X.Label.Text = "|gamma| (deg)"
	p.Y.Label.Text = "|beta| (deg)"
	p.X.Min, p.X.Max = 0, 90
	p.Y.Min, p.Y.Max = 0, 180

	for _, l := range labels {
		sc, err := plotter.NewScatter(byLabel[l])
		if err != nil {
			return fmt.Errorf("scatter %s: %w", l, err)
		}
		c, ok := labelColors[l]
		if !ok {
			c = color.RGBA{R: 128, G: 128, B: 128, A: 255}
		}
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(l, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
