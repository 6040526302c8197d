package sample

import (
	"fmt"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Tries returns the number of draws each accepted call needed, in call order.
func (s *Sampler) Tries() []float64 {
	return slices.Clone(s.used)
}

// PlotTries writes a histogram of draws per accepted call to path. The image
// format follows the file extension (png, svg, pdf). A long right tail means
// MaxAttempts is close to cutting off valid combinations.
func PlotTries(tries []float64, path string) error {
	if len(tries) == 0 {
		return fmt.Errorf("no accepted draws to plot")
	}

	p := plot.New()
	p.Title.Text = "Draws per accepted combination"
	p.X.Label.Text = "draws"
	p.Y.Label.Text = "combinations"

	bins := min(len(tries), 30)
	h, err := plotter.NewHist(plotter.Values(tries), bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
