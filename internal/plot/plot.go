// Package plot renders the contagion curve: probability of contagion
// against network density.
package plot

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// Axis bounds are fixed so curves from different runs are comparable.
const (
	MinDensity     = 0.0
	MaxDensity     = 10.0
	MinProbability = 0.0
	MaxProbability = 1.0
)

// ErrEmptyCurve is returned when there is nothing to draw.
var ErrEmptyCurve = errors.New("curve has no points")

// Options controls the rendered image.
type Options struct {
	Title        string
	WidthInches  float64
	HeightInches float64
	// Format is png, svg or pdf. Save infers it from the file extension when empty.
	Format string
}

// DefaultOptions returns a 6x4 inch PNG.
func DefaultOptions() Options {
	return Options{
		Title:        "Probability of contagion",
		WidthInches:  6,
		HeightInches: 4,
		Format:       "png",
	}
}

// OptionsFromConfig maps the plot section of the configuration.
func OptionsFromConfig(cfg config.Plot) Options {
	opts := DefaultOptions()
	if cfg.Title != "" {
		opts.Title = cfg.Title
	}
	if cfg.WidthInches > 0 {
		opts.WidthInches = cfg.WidthInches
	}
	if cfg.HeightInches > 0 {
		opts.HeightInches = cfg.HeightInches
	}
	opts.Format = ""
	return opts
}

// Points returns the curve as XY pairs sorted by density.
func Points(curve models.Curve) (plotter.XYs, error) {
	sorted, err := curve.Sorted()
	if err != nil {
		return nil, err
	}
	xys := make(plotter.XYs, len(sorted))
	for i, p := range sorted {
		xys[i].X = p.Density
		xys[i].Y = p.Probability
	}
	return xys, nil
}

// Render draws the curve and writes the image to w.
func Render(curve models.Curve, w io.Writer, opts Options) error {
	p, err := build(curve, opts)
	if err != nil {
		return err
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(inches(opts.WidthInches, 6), inches(opts.HeightInches, 4), format)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("plot: write %s: %w", format, err)
	}
	return nil
}

// Save draws the curve into the file at path. The format follows the
// extension unless opts.Format is set.
func Save(curve models.Curve, path string, opts Options) error {
	p, err := build(curve, opts)
	if err != nil {
		return err
	}
	if opts.Format != "" && !strings.EqualFold(filepath.Ext(path), "."+opts.Format) {
		return fmt.Errorf("plot: extension of %s does not match format %s", path, opts.Format)
	}
	if err := p.Save(inches(opts.WidthInches, 6), inches(opts.HeightInches, 4), path); err != nil {
		return fmt.Errorf("plot: save %s: %w", path, err)
	}
	return nil
}

func build(curve models.Curve, opts Options) (*gonumplot.Plot, error) {
	xys, err := Points(curve)
	if err != nil {
		return nil, err
	}
	if len(xys) == 0 {
		return nil, ErrEmptyCurve
	}

	p := gonumplot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Average degree"
	p.Y.Label.Text = "Probability of contagion"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("plot: line: %w", err)
	}
	marks, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("plot: scatter: %w", err)
	}
	p.Add(line, marks)

	// Add widens the ranges to fit the data; pin them afterwards.
	p.X.Min, p.X.Max = MinDensity, MaxDensity
	p.Y.Min, p.Y.Max = MinProbability, MaxProbability
	return p, nil
}

func inches(v, fallback float64) vg.Length {
	if v <= 0 {
		v = fallback
	}
	return vg.Length(v) * vg.Inch
}
