// Package montecarlo estimates the probability that a single default
// becomes a systemic cascade, across a sweep of network densities.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/network"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/utils"
)

// DefaultThreshold is the default fraction at which a cascade counts as systemic.
const DefaultThreshold = 0.05

// ErrInvalidSweep is returned for unusable sweep parameters.
var ErrInvalidSweep = errors.New("invalid sweep")

// Params configures an aggregator.
type Params struct {
	Population int
	Iterations int
	Threshold  float64
	Bank       bank.Params
}

// Validate checks the parameters before any network is generated.
func (p Params) Validate() error {
	if p.Population <= 1 {
		return fmt.Errorf("%w: got %d", network.ErrPopulationTooSmall, p.Population)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidSweep, p.Iterations)
	}
	if p.Threshold <= 0 || p.Threshold > 1 || math.IsNaN(p.Threshold) {
		return fmt.Errorf("%w: threshold must be in (0, 1], got %v", ErrInvalidSweep, p.Threshold)
	}
	return nil
}

// Recorder observes trials and finished points, e.g. to export metrics.
type Recorder interface {
	ObserveTrial(density, fraction float64, systemic bool)
	ObservePoint(point models.SweepPoint)
}

// ProgressReporter is called after each density point completes.
type ProgressReporter func(done, total int, point models.SweepPoint)

// Aggregator repeats trials at each density and tabulates systemic cascades.
// It runs strictly sequentially on a single random stream.
type Aggregator struct {
	params   Params
	seed     int64
	trials   TrialRunner
	recorder Recorder
	progress ProgressReporter
	logger   *slog.Logger
}

// NewAggregator validates params and wires the default network trial to rng.
func NewAggregator(params Params, rng *utils.RandSource) (*Aggregator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		params: params,
		seed:   rng.Seed(),
		trials: NewNetworkTrial(params.Population, params.Bank, rng),
		logger: logger.Default,
	}, nil
}

// WithTrialRunner replaces the trial runner
func (a *Aggregator) WithTrialRunner(r TrialRunner) *Aggregator {
	a.trials = r
	return a
}

// WithRecorder sets a trial observer
func (a *Aggregator) WithRecorder(r Recorder) *Aggregator {
	a.recorder = r
	return a
}

// WithProgressReporter sets a callback invoked after each density point
func (a *Aggregator) WithProgressReporter(fn ProgressReporter) *Aggregator {
	a.progress = fn
	return a
}

// SetLogger sets the aggregator's logger
func (a *Aggregator) SetLogger(l *slog.Logger) {
	a.logger = l
}

// Params returns the aggregator's parameters.
func (a *Aggregator) Params() Params {
	return a.params
}

// RunPoint runs Iterations trials at one density. The cascade count starts
// at zero for every call.
func (a *Aggregator) RunPoint(ctx context.Context, density float64) (models.SweepPoint, error) {
	iterations := a.params.Iterations
	fractions := make([]float64, 0, iterations)
	degreeSum := 0.0
	cascades := 0

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return models.SweepPoint{}, err
		}
		out, err := a.trials.RunTrial(density)
		if err != nil {
			return models.SweepPoint{}, fmt.Errorf("density %v trial %d: %w", density, i, err)
		}
		systemic := out.Fraction >= a.params.Threshold
		if systemic {
			cascades++
		}
		fractions = append(fractions, out.Fraction)
		degreeSum += out.RealizedDegree
		if a.recorder != nil {
			a.recorder.ObserveTrial(density, out.Fraction, systemic)
		}
	}

	probability := float64(cascades) / float64(iterations)
	point := models.SweepPoint{
		Density:        density,
		Probability:    probability,
		Cascades:       cascades,
		Iterations:     iterations,
		RealizedDegree: degreeSum / float64(iterations),
		MeanFraction:   utils.Mean(fractions),
		StdDevFraction: utils.StdDev(fractions),
		P95Fraction:    utils.P95(fractions),
		StdError:       utils.BinomialStdError(probability, iterations),
	}
	if a.recorder != nil {
		a.recorder.ObservePoint(point)
	}
	return point, nil
}

// Sweep runs RunPoint for each density in order. Any failure aborts the
// whole sweep; no partial result is returned.
func (a *Aggregator) Sweep(ctx context.Context, densities []float64) (*models.SweepResult, error) {
	if len(densities) == 0 {
		return nil, fmt.Errorf("%w: no density values", ErrInvalidSweep)
	}

	start := time.Now()
	result := &models.SweepResult{
		Population: a.params.Population,
		Iterations: a.params.Iterations,
		Threshold:  a.params.Threshold,
		Seed:       a.seed,
		Points:     make([]models.SweepPoint, 0, len(densities)),
	}

	a.logger.Info("sweep started",
		"population", a.params.Population,
		"iterations", a.params.Iterations,
		"points", len(densities),
		"seed", a.seed)

	for i, density := range densities {
		point, err := a.RunPoint(ctx, density)
		if err != nil {
			return nil, err
		}
		result.Points = append(result.Points, point)

		a.logger.Info("density point done",
			"density", density,
			"probability", point.Probability,
			"realized_degree", utils.Round(point.RealizedDegree, 4),
			"mean_default_fraction", utils.Round(point.MeanFraction, 4))

		if a.progress != nil {
			a.progress(i+1, len(densities), point)
		}
	}

	result.Duration = time.Since(start)
	a.logger.Info("sweep finished", "points", len(result.Points), "duration", result.Duration)
	return result, nil
}

// densityResolution is the rounding applied to sweep values. A smaller step
// would repeat values forever.
const densityResolution = 1e-10

// Densities returns start, start+step, ... for every value below stop.
// Values are rounded to 10 decimals so keys stay readable for steps like 0.1.
func Densities(start, stop, step float64) ([]float64, error) {
	if math.IsNaN(step) || math.IsInf(step, 0) || step < densityResolution {
		return nil, fmt.Errorf("%w: step must be at least %v, got %v", ErrInvalidSweep, densityResolution, step)
	}
	if !isFinite(start) || !isFinite(stop) {
		return nil, fmt.Errorf("%w: bounds must be finite, got [%v, %v)", ErrInvalidSweep, start, stop)
	}
	if start < 0 || stop <= start {
		return nil, fmt.Errorf("%w: need 0 <= start < stop, got [%v, %v)", ErrInvalidSweep, start, stop)
	}

	var out []float64
	for i := 0; ; i++ {
		d := utils.Round(start+float64(i)*step, 10)
		if d >= stop {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
