package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/network"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/utils"
)

// scriptedTrials returns fractions from a function of (density, call index).
type scriptedTrials struct {
	calls int
	next  func(density float64, call int) (float64, error)
}

func (s *scriptedTrials) RunTrial(density float64) (TrialOutcome, error) {
	f, err := s.next(density, s.calls)
	s.calls++
	return TrialOutcome{Fraction: f, RealizedDegree: density}, err
}

type countingRecorder struct {
	trials   int
	systemic int
	points   []models.SweepPoint
}

func (r *countingRecorder) ObserveTrial(_, _ float64, systemic bool) {
	r.trials++
	if systemic {
		r.systemic++
	}
}

func (r *countingRecorder) ObservePoint(p models.SweepPoint) {
	r.points = append(r.points, p)
}

func testParams(population, iterations int) Params {
	return Params{
		Population: population,
		Iterations: iterations,
		Threshold:  DefaultThreshold,
		Bank:       bank.DefaultParams(),
	}
}

func newTestAggregator(t *testing.T, p Params, seed int64) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(p, utils.NewRandSource(seed))
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}
	return agg
}

func TestRunPointSevenOfHundred(t *testing.T) {
	trials := &scriptedTrials{next: func(_ float64, call int) (float64, error) {
		if call < 7 {
			return 0.2, nil
		}
		return 0.01, nil
	}}
	agg := newTestAggregator(t, testParams(100, 100), 1).WithTrialRunner(trials)

	point, err := agg.RunPoint(context.Background(), 2.5)
	if err != nil {
		t.Fatalf("RunPoint failed: %v", err)
	}
	if point.Cascades != 7 {
		t.Fatalf("expected 7 cascades, got %d", point.Cascades)
	}
	if point.Probability != 0.07 {
		t.Fatalf("expected probability 0.07, got %v", point.Probability)
	}
	if math.Abs(point.StdError-math.Sqrt(0.07*0.93/100)) > 1e-12 {
		t.Fatalf("unexpected std error %v", point.StdError)
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	trials := &scriptedTrials{next: func(float64, int) (float64, error) { return DefaultThreshold, nil }}
	agg := newTestAggregator(t, testParams(20, 10), 1).WithTrialRunner(trials)

	point, err := agg.RunPoint(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if point.Probability != 1 {
		t.Fatalf("fraction equal to threshold should count, got probability %v", point.Probability)
	}
}

func TestCascadeCountResetsPerDensity(t *testing.T) {
	trials := &scriptedTrials{next: func(density float64, _ int) (float64, error) {
		if density == 0 {
			return 1, nil
		}
		return 0, nil
	}}
	agg := newTestAggregator(t, testParams(20, 10), 1).WithTrialRunner(trials)

	result, err := agg.Sweep(context.Background(), []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if result.Points[0].Probability != 1 || result.Points[1].Probability != 0 {
		t.Fatalf("expected [1 0], got [%v %v]", result.Points[0].Probability, result.Points[1].Probability)
	}
}

func TestZeroDensityUsesSeedOnly(t *testing.T) {
	tests := []struct {
		population int
		want       float64
	}{
		// One default out of 50 is 0.02, below the threshold.
		{50, 0},
		// One default out of 10 is 0.1, above it.
		{10, 1},
	}
	for _, tt := range tests {
		agg := newTestAggregator(t, testParams(tt.population, 20), 5)
		point, err := agg.RunPoint(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if point.Probability != tt.want {
			t.Errorf("population %d: probability %v, want %v", tt.population, point.Probability, tt.want)
		}
		if point.RealizedDegree != 0 {
			t.Errorf("population %d: expected no edges, realized degree %v", tt.population, point.RealizedDegree)
		}
	}
}

func TestSweepProbabilityBoundsAndOrder(t *testing.T) {
	rec := &countingRecorder{}
	var progress []int
	agg := newTestAggregator(t, testParams(60, 15), 11).
		WithRecorder(rec).
		WithProgressReporter(func(done, total int, _ models.SweepPoint) {
			if total != 4 {
				t.Errorf("expected total 4, got %d", total)
			}
			progress = append(progress, done)
		})

	densities := []float64{0, 1.5, 3, 6}
	result, err := agg.Sweep(context.Background(), densities)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(result.Points) != len(densities) {
		t.Fatalf("expected %d points, got %d", len(densities), len(result.Points))
	}
	for i, p := range result.Points {
		if p.Density != densities[i] {
			t.Fatalf("point %d density %v, want %v", i, p.Density, densities[i])
		}
		if p.Probability < 0 || p.Probability > 1 {
			t.Fatalf("probability out of range at %v: %v", p.Density, p.Probability)
		}
		if p.Iterations != 15 {
			t.Fatalf("expected 15 iterations, got %d", p.Iterations)
		}
	}
	if rec.trials != 4*15 || len(rec.points) != 4 {
		t.Fatalf("recorder saw %d trials and %d points", rec.trials, len(rec.points))
	}
	if len(progress) != 4 || progress[3] != 4 {
		t.Fatalf("unexpected progress calls %v", progress)
	}
	if result.Seed != 11 || result.Population != 60 {
		t.Fatalf("unexpected result header %+v", result)
	}
}

func TestSweepDeterministic(t *testing.T) {
	run := func() *models.SweepResult {
		agg := newTestAggregator(t, testParams(40, 10), 99)
		r, err := agg.Sweep(context.Background(), []float64{1, 2, 4})
		if err != nil {
			t.Fatal(err)
		}
		return r
	}
	a, b := run(), run()
	for i := range a.Points {
		if a.Points[i].Probability != b.Points[i].Probability ||
			a.Points[i].RealizedDegree != b.Points[i].RealizedDegree {
			t.Fatalf("point %d differs: %+v vs %+v", i, a.Points[i], b.Points[i])
		}
	}
}

func TestSweepAbortsOnTrialError(t *testing.T) {
	boom := errors.New("boom")
	trials := &scriptedTrials{next: func(density float64, _ int) (float64, error) {
		if density > 1 {
			return 0, boom
		}
		return 0, nil
	}}
	agg := newTestAggregator(t, testParams(20, 5), 1).WithTrialRunner(trials)

	result, err := agg.Sweep(context.Background(), []float64{0, 1, 2, 3})
	if !errors.Is(err, boom) {
		t.Fatalf("expected trial error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected no partial result")
	}
}

func TestSweepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg := newTestAggregator(t, testParams(20, 5), 1)
	if _, err := agg.Sweep(ctx, []float64{1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"population one", testParams(1, 10), network.ErrPopulationTooSmall},
		{"zero iterations", testParams(10, 0), ErrInvalidSweep},
		{"zero threshold", Params{Population: 10, Iterations: 1, Threshold: 0}, ErrInvalidSweep},
		{"threshold above one", Params{Population: 10, Iterations: 1, Threshold: 1.5}, ErrInvalidSweep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAggregator(tt.params, utils.NewRandSource(1)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	agg := newTestAggregator(t, testParams(10, 1), 1)
	if _, err := agg.Sweep(context.Background(), nil); !errors.Is(err, ErrInvalidSweep) {
		t.Fatalf("expected ErrInvalidSweep for empty sweep, got %v", err)
	}
}

func TestDensities(t *testing.T) {
	d, err := Densities(0, 10, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(d) != 20 || d[0] != 0 || d[19] != 9.5 {
		t.Fatalf("unexpected default sweep %v", d)
	}

	d, err = Densities(0, 1, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(d) != 10 || d[3] != 0.3 || d[9] != 0.9 {
		t.Fatalf("unexpected fine sweep %v", d)
	}

	bad := [][3]float64{
		{0, 10, 0},
		{0, 10, -1},
		{5, 5, 1},
		{-1, 5, 1},
		{0, math.Inf(1), 0.5},
		{math.NaN(), 10, 0.5},
		{math.Inf(-1), 10, 0.5},
		{0, 10, math.NaN()},
		{0, 10, 1e-300},
	}
	for _, b := range bad {
		if _, err := Densities(b[0], b[1], b[2]); !errors.Is(err, ErrInvalidSweep) {
			t.Errorf("Densities%v: expected ErrInvalidSweep, got %v", b, err)
		}
	}
}
