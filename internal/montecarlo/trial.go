package montecarlo

import (
	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/cascade"
	"github.com/GoSim-25-26J-441/contagion-core/internal/network"
)

// TrialOutcome is what the aggregator keeps from one trial.
type TrialOutcome struct {
	Fraction       float64
	Defaulted      int
	RealizedDegree float64
}

// TrialRunner performs one independent trial at a density.
type TrialRunner interface {
	RunTrial(density float64) (TrialOutcome, error)
}

// NetworkTrial generates a fresh network and cascades from a random seed
// bank. Edge draws and the seed draw come from the same stream, in that order.
type NetworkTrial struct {
	population int
	rng        network.Source
	gen        *network.Generator
	eng        *cascade.Engine
}

// NewNetworkTrial creates the default trial runner.
func NewNetworkTrial(population int, params bank.Params, rng network.Source) *NetworkTrial {
	return &NetworkTrial{
		population: population,
		rng:        rng,
		gen:        network.NewGenerator(rng, params),
		eng:        cascade.NewEngine(),
	}
}

// RunTrial implements TrialRunner.
func (t *NetworkTrial) RunTrial(density float64) (TrialOutcome, error) {
	net, err := t.gen.Generate(t.population, density)
	if err != nil {
		return TrialOutcome{}, err
	}
	out, err := t.eng.Run(net, t.rng)
	if err != nil {
		return TrialOutcome{}, err
	}
	return TrialOutcome{
		Fraction:       out.Fraction,
		Defaulted:      len(out.Defaulted),
		RealizedDegree: net.RealizedDegree(),
	}, nil
}
