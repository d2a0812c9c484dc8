package network

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
)

// Generator builds uniformly random directed networks.
type Generator struct {
	rng    Source
	params bank.Params
}

// NewGenerator creates a generator that draws edges from rng and gives
// every bank the starting balance sheet in params.
func NewGenerator(rng Source, params bank.Params) *Generator {
	return &Generator{
		rng:    rng,
		params: params,
	}
}

// Generate creates population banks and, for every ordered pair of distinct
// banks, adds a borrowing edge with probability density/population. Exactly
// population*(population-1) values are drawn, row by row in id order.
func (g *Generator) Generate(population int, density float64) (*Network, error) {
	if population <= 1 {
		return nil, fmt.Errorf("%w: got %d", ErrPopulationTooSmall, population)
	}
	if density < 0 || math.IsNaN(density) || math.IsInf(density, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDensity, density)
	}

	n := newNetwork(g.params, population, density)
	p := n.BorrowProbability()

	for borrower := 0; borrower < population; borrower++ {
		for creditor := 0; creditor < population; creditor++ {
			if borrower == creditor {
				continue
			}
			if g.rng.BernoulliBool(p) {
				if err := n.connect(borrower, creditor); err != nil {
					return nil, err
				}
			}
		}
	}
	return n, nil
}
