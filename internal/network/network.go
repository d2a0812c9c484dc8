// Package network builds random directed lending networks of banks.
package network

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
)

var (
	// ErrPopulationTooSmall is returned when fewer than two banks are requested.
	ErrPopulationTooSmall = errors.New("population must be greater than 1")
	// ErrInvalidDensity is returned for a negative or non-finite density.
	ErrInvalidDensity = errors.New("density must be a finite non-negative number")
	// ErrInvalidEdge is returned by FromEdges for out-of-range or self edges.
	ErrInvalidEdge = errors.New("invalid edge")
)

// Source is the randomness a generator and cascade engine consume.
// *utils.RandSource satisfies it.
type Source interface {
	BernoulliBool(p float64) bool
	Intn(n int) int
}

// Edge records that Borrower owes money to Creditor.
type Edge struct {
	Borrower int `json:"borrower"`
	Creditor int `json:"creditor"`
}

// Network is one trial's population of banks and their borrowing relation.
type Network struct {
	params  *bank.Params
	banks   []*bank.Bank
	edges   []Edge
	density float64
}

func newNetwork(params bank.Params, population int, density float64) *Network {
	shared := params
	n := &Network{
		params:  &shared,
		banks:   make([]*bank.Bank, population),
		density: density,
	}
	for i := range n.banks {
		n.banks[i] = bank.New(i, n.params)
	}
	return n
}

func (n *Network) connect(borrower, creditor int) error {
	if err := n.banks[borrower].ConnectTo(n.banks[creditor]); err != nil {
		return err
	}
	n.edges = append(n.edges, Edge{Borrower: borrower, Creditor: creditor})
	return nil
}

// FromEdges builds a network with a fixed borrowing relation instead of a
// random one. Edges are applied in order.
func FromEdges(params bank.Params, population int, edges []Edge) (*Network, error) {
	if population <= 1 {
		return nil, fmt.Errorf("%w: got %d", ErrPopulationTooSmall, population)
	}
	n := newNetwork(params, population, float64(len(edges))/float64(population))
	for _, e := range edges {
		if e.Borrower < 0 || e.Borrower >= population || e.Creditor < 0 || e.Creditor >= population {
			return nil, fmt.Errorf("%w: %d -> %d outside population %d", ErrInvalidEdge, e.Borrower, e.Creditor, population)
		}
		if err := n.connect(e.Borrower, e.Creditor); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEdge, err)
		}
	}
	return n, nil
}

// Banks returns the population in id order. The slice must not be modified.
func (n *Network) Banks() []*bank.Bank {
	return n.banks
}

// Bank returns the bank with the given id.
func (n *Network) Bank(id int) *bank.Bank {
	return n.banks[id]
}

// Population returns the number of banks.
func (n *Network) Population() int {
	return len(n.banks)
}

// Density returns the target average out-degree the network was built for.
func (n *Network) Density() float64 {
	return n.density
}

// BorrowProbability is the per-ordered-pair edge probability.
func (n *Network) BorrowProbability() float64 {
	return n.density / float64(len(n.banks))
}

// Params returns the shared starting balance sheet.
func (n *Network) Params() bank.Params {
	return *n.params
}

// Edges returns the borrowing relation in generation order.
func (n *Network) Edges() []Edge {
	out := make([]Edge, len(n.edges))
	copy(out, n.edges)
	return out
}

// EdgeCount returns the number of borrowing edges.
func (n *Network) EdgeCount() int {
	return len(n.edges)
}

// RealizedDegree is the generated mean out-degree, edges per bank.
func (n *Network) RealizedDegree() float64 {
	return float64(len(n.edges)) / float64(len(n.banks))
}

// DefaultedCount returns how many banks are currently defaulted.
func (n *Network) DefaultedCount() int {
	count := 0
	for _, b := range n.banks {
		if b.Defaulted() {
			count++
		}
	}
	return count
}
