// Package cascade propagates a forced default through a lending network.
package cascade

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/network"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
)

var (
	// ErrInvalidSeed is returned when the forced default is outside the population.
	ErrInvalidSeed = errors.New("seed bank out of range")
	// ErrStaleNetwork is returned when a network that already saw a cascade
	// is run again.
	ErrStaleNetwork = errors.New("network already has defaulted banks")
)

// Outcome describes one completed cascade.
type Outcome struct {
	SeedID     int
	Population int
	// Defaulted lists bank ids in the order they defaulted, seed first.
	Defaulted []int
	// Triggers counts TriggerDefault calls; it equals len(Defaulted).
	Triggers int
	// Enqueued counts every push onto the worklist, duplicates included.
	Enqueued int
	Fraction float64
}

// Engine runs cascades. It owns a worklist that is reset at the start of
// every run, so one Engine can serve many trials but not concurrent ones.
type Engine struct {
	pending *bank.Worklist
	logger  *slog.Logger
}

// NewEngine creates a cascade engine
func NewEngine() *Engine {
	return &Engine{
		pending: bank.NewWorklist(),
		logger:  logger.Default,
	}
}

// SetLogger sets the engine's logger
func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = l
}

// Run picks the seed bank uniformly at random and cascades from it.
// It consumes exactly one draw from rng.
func (e *Engine) Run(net *network.Network, rng network.Source) (*Outcome, error) {
	return e.RunFrom(net, rng.Intn(net.Population()))
}

// RunFrom forces seedID into default, whether or not it is insolvent, and
// drains the worklist until no queued bank remains. Banks found already
// defaulted when dequeued are skipped, so every bank defaults at most once.
func (e *Engine) RunFrom(net *network.Network, seedID int) (*Outcome, error) {
	population := net.Population()
	if seedID < 0 || seedID >= population {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidSeed, seedID, population)
	}
	if net.DefaultedCount() > 0 {
		return nil, ErrStaleNetwork
	}

	e.pending.Reset()
	e.pending.Push(net.Bank(seedID))

	out := &Outcome{
		SeedID:     seedID,
		Population: population,
	}

	for {
		b, ok := e.pending.Pop()
		if !ok {
			break
		}
		if b.Defaulted() {
			continue
		}
		if err := b.TriggerDefault(e.pending); err != nil {
			return nil, fmt.Errorf("cascade from bank %d: %w", seedID, err)
		}
		out.Defaulted = append(out.Defaulted, b.ID())
		out.Triggers++
	}

	out.Enqueued = e.pending.Pushed()
	out.Fraction = float64(len(out.Defaulted)) / float64(population)

	e.logger.Debug("cascade finished",
		"seed", seedID,
		"defaulted", len(out.Defaulted),
		"enqueued", out.Enqueued,
		"fraction", out.Fraction)

	return out, nil
}
