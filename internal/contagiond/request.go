package contagiond

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
)

// Limits on a single daemon sweep. Generation cost grows with the square
// of the population.
const (
	MaxPopulation = 5000
	MaxIterations = 100000
	MaxDensities  = 1000
)

// ErrInvalidRequest is returned for unusable sweep requests.
var ErrInvalidRequest = errors.New("invalid sweep request")

// SweepRequest describes one sweep. Zero fields take the daemon defaults.
type SweepRequest struct {
	Population   int       `json:"population,omitempty"`
	Iterations   int       `json:"iterations,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	DensityStart float64   `json:"density_start,omitempty"`
	DensityStop  float64   `json:"density_stop,omitempty"`
	DensityStep  float64   `json:"density_step,omitempty"`
	Densities    []float64 `json:"densities,omitempty"`
	Seed         Seed      `json:"seed,omitempty"`

	// Persist merges the completed curve into the configured store.
	Persist *bool `json:"persist,omitempty"`

	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// maxExactSeed is the largest integer a JSON or protobuf double holds exactly.
const maxExactSeed = 1 << 53

// Seed is a random seed carried as a decimal string on the wire. Clock
// seeds exceed 2^53 and would be rounded as a number. Integral numbers up
// to 2^53 are accepted on input too.
type Seed int64

func (s Seed) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(s), 10))), nil
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	text := string(data)
	if text == "null" {
		return nil
	}
	if len(text) > 0 && text[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("%w: seed %s", ErrInvalidRequest, text)
		}
		v, err := strconv.ParseInt(unquoted, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: seed %q is not a 64-bit integer", ErrInvalidRequest, unquoted)
		}
		*s = Seed(v)
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > maxExactSeed {
		return fmt.Errorf("%w: numeric seed %s must be an integer up to 2^53, send larger seeds as strings", ErrInvalidRequest, text)
	}
	*s = Seed(int64(v))
	return nil
}

// Resolve fills unset fields from cfg, expands the density range and
// validates the result.
func (r SweepRequest) Resolve(cfg *config.Config) (SweepRequest, error) {
	if r.Population == 0 {
		r.Population = cfg.Network.Population
	}
	if r.Iterations == 0 {
		r.Iterations = cfg.Sweep.Iterations
	}
	if r.Threshold == 0 {
		r.Threshold = cfg.Sweep.Threshold
	}
	if r.Seed == 0 {
		r.Seed = Seed(cfg.Sweep.Seed)
	}
	if r.Persist == nil {
		persist := true
		r.Persist = &persist
	}

	if len(r.Densities) == 0 {
		start, stop, step := r.DensityStart, r.DensityStop, r.DensityStep
		if start == 0 && stop == 0 && step == 0 {
			start, stop, step = cfg.Sweep.DensityStart, cfg.Sweep.DensityStop, cfg.Sweep.DensityStep
		}
		if step > 0 && (stop-start)/step > MaxDensities {
			return SweepRequest{}, fmt.Errorf("%w: density range yields more than %d points", ErrInvalidRequest, MaxDensities)
		}
		densities, err := montecarlo.Densities(start, stop, step)
		if err != nil {
			return SweepRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		r.Densities = densities
	}

	if r.Population > MaxPopulation {
		return SweepRequest{}, fmt.Errorf("%w: population %d exceeds %d", ErrInvalidRequest, r.Population, MaxPopulation)
	}
	if r.Iterations > MaxIterations {
		return SweepRequest{}, fmt.Errorf("%w: iterations %d exceeds %d", ErrInvalidRequest, r.Iterations, MaxIterations)
	}
	if len(r.Densities) > MaxDensities {
		return SweepRequest{}, fmt.Errorf("%w: %d densities exceeds %d", ErrInvalidRequest, len(r.Densities), MaxDensities)
	}
	for _, d := range r.Densities {
		if d < 0 {
			return SweepRequest{}, fmt.Errorf("%w: negative density %v", ErrInvalidRequest, d)
		}
	}
	if err := r.params(BankParams(cfg)).Validate(); err != nil {
		return SweepRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.CallbackURL != "" {
		if err := ValidateCallbackURL(r.CallbackURL); err != nil {
			return SweepRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return r, nil
}

func (r SweepRequest) params(b bank.Params) montecarlo.Params {
	return montecarlo.Params{
		Population: r.Population,
		Iterations: r.Iterations,
		Threshold:  r.Threshold,
		Bank:       b,
	}
}

func (r SweepRequest) persist() bool {
	return r.Persist == nil || *r.Persist
}

// BankParams extracts the balance-sheet parameters from cfg.
func BankParams(cfg *config.Config) bank.Params {
	return bank.Params{
		InterbankAssets: cfg.Network.InterbankAssets,
		Liabilities:     cfg.Network.Liabilities,
		ExternalAssets:  cfg.Network.ExternalAssets,
	}
}
