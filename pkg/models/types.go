package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RunStatus represents the status of a sweep run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// SweepPoint is the Monte-Carlo estimate at one density parameter.
type SweepPoint struct {
	Density     float64 `json:"density"`
	Probability float64 `json:"probability"`
	Cascades    int     `json:"cascades"`
	Iterations  int     `json:"iterations"`

	// RealizedDegree is the mean number of generated edges per bank across
	// all trials at this density.
	RealizedDegree float64 `json:"realized_degree"`
	MeanFraction   float64 `json:"mean_default_fraction"`
	StdDevFraction float64 `json:"stddev_default_fraction"`
	P95Fraction    float64 `json:"p95_default_fraction"`
	StdError       float64 `json:"std_error"`
}

// SweepResult holds one point per density, in sweep order.
type SweepResult struct {
	Population int           `json:"population"`
	Iterations int           `json:"iterations"`
	Threshold  float64       `json:"threshold"`
	Seed       int64         `json:"seed"`
	Points     []SweepPoint  `json:"points"`
	Duration   time.Duration `json:"duration_ns"`
}

// Curve converts the result into the persisted key -> probability mapping.
func (r *SweepResult) Curve() Curve {
	c := make(Curve, len(r.Points))
	for _, p := range r.Points {
		c[FormatDensityKey(p.Density)] = p.Probability
	}
	return c
}

// Curve maps a stringified density parameter to its contagion probability.
type Curve map[string]float64

// CurvePoint is one parsed entry of a Curve.
type CurvePoint struct {
	Density     float64
	Probability float64
}

// Sorted parses every key and returns the entries in ascending density order.
func (c Curve) Sorted() ([]CurvePoint, error) {
	out := make([]CurvePoint, 0, len(c))
	for k, v := range c {
		d, err := ParseDensityKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, CurvePoint{Density: d, Probability: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Density < out[j].Density })
	return out, nil
}

// FormatDensityKey renders a density the way the store keys are written:
// shortest decimal form, always with a fractional part ("3.0", "2.5").
func FormatDensityKey(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseDensityKey parses a store key back into a density.
func ParseDensityKey(key string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid density key %q: %w", key, err)
	}
	return d, nil
}
