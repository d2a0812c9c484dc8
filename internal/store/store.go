// Package store persists the contagion curve: a mapping from density
// (stringified) to probability of contagion.
//
// Every backend holds the whole curve as one document. Updates are
// read-modify-write: the existing curve is read, new keys overwrite old
// ones, and the full curve is written back. The document must already
// exist; Init creates an empty one explicitly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

var (
	// ErrStoreMissing is returned when the backing document does not exist.
	ErrStoreMissing = errors.New("contagion store does not exist")
	// ErrStoreMalformed is returned when the document is not a
	// density -> probability mapping.
	ErrStoreMalformed = errors.New("contagion store is malformed")
)

// Backend reads and writes the whole curve.
type Backend interface {
	// Read returns the stored curve, ErrStoreMissing or ErrStoreMalformed.
	Read(ctx context.Context) (models.Curve, error)
	// Write replaces the stored curve.
	Write(ctx context.Context, curve models.Curve) error
	Close() error
}

// initializer is implemented by backends that need more than an empty
// document to exist, such as a table.
type initializer interface {
	Init(ctx context.Context) error
}

// Merge reads the existing curve, overwrites it with updates key by key,
// writes the result back and returns it. It is not atomic across processes.
func Merge(ctx context.Context, b Backend, updates models.Curve) (models.Curve, error) {
	curve, err := b.Read(ctx)
	if err != nil {
		return nil, err
	}
	if curve == nil {
		curve = make(models.Curve, len(updates))
	}
	for k, v := range updates {
		curve[k] = v
	}
	if err := b.Write(ctx, curve); err != nil {
		return nil, fmt.Errorf("write merged curve: %w", err)
	}
	return curve, nil
}

// MergeResult merges every point of a finished sweep.
func MergeResult(ctx context.Context, b Backend, result *models.SweepResult) (models.Curve, error) {
	return Merge(ctx, b, result.Curve())
}

// Init makes sure the backend holds a curve, creating an empty one if it
// is missing. An existing curve is left untouched.
func Init(ctx context.Context, b Backend) error {
	if in, ok := b.(initializer); ok {
		return in.Init(ctx)
	}
	_, err := b.Read(ctx)
	if errors.Is(err, ErrStoreMissing) {
		return b.Write(ctx, models.Curve{})
	}
	return err
}

// decodeCurve parses a JSON object of numeric keys to finite numbers.
func decodeCurve(data []byte) (models.Curve, error) {
	var curve models.Curve
	if err := json.Unmarshal(data, &curve); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreMalformed, err)
	}
	if curve == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrStoreMalformed)
	}
	if err := checkCurve(curve); err != nil {
		return nil, err
	}
	return curve, nil
}

func checkCurve(curve models.Curve) error {
	for k, v := range curve {
		if _, err := models.ParseDensityKey(k); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreMalformed, err)
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: key %q has probability %v outside [0,1]", ErrStoreMalformed, k, v)
		}
	}
	return nil
}

func encodeCurve(curve models.Curve) ([]byte, error) {
	if curve == nil {
		curve = models.Curve{}
	}
	return json.Marshal(curve)
}
