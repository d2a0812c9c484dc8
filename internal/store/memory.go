package store

import (
	"context"
	"sync"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// MemoryBackend keeps the curve in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	exists bool
	curve  models.Curve
}

// NewMemoryBackend creates an existing, empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{exists: true, curve: models.Curve{}}
}

// NewMissingMemoryBackend creates a store that has not been initialised.
func NewMissingMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Read(ctx context.Context) (models.Curve, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return nil, ErrStoreMissing
	}
	return copyCurve(m.curve), nil
}

func (m *MemoryBackend) Write(ctx context.Context, curve models.Curve) error {
	if err := checkCurve(curve); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	m.curve = copyCurve(curve)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}

func copyCurve(c models.Curve) models.Curve {
	out := make(models.Curve, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
