package contagiond

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("sweep not found")
	ErrRunTerminal  = errors.New("sweep is terminal")
	ErrRunIDMissing = errors.New("sweep id is required")
	ErrRunExists    = errors.New("sweep already exists")
)

// Sweep is the externally visible state of a sweep run.
type Sweep struct {
	ID          string
	Status      models.RunStatus
	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
	Error       string
	PointsDone  int
	PointsTotal int
	Seed        int64
}

// SweepRecord bundles a sweep with its request and, once completed, its result.
type SweepRecord struct {
	Sweep   Sweep
	Request SweepRequest
	Result  *models.SweepResult
	// Points holds the points finished so far, in sweep order.
	Points []models.SweepPoint
}

// RunStore keeps sweep records in memory. Getters return copies.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*SweepRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*SweepRecord),
	}
}

// Create registers a pending sweep. An empty id is replaced by a UUID.
func (s *RunStore) Create(id string, req SweepRequest) (SweepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.runs[id]; exists {
		return SweepRecord{}, fmt.Errorf("%w: %s", ErrRunExists, id)
	}

	rec := &SweepRecord{
		Sweep: Sweep{
			ID:          id,
			Status:      models.RunStatusPending,
			CreatedAt:   time.Now().UTC(),
			PointsTotal: len(req.Densities),
		},
		Request: req,
	}
	s.runs[id] = rec
	return rec.clone(), nil
}

func (s *RunStore) Get(id string) (SweepRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return SweepRecord{}, false
	}
	return rec.clone(), true
}

// List returns sweeps newest first, optionally filtered by status.
func (s *RunStore) List(limit, offset int, status models.RunStatus) []SweepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]*SweepRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Sweep.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Sweep.CreatedAt.Equal(all[j].Sweep.CreatedAt) {
			return all[i].Sweep.ID < all[j].Sweep.ID
		}
		return all[i].Sweep.CreatedAt.After(all[j].Sweep.CreatedAt)
	})

	if offset >= len(all) {
		return []SweepRecord{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]SweepRecord, 0, end-offset)
	for _, rec := range all[offset:end] {
		out = append(out, rec.clone())
	}
	return out
}

// SetStatus moves a sweep to status, stamping start and end times.
// A terminal sweep never changes status again.
func (s *RunStore) SetStatus(id string, status models.RunStatus, errMsg string) (SweepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[id]
	if !ok {
		return SweepRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if rec.Sweep.Status.IsTerminal() {
		return SweepRecord{}, fmt.Errorf("%w: %s is %s", ErrRunTerminal, id, rec.Sweep.Status)
	}

	rec.Sweep.Status = status
	if errMsg != "" {
		rec.Sweep.Error = errMsg
	}
	now := time.Now().UTC()
	switch {
	case status == models.RunStatusRunning:
		if rec.Sweep.StartedAt.IsZero() {
			rec.Sweep.StartedAt = now
		}
	case status.IsTerminal():
		rec.Sweep.EndedAt = now
	}
	return rec.clone(), nil
}

// SetSeed records the seed actually used by the sweep's random source.
func (s *RunStore) SetSeed(id string, seed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	rec.Sweep.Seed = seed
	return nil
}

// AddPoint appends a finished density point and advances progress.
func (s *RunStore) AddPoint(id string, point models.SweepPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	rec.Points = append(rec.Points, point)
	rec.Sweep.PointsDone = len(rec.Points)
	return nil
}

func (s *RunStore) SetResult(id string, result *models.SweepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	rec.Result = result
	return nil
}

func (r *SweepRecord) clone() SweepRecord {
	out := *r
	out.Request.Densities = append([]float64(nil), r.Request.Densities...)
	out.Points = append([]models.SweepPoint(nil), r.Points...)
	if r.Result != nil {
		res := *r.Result
		res.Points = append([]models.SweepPoint(nil), r.Result.Points...)
		out.Result = &res
	}
	return out
}
