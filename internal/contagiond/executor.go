package contagiond

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/metrics"
	"github.com/GoSim-25-26J-441/contagion-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/utils"
)

// RunExecutor runs sweeps asynchronously, one goroutine per sweep, and
// merges completed curves into the persistence backend.
type RunExecutor struct {
	store    *RunStore
	backend  store.Backend
	bank     bank.Params
	metrics  *metrics.Metrics
	notifier *Notifier

	// mergeMu serializes read-modify-write cycles on the backend.
	mergeMu sync.Mutex

	// mu guards cancels and committing. Stop and the commit check both
	// hold it while reading or changing a sweep's status.
	mu         sync.Mutex
	cancels    map[string]context.CancelFunc
	committing map[string]bool
	wg         sync.WaitGroup
}

func NewRunExecutor(runs *RunStore, backend store.Backend, params bank.Params) *RunExecutor {
	return &RunExecutor{
		store:    runs,
		backend:  backend,
		bank:     params,
		notifier:   NewNotifier(),
		cancels:    make(map[string]context.CancelFunc),
		committing: make(map[string]bool),
	}
}

// SetMetrics attaches a Prometheus recorder to every sweep.
func (e *RunExecutor) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// SetNotifier replaces the callback notifier.
func (e *RunExecutor) SetNotifier(n *Notifier) {
	e.notifier = n
}

// Start begins executing a pending sweep. Starting a running sweep is a no-op.
func (e *RunExecutor) Start(id string) (SweepRecord, error) {
	if id == "" {
		return SweepRecord{}, ErrRunIDMissing
	}

	rec, ok := e.store.Get(id)
	if !ok {
		return SweepRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	switch {
	case rec.Sweep.Status == models.RunStatusRunning:
		return rec, nil
	case rec.Sweep.Status.IsTerminal():
		return SweepRecord{}, fmt.Errorf("%w: %s", ErrRunTerminal, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if _, running := e.cancels[id]; running {
		e.mu.Unlock()
		cancel()
		rec, _ = e.store.Get(id)
		return rec, nil
	}
	e.cancels[id] = cancel
	e.mu.Unlock()

	updated, err := e.store.SetStatus(id, models.RunStatusRunning, "")
	if err != nil {
		e.cleanup(id)
		return SweepRecord{}, err
	}

	if e.metrics != nil {
		e.metrics.SweepStarted()
	}
	e.wg.Add(1)
	go e.runSweep(ctx, id)
	return updated, nil
}

// Stop cancels a pending or running sweep and marks it cancelled. A sweep
// whose points are all computed and whose curve is being persisted can no
// longer be stopped.
func (e *RunExecutor) Stop(id string) (SweepRecord, error) {
	if id == "" {
		return SweepRecord{}, ErrRunIDMissing
	}
	rec, ok := e.store.Get(id)
	if !ok {
		return SweepRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if rec.Sweep.Status == models.RunStatusCancelled {
		return rec, nil
	}

	// The status is set first so the sweep goroutine sees it once cancelled.
	e.mu.Lock()
	if e.committing[id] {
		e.mu.Unlock()
		return SweepRecord{}, fmt.Errorf("%w: %s is persisting its curve", ErrRunTerminal, id)
	}
	updated, err := e.store.SetStatus(id, models.RunStatusCancelled, "")
	if err != nil {
		e.mu.Unlock()
		return SweepRecord{}, err
	}
	cancel, running := e.cancels[id]
	e.mu.Unlock()
	if running {
		cancel()
	} else {
		e.notify(updated)
	}
	return updated, nil
}

// Wait blocks until every started sweep has returned.
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels all running sweeps and waits for them.
func (e *RunExecutor) Shutdown() {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()
	e.Wait()
}

// Curve reads the persisted curve.
func (e *RunExecutor) Curve(ctx context.Context) (models.Curve, error) {
	return e.backend.Read(ctx)
}

func (e *RunExecutor) cleanup(id string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runSweep(ctx context.Context, id string) {
	defer e.wg.Done()
	defer e.cleanup(id)

	started := time.Now()
	status := models.RunStatusFailed
	defer func() {
		if e.metrics != nil {
			e.metrics.SweepFinished(status, time.Since(started))
		}
	}()

	rec, ok := e.store.Get(id)
	if !ok {
		logger.Error("sweep not found", "sweep_id", id)
		return
	}
	req := rec.Request

	rng := utils.NewRandSource(int64(req.Seed))
	if err := e.store.SetSeed(id, rng.Seed()); err != nil {
		logger.Error("failed to record seed", "sweep_id", id, "error", err)
	}

	agg, err := montecarlo.NewAggregator(req.params(e.bank), rng)
	if err != nil {
		e.fail(id, fmt.Sprintf("invalid sweep: %v", err))
		return
	}
	agg.SetLogger(logger.With("sweep_id", id))
	if e.metrics != nil {
		agg.WithRecorder(e.metrics)
	}
	agg.WithProgressReporter(func(done, total int, point models.SweepPoint) {
		if err := e.store.AddPoint(id, point); err != nil {
			logger.Error("failed to record point", "sweep_id", id, "error", err)
		}
	})

	result, err := agg.Sweep(ctx, req.Densities)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			status = models.RunStatusCancelled
			logger.Info("sweep cancelled", "sweep_id", id)
			if rec, ok := e.store.Get(id); ok && rec.Sweep.Status == models.RunStatusCancelled {
				e.notify(rec)
			}
			return
		}
		e.fail(id, err.Error())
		return
	}

	if !e.beginCommit(id) {
		status = models.RunStatusCancelled
		logger.Info("sweep stopped before persisting", "sweep_id", id)
		if rec, ok := e.store.Get(id); ok && rec.Sweep.Status == models.RunStatusCancelled {
			e.notify(rec)
		}
		return
	}
	defer e.endCommit(id)

	if err := e.store.SetResult(id, result); err != nil {
		logger.Error("failed to store result", "sweep_id", id, "error", err)
	}

	if req.persist() {
		if err := e.merge(context.Background(), result); err != nil {
			e.fail(id, fmt.Sprintf("persist curve: %v", err))
			return
		}
	}

	updated, err := e.store.SetStatus(id, models.RunStatusCompleted, "")
	if err != nil {
		logger.Error("failed to set completed status", "sweep_id", id, "error", err)
		return
	}
	status = models.RunStatusCompleted
	logger.Info("sweep completed", "sweep_id", id, "points", len(result.Points), "duration", result.Duration)
	e.notify(updated)
}

// beginCommit marks a still-running sweep as committing so Stop leaves it
// alone. It reports false when the sweep was stopped first.
func (e *RunExecutor) beginCommit(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.store.Get(id)
	if !ok || rec.Sweep.Status != models.RunStatusRunning {
		return false
	}
	e.committing[id] = true
	return true
}

func (e *RunExecutor) endCommit(id string) {
	e.mu.Lock()
	delete(e.committing, id)
	e.mu.Unlock()
}

func (e *RunExecutor) merge(ctx context.Context, result *models.SweepResult) error {
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()
	_, err := store.MergeResult(ctx, e.backend, result)
	return err
}

func (e *RunExecutor) fail(id, msg string) {
	logger.Error("sweep failed", "sweep_id", id, "error", msg)
	updated, err := e.store.SetStatus(id, models.RunStatusFailed, msg)
	if err != nil {
		logger.Error("failed to set failed status", "sweep_id", id, "error", err)
		return
	}
	e.notify(updated)
}

func (e *RunExecutor) notify(rec SweepRecord) {
	if e.notifier == nil || rec.Request.CallbackURL == "" {
		return
	}
	e.notifier.Notify(rec.Request.CallbackURL, rec.Request.CallbackSecret, rec)
}
