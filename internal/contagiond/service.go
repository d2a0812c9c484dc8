package contagiond

import (
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
)

// createSweep resolves req against the daemon defaults, registers the
// sweep and optionally starts it. HTTP and gRPC share it.
func createSweep(runs *RunStore, executor *RunExecutor, cfg *config.Config, id string, req SweepRequest, start bool) (SweepRecord, error) {
	resolved, err := req.Resolve(cfg)
	if err != nil {
		return SweepRecord{}, err
	}
	rec, err := runs.Create(id, resolved)
	if err != nil {
		return SweepRecord{}, err
	}
	if !start {
		return rec, nil
	}
	started, err := executor.Start(rec.Sweep.ID)
	if err != nil {
		logger.Warn("sweep created but not started", "sweep_id", rec.Sweep.ID, "error", err)
		return rec, err
	}
	return started, nil
}
