package contagiond

import (
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// testConfig is a small calibration that finishes in milliseconds. A lone
// default among 50 banks stays below the 5% threshold.
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Network.Population = 50
	cfg.Sweep.Iterations = 10
	cfg.Sweep.DensityStart = 0
	cfg.Sweep.DensityStop = 3
	cfg.Sweep.DensityStep = 1
	cfg.Sweep.Seed = 7
	return &cfg
}

func newTestExecutor(backend store.Backend) (*RunStore, *RunExecutor, *config.Config) {
	cfg := testConfig()
	runs := NewRunStore()
	exec := NewRunExecutor(runs, backend, BankParams(cfg))
	return runs, exec, cfg
}

// slowRequest is large enough that it cannot finish before a test stops it.
func slowRequest() SweepRequest {
	return SweepRequest{Population: 300, Iterations: 50000, Densities: []float64{1, 2, 3, 4}, Seed: 1}
}

func waitForStatus(t *testing.T, runs *RunStore, id string, want models.RunStatus) SweepRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := runs.Get(id)
		if !ok {
			t.Fatalf("sweep %s not found", id)
		}
		if rec.Sweep.Status == want {
			return rec
		}
		if rec.Sweep.Status.IsTerminal() {
			t.Fatalf("sweep %s reached %s (error %q), want %s", id, rec.Sweep.Status, rec.Sweep.Error, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for sweep %s to reach %s", id, want)
	return SweepRecord{}
}
