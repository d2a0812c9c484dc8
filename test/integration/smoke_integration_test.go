//go:build integration
// +build integration

package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/cascade"
	"github.com/GoSim-25-26J-441/contagion-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/contagion-core/internal/network"
	"github.com/GoSim-25-26J-441/contagion-core/internal/plot"
	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/utils"
)

func TestIntegration_ConfigLoadSmoke(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "config", "contagion.yaml")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig(%s) failed: %v", cfgPath, err)
	}
	if cfg.Network.Population != 500 || cfg.Sweep.Threshold != 0.05 {
		t.Fatalf("unexpected reference calibration: %+v", cfg)
	}
	densities, err := montecarlo.Densities(cfg.Sweep.DensityStart, cfg.Sweep.DensityStop, cfg.Sweep.DensityStep)
	if err != nil {
		t.Fatalf("Densities failed: %v", err)
	}
	if len(densities) != 20 || densities[19] != 9.5 {
		t.Fatalf("expected 20 densities ending at 9.5, got %v", densities)
	}
}

// An empty network never cascades; inside the contagion window some seeds do.
func TestIntegration_SweepPersistAndPlot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := store.NewFileBackend(filepath.Join(dir, "data.json"))
	if err := store.Init(ctx, backend); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	agg, err := montecarlo.NewAggregator(montecarlo.Params{
		Population: 100,
		Iterations: 20,
		Threshold:  montecarlo.DefaultThreshold,
		Bank:       bank.DefaultParams(),
	}, utils.NewRandSource(42))
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}
	result, err := agg.Sweep(ctx, []float64{0, 1, 3})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Points[0].Probability != 0 {
		t.Fatalf("expected no contagion at density 0, got %v", result.Points[0].Probability)
	}
	if result.Points[2].Probability == 0 || result.Points[2].MeanFraction <= 0.01 {
		t.Fatalf("expected some contagion at density 3, got %+v", result.Points[2])
	}

	merged, err := store.MergeResult(ctx, backend, result)
	if err != nil {
		t.Fatalf("MergeResult failed: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 keys, got %v", merged)
	}
	if err := plot.Save(merged, filepath.Join(dir, "curve.svg"), plot.DefaultOptions()); err == nil {
		t.Fatalf("expected format mismatch for svg path with png options")
	}
	opts := plot.DefaultOptions()
	opts.Format = ""
	if err := plot.Save(merged, filepath.Join(dir, "curve.svg"), opts); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func TestIntegration_CascadeOnGeneratedNetwork(t *testing.T) {
	rng := utils.NewRandSource(7)
	net, err := network.NewGenerator(rng, bank.DefaultParams()).Generate(200, 4)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	out, err := cascade.NewEngine().Run(net, rng)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out.Defaulted) == 0 || out.Triggers > net.Population() {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Fraction != float64(len(out.Defaulted))/float64(net.Population()) {
		t.Fatalf("fraction does not match defaulted count")
	}
}
