// Command contagion runs a density sweep of the interbank contagion model,
// merges the resulting curve into the configured store and renders it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/internal/bank"
	"github.com/GoSim-25-26J-441/contagion-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/contagion-core/internal/plot"
	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/utils"
)

type options struct {
	configPath string
	logLevel   string
	seed       int64
	iterations int
	population int
	storePath  string
	plotPath   string
	initStore  bool
	noPlot     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("contagion", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config (defaults to the built-in calibration)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed (0 uses the config seed, or the clock)")
	fs.IntVar(&opts.iterations, "iterations", 0, "trials per density (overrides config)")
	fs.IntVar(&opts.population, "population", 0, "banks per network (overrides config)")
	fs.StringVar(&opts.storePath, "store", "", "file store path (overrides config, implies the file backend)")
	fs.StringVar(&opts.plotPath, "plot", "", "plot output path (overrides config)")
	fs.BoolVar(&opts.initStore, "init", false, "create an empty store if it does not exist")
	fs.BoolVar(&opts.noPlot, "no-plot", false, "skip rendering the curve")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadConfig(opts.configPath)
	} else {
		cfg, err = config.LoadDefaults()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.seed != 0 {
		cfg.Sweep.Seed = opts.seed
	}
	if opts.iterations > 0 {
		cfg.Sweep.Iterations = opts.iterations
	}
	if opts.population > 0 {
		cfg.Network.Population = opts.population
	}
	if opts.storePath != "" {
		cfg.Store.Backend = "file"
		cfg.Store.Path = opts.storePath
	}
	if opts.plotPath != "" {
		cfg.Plot.Output = opts.plotPath
	}
	if opts.noPlot {
		cfg.Plot.Output = ""
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, cfg.LogLevel, stderr))

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	if opts.initStore {
		if err := store.Init(ctx, backend); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		logger.Info("store initialised", "backend", cfg.Store.Backend)
	}
	// Fail before the sweep rather than after it.
	if _, err := backend.Read(ctx); err != nil {
		if errors.Is(err, store.ErrStoreMissing) {
			return fmt.Errorf("%w (run with -init to create it)", err)
		}
		return err
	}

	densities, err := montecarlo.Densities(cfg.Sweep.DensityStart, cfg.Sweep.DensityStop, cfg.Sweep.DensityStep)
	if err != nil {
		return err
	}
	rng := utils.NewRandSource(cfg.Sweep.Seed)
	agg, err := montecarlo.NewAggregator(montecarlo.Params{
		Population: cfg.Network.Population,
		Iterations: cfg.Sweep.Iterations,
		Threshold:  cfg.Sweep.Threshold,
		Bank: bank.Params{
			InterbankAssets: cfg.Network.InterbankAssets,
			Liabilities:     cfg.Network.Liabilities,
			ExternalAssets:  cfg.Network.ExternalAssets,
		},
	}, rng)
	if err != nil {
		return err
	}

	result, err := agg.Sweep(ctx, densities)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	printResult(stdout, result)

	merged, err := store.MergeResult(ctx, backend, result)
	if err != nil {
		return fmt.Errorf("persist curve: %w", err)
	}
	logger.Info("curve persisted", "backend", cfg.Store.Backend, "keys", len(merged))

	if cfg.Plot.Output != "" {
		if err := plot.Save(merged, cfg.Plot.Output, plot.OptionsFromConfig(cfg.Plot)); err != nil {
			return err
		}
		logger.Info("curve rendered", "path", cfg.Plot.Output)
	}
	return nil
}

func printResult(w io.Writer, result *models.SweepResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "density\tprobability\tstd_error\trealized_degree\tmean_fraction\n")
	for _, p := range result.Points {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.3f\t%.4f\n",
			models.FormatDensityKey(p.Density), p.Probability, p.StdError, p.RealizedDegree, p.MeanFraction)
	}
	tw.Flush()
	fmt.Fprintf(w, "seed %d, %d banks, %d trials per point, %s\n",
		result.Seed, result.Population, result.Iterations, result.Duration.Round(time.Millisecond))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Error("contagion failed", "error", err)
		os.Exit(1)
	}
}
