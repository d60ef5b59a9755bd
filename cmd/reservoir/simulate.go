package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/internal/workload"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
	"github.com/ajitpratap0/reservoir/pkg/pool"
)

type simulateFlags struct {
	configFile   string
	steps        int
	seed         uint64
	timeout      time.Duration
	jsonOutput   bool
	metricsOut   string
	profileDir   string
	profileTypes string
}

// simulateOutput is what --json prints.
type simulateOutput struct {
	Reports   []*workload.Report `json:"reports"`
	Resources ResourceUsage      `json:"resources"`
}

func newSimulateCommand() *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a seeded workload against the configured pools",
		Long: `Build every pool in the configuration and drive each with a weighted,
seeded mix of acquire, release, release_random, release_all and clear.
Pool bookkeeping is checked after every step.

Example:
  reservoir simulate --config reservoir.yaml --steps 50000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), f, cmd.Flags().Changed("steps"), cmd.Flags().Changed("seed"))
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to configuration YAML file")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "Override workload.steps")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Override workload.seed")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "Simulation timeout")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print reports as JSON")
	cmd.Flags().StringVar(&f.metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file after the run")
	cmd.Flags().StringVar(&f.profileDir, "profile-dir", "", "Write pprof profiles to this directory")
	cmd.Flags().StringVar(&f.profileTypes, "profile-types", "cpu,memory", "Profile types (cpu,memory,block,mutex,goroutine,all)")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, f *simulateFlags, stepsSet, seedSet bool) (err error) {
	cfg, err := loadConfig(f.configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if stepsSet {
		cfg.Workload.Steps = f.steps
	}
	if seedSet {
		cfg.Workload.Seed = f.seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	log := logger.Get().With(zap.String("component", "reservoir-cli"), zap.String("run", cfg.Name))

	tracing := observability.FromConfig(cfg.Tracing, version)
	tracing.Writer = os.Stderr
	provider, err := observability.Initialize(tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, provider.Shutdown(shutdownCtx))
	}()

	env := workload.Env{Logger: log, Tracer: provider.Tracer()}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		meterRecorder, err := observability.NewMeterRecorder(provider.Meter())
		if err != nil {
			return err
		}
		env.Recorder = pool.MultiRecorder(collector, meterRecorder)
		env.Collector = collector
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var prof *profiler
	if f.profileDir != "" {
		prof, err = startProfiling(f.profileDir, parseProfileTypes(f.profileTypes))
		if err != nil {
			return err
		}
	}

	log.Info("starting simulation",
		zap.Int("pools", len(cfg.Pools)),
		zap.Int("steps", cfg.Workload.Steps),
		zap.Uint64("seed", cfg.Workload.Seed))
	reports, simErr := workload.Simulate(ctx, cfg, env)

	if prof != nil {
		if perr := prof.stop(); perr != nil {
			log.Warn("failed to write profiles", zap.Error(perr))
		}
	}
	if collector != nil && f.metricsOut != "" {
		if merr := writeMetricsFile(collector, f.metricsOut); merr != nil {
			log.Warn("failed to write metrics", zap.Error(merr))
		}
	}

	if werr := printReports(out, reports, f.jsonOutput); werr != nil {
		return multierr.Append(simErr, werr)
	}
	if simErr != nil {
		return fmt.Errorf("simulation failed: %w", simErr)
	}
	return nil
}

func printReports(out io.Writer, reports []*workload.Report, asJSON bool) error {
	if asJSON {
		enc := gojson.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(simulateOutput{Reports: reports, Resources: CurrentResourceUsage()})
	}

	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(out, "pool %s (%s, %s)\n", r.Pool, r.Kind, r.Stats.Discipline)
		fmt.Fprintf(out, "  steps: %d in %v (%.0f ops/s), skipped %d\n", r.Steps, r.Duration.Round(time.Microsecond), r.OpsPerSec, r.Skipped)
		for _, op := range []workload.Op{workload.OpAcquire, workload.OpRelease, workload.OpReleaseRandom, workload.OpReleaseAll, workload.OpClear} {
			fmt.Fprintf(out, "  %-15s %d\n", op, r.Ops[op])
		}
		for errType, n := range r.Errors {
			fmt.Fprintf(out, "  error %-9s %d\n", errType, n)
		}
		s := r.Stats
		fmt.Fprintf(out, "  items: idle=%d checked_out=%d total=%d created=%d reused=%d destroyed=%d shed=%d\n",
			s.Idle, s.CheckedOut, s.Total, s.Created, s.Reused, s.Destroyed, s.Shed)
	}
	usage := CurrentResourceUsage()
	fmt.Fprintf(out, "resources: rss=%dMB goroutines=%d cpu=%.1f%%\n", usage.RSSBytes/(1024*1024), usage.Goroutines, usage.CPUPercent)
	return nil
}

func writeMetricsFile(c *metrics.Collector, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return c.WriteText(f)
}
