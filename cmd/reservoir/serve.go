package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/internal/workload"
	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
	"github.com/ajitpratap0/reservoir/pkg/pool"
)

type serveFlags struct {
	configFile string
	listen     string
	interval   time.Duration
}

func newServeCommand() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run workloads continuously and serve pool metrics",
		Long: `Repeat the configured workload every interval and expose the results:
  /metrics  Prometheus metrics
  /reports  the reports of the last run as JSON
  /healthz  liveness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to configuration YAML file")
	cmd.Flags().StringVar(&f.listen, "listen", "", "Listen address, overrides metrics.listen")
	cmd.Flags().DurationVar(&f.interval, "interval", 10*time.Second, "Pause between workload runs")
	return cmd
}

// server exposes the collector and the latest reports.
type server struct {
	collector *metrics.Collector
	logger    *zap.Logger

	mu      sync.RWMutex
	runID   string
	reports []*workload.Report
	lastErr error
}

func (s *server) handler(serviceName string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/reports", s.serveReports)
	return observability.TracingMiddleware(serviceName)(mux)
}

func (s *server) serveReports(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	body := struct {
		RunID   string             `json:"run_id,omitempty"`
		Reports []*workload.Report `json:"reports"`
		Error   string             `json:"error,omitempty"`
	}{RunID: s.runID, Reports: s.reports}
	if s.lastErr != nil {
		body.Error = s.lastErr.Error()
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := gojson.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode reports", zap.Error(err))
	}
}

func (s *server) store(runID string, reports []*workload.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.reports = reports
	s.lastErr = err
}

func runServe(ctx context.Context, f *serveFlags) error {
	if f.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", f.interval)
	}
	cfg, err := loadConfig(f.configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	log := logger.Get().With(zap.String("component", "reservoir-serve"))

	listen := cfg.Metrics.Listen
	if f.listen != "" {
		listen = f.listen
	}
	if listen == "" {
		listen = ":9090"
	}

	tracing := observability.FromConfig(cfg.Tracing, version)
	tracing.Writer = os.Stderr
	provider, err := observability.Initialize(tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()
	meterRecorder, err := observability.NewMeterRecorder(provider.Meter())
	if err != nil {
		return err
	}
	srv := &server{collector: collector, logger: log}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           srv.handler(cfg.Tracing.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	var lifecycle conc.WaitGroup
	var serveErr error
	lifecycle.Go(func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			stop()
		}
	})
	log.Info("serving metrics", zap.String("listen", ln.Addr().String()))

	env := workload.Env{
		Logger:    log,
		Recorder:  pool.MultiRecorder(collector, meterRecorder),
		Collector: collector,
		Tracer:    provider.Tracer(),
	}
	loopErr := runLoop(ctx, cfg, env, f.interval, srv)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	lifecycle.Wait()
	if serveErr != nil {
		return serveErr
	}
	return loopErr
}

// runLoop repeats the workload until ctx is done. A failed run is retried
// after an exponential backoff capped at 10 intervals.
func runLoop(ctx context.Context, cfg *config.Config, env workload.Env, interval time.Duration, srv *server) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = interval
	retry.MaxInterval = 10 * interval

	for run := 0; ; run++ {
		runCfg := *cfg
		runCfg.Workload.Seed = cfg.Workload.Seed + uint64(run)*uint64(len(cfg.Pools))
		runID := uuid.NewString()
		runCtx := logger.WithRunID(ctx, runID)

		reports, err := workload.Simulate(runCtx, &runCfg, env)
		if ctx.Err() != nil {
			return nil
		}
		srv.store(runID, reports, err)

		sleep := interval
		if err != nil {
			sleep = retry.NextBackOff()
			if sleep == backoff.Stop {
				sleep = retry.MaxInterval
			}
			logger.WithContext(runCtx).Error("workload run failed",
				zap.Int("run", run),
				zap.Duration("retry_in", sleep),
				zap.Error(err))
		} else {
			retry.Reset()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}
