package workload

import (
	"bytes"
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reservoir/pkg/compression"
	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Env carries the collaborators shared by every pool in a simulation.
// Zero values are fine.
type Env struct {
	Logger    *zap.Logger
	Recorder  pool.Recorder
	Collector *metrics.Collector
	Tracer    trace.Tracer
	// Payload is round-tripped through every acquired compressor
	Payload []byte
}

// Simulate builds every pool in cfg, runs the workload against each one
// concurrently and disposes them. Each pool is owned by a single goroutine.
// Reports are returned in the order of cfg.Pools, also on error.
func Simulate(ctx context.Context, cfg *config.Config, env Env) ([]*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env.Logger == nil {
		env.Logger = logger.Named("workload")
	}
	if env.Payload == nil {
		env.Payload = defaultPayload()
	}

	reports := make([]*Report, len(cfg.Pools))
	g, gctx := errgroup.WithContext(ctx)
	for i, pc := range cfg.Pools {
		wc := cfg.Workload
		wc.Seed += uint64(i)
		g.Go(func() error {
			pctx := logger.WithPool(gctx, pc.Name)
			env.Logger.With(logger.Fields(pctx)...).Debug("starting pool workload",
				zap.String("kind", pc.Item.Kind),
				zap.Uint64("seed", wc.Seed))
			var err error
			switch pc.Item.Kind {
			case config.ItemKindCompressor:
				reports[i], err = simulateCompressor(pctx, pc, wc, env)
			default:
				reports[i], err = simulateTracked(pctx, pc, wc, env)
			}
			return err
		})
	}
	err := g.Wait()
	return reports, err
}

func simulateTracked(ctx context.Context, pc config.PoolConfig, wc config.WorkloadConfig, env Env) (*Report, error) {
	settings := pool.NewSettings[*Token](&TokenFactory{}, pc.SettingsOptions()...)
	p, err := pool.New(settings, poolOptions(pc, wc, env)...)
	if err != nil {
		return nil, err
	}

	r, err := NewRunner(p, wc, runnerOptions[*Token](config.ItemKindTracked, env)...)
	if err != nil {
		return nil, multierr.Append(err, p.Dispose())
	}
	return finish(ctx, r, p)
}

func simulateCompressor(ctx context.Context, pc config.PoolConfig, wc config.WorkloadConfig, env Env) (*Report, error) {
	algorithm, err := compression.ParseAlgorithm(pc.Item.Algorithm)
	if err != nil {
		return nil, err
	}
	level, err := compression.ParseLevel(pc.Item.Level)
	if err != nil {
		return nil, err
	}

	factory := &compression.EncoderFactory{Algorithm: algorithm, Level: level}
	settings := pool.NewSettings[*compression.Encoder](factory, pc.SettingsOptions()...)
	p, err := pool.New(settings, poolOptions(pc, wc, env)...)
	if err != nil {
		return nil, err
	}

	use := func(_ context.Context, e *compression.Encoder) error {
		compressed, err := e.Compress(env.Payload)
		if err != nil {
			return err
		}
		out, err := e.Decompress(compressed)
		if err != nil {
			return err
		}
		if !bytes.Equal(out, env.Payload) {
			return reservoirerrors.New(reservoirerrors.ErrorTypeInternal, "compressor round trip mismatch").
				WithDetail("encoder", e.String())
		}
		return nil
	}

	opts := append(runnerOptions[*compression.Encoder](config.ItemKindCompressor, env),
		WithUse[*compression.Encoder](use))
	r, err := NewRunner(p, wc, opts...)
	if err != nil {
		return nil, multierr.Append(err, p.Dispose())
	}
	return finish(ctx, r, p)
}

func finish[T pool.Poolable](ctx context.Context, r *Runner[T], p *pool.Pool[T]) (*Report, error) {
	report, err := r.Run(ctx)
	err = multierr.Append(err, p.Dispose())
	return report, err
}

func poolOptions(pc config.PoolConfig, wc config.WorkloadConfig, env Env) []pool.Option {
	opts := []pool.Option{
		pool.WithName(pc.Name),
		pool.WithLogger(env.Logger),
		pool.WithRand(pool.NewRand(wc.Seed ^ 0x9e3779b97f4a7c15)),
	}
	if env.Recorder != nil {
		opts = append(opts, pool.WithRecorder(env.Recorder))
	}
	return opts
}

func runnerOptions[T pool.Poolable](kind string, env Env) []Option[T] {
	return []Option[T]{
		WithKind[T](kind),
		WithLogger[T](env.Logger),
		WithTracer[T](env.Tracer),
		WithCollector[T](env.Collector),
	}
}

func defaultPayload() []byte {
	var b bytes.Buffer
	for b.Len() < 4096 {
		b.WriteString(`{"event":"acquire","pool":"reservoir","ok":true}`)
	}
	return b.Bytes()
}
