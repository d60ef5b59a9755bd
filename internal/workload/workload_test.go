package workload_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/reservoir/internal/workload"
	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
	rtestutil "github.com/ajitpratap0/reservoir/pkg/testutil"
)

type tokenPool struct {
	pool   *pool.Pool[*workload.Token]
	tokens []*workload.Token
}

func newTokenPool(t *testing.T, opts ...pool.SettingsOption) *tokenPool {
	t.Helper()
	pp := &tokenPool{}
	f := &workload.TokenFactory{}
	factory := pool.FactoryFunc[*workload.Token](func(template string, parent pool.Target) (*workload.Token, error) {
		p, err := f.Create(template, parent)
		pp.tokens = append(pp.tokens, p)
		return p, err
	})
	opts = append([]pool.SettingsOption{pool.WithTemplateName("token")}, opts...)
	p, err := pool.New(pool.NewSettings[*workload.Token](factory, opts...),
		pool.WithLogger(rtestutil.TestLogger(t)),
		pool.WithRand(pool.NewRand(7)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Dispose() })
	pp.pool = p
	return pp
}

func workloadConfig(steps int, weights config.WeightsConfig) config.WorkloadConfig {
	return config.WorkloadConfig{Steps: steps, Seed: 42, Weights: weights}
}

func defaultWeights() config.WeightsConfig {
	return config.NewConfig("test").Workload.Weights
}

func TestRunnerKeepsPoolConsistent(t *testing.T) {
	for _, d := range []pool.Discipline{pool.Stack, pool.LinkedList} {
		t.Run(d.String(), func(t *testing.T) {
			pp := newTokenPool(t,
				pool.WithDiscipline(d),
				pool.WithMaxSize(16),
				pool.WithPrewarmSize(4),
				pool.WithCollectionChecks(true))

			r, err := workload.NewRunner(pp.pool, workloadConfig(5000, defaultWeights()),
				workload.WithLogger[*workload.Token](rtestutil.TestLogger(t)))
			require.NoError(t, err)

			report, err := r.Run(context.Background())
			require.NoError(t, err)

			var total int64
			for _, n := range report.Ops {
				total += n
			}
			assert.Equal(t, int64(5000), total)
			assert.Equal(t, "token", report.Pool)
			assert.Equal(t, d.String(), report.Stats.Discipline)
			assert.LessOrEqual(t, report.Stats.Total, 16)
			assert.Positive(t, report.Stats.Reused)
			assert.Len(t, r.Held(), report.Stats.CheckedOut)
			assert.Zero(t, report.HookViolations)

			for _, p := range pp.tokens {
				assert.Zero(t, p.Violations(), p.String())
				assert.GreaterOrEqual(t, p.Acquires(), p.Releases())
			}
		})
	}
}

func TestRunnerCountsCapacityErrors(t *testing.T) {
	pp := newTokenPool(t, pool.WithMaxSize(2))

	r, err := workload.NewRunner(pp.pool, workloadConfig(10, config.WeightsConfig{Acquire: 1}))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.Ops[workload.OpAcquire])
	assert.Equal(t, int64(8), report.Errors[string(reservoirerrors.ErrorTypeCapacityExceeded)])
	assert.Equal(t, int64(2), report.Stats.Created)
	assert.Len(t, r.Held(), 2)
}

func TestRunnerSkipsReleaseWithNothingHeld(t *testing.T) {
	pp := newTokenPool(t)

	r, err := workload.NewRunner(pp.pool, workloadConfig(5, config.WeightsConfig{Release: 1, ReleaseRandom: 1}))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, report.Ops[workload.OpRelease], report.Skipped)
	assert.Equal(t, report.Ops[workload.OpReleaseRandom], report.Errors[string(reservoirerrors.ErrorTypeEmptyRegistry)])
	assert.Zero(t, report.Stats.Created)
}

func TestRunnerStopsOnUseError(t *testing.T) {
	pp := newTokenPool(t)
	boom := errors.New("boom")

	r, err := workload.NewRunner(pp.pool, workloadConfig(100, config.WeightsConfig{Acquire: 1}),
		workload.WithUse[*workload.Token](func(context.Context, *workload.Token) error { return boom }))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), report.Ops[workload.OpAcquire])
}

func TestRunnerStopsOnHookViolation(t *testing.T) {
	pp := newTokenPool(t)

	// a second acquire notification without a release in between
	renotify := func(_ context.Context, p *workload.Token) error {
		p.OnAcquire()
		return nil
	}
	r, err := workload.NewRunner(pp.pool, workloadConfig(100, config.WeightsConfig{Acquire: 1}),
		workload.WithUse[*workload.Token](renotify))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "item hooks did not alternate")
	assert.Equal(t, int64(1), report.Ops[workload.OpAcquire])
	assert.Equal(t, 1, report.HookViolations)
}

func TestRunnerIsDeterministic(t *testing.T) {
	run := func() *workload.Report {
		pp := newTokenPool(t, pool.WithMaxSize(8))
		r, err := workload.NewRunner(pp.pool, workloadConfig(2000, defaultWeights()))
		require.NoError(t, err)
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		return report
	}

	a, b := run(), run()
	assert.Equal(t, a.Ops, b.Ops)
	assert.Equal(t, a.Errors, b.Errors)
	assert.Equal(t, a.Stats, b.Stats)
}

func TestRunnerHonorsCancellation(t *testing.T) {
	pp := newTokenPool(t)
	r, err := workload.NewRunner(pp.pool, workloadConfig(100, defaultWeights()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Ops)
}

func TestNewRunnerRejectsInvalidWorkload(t *testing.T) {
	pp := newTokenPool(t)
	_, err := workload.NewRunner(pp.pool, workloadConfig(10, config.WeightsConfig{}))
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeConfig))
}

func TestSimulate(t *testing.T) {
	cfg := config.NewConfig("sim")
	cfg.Workload.Steps = 500

	compressor := config.NewPoolConfig("encoders")
	compressor.Discipline = pool.LinkedList.String()
	compressor.PrewarmSize = 1
	compressor.MaxSize = 4
	compressor.Item = config.ItemConfig{Kind: config.ItemKindCompressor, Algorithm: "zstd", Level: "fastest"}
	cfg.Pools = append(cfg.Pools, compressor)

	collector := metrics.NewCollector()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reports, err := workload.Simulate(context.Background(), cfg, workload.Env{
		Logger:    rtestutil.TestLogger(t),
		Recorder:  collector,
		Collector: collector,
		Tracer:    tp.Tracer("workload-test"),
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "sim", reports[0].Pool)
	assert.Equal(t, config.ItemKindTracked, reports[0].Kind)
	assert.Equal(t, "encoders", reports[1].Pool)
	assert.Equal(t, config.ItemKindCompressor, reports[1].Kind)
	assert.Equal(t, uint64(2), reports[1].Seed)
	assert.LessOrEqual(t, reports[1].Stats.Total, 4)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"pool.sim.workload", "pool.encoders.workload"}, names)

	n, err := testutil.GatherAndCount(collector.Registry(), "reservoir_pool_operation_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestSimulateRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewConfig("sim")
	cfg.Pools[0].MaxSize = -1
	_, err := workload.Simulate(context.Background(), cfg, workload.Env{})
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeConfig))
}
