// Package reservoir provides generic object pools that lend out reusable
// items and take them back, with a choice of reclamation discipline, item
// lifecycle hooks and bounded capacity.
//
// # Architecture
//
// A pool is built from three collaborators:
//
//  1. Reclamation Store: keeps idle items either in a growable stack or in
//     a singly-linked free chain, creates items through the factory when
//     none is idle and destroys what no longer fits.
//
//  2. Lifecycle Hook Dispatcher: runs the item hooks (OnAcquire, OnRelease),
//     toggles visibility on items that support it and moves items between
//     the active and idle parent targets.
//
//  3. Pool Controller: tracks which items are checked out and exposes
//     Acquire, Release, ReleaseRandom, ReleaseAll, Clear and Dispose.
//
// Settings are immutable once built; pool.Builder overrides the parent
// targets per pool without touching the shared settings.
//
// # Quick Start
//
//	import "github.com/ajitpratap0/reservoir/pkg/pool"
//
//	settings := pool.NewSettings[*Bullet](
//	    pool.FactoryFunc[*Bullet](newBullet),
//	    pool.WithTemplateName("bullet"),
//	    pool.WithDiscipline(pool.LinkedList),
//	    pool.WithMaxSize(64),
//	)
//	bullets, err := pool.New(settings)
//	if err != nil {
//	    return err
//	}
//	defer bullets.Dispose()
//
//	b, err := bullets.Acquire()
//	...
//	err = bullets.Release(b)
//
// # Package Structure
//
//	pkg/pool            - Pools, settings, builder and the reclamation store
//	pkg/compression     - Pooled compression encoders and a concurrent codec
//	pkg/config          - YAML/viper configuration for pools and workloads
//	pkg/reservoirerrors - Typed errors shared by every package
//	pkg/logger          - Structured logging
//	pkg/metrics         - Prometheus recorder for pool events
//	pkg/observability   - OpenTelemetry tracing and metric recorder
//	internal/workload   - Seeded workload runner used by the CLI
//	cmd/reservoir       - Command line interface
//
// # Command Line
//
//	reservoir simulate --config reservoir.yaml --json
//	reservoir compress --algorithm zstd --in data.json --out data.json.zst
//	reservoir serve --config reservoir.yaml --listen :9090
//
// Environment variables are supported with ${VAR_NAME} syntax in config
// files, and RESERVOIR_* variables override scalar settings.
package reservoir
