package compression

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Codec is a concurrency-safe compressor backed by a pool of Encoders.
// Callers beyond MaxEncoders wait for a free encoder instead of failing.
type Codec struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	pool     *pool.Pool[*Encoder]
	slots    *semaphore.Weighted
	inflight sync.WaitGroup
	closed   bool
}

// NewCodec validates cfg and builds the encoder pool. opts are passed to
// pool.New, so callers can attach a Recorder or logger.
func NewCodec(cfg Config, opts ...pool.Option) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = Snappy
	}

	factory := &EncoderFactory{
		Algorithm:           cfg.Algorithm,
		Level:               cfg.Level,
		MaxDecompressedSize: cfg.MaxDecompressedSize,
	}
	settings := pool.NewSettings[*Encoder](factory,
		pool.WithTemplateName(string(cfg.Algorithm)+"-encoder"),
		pool.WithDiscipline(pool.Stack),
		pool.WithPrewarmSize(cfg.PrewarmEncoders),
		pool.WithMaxSize(cfg.MaxEncoders),
		pool.WithCollectionChecks(true),
	)

	log := logger.Named("compression")
	poolOpts := append([]pool.Option{
		pool.WithName("compression." + string(cfg.Algorithm)),
		pool.WithLogger(log),
	}, opts...)
	p, err := pool.New(settings, poolOpts...)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		config: cfg,
		logger: log,
		pool:   p,
	}
	if cfg.MaxEncoders > 0 {
		c.slots = semaphore.NewWeighted(int64(cfg.MaxEncoders))
	}
	return c, nil
}

// Config returns the configuration the codec was built with.
func (c *Codec) Config() Config { return c.config }

// Compress compresses data using a pooled encoder.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	return c.CompressContext(context.Background(), data)
}

// CompressContext is Compress that gives up waiting for an encoder when ctx
// is done.
func (c *Codec) CompressContext(ctx context.Context, data []byte) ([]byte, error) {
	var out []byte
	err := c.with(ctx, func(e *Encoder) error {
		var err error
		out, err = e.Compress(data)
		return err
	})
	return out, err
}

// Decompress decompresses data using a pooled encoder.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	return c.DecompressContext(context.Background(), data)
}

// DecompressContext is Decompress that gives up waiting for an encoder
// when ctx is done.
func (c *Codec) DecompressContext(ctx context.Context, data []byte) ([]byte, error) {
	var out []byte
	err := c.with(ctx, func(e *Encoder) error {
		var err error
		out, err = e.Decompress(data)
		return err
	})
	return out, err
}

// CompressStream compresses src into dst. The encoder is held until the
// stream is drained.
func (c *Codec) CompressStream(dst io.Writer, src io.Reader) error {
	return c.with(context.Background(), func(e *Encoder) error {
		return e.CompressStream(dst, src)
	})
}

// DecompressStream decompresses src into dst.
func (c *Codec) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.with(context.Background(), func(e *Encoder) error {
		return e.DecompressStream(dst, src)
	})
}

// Stats returns the encoder pool statistics.
func (c *Codec) Stats() pool.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Stats()
}

// Close stops handing out encoders, waits for the ones in use to come
// back, then disposes the encoder pool.
func (c *Codec) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.inflight.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Dispose()
}

func (c *Codec) with(ctx context.Context, fn func(*Encoder) error) error {
	if c.slots != nil {
		if err := c.slots.Acquire(ctx, 1); err != nil {
			return reservoirerrors.Wrap(err, reservoirerrors.ErrorTypeCapacityExceeded, "timed out waiting for an encoder")
		}
		defer c.slots.Release(1)
	}

	e, err := c.acquire()
	if err != nil {
		return err
	}
	ferr := fn(e)
	c.release(e)
	return ferr
}

func (c *Codec) acquire() (*Encoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, reservoirerrors.New(reservoirerrors.ErrorTypeDisposed, "codec is closed")
	}
	e, err := c.pool.Acquire()
	if err != nil {
		return nil, err
	}
	c.inflight.Add(1)
	return e, nil
}

func (c *Codec) release(e *Encoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.inflight.Done()
	if err := c.pool.Release(e); err != nil {
		c.logger.Error("failed to return encoder", zap.Stringer("encoder", e), zap.Error(err))
	}
}
