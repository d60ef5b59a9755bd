package compression

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

func sampleData(n int) []byte {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, `{"id":%d,"name":"user %d","email":"user%d@example.com","active":true}`+"\n", i, i%97, i)
	}
	return []byte(b.String()[:n])
}

func TestParseAlgorithm(t *testing.T) {
	for _, a := range Algorithms {
		got, err := ParseAlgorithm(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	got, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, Snappy, got)

	_, err = ParseAlgorithm("brotli")
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeConfig))
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{Fastest, Default, Better, Best} {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLevel("extreme")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Level = 42
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PrewarmEncoders = cfg.MaxEncoders + 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxDecompressedSize = -1
	assert.Error(t, cfg.Validate())
}

func TestEncoderRoundTripAllAlgorithms(t *testing.T) {
	original := sampleData(64 * 1024)

	for _, algorithm := range Algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(fmt.Sprintf("%s/%s", algorithm, level), func(t *testing.T) {
				e, err := NewEncoder(algorithm, level, 0)
				require.NoError(t, err)
				defer e.Close()

				// Twice, so the reset path of every writer and reader runs.
				for i := 0; i < 2; i++ {
					compressed, err := e.Compress(original)
					require.NoError(t, err)
					if algorithm != None {
						assert.Less(t, len(compressed), len(original))
					}

					decompressed, err := e.Decompress(compressed)
					require.NoError(t, err)
					assert.True(t, bytes.Equal(original, decompressed))
				}
			})
		}
	}
}

func TestEncoderStreams(t *testing.T) {
	original := sampleData(200 * 1024)

	e, err := NewEncoder(Zstd, Default, 0)
	require.NoError(t, err)
	defer e.Close()

	var compressed bytes.Buffer
	require.NoError(t, e.CompressStream(&compressed, bytes.NewReader(original)))

	var out bytes.Buffer
	require.NoError(t, e.DecompressStream(&out, &compressed))
	assert.Equal(t, original, out.Bytes())
}

func TestEncoderDecompressLimit(t *testing.T) {
	original := sampleData(10 * 1024)

	e, err := NewEncoder(Gzip, Default, 1024)
	require.NoError(t, err)
	defer e.Close()

	compressed, err := e.Compress(original)
	require.NoError(t, err)

	_, err = e.Decompress(compressed)
	require.Error(t, err)
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeValidation))

	exact, err := NewEncoder(Gzip, Default, int64(len(original)))
	require.NoError(t, err)
	defer exact.Close()

	out, err := exact.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestEncoderLifecycle(t *testing.T) {
	f := &EncoderFactory{Algorithm: LZ4, Level: Default}
	a, err := f.Create("lz4-encoder", nil)
	require.NoError(t, err)
	b, err := f.Create("lz4-encoder", nil)
	require.NoError(t, err)

	assert.Equal(t, "lz4-encoder-1", a.String())
	assert.Equal(t, "lz4-encoder-2", b.String())

	a.OnAcquire()
	a.SetActive(true)
	assert.Equal(t, 1, a.Uses())
	assert.True(t, a.Active())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, a.Alive())

	_, err = a.Compress([]byte("closed"))
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeInternal))
	require.NoError(t, b.Close())
}

func TestEncoderReleaseDropsLargeBuffer(t *testing.T) {
	e, err := NewEncoder(None, Default, 0)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Compress(make([]byte, maxRetainedBuffer+1))
	require.NoError(t, err)
	require.Greater(t, e.buf.Cap(), maxRetainedBuffer)

	e.OnRelease()
	assert.Zero(t, e.buf.Cap())
}

func TestCodecReusesEncoders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = S2
	cfg.MaxEncoders = 2
	cfg.PrewarmEncoders = 1

	c, err := NewCodec(cfg, pool.WithRand(pool.NewRand(1)))
	require.NoError(t, err)
	defer c.Close()

	original := sampleData(32 * 1024)
	for i := 0; i < 10; i++ {
		compressed, err := c.Compress(original)
		require.NoError(t, err)
		out, err := c.Decompress(compressed)
		require.NoError(t, err)
		require.Equal(t, original, out)
	}

	stats := c.Stats()
	assert.Equal(t, "compression.s2", stats.Name)
	assert.Equal(t, "s2-encoder", stats.Template)
	assert.Equal(t, int64(1), stats.Created)
	assert.Equal(t, int64(20), stats.Reused)
	assert.Equal(t, 1, stats.Idle)
	assert.Zero(t, stats.CheckedOut)
}

func TestCodecConcurrentCallersShareBoundedEncoders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = Zstd
	cfg.MaxEncoders = 3

	c, err := NewCodec(cfg)
	require.NoError(t, err)

	original := sampleData(16 * 1024)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			compressed, err := c.Compress(original)
			if err != nil {
				errs <- err
				return
			}
			out, err := c.Decompress(compressed)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(original, out) {
				errs <- fmt.Errorf("round trip mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Created, int64(3))
	assert.Zero(t, stats.CheckedOut)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, stats.Created, c.Stats().Destroyed)

	_, err = c.Compress(original)
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeDisposed))
}

func TestCodecContextCancelledWhileWaiting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEncoders = 1

	c, err := NewCodec(cfg)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.slots.Acquire(context.Background(), 1))
	defer c.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.CompressContext(ctx, []byte("blocked"))
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeCapacityExceeded))
}

func TestCodecRejectsInvalidConfig(t *testing.T) {
	_, err := NewCodec(Config{Algorithm: "brotli", Level: Default})
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeConfig))
}

func TestParallelRoundTrip(t *testing.T) {
	original := sampleData(300 * 1024)

	for _, algorithm := range Algorithms {
		t.Run(string(algorithm), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Algorithm = algorithm
			cfg.ChunkSize = 64 * 1024

			c, err := NewCodec(cfg)
			require.NoError(t, err)
			defer c.Close()

			framed, err := c.CompressParallel(context.Background(), original)
			require.NoError(t, err)
			assert.Equal(t, frameMagic, string(framed[:4]))

			out, err := c.DecompressParallel(context.Background(), framed)
			require.NoError(t, err)
			assert.Equal(t, original, out)
		})
	}
}

func TestParallelRejectsCorruptFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	c, err := NewCodec(cfg)
	require.NoError(t, err)
	defer c.Close()

	framed, err := c.CompressParallel(context.Background(), sampleData(8*1024))
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame []byte
	}{
		{"short", framed[:8]},
		{"bad magic", append([]byte("XXXX"), framed[4:]...)},
		{"truncated", framed[:len(framed)-3]},
		{"trailing", append(append([]byte{}, framed...), 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecompressParallel(context.Background(), tt.frame)
			assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeValidation), "got %v", err)
		})
	}

	other := DefaultConfig()
	other.Algorithm = Zstd
	oc, err := NewCodec(other)
	require.NoError(t, err)
	defer oc.Close()
	_, err = oc.DecompressParallel(context.Background(), framed)
	assert.Error(t, err)
}

func TestParallelHonorsLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	cfg.MaxDecompressedSize = 4 * 1024
	c, err := NewCodec(cfg)
	require.NoError(t, err)
	defer c.Close()

	framed, err := c.CompressParallel(context.Background(), sampleData(8*1024))
	require.NoError(t, err)

	_, err = c.DecompressParallel(context.Background(), framed)
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeValidation))
}

func TestSplitChunks(t *testing.T) {
	assert.Len(t, splitChunks(nil, 10), 1)
	assert.Len(t, splitChunks(make([]byte, 10), 10), 1)
	assert.Len(t, splitChunks(make([]byte, 11), 10), 2)
	chunks := splitChunks(make([]byte, 25), 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 5)
}
