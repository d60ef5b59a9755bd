// Package compression provides pooled compression encoders for reservoir.
// An Encoder bundles the reusable writer and reader state of one algorithm
// and is expensive enough to construct that it is worth pooling; a Codec
// owns a bounded pool of them and is safe for concurrent use.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (Gzip, Snappy, LZ4, Zstd, S2, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Encoders implementing pool.Item, pool.Activatable, pool.Liveness and io.Closer
//   - A Codec for in-memory, streaming and chunked parallel operations
//   - Decompression size limits
//
// # Algorithm Selection
//
// Choose algorithms based on your requirements:
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip: Wide compatibility, good compression
//   - Deflate: Standard algorithm, wide support
//
// # Basic Usage
//
//	codec, err := compression.NewCodec(compression.Config{
//	    Algorithm:   compression.Zstd,
//	    Level:       compression.Default,
//	    MaxEncoders: 4,
//	})
//	defer codec.Close()
//
//	compressed, err := codec.Compress(data)
//	original, err := codec.Decompress(compressed)
//
// # Performance Characteristics
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > Gzip/Deflate
// Compression ratio (best to worst): Zstd > Gzip/Deflate > Snappy/S2 > LZ4
package compression

import (
	"strings"

	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Algorithm represents a compression algorithm.
// Each algorithm has different trade-offs between speed and compression ratio.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// ParseAlgorithm parses an algorithm name. The empty string selects Snappy.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return Snappy, nil
	}
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	// Use for real-time scenarios where latency is critical.
	Fastest Level = 1
	// Default balances speed and compression.
	// Suitable for most use cases.
	Default Level = 5
	// Better improves compression at cost of speed.
	// Use when storage is more important than CPU.
	Better Level = 7
	// Best maximizes compression ratio.
	// Use for archival or when compression ratio is paramount.
	Best Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// ParseLevel parses fastest, default, better or best. The empty string
// selects Default.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unknown compression level: %s", s)
	}
}

// Config represents codec configuration.
//
// Example:
//
//	config := compression.Config{
//	    Algorithm:   compression.Zstd,   // High compression
//	    Level:       compression.Better, // Favor compression ratio
//	    MaxEncoders: runtime.NumCPU(),   // One encoder per core
//	}
type Config struct {
	Algorithm           Algorithm // Compression algorithm to use
	Level               Level     // Compression level
	MaxEncoders         int       // Encoder cap, 0 = unbounded
	PrewarmEncoders     int       // Encoders built up front
	MaxDecompressedSize int64     // Decompression limit in bytes, 0 = unlimited
	ChunkSize           int       // Chunk size for parallel compression
}

// DefaultConfig returns default compression configuration optimized for
// balance between speed and compression ratio.
func DefaultConfig() Config {
	return Config{
		Algorithm:           Snappy,            // Fast with decent compression
		Level:               Default,           // Balanced settings
		MaxEncoders:         4,                 // Moderate parallelism
		MaxDecompressedSize: 256 * 1024 * 1024, // 256MB
		ChunkSize:           1024 * 1024,       // 1MB chunks
	}
}

// Validate checks the configuration for correctness.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	switch c.Level {
	case Fastest, Default, Better, Best:
	default:
		return reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unknown compression level: %d", int(c.Level))
	}
	if c.MaxEncoders < 0 || c.PrewarmEncoders < 0 || c.MaxDecompressedSize < 0 || c.ChunkSize < 0 {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "compression sizes cannot be negative")
	}
	if c.MaxEncoders > 0 && c.PrewarmEncoders > c.MaxEncoders {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "prewarm encoders cannot exceed max encoders")
	}
	return nil
}
