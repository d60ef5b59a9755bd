package compression

import (
	"context"
	"encoding/binary"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Chunked frame layout, all integers big-endian:
//
//	magic     [4]byte "RCMP"
//	version   uint8
//	algorithm uint8   index into Algorithms
//	chunks    uint32
//	original  uint64  total uncompressed size
//	then per chunk: uint32 length followed by the compressed bytes
const (
	frameMagic      = "RCMP"
	frameVersion    = 1
	frameHeaderSize = 4 + 1 + 1 + 4 + 8
)

// CompressParallel splits data into ChunkSize chunks and compresses them
// concurrently with pooled encoders. The result can only be read back by
// DecompressParallel.
func (c *Codec) CompressParallel(ctx context.Context, data []byte) ([]byte, error) {
	chunks := splitChunks(data, c.chunkSize())
	compressed := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := c.CompressContext(gctx, chunk)
			if err != nil {
				return err
			}
			compressed[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := frameHeaderSize
	for _, chunk := range compressed {
		size += 4 + len(chunk)
	}
	out := make([]byte, frameHeaderSize, size)
	copy(out, frameMagic)
	out[4] = frameVersion
	out[5] = algorithmIndex(c.config.Algorithm)
	binary.BigEndian.PutUint32(out[6:10], uint32(len(compressed)))
	binary.BigEndian.PutUint64(out[10:18], uint64(len(data)))
	for _, chunk := range compressed {
		out = binary.BigEndian.AppendUint32(out, uint32(len(chunk)))
		out = append(out, chunk...)
	}
	return out, nil
}

// DecompressParallel reverses CompressParallel.
func (c *Codec) DecompressParallel(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize || string(data[:4]) != frameMagic {
		return nil, corrupted("missing chunked frame header")
	}
	if data[4] != frameVersion {
		return nil, corrupted("unsupported frame version").WithDetail("version", data[4])
	}
	if data[5] != algorithmIndex(c.config.Algorithm) {
		return nil, corrupted("frame was written with a different algorithm").
			WithDetail("expected", string(c.config.Algorithm))
	}
	numChunks := int(binary.BigEndian.Uint32(data[6:10]))
	original := binary.BigEndian.Uint64(data[10:18])
	if limit := c.config.MaxDecompressedSize; limit > 0 && original > uint64(limit) {
		return nil, reservoirerrors.New(reservoirerrors.ErrorTypeValidation, "decompressed size exceeds limit").
			WithDetail("size", original).
			WithDetail("limit", limit)
	}

	chunks := make([][]byte, 0, min(numChunks, len(data)/4))
	offset := frameHeaderSize
	for i := 0; i < numChunks; i++ {
		if offset+4 > len(data) {
			return nil, corrupted("truncated chunk length").WithDetail("chunk", i)
		}
		n := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if n > len(data)-offset {
			return nil, corrupted("truncated chunk").WithDetail("chunk", i)
		}
		chunks = append(chunks, data[offset:offset+n])
		offset += n
	}
	if offset != len(data) {
		return nil, corrupted("trailing bytes after last chunk")
	}

	decompressed := make([][]byte, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := c.DecompressContext(gctx, chunk)
			if err != nil {
				return err
			}
			decompressed[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, original)
	for _, chunk := range decompressed {
		out = append(out, chunk...)
	}
	if uint64(len(out)) != original {
		return nil, corrupted("decompressed size does not match header").
			WithDetail("expected", original).
			WithDetail("actual", len(out))
	}
	return out, nil
}

func (c *Codec) chunkSize() int {
	if c.config.ChunkSize > 0 {
		return c.config.ChunkSize
	}
	return 1024 * 1024
}

func (c *Codec) workers() int {
	if c.config.MaxEncoders > 0 {
		return c.config.MaxEncoders
	}
	return runtime.GOMAXPROCS(0)
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{data}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

func algorithmIndex(a Algorithm) byte {
	for i, candidate := range Algorithms {
		if candidate == a {
			return byte(i)
		}
	}
	return 0xff
}

func corrupted(msg string) *reservoirerrors.Error {
	return reservoirerrors.New(reservoirerrors.ErrorTypeValidation, "corrupted compressed data: "+msg)
}
