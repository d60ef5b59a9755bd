package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// maxRetainedBuffer caps the scratch buffer an idle encoder keeps.
const maxRetainedBuffer = 4 * 1024 * 1024

// Encoder compresses and decompresses with one algorithm, reusing its
// writer and reader state across calls. An Encoder is not safe for
// concurrent use; pool it instead.
type Encoder struct {
	id        int64
	algorithm Algorithm
	level     Level
	limit     int64
	codec     codec
	buf       bytes.Buffer
	active    bool
	closed    bool
	uses      int
}

var (
	_ pool.Item        = (*Encoder)(nil)
	_ pool.Activatable = (*Encoder)(nil)
	_ pool.Liveness    = (*Encoder)(nil)
	_ io.Closer        = (*Encoder)(nil)
)

// NewEncoder builds an encoder. limit caps decompressed output in bytes,
// zero meaning unlimited.
func NewEncoder(algorithm Algorithm, level Level, limit int64) (*Encoder, error) {
	c, err := newCodec(algorithm, level)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		algorithm: algorithm,
		level:     level,
		limit:     limit,
		codec:     c,
	}, nil
}

// Compress compresses data and returns the compressed bytes.
// The input data is not modified.
func (e *Encoder) Compress(data []byte) ([]byte, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	e.buf.Reset()
	if err := e.codec.compress(&e.buf, bytes.NewReader(data)); err != nil {
		return nil, e.wrap(err, "compress failed")
	}
	return e.copyOut(), nil
}

// Decompress decompresses data and returns the original bytes.
func (e *Encoder) Decompress(data []byte) ([]byte, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	e.buf.Reset()
	if err := e.decompress(&e.buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return e.copyOut(), nil
}

// CompressStream compresses from src to dst.
func (e *Encoder) CompressStream(dst io.Writer, src io.Reader) error {
	if err := e.usable(); err != nil {
		return err
	}
	if err := e.codec.compress(dst, src); err != nil {
		return e.wrap(err, "compress stream failed")
	}
	return nil
}

// DecompressStream decompresses from src to dst.
func (e *Encoder) DecompressStream(dst io.Writer, src io.Reader) error {
	if err := e.usable(); err != nil {
		return err
	}
	return e.decompress(dst, src)
}

func (e *Encoder) decompress(dst io.Writer, src io.Reader) error {
	r, err := e.codec.reader(src)
	if err != nil {
		return e.wrap(err, "decompress failed")
	}
	if e.limit <= 0 {
		if _, err := io.Copy(dst, r); err != nil { //nolint:gosec // G110: bounded by the codec limit when set
			return e.wrap(err, "decompress failed")
		}
		return nil
	}
	n, err := io.CopyN(dst, r, e.limit+1)
	if err != nil && err != io.EOF {
		return e.wrap(err, "decompress failed")
	}
	if n > e.limit {
		return reservoirerrors.New(reservoirerrors.ErrorTypeValidation, "decompressed size exceeds limit").
			WithDetail("algorithm", string(e.algorithm)).
			WithDetail("limit", e.limit)
	}
	return nil
}

func (e *Encoder) copyOut() []byte {
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out
}

func (e *Encoder) usable() error {
	if e.closed {
		return reservoirerrors.New(reservoirerrors.ErrorTypeInternal, "encoder is closed").
			WithDetail("encoder", e.String())
	}
	return nil
}

func (e *Encoder) wrap(err error, msg string) error {
	return reservoirerrors.Wrap(err, reservoirerrors.ErrorTypeInternal, msg).
		WithDetail("algorithm", string(e.algorithm))
}

// OnAcquire counts the checkout.
func (e *Encoder) OnAcquire() {
	e.uses++
}

// OnRelease drops the scratch output and an oversized buffer.
func (e *Encoder) OnRelease() {
	if e.buf.Cap() > maxRetainedBuffer {
		e.buf = bytes.Buffer{}
		return
	}
	e.buf.Reset()
}

// SetActive implements pool.Activatable.
func (e *Encoder) SetActive(active bool) { e.active = active }

// Active reports whether the encoder is checked out.
func (e *Encoder) Active() bool { return e.active }

// Alive reports false once the encoder was closed.
func (e *Encoder) Alive() bool { return !e.closed }

// Uses returns how many times the encoder was acquired.
func (e *Encoder) Uses() int { return e.uses }

// Algorithm returns the compression algorithm used.
func (e *Encoder) Algorithm() Algorithm { return e.algorithm }

// Level returns the compression level configured.
func (e *Encoder) Level() Level { return e.level }

// Close releases the codec state. Closing twice is a no-op.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.buf = bytes.Buffer{}
	return e.codec.close()
}

func (e *Encoder) String() string {
	return fmt.Sprintf("%s-encoder-%d", e.algorithm, e.id)
}

// EncoderFactory builds encoders for a pool.
type EncoderFactory struct {
	Algorithm           Algorithm
	Level               Level
	MaxDecompressedSize int64

	next atomic.Int64
}

var _ pool.Factory[*Encoder] = (*EncoderFactory)(nil)

// Create implements pool.Factory.
func (f *EncoderFactory) Create(_ string, _ pool.Target) (*Encoder, error) {
	e, err := NewEncoder(f.Algorithm, f.Level, f.MaxDecompressedSize)
	if err != nil {
		return nil, err
	}
	e.id = f.next.Add(1)
	return e, nil
}

// codec is the reusable per-algorithm state of an Encoder.
type codec interface {
	compress(dst io.Writer, src io.Reader) error
	reader(src io.Reader) (io.Reader, error)
	close() error
}

func newCodec(algorithm Algorithm, level Level) (codec, error) {
	switch algorithm {
	case None:
		return noneCodec{}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(nil, mapGzipLevel(level))
		if err != nil {
			return nil, err
		}
		return &gzipCodec{w: w}, nil
	case Deflate:
		w, err := flate.NewWriter(nil, mapDeflateLevel(level))
		if err != nil {
			return nil, err
		}
		return &deflateCodec{w: w}, nil
	case Snappy:
		return &snappyCodec{w: snappy.NewBufferedWriter(nil), r: snappy.NewReader(nil)}, nil
	case S2:
		return &s2Codec{w: s2.NewWriter(nil, mapS2Level(level)...), r: s2.NewReader(nil)}, nil
	case LZ4:
		w := lz4.NewWriter(nil)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return &lz4Codec{w: w, r: lz4.NewReader(nil)}, nil
	case Zstd:
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(mapZstdLevel(level)),
			zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = enc.Close()
			return nil, err
		}
		return &zstdCodec{enc: enc, dec: dec}, nil
	default:
		return nil, reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", algorithm)
	}
}

// None codec (no compression)
type noneCodec struct{}

func (noneCodec) compress(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (noneCodec) reader(src io.Reader) (io.Reader, error) { return src, nil }

func (noneCodec) close() error { return nil }

// Gzip codec
type gzipCodec struct {
	w *gzip.Writer
	r *gzip.Reader
}

func (c *gzipCodec) compress(dst io.Writer, src io.Reader) error {
	c.w.Reset(dst)
	if _, err := io.Copy(c.w, src); err != nil {
		return err
	}
	return c.w.Close()
}

func (c *gzipCodec) reader(src io.Reader) (io.Reader, error) {
	if c.r == nil {
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		c.r = r
		return r, nil
	}
	if err := c.r.Reset(src); err != nil {
		return nil, err
	}
	return c.r, nil
}

func (c *gzipCodec) close() error { return nil }

// Deflate codec
type deflateCodec struct {
	w *flate.Writer
	r io.ReadCloser
}

func (c *deflateCodec) compress(dst io.Writer, src io.Reader) error {
	c.w.Reset(dst)
	if _, err := io.Copy(c.w, src); err != nil {
		return err
	}
	return c.w.Close()
}

func (c *deflateCodec) reader(src io.Reader) (io.Reader, error) {
	if c.r == nil {
		c.r = flate.NewReader(src)
		return c.r, nil
	}
	if err := c.r.(flate.Resetter).Reset(src, nil); err != nil {
		return nil, err
	}
	return c.r, nil
}

func (c *deflateCodec) close() error {
	if c.r == nil {
		return nil
	}
	return c.r.Close()
}

// Snappy codec (framed stream format)
type snappyCodec struct {
	w *snappy.Writer
	r *snappy.Reader
}

func (c *snappyCodec) compress(dst io.Writer, src io.Reader) error {
	c.w.Reset(dst)
	if _, err := io.Copy(c.w, src); err != nil {
		return err
	}
	return c.w.Close()
}

func (c *snappyCodec) reader(src io.Reader) (io.Reader, error) {
	c.r.Reset(src)
	return c.r, nil
}

func (c *snappyCodec) close() error { return nil }

// S2 codec (Snappy-compatible but better compression)
type s2Codec struct {
	w *s2.Writer
	r *s2.Reader
}

func (c *s2Codec) compress(dst io.Writer, src io.Reader) error {
	c.w.Reset(dst)
	if _, err := io.Copy(c.w, src); err != nil {
		return err
	}
	return c.w.Close()
}

func (c *s2Codec) reader(src io.Reader) (io.Reader, error) {
	c.r.Reset(src)
	return c.r, nil
}

func (c *s2Codec) close() error { return nil }

// LZ4 codec
type lz4Codec struct {
	w *lz4.Writer
	r *lz4.Reader
}

func (c *lz4Codec) compress(dst io.Writer, src io.Reader) error {
	c.w.Reset(dst)
	if _, err := io.Copy(c.w, src); err != nil {
		return err
	}
	return c.w.Close()
}

func (c *lz4Codec) reader(src io.Reader) (io.Reader, error) {
	c.r.Reset(src)
	return c.r, nil
}

func (c *lz4Codec) close() error { return nil }

// Zstd codec
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (c *zstdCodec) compress(dst io.Writer, src io.Reader) error {
	c.enc.Reset(dst)
	if _, err := io.Copy(c.enc, src); err != nil {
		return err
	}
	return c.enc.Close()
}

func (c *zstdCodec) reader(src io.Reader) (io.Reader, error) {
	if err := c.dec.Reset(src); err != nil {
		return nil, err
	}
	return c.dec, nil
}

func (c *zstdCodec) close() error {
	c.dec.Close()
	return c.enc.Close()
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func mapS2Level(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
