package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/compression"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/pool"
)

type compressFlags struct {
	algorithm  string
	level      string
	in         string
	out        string
	decompress bool
	parallel   bool
	chunkSize  int
	workers    int
	maxSize    int64
}

func newCompressCommand() *cobra.Command {
	f := &compressFlags{}
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Compress or decompress a file through pooled encoders",
		Long: `Compress or decompress a file with one of none, gzip, snappy, lz4, zstd,
s2 or deflate. Input and output default to stdin and stdout.

With --parallel the input is split into chunks that are compressed
concurrently; such output can only be read back with --parallel -d.

Example:
  reservoir compress --algorithm zstd --level best --in data.json --out data.json.zst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", string(compression.Snappy), "Compression algorithm")
	cmd.Flags().StringVarP(&f.level, "level", "l", "default", "Compression level (fastest, default, better, best)")
	cmd.Flags().StringVarP(&f.in, "in", "i", "", "Input file, stdin when empty")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file, stdout when empty")
	cmd.Flags().BoolVarP(&f.decompress, "decompress", "d", false, "Decompress instead of compress")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "Use the chunked parallel format")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 1024*1024, "Chunk size for --parallel")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Encoder cap, 0 for GOMAXPROCS")
	cmd.Flags().Int64Var(&f.maxSize, "max-size", compression.DefaultConfig().MaxDecompressedSize, "Decompressed size limit in bytes, 0 for none")
	return cmd
}

func runCompress(ctx context.Context, stdin io.Reader, stdout io.Writer, f *compressFlags) (err error) {
	algorithm, err := compression.ParseAlgorithm(f.algorithm)
	if err != nil {
		return err
	}
	level, err := compression.ParseLevel(f.level)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := compression.Config{
		Algorithm:           algorithm,
		Level:               level,
		MaxEncoders:         f.workers,
		MaxDecompressedSize: f.maxSize,
		ChunkSize:           f.chunkSize,
	}
	log := logger.Named("compress")
	codec, err := compression.NewCodec(cfg, pool.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, codec.Close()) }()

	in := stdin
	if f.in != "" {
		file, ferr := os.Open(f.in)
		if ferr != nil {
			return ferr
		}
		defer file.Close()
		in = file
	}
	out := stdout
	if f.out != "" {
		file, ferr := os.Create(f.out)
		if ferr != nil {
			return ferr
		}
		defer func() { err = multierr.Append(err, file.Close()) }()
		out = file
	}

	counted := &countingWriter{w: out}
	switch {
	case f.parallel:
		err = runParallel(ctx, codec, in, counted, f.decompress)
	case f.decompress:
		err = codec.DecompressStream(counted, in)
	default:
		err = codec.CompressStream(counted, in)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", direction(f.decompress), err)
	}

	stats := codec.Stats()
	log.Info(direction(f.decompress)+" finished",
		zap.String("algorithm", string(algorithm)),
		zap.Stringer("level", level),
		zap.Int64("bytes_written", counted.n),
		zap.Int64("encoders_created", stats.Created),
		zap.Int64("encoders_reused", stats.Reused))
	return nil
}

func runParallel(ctx context.Context, codec *compression.Codec, in io.Reader, out io.Writer, decompress bool) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	var result []byte
	if decompress {
		result, err = codec.DecompressParallel(ctx, data)
	} else {
		result, err = codec.CompressParallel(ctx, data)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(result)
	return err
}

func direction(decompress bool) string {
	if decompress {
		return "decompress"
	}
	return "compress"
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
