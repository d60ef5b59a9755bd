package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Reservoir v"+version)
	assert.Contains(t, out, "Go version:")
}

func TestCompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := bytes.Repeat([]byte("reservoir pools lend and reclaim items\n"), 5000)
	in := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(in, input, 0o600))

	for _, tc := range []struct {
		name string
		args []string
	}{
		{"zstd", []string{"--algorithm", "zstd", "--level", "best"}},
		{"gzip", []string{"--algorithm", "gzip"}},
		{"lz4 parallel", []string{"--algorithm", "lz4", "--parallel", "--chunk-size", "16384", "--workers", "2"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			packed := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".bin")
			unpacked := packed + ".out"

			_, err := execute(t, nil, append([]string{"compress", "--in", in, "--out", packed}, tc.args...)...)
			require.NoError(t, err)
			_, err = execute(t, nil, append([]string{"compress", "-d", "--in", packed, "--out", unpacked}, tc.args...)...)
			require.NoError(t, err)

			got, err := os.ReadFile(unpacked)
			require.NoError(t, err)
			assert.Equal(t, input, got)

			info, err := os.Stat(packed)
			require.NoError(t, err)
			assert.Less(t, info.Size(), int64(len(input)))
		})
	}
}

func TestCompressStdio(t *testing.T) {
	input := []byte(strings.Repeat("abc", 1000))
	packed, err := execute(t, input, "compress", "--algorithm", "s2")
	require.NoError(t, err)

	out, err := execute(t, []byte(packed), "compress", "-d", "--algorithm", "s2")
	require.NoError(t, err)
	assert.Equal(t, string(input), out)
}

func TestCompressRejectsUnknownAlgorithm(t *testing.T) {
	_, err := execute(t, nil, "compress", "--algorithm", "brotli")
	assert.Error(t, err)
}

const simulateYAML = `name: cli-test
logging:
  level: error
metrics:
  enabled: true
pools:
  - name: tokens
    discipline: linked_list
    prewarm_size: 2
    max_size: 8
    collection_checks: true
  - name: encoders
    max_size: 2
    item:
      kind: compressor
      algorithm: snappy
workload:
  steps: 300
  seed: 3
  weights:
    acquire: 4
    release: 3
    release_random: 2
    release_all: 1
    clear: 1
`

func TestSimulateJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reservoir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(simulateYAML), 0o600))
	metricsPath := filepath.Join(dir, "metrics.txt")

	out, err := execute(t, nil, "simulate", "--config", path, "--json", "--steps", "200", "--metrics-out", metricsPath)
	require.NoError(t, err)

	var result simulateOutput
	require.NoError(t, gojson.Unmarshal([]byte(out), &result))
	require.Len(t, result.Reports, 2)
	assert.Equal(t, "tokens", result.Reports[0].Pool)
	assert.Equal(t, 200, result.Reports[0].Steps)
	assert.Equal(t, "linked_list", result.Reports[0].Stats.Discipline)
	assert.Equal(t, "encoders", result.Reports[1].Pool)
	assert.Positive(t, result.Resources.Goroutines)

	text, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), `reservoir_pool_events_total{event="acquired",pool="tokens"}`)
}

func TestParseProfileTypes(t *testing.T) {
	assert.Equal(t, []string{"cpu", "memory"}, parseProfileTypes("cpu, mem,bogus,memory"))
	assert.Len(t, parseProfileTypes("all"), 5)
}

func TestProfilerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := startProfiling(dir, []string{"memory", "goroutine"})
	require.NoError(t, err)
	require.NoError(t, p.stop())

	assert.FileExists(t, filepath.Join(dir, "mem.prof"))
	assert.FileExists(t, filepath.Join(dir, "goroutine.prof"))
}

func TestServeRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []string{"0", "-1s"} {
		t.Run(interval, func(t *testing.T) {
			_, err := execute(t, nil, "serve", "--interval", interval, "--listen", "127.0.0.1:0")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "interval must be positive")
		})
	}
}
