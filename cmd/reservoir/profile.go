package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// profiler writes pprof profiles around a simulation run.
type profiler struct {
	dir   string
	types []string
	cpu   *os.File
}

func startProfiling(dir string, types []string) (*profiler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	p := &profiler{dir: dir, types: types}

	if slices.Contains(types, "block") {
		runtime.SetBlockProfileRate(1)
	}
	if slices.Contains(types, "mutex") {
		runtime.SetMutexProfileFraction(1)
	}
	if slices.Contains(types, "cpu") {
		f, err := os.Create(filepath.Join(dir, "cpu.prof"))
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpu = f
	}
	return p, nil
}

func (p *profiler) stop() error {
	var errs error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		errs = multierr.Append(errs, p.cpu.Close())
	}
	for _, t := range p.types {
		switch t {
		case "memory":
			runtime.GC()
			errs = multierr.Append(errs, p.write("heap", "mem.prof"))
		case "block", "mutex", "goroutine":
			errs = multierr.Append(errs, p.write(t, t+".prof"))
		}
	}
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	return errs
}

func (p *profiler) write(name, file string) (err error) {
	profile := pprof.Lookup(name)
	if profile == nil {
		return fmt.Errorf("profile %s not found", name)
	}
	f, err := os.Create(filepath.Join(p.dir, file))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return profile.WriteTo(f, 0)
}

// parseProfileTypes parses the profile types string
func parseProfileTypes(typesStr string) []string {
	if typesStr == "all" {
		return []string{"cpu", "memory", "block", "mutex", "goroutine"}
	}

	parts := strings.Split(typesStr, ",")
	types := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "cpu", "memory", "mem", "block", "mutex", "goroutine":
			if part == "mem" {
				part = "memory"
			}
			if !slices.Contains(types, part) {
				types = append(types, part)
			}
		}
	}
	return types
}
