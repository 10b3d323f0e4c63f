// Package backends maps backend names from configuration and command
// lines to gpu.Backend implementations.
package backends

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/gpu/opencl"
	"github.com/cwbudde/algo-ocean/gpu/wgpu"
)

// ErrUnknownBackend is returned for names Open does not recognise.
var ErrUnknownBackend = errors.New("backends: unknown backend")

// Options are passed to device backends.
type Options struct {
	// Dispatches is the number of transforms timed per submit when
	// benchmarking. Zero keeps the backend default.
	Dispatches int
	Logger     *slog.Logger
}

// Names lists the accepted backend names.
func Names() []string {
	return []string{"auto", "cpu", "opencl", "wgpu"}
}

// Open returns the backend called name. "auto" returns the first
// available of wgpu, opencl and cpu. Names are case-insensitive and
// "vulkan" is an alias for wgpu.
func Open(name string, opts Options) (gpu.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return gpu.NewCPUBackend(), nil
	case "wgpu", "vulkan", "webgpu":
		return wgpu.New(wgpu.WithDispatches(opts.Dispatches), wgpu.WithLogger(opts.Logger)), nil
	case "opencl":
		return opencl.New(opencl.WithDispatches(opts.Dispatches), opencl.WithLogger(opts.Logger)), nil
	case "auto":
		for _, candidate := range []string{"wgpu", "opencl"} {
			b, _ := Open(candidate, opts)
			if b.Available() {
				return b, nil
			}
		}

		return gpu.NewCPUBackend(), nil
	}

	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownBackend, name, strings.Join(Names(), ", "))
}

// Known reports whether Open accepts name.
func Known(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "" || n == "vulkan" || n == "webgpu" || slices.Contains(Names(), n)
}
