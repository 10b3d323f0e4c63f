package ocean

import (
	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// Re-exported tuning types so callers need not import internal packages.
type (
	Shape       = wisdom.Shape
	Tuning      = wisdom.Tuning
	Entry       = wisdom.Entry
	Static      = wisdom.Static
	BenchParams = wisdom.BenchParams
	Benchmarker = wisdom.Benchmarker
	BenchFunc   = wisdom.BenchFunc
)

// CacheStats are the plan cache counters of a simulation.
type CacheStats = gpu.CacheStats

// DefaultTuning returns the built-in transform parameters.
func DefaultTuning() Tuning { return wisdom.DefaultTuning() }

// StaticFromRenderer returns the hardware bounds for a device description.
func StaticFromRenderer(renderer string, maxThreads uint32) (Static, string) {
	return wisdom.StaticFromRenderer(renderer, maxThreads)
}
