package gpu

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// NewBenchmarker returns a wisdom.Benchmarker that builds a throwaway plan
// on c for every candidate and times it with Context.Benchmark.
func NewBenchmarker(c Context) wisdom.Benchmarker {
	return wisdom.BenchFunc(func(ctx context.Context, shape Shape, tuning Tuning, params wisdom.BenchParams) (float64, error) {
		p, err := NewPlan(c, shape, tuning)
		if err != nil {
			return 0, err
		}

		defer p.Close()

		if params.Warmup > 0 {
			if _, err := c.Benchmark(ctx, p, params.Warmup); err != nil {
				return 0, fmt.Errorf("gpu: warmup: %w", err)
			}
		}

		iterations := max(params.Iterations, 1)

		return c.Benchmark(ctx, p, iterations)
	})
}
