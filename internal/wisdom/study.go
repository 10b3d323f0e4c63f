package wisdom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Benchmarker measures one tuning of one shape. It returns a cost where
// lower is better (usually seconds per transform). Implementations should
// honor ctx: a call is waited for even after its deadline, and its result
// is then discarded.
type Benchmarker interface {
	Bench(ctx context.Context, shape Shape, tuning Tuning, params BenchParams) (float64, error)
}

// BenchFunc adapts a function to Benchmarker.
type BenchFunc func(ctx context.Context, shape Shape, tuning Tuning, params BenchParams) (float64, error)

// Bench calls f.
func (f BenchFunc) Bench(ctx context.Context, shape Shape, tuning Tuning, params BenchParams) (float64, error) {
	return f(ctx, shape, tuning, params)
}

var errBenchTimeout = errors.New("wisdom: benchmark timed out")

// Study benchmarks DefaultTuning followed by every candidate for shape and
// returns the cheapest. The default's cost seeds the minimum, so the result
// never costs more than the default. A candidate that fails or exceeds
// params.Timeout (DefaultBenchParams().Timeout when unset) is skipped;
// ties keep the earlier candidate.
//
// ErrNoViableCandidate is returned when nothing could be measured. If ctx
// is cancelled the study stops and ctx.Err() is returned.
func Study(ctx context.Context, shape Shape, static Static, bench Benchmarker, params BenchParams) (Entry, error) {
	return study(ctx, shape, static, bench, params, discardLogger)
}

func study(ctx context.Context, shape Shape, static Static, bench Benchmarker, params BenchParams,
	log *slog.Logger,
) (Entry, error) {
	if err := shape.Validate(); err != nil {
		return Entry{}, err
	}

	best := Entry{Tuning: DefaultTuning(), Cost: math.Inf(1)}
	measured := false

	try := func(t Tuning) error {
		cost, err := benchOne(ctx, bench, shape, t, params)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.Debug("wisdom: candidate skipped", "shape", shape.String(), "tuning", t.String(), "err", err)

			return nil
		}

		log.Debug("wisdom: candidate measured", "shape", shape.String(), "tuning", t.String(), "cost", cost)

		measured = true

		if cost < best.Cost {
			best = Entry{Tuning: t, Cost: cost}
		}

		return nil
	}

	if err := try(DefaultTuning()); err != nil {
		return Entry{}, err
	}

	for _, t := range Candidates(shape, static) {
		if err := try(t); err != nil {
			return Entry{}, err
		}
	}

	if !measured {
		return Entry{}, fmt.Errorf("%w: %s", ErrNoViableCandidate, shape)
	}

	return best, nil
}

// benchOne runs a single measurement under its own deadline. The call
// always returns before the next candidate starts, so one benchmarker is
// never driven from two goroutines. A result produced after the deadline
// is discarded; panics in the benchmarker count as failures.
func benchOne(ctx context.Context, bench Benchmarker, shape Shape, t Tuning, params BenchParams) (cost float64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultBenchParams().Timeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			cost, err = 0, fmt.Errorf("wisdom: benchmark panicked: %v", r)
		}
	}()

	cost, err = bench.Bench(cctx, shape, t, params)

	if cctx.Err() != nil {
		return 0, errBenchTimeout
	}

	if err != nil {
		return 0, err
	}

	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		return 0, fmt.Errorf("wisdom: benchmark returned cost %v", cost)
	}

	return cost, nil
}
