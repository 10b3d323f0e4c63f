package gpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// CanonicalShape is the shape under which plans of sizeX × sizeY look up
// their tuning: radix 64 horizontal passes between storage buffers in
// unnormalized fp32.
func CanonicalShape(sizeX, sizeY int) Shape {
	return Shape{
		Nx:     uint32(sizeX),
		Ny:     uint32(sizeY),
		Radix:  64,
		Mode:   wisdom.ModeHorizontal,
		Input:  wisdom.TargetSSBO,
		Output: wisdom.TargetSSBO,
	}
}

type planKey struct {
	x, y int
}

// CacheStats are counters of a PlanCache.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Plans  int
}

// CacheOption configures a PlanCache.
type CacheOption func(*PlanCache)

// WithLogger sets the cache logger. A nil logger silences it.
func WithLogger(log *slog.Logger) CacheOption {
	return func(c *PlanCache) {
		if log != nil {
			c.log = log
		}
	}
}

// PlanCache keeps one Plan per transform size. Plans are created on first
// use and live until Close.
type PlanCache struct {
	ctx Context
	lib *wisdom.Library
	log *slog.Logger

	mu     sync.Mutex
	plans  map[planKey]*Plan
	closed bool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPlanCache returns an empty cache creating plans on c with tunings
// taken from lib. A nil lib is replaced by an empty library.
func NewPlanCache(c Context, lib *wisdom.Library, opts ...CacheOption) *PlanCache {
	if lib == nil {
		lib = wisdom.NewLibrary()
	}

	pc := &PlanCache{
		ctx:   c,
		lib:   lib,
		log:   slog.New(slog.DiscardHandler),
		plans: make(map[planKey]*Plan),
	}

	for _, opt := range opts {
		opt(pc)
	}

	return pc
}

// Library returns the wisdom library the cache consults.
func (pc *PlanCache) Library() *wisdom.Library { return pc.lib }

// GetOrCreate returns the plan for sizeX × sizeY, creating it on first use.
// Creation errors are returned and nothing is cached for that size.
func (pc *PlanCache) GetOrCreate(sizeX, sizeY int) (*Plan, error) {
	if sizeX < 1 || sizeY < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidLength, sizeX, sizeY)
	}

	key := planKey{sizeX, sizeY}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return nil, ErrClosed
	}

	if p, ok := pc.plans[key]; ok {
		pc.hits.Add(1)
		return p, nil
	}

	pc.misses.Add(1)

	shape := CanonicalShape(sizeX, sizeY)
	tuning := pc.lib.Suggest(shape)

	p, err := NewPlan(pc.ctx, shape, tuning)
	if err != nil {
		return nil, fmt.Errorf("gpu: create %dx%d plan: %w", sizeX, sizeY, err)
	}

	pc.plans[key] = p
	pc.log.Info("gpu: plan created", "size_x", sizeX, "size_y", sizeY, "tuning", tuning.String())

	return p, nil
}

// ExecuteInverse runs p from in into out.
func (pc *PlanCache) ExecuteInverse(p *Plan, in, out Buffer) error {
	if err := p.Inverse(out, in); err != nil {
		return fmt.Errorf("gpu: inverse %dx%d: %w", p.SizeX(), p.SizeY(), err)
	}

	return nil
}

// Tune benchmarks the canonical shape of sizeX × sizeY on the cache's
// context and stores the result in the library. It has no effect on plans
// already created.
func (pc *PlanCache) Tune(ctx context.Context, sizeX, sizeY int) (wisdom.Entry, error) {
	return pc.lib.Learn(ctx, CanonicalShape(sizeX, sizeY), NewBenchmarker(pc.ctx))
}

// Stats returns the cache counters.
func (pc *PlanCache) Stats() CacheStats {
	pc.mu.Lock()
	n := len(pc.plans)
	pc.mu.Unlock()

	return CacheStats{Hits: pc.hits.Load(), Misses: pc.misses.Load(), Plans: n}
}

// Close releases every cached plan. The cache is unusable afterwards.
func (pc *PlanCache) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var errs []error

	for k, p := range pc.plans {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}

		delete(pc.plans, k)
	}

	pc.closed = true

	return errors.Join(errs...)
}
