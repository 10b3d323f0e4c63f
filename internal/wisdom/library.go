package wisdom

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
)

var discardLogger = slog.New(slog.DiscardHandler)

// Library maps transform shapes to their best known tuning.
//
// Lookups may run concurrently with each other and with Extract. Learning
// the same shape from two goroutines at once wastes work but is otherwise
// harmless: the last result stored wins.
type Library struct {
	mu      sync.RWMutex
	entries map[Shape]Entry
	static  Static
	params  BenchParams
	log     *slog.Logger
}

// NewLibrary returns an empty library with generic hardware bounds and
// default benchmark parameters.
func NewLibrary() *Library {
	return &Library{
		entries: make(map[Shape]Entry),
		static:  DefaultStatic(),
		params:  DefaultBenchParams(),
		log:     discardLogger,
	}
}

// SetLogger sets the logger used for learning progress. nil silences it.
func (l *Library) SetLogger(log *slog.Logger) {
	if log == nil {
		log = discardLogger
	}

	l.mu.Lock()
	l.log = log
	l.mu.Unlock()
}

// SetStatic replaces the hardware bounds used by Learn and Suggest.
func (l *Library) SetStatic(s Static) {
	l.mu.Lock()
	l.static = s
	l.mu.Unlock()
}

// Static returns the current hardware bounds.
func (l *Library) Static() Static {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.static
}

// SetBenchParams replaces the parameters passed to benchmarkers.
func (l *Library) SetBenchParams(p BenchParams) {
	l.mu.Lock()
	l.params = p
	l.mu.Unlock()
}

// BenchParams returns the current benchmark parameters.
func (l *Library) BenchParams() BenchParams {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.params
}

// Lookup returns the learned entry for shape, if any.
func (l *Library) Lookup(shape Shape) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[shape]

	return e, ok
}

// LookupOrDefault returns the learned tuning for shape, or fallback.
func (l *Library) LookupOrDefault(shape Shape, fallback Tuning) Tuning {
	if e, ok := l.Lookup(shape); ok {
		return e.Tuning
	}

	return fallback
}

// Suggest returns the learned tuning for shape, or one derived from the
// library's hardware bounds.
func (l *Library) Suggest(shape Shape) Tuning {
	l.mu.RLock()
	e, ok := l.entries[shape]
	static := l.static
	l.mu.RUnlock()

	if ok {
		return e.Tuning
	}

	return static.Suggest(shape)
}

// Store records an entry, replacing any previous one for shape.
func (l *Library) Store(shape Shape, e Entry) {
	l.mu.Lock()
	l.entries[shape] = e
	l.mu.Unlock()
}

// Len returns the number of learned shapes.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Clear forgets every learned entry.
func (l *Library) Clear() {
	l.mu.Lock()
	l.entries = make(map[Shape]Entry)
	l.mu.Unlock()
}

// Shapes returns the learned shapes in a stable order.
func (l *Library) Shapes() []Shape {
	l.mu.RLock()
	out := make([]Shape, 0, len(l.entries))

	for s := range l.entries {
		out = append(out, s)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, compareShapes)

	return out
}

func compareShapes(a, b Shape) int {
	return cmp.Or(
		cmp.Compare(a.Radix, b.Radix),
		cmp.Compare(a.Mode, b.Mode),
		cmp.Compare(a.Nx, b.Nx),
		cmp.Compare(a.Ny, b.Ny),
		cmp.Compare(a.Input, b.Input),
		cmp.Compare(a.Output, b.Output),
		cmp.Compare(typeBits(a.Type), typeBits(b.Type)),
	)
}

func typeBits(t NumericType) uint8 {
	var b uint8

	for i, f := range [...]bool{t.FP16, t.InputFP16, t.OutputFP16, t.Normalize} {
		if f {
			b |= 1 << i
		}
	}

	return b
}

// Learn returns the stored entry for shape, benchmarking and storing it
// first when the shape is unknown.
func (l *Library) Learn(ctx context.Context, shape Shape, bench Benchmarker) (Entry, error) {
	if e, ok := l.Lookup(shape); ok {
		return e, nil
	}

	l.mu.RLock()
	static, params, log := l.static, l.params, l.log
	l.mu.RUnlock()

	e, err := study(ctx, shape, static, bench, params, log)
	if err != nil {
		return Entry{}, err
	}

	l.Store(shape, e)
	log.Info("wisdom: learned", "shape", shape.String(), "tuning", e.Tuning.String(), "cost", e.Cost)

	return e, nil
}
