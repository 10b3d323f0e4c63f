package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// failingContext refuses to create plans of one width.
type failingContext struct {
	Context
	badX  uint32
	calls int
}

var errPlanRefused = errors.New("plan refused")

func (f *failingContext) NewFFTPlan(shape Shape, tuning Tuning) (PlanImpl, error) {
	f.calls++
	if shape.Nx == f.badX {
		return nil, errPlanRefused
	}

	return f.Context.NewFFTPlan(shape, tuning)
}

func TestPlanCache_GetOrCreateIdentity(t *testing.T) {
	t.Parallel()

	pc := NewPlanCache(newCPUContext(t), nil)
	defer pc.Close()

	a, err := pc.GetOrCreate(64, 64)
	if err != nil {
		t.Fatal(err)
	}

	b, err := pc.GetOrCreate(64, 64)
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Error("same size returned different plans")
	}

	c, err := pc.GetOrCreate(64, 32)
	if err != nil {
		t.Fatal(err)
	}

	d, err := pc.GetOrCreate(32, 64)
	if err != nil {
		t.Fatal(err)
	}

	if c == a || d == a || c == d {
		t.Error("different sizes share a plan")
	}

	st := pc.Stats()
	if st.Hits != 1 || st.Misses != 3 || st.Plans != 3 {
		t.Errorf("Stats = %+v, want 1 hit, 3 misses, 3 plans", st)
	}
}

func TestPlanCache_UsesLearnedTuning(t *testing.T) {
	t.Parallel()

	lib := wisdom.NewLibrary()
	want := Tuning{SharedBanked: true, VectorSize: 4, WorkgroupSizeX: 128, WorkgroupSizeY: 1}
	lib.Store(CanonicalShape(128, 128), wisdom.Entry{Tuning: want, Cost: 1})

	pc := NewPlanCache(newCPUContext(t), lib)
	defer pc.Close()

	p, err := pc.GetOrCreate(128, 128)
	if err != nil {
		t.Fatal(err)
	}

	if p.Tuning() != want {
		t.Errorf("Tuning = %v, want %v", p.Tuning(), want)
	}

	q, err := pc.GetOrCreate(16, 16)
	if err != nil {
		t.Fatal(err)
	}

	if got := q.Tuning(); got != lib.Static().Suggest(CanonicalShape(16, 16)) {
		t.Errorf("unlearned size tuning = %v, want static suggestion", got)
	}
}

func TestPlanCache_CreationFailureNotCached(t *testing.T) {
	t.Parallel()

	fc := &failingContext{Context: newCPUContext(t), badX: 48}
	pc := NewPlanCache(fc, nil)
	defer pc.Close()

	if _, err := pc.GetOrCreate(48, 48); !errors.Is(err, errPlanRefused) {
		t.Fatalf("err = %v, want errPlanRefused", err)
	}

	if _, err := pc.GetOrCreate(48, 48); !errors.Is(err, errPlanRefused) {
		t.Fatalf("second err = %v, want errPlanRefused", err)
	}

	if fc.calls != 2 {
		t.Errorf("NewFFTPlan called %d times, want 2", fc.calls)
	}

	if pc.Stats().Plans != 0 {
		t.Error("failed plan was cached")
	}

	if _, err := pc.GetOrCreate(64, 48); err != nil {
		t.Errorf("unrelated size failed: %v", err)
	}
}

func TestPlanCache_InvalidSizeAndClose(t *testing.T) {
	t.Parallel()

	pc := NewPlanCache(newCPUContext(t), nil)

	if _, err := pc.GetOrCreate(0, 8); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("err = %v, want ErrInvalidLength", err)
	}

	p, err := pc.GetOrCreate(8, 8)
	if err != nil {
		t.Fatal(err)
	}

	if err := pc.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := pc.GetOrCreate(8, 8); !errors.Is(err, ErrClosed) {
		t.Errorf("GetOrCreate after Close: %v, want ErrClosed", err)
	}

	if err := p.Inverse(nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Inverse on closed plan: %v, want ErrClosed", err)
	}
}

func TestPlanCache_ExecuteInverse(t *testing.T) {
	t.Parallel()

	c := newCPUContext(t)
	pc := NewPlanCache(c, nil)
	defer pc.Close()

	p, err := pc.GetOrCreate(4, 4)
	if err != nil {
		t.Fatal(err)
	}

	in := newBuffer(t, c, 16)
	out := newBuffer(t, c, 16)

	host := make([]complex64, 16)
	host[0] = 1
	_ = in.Upload(host)

	if err := pc.ExecuteInverse(p, in, out); err != nil {
		t.Fatal(err)
	}

	_ = out.Download(host)

	for i, v := range host {
		if v != 1 {
			t.Fatalf("sample %d = %v, want 1", i, v)
		}
	}

	small := newBuffer(t, c, 8)
	if err := pc.ExecuteInverse(p, in, small); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestPlanCache_Tune(t *testing.T) {
	t.Parallel()

	lib := wisdom.NewLibrary()
	params := wisdom.DefaultBenchParams()
	params.Warmup = 1
	params.Iterations = 2
	lib.SetBenchParams(params)

	pc := NewPlanCache(newCPUContext(t), lib)
	defer pc.Close()

	e, err := pc.Tune(context.Background(), 16, 16)
	if err != nil {
		t.Fatal(err)
	}

	if e.Cost <= 0 {
		t.Errorf("cost = %v", e.Cost)
	}

	got, ok := lib.Lookup(CanonicalShape(16, 16))
	if !ok || got != e {
		t.Errorf("library entry = %v, %t; want %v", got, ok, e)
	}
}
