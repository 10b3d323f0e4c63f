package ocean

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-ocean/gpu"
)

func smallConfig(sizes ...uint32) Config {
	cfg := DefaultConfig()
	cfg.WisdomPath = ""
	cfg.Bands = nil

	for i, n := range sizes {
		p := DefaultBandParams()
		p.ResolutionX, p.ResolutionY = n, n
		p.PatchX, p.PatchY = 0.45*float32(n), 0.45*float32(n)
		p.WindSpeed = 10
		p.Amplitude = 1
		p.Seed = uint32(100 + i)
		cfg.Bands = append(cfg.Bands, p)
	}

	return cfg
}

func newTestSimulation(t *testing.T, c gpu.Context, cfg Config) *Simulation {
	t.Helper()

	if c == nil {
		var err error

		c, err = gpu.NewCPUBackend().NewContext(0)
		if err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewWithContext(c, nil, cfg)
	if err != nil {
		t.Fatalf("NewWithContext: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
		_ = c.Close()
	})

	return s
}

func TestSimulation_StepProducesOutputs(t *testing.T) {
	t.Parallel()

	s := newTestSimulation(t, nil, smallConfig(32))

	if s.View(0).Valid {
		t.Fatal("view valid before the first step")
	}

	if err := s.Step(16 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	v := s.View(0)
	if !v.Valid || v.SizeX != 32 || v.SizeY != 32 {
		t.Fatalf("view = %+v", v)
	}

	if len(v.Displacement) != 3*32*32 || len(v.Normals) != 3*32*32 {
		t.Fatalf("lengths %d, %d", len(v.Displacement), len(v.Normals))
	}

	if math.Abs(v.Time-0.016) > 1e-9 {
		t.Errorf("Time = %v, want 0.016", v.Time)
	}

	if v.UVScale[0] != 1/v.Patch[0] {
		t.Errorf("UVScale = %v, Patch = %v", v.UVScale, v.Patch)
	}

	for i := 0; i < len(v.Normals); i += 3 {
		n := v.Normals[i : i+3]
		l := math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2]))

		if math.IsNaN(l) || math.Abs(l-1) > 1e-4 || n[1] <= 0 {
			t.Fatalf("normal %d = %v", i/3, n)
		}
	}

	lo, hi := v.HeightRange()
	if !(hi > lo) {
		t.Errorf("flat surface: height range [%v, %v]", lo, hi)
	}
}

func TestSimulation_SpatialHeightIsReal(t *testing.T) {
	t.Parallel()

	s := newTestSimulation(t, nil, smallConfig(64))

	if err := s.Step(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	var maxRe, maxIm float64

	for _, v := range s.bands[0].host.Height {
		maxRe = max(maxRe, math.Abs(float64(real(v))))
		maxIm = max(maxIm, math.Abs(float64(imag(v))))
	}

	if maxRe == 0 {
		t.Fatal("height field is zero")
	}

	if maxIm > 1e-4*maxRe {
		t.Errorf("imaginary part %g too large against real %g", maxIm, maxRe)
	}
}

func TestSimulation_PlanReusedAcrossFrames(t *testing.T) {
	t.Parallel()

	s := newTestSimulation(t, nil, smallConfig(16, 16, 32))

	for range 3 {
		if err := s.Step(time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	st := s.CacheStats()
	if st.Plans != 2 || st.Misses != 2 {
		t.Errorf("stats = %+v, want 2 plans from 2 misses", st)
	}

	if total := st.Hits + st.Misses; total != 3*3*5 {
		t.Errorf("lookups = %d, want 45", total)
	}
}

func TestSimulation_Deterministic(t *testing.T) {
	t.Parallel()

	a := newTestSimulation(t, nil, smallConfig(32))
	b := newTestSimulation(t, nil, smallConfig(32))

	for _, s := range []*Simulation{a, b} {
		if err := s.Step(250 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	va, vb := a.View(0), b.View(0)
	for i := range va.Displacement {
		if va.Displacement[i] != vb.Displacement[i] {
			t.Fatalf("displacement %d differs: %v vs %v", i, va.Displacement[i], vb.Displacement[i])
		}
	}
}

func TestSimulation_ParameterChangesApplyNextStep(t *testing.T) {
	t.Parallel()

	s := newTestSimulation(t, nil, smallConfig(32))

	if err := s.Step(time.Millisecond); err != nil {
		t.Fatal(err)
	}

	before := s.View(0).Height(3, 5)

	b, err := s.Band(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.SetSeed(99); err != nil {
		t.Fatal(err)
	}

	s.Clock().Pause()

	if err := s.Step(time.Millisecond); err != nil {
		t.Fatal(err)
	}

	if after := s.View(0).Height(3, 5); after == before {
		t.Error("seed change did not alter the surface")
	}

	if err := b.SetResolution(16, 8); err != nil {
		t.Fatal(err)
	}

	if err := s.Step(time.Millisecond); err != nil {
		t.Fatal(err)
	}

	if v := s.View(0); v.SizeX != 16 || v.SizeY != 8 || len(v.Displacement) != 3*16*8 {
		t.Errorf("view after resize = %dx%d (%d floats)", v.SizeX, v.SizeY, len(v.Displacement))
	}

	if _, err := s.Band(3); !errors.Is(err, ErrNoSuchBand) {
		t.Errorf("Band(3) err = %v", err)
	}
}

func TestSimulation_PausedClockFreezesTime(t *testing.T) {
	t.Parallel()

	s := newTestSimulation(t, nil, smallConfig(16))

	if err := s.Step(100 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	s.Clock().Pause()

	if err := s.Step(time.Second); err != nil {
		t.Fatal(err)
	}

	if got := s.View(0).Time; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("Time = %v after paused step, want 0.1", got)
	}

	s.Clock().Resume()
	s.Clock().SetSpeed(2)

	if err := s.Step(time.Second); err != nil {
		t.Fatal(err)
	}

	if got := s.View(0).Time; math.Abs(got-2.1) > 1e-9 {
		t.Errorf("Time = %v, want 2.1", got)
	}
}

func TestSimulation_ScaleSetters(t *testing.T) {
	t.Parallel()

	a := newTestSimulation(t, nil, smallConfig(16))
	b := newTestSimulation(t, nil, smallConfig(16))

	if err := b.SetHeightScale(3); err != nil {
		t.Fatal(err)
	}

	if err := b.SetDisplacementScale(float32(math.Inf(1))); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("err = %v, want ErrInvalidParam", err)
	}

	for _, s := range []*Simulation{a, b} {
		if err := s.Step(time.Second); err != nil {
			t.Fatal(err)
		}
	}

	ha, hb := a.View(0).Height(1, 2), b.View(0).Height(1, 2)
	if math.Abs(float64(hb-3*ha)) > 1e-5*math.Abs(float64(hb))+1e-12 {
		t.Errorf("height %v with scale 3, %v with scale 1", hb, ha)
	}
}

// refusingContext cannot build transforms wider than limit.
type refusingContext struct {
	gpu.Context
	limit uint32
}

var errTooWide = errors.New("transform too wide")

func (r refusingContext) NewFFTPlan(shape gpu.Shape, tuning gpu.Tuning) (gpu.PlanImpl, error) {
	if shape.Nx > r.limit {
		return nil, errTooWide
	}

	return r.Context.NewFFTPlan(shape, tuning)
}

func TestSimulation_FailingBandDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	c, err := gpu.NewCPUBackend().NewContext(0)
	if err != nil {
		t.Fatal(err)
	}

	s := newTestSimulation(t, refusingContext{Context: c, limit: 32}, smallConfig(32, 64))

	err = s.Step(time.Millisecond)
	if !errors.Is(err, errTooWide) {
		t.Fatalf("err = %v, want errTooWide", err)
	}

	if !strings.Contains(err.Error(), "band 1") {
		t.Errorf("error does not name the band: %v", err)
	}

	if !s.View(0).Valid {
		t.Error("healthy band has no output")
	}

	if s.View(1).Valid {
		t.Error("failed band reports valid output")
	}
}

type unavailableBackend struct{}

func (unavailableBackend) Info() gpu.BackendInfo              { return gpu.BackendInfo{Name: "none"} }
func (unavailableBackend) Available() bool                    { return false }
func (unavailableBackend) Devices() ([]gpu.DeviceInfo, error) { return nil, gpu.ErrBackendUnavailable }
func (unavailableBackend) NewContext(int) (gpu.Context, error) {
	return nil, gpu.ErrBackendUnavailable
}

func TestNew_FallsBackToCPU(t *testing.T) {
	t.Parallel()

	s, err := New(unavailableBackend{}, smallConfig(16))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got := s.Device().Driver; got != "gonum" {
		t.Errorf("driver = %q, want the CPU backend", got)
	}

	if err := s.Step(time.Millisecond); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_ByBackendName(t *testing.T) {
	t.Parallel()

	cfg := smallConfig(8)
	cfg.Backend = "cpu"

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got := s.Device().Driver; got != "gonum" {
		t.Errorf("driver = %q, want the CPU backend", got)
	}

	cfg.Backend = "metal"
	if _, err := Open(cfg); err == nil {
		t.Error("Open with an unknown backend succeeded")
	}
}

func TestNew_AutoTuneSavesWisdom(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wisdom.json")

	cfg := smallConfig(8, 8)
	cfg.WisdomPath = path
	cfg.AutoTune = true
	cfg.Bench = BenchConfig{Warmup: 0, Iterations: 1, TimeoutMs: 1000}

	s, err := New(nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, ok := s.Wisdom().Lookup(gpu.CanonicalShape(8, 8)); !ok {
		t.Fatal("band size was not tuned")
	}

	reloaded := NewWisdom()
	if err := ImportWisdom(reloaded, path); err != nil {
		t.Fatalf("saved wisdom unreadable: %v", err)
	}

	if reloaded.Len() != 1 {
		t.Errorf("saved %d entries, want 1", reloaded.Len())
	}

	// A second simulation loads the file instead of tuning again.
	again, err := New(nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()

	if again.Wisdom().Len() != 1 {
		t.Errorf("reloaded library has %d entries", again.Wisdom().Len())
	}
}

func TestBandView_SampleWraps(t *testing.T) {
	t.Parallel()

	v := BandView{
		Valid: true, SizeX: 2, SizeY: 2,
		Displacement: []float32{0, 1, 0, 0, 2, 0, 0, 3, 0, 0, 4, 0},
		Normals:      make([]float32, 12),
	}

	if h := v.Height(-1, 2); h != 2 {
		t.Errorf("Height(-1,2) = %v, want 2", h)
	}

	if lo, hi := v.HeightRange(); lo != 1 || hi != 4 {
		t.Errorf("HeightRange = %v, %v", lo, hi)
	}

	if _, n := (BandView{}).Sample(0, 0); n != [3]float32{0, 1, 0} {
		t.Errorf("empty view normal = %v", n)
	}
}
