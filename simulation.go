package ocean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/internal/backends"
	"github.com/cwbudde/algo-ocean/internal/spectrum"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// Simulation drives one or more bands through the per-frame pipeline:
// evolve the spectrum, run five inverse transforms per band and pack the
// results into displacement and normal samples.
//
// A Simulation is driven from a single goroutine. Several simulations may
// coexist; they share nothing unless given the same Wisdom.
type Simulation struct {
	ctx      gpu.Context
	ownsCtx  bool
	cache    *gpu.PlanCache
	lib      *Wisdom
	log      *slog.Logger
	cfg      Config
	clock    Clock
	bands    []*bandState
	dispSc   float32
	heightSc float32
}

// New opens device 0 of backend and creates a simulation for cfg. When the
// backend is nil, unavailable or fails to open, the host CPU backend is
// used instead and a warning is logged.
//
// Wisdom is loaded from cfg.WisdomPath when set; a missing or corrupt file
// is not an error. With cfg.AutoTune every band size without a learned
// tuning is benchmarked before New returns.
func New(backend gpu.Backend, cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := openContext(backend, Logger())

	lib := NewWisdom()
	lib.SetLogger(Logger())

	if cfg.WisdomPath != "" {
		LoadWisdom(lib, cfg.WisdomPath)
	}

	s, err := NewWithContext(c, lib, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	s.ownsCtx = true

	if cfg.AutoTune {
		if err := s.Tune(context.Background()); err != nil {
			s.log.Warn("ocean: auto-tune incomplete", "err", err)
		}
	}

	return s, nil
}

// Open creates a simulation on the backend named by cfg.Backend, passing
// the configured benchmark dispatch count to device backends.
func Open(cfg Config) (*Simulation, error) {
	backend, err := backends.Open(cfg.Backend, backends.Options{
		Dispatches: cfg.Bench.Dispatches,
		Logger:     Logger(),
	})
	if err != nil {
		return nil, err
	}

	return New(backend, cfg)
}

// NewWithContext creates a simulation on an already open context. The
// caller keeps ownership of c. lib may be nil for an empty library; its
// hardware bounds are set from the device.
func NewWithContext(c gpu.Context, lib *Wisdom, cfg Config) (*Simulation, error) {
	if c == nil {
		return nil, gpu.ErrBackendUnavailable
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := Logger()

	if lib == nil {
		lib = NewWisdom()
		lib.SetLogger(log)
	}

	dev := c.Device()

	static, class := wisdom.StaticFromRenderer(dev.Renderer, dev.MaxWorkgroupSize)
	lib.SetStatic(static)

	bench := cfg.Bench.Params()
	if bench.Iterations > 0 {
		lib.SetBenchParams(bench)
	}

	log.Info("ocean: device selected", "name", dev.Name, "renderer", dev.Renderer, "class", class)

	s := &Simulation{
		ctx:      c,
		cache:    gpu.NewPlanCache(c, lib, gpu.WithLogger(log)),
		lib:      lib,
		log:      log,
		cfg:      cfg,
		dispSc:   cfg.DisplacementScale,
		heightSc: cfg.HeightScale,
	}

	for _, p := range cfg.Bands {
		if _, err := s.AddBand(p); err != nil {
			_ = s.cache.Close()
			return nil, err
		}
	}

	return s, nil
}

func openContext(backend gpu.Backend, log *slog.Logger) gpu.Context {
	if backend != nil && backend.Available() {
		c, err := backend.NewContext(0)
		if err == nil {
			return c
		}

		log.Warn("ocean: backend failed, falling back to CPU", "backend", backend.Info().Name, "err", err)
	} else if backend != nil {
		log.Warn("ocean: backend unavailable, falling back to CPU", "backend", backend.Info().Name)
	}

	c, _ := gpu.NewCPUBackend().NewContext(0)

	return c
}

// AddBand adds a band and returns its index. Its resources are created on
// the next Step.
func (s *Simulation) AddBand(p BandParams) (int, error) {
	b, err := NewBand(p)
	if err != nil {
		return 0, err
	}

	s.bands = append(s.bands, &bandState{band: b})

	return len(s.bands) - 1, nil
}

// NumBands returns the number of bands.
func (s *Simulation) NumBands() int { return len(s.bands) }

// Band returns band i for parameter changes.
func (s *Simulation) Band(i int) (*Band, error) {
	if i < 0 || i >= len(s.bands) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchBand, i)
	}

	return s.bands[i].band, nil
}

// Clock returns the simulation clock.
func (s *Simulation) Clock() *Clock { return &s.clock }

// Wisdom returns the library used for transform tuning.
func (s *Simulation) Wisdom() *Wisdom { return s.lib }

// Device describes the compute device in use.
func (s *Simulation) Device() gpu.DeviceInfo { return s.ctx.Device() }

// CacheStats returns the plan cache counters.
func (s *Simulation) CacheStats() CacheStats { return s.cache.Stats() }

// DisplacementScale returns the horizontal displacement factor.
func (s *Simulation) DisplacementScale() float32 { return s.dispSc }

// HeightScale returns the vertical displacement factor.
func (s *Simulation) HeightScale() float32 { return s.heightSc }

// SetDisplacementScale sets the factor applied to horizontal displacement
// from the next step on.
func (s *Simulation) SetDisplacementScale(v float32) error {
	if !finite(v) {
		return fmt.Errorf("%w: displacement scale %g", ErrInvalidParam, v)
	}

	s.dispSc = v

	return nil
}

// SetHeightScale sets the factor applied to heights and slopes from the
// next step on.
func (s *Simulation) SetHeightScale(v float32) error {
	if !finite(v) {
		return fmt.Errorf("%w: height scale %g", ErrInvalidParam, v)
	}

	s.heightSc = v

	return nil
}

// Tune benchmarks the transform of every distinct band size that has no
// learned tuning yet and saves the library to the configured wisdom path.
// Plans created earlier keep their parameters.
func (s *Simulation) Tune(ctx context.Context) error {
	seen := make(map[[2]int]bool)
	learned := 0

	var errs []error

	for _, bs := range s.bands {
		p := bs.band.Params()
		key := [2]int{int(p.ResolutionX), int(p.ResolutionY)}

		if seen[key] {
			continue
		}

		seen[key] = true

		if _, ok := s.lib.Lookup(gpu.CanonicalShape(key[0], key[1])); ok {
			continue
		}

		e, err := s.cache.Tune(ctx, key[0], key[1])
		if err != nil {
			errs = append(errs, fmt.Errorf("ocean: tune %dx%d: %w", key[0], key[1], err))
			continue
		}

		learned++

		s.log.Info("ocean: tuned", "size_x", key[0], "size_y", key[1], "tuning", e.Tuning.String(), "cost", e.Cost)
	}

	if learned > 0 && s.cfg.WisdomPath != "" {
		if err := ExportWisdom(s.lib, s.cfg.WisdomPath); err != nil {
			s.log.Warn("ocean: wisdom not saved", "path", s.cfg.WisdomPath, "err", err)
		}
	}

	return errors.Join(errs...)
}

// Step advances the clock by dt and computes the outputs of every band.
// Bands are independent: a failing band reports an error naming it while
// the others still produce fresh outputs.
func (s *Simulation) Step(dt time.Duration) error {
	s.clock.Advance(dt)
	t := s.clock.Seconds()

	var errs []error

	for i, bs := range s.bands {
		if err := s.stepBand(bs, t); err != nil {
			errs = append(errs, fmt.Errorf("ocean: band %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// View returns the latest outputs of band i. The zero BandView (Valid
// false) is returned for unknown or not yet stepped bands.
func (s *Simulation) View(i int) BandView {
	if i < 0 || i >= len(s.bands) {
		return BandView{Index: i}
	}

	bs := s.bands[i]
	if !bs.ready {
		return BandView{Index: i, Params: bs.band.Params()}
	}

	p := bs.viewParams
	u, v := p.UVScale()

	return BandView{
		Index:        i,
		Params:       p,
		SizeX:        bs.nx,
		SizeY:        bs.nz,
		Displacement: bs.front.disp,
		Normals:      bs.front.normals,
		UVScale:      [2]float32{u, v},
		Patch:        [2]float32{p.PatchX, p.PatchY},
		Time:         bs.frameTime,
		Valid:        true,
	}
}

// Close releases every buffer and plan, and the context if New opened it.
func (s *Simulation) Close() error {
	var errs []error

	for _, bs := range s.bands {
		errs = append(errs, bs.release())
	}

	errs = append(errs, s.cache.Close())

	if s.ownsCtx {
		errs = append(errs, s.ctx.Close())
	}

	return errors.Join(errs...)
}

func (s *Simulation) stepBand(bs *bandState, t float64) error {
	if err := s.prepare(bs); err != nil {
		return err
	}

	p := bs.band.Params()

	args := gpu.KernelArgs{
		Grid: p.grid(),
		Time: t,
		H0:   bs.h0,
		Out:  bs.fields,
	}

	gx := uint32((bs.nx + gpu.EvolveGroupSize - 1) / gpu.EvolveGroupSize)
	gy := uint32((bs.nz + gpu.EvolveGroupSize - 1) / gpu.EvolveGroupSize)

	if err := s.ctx.MemoryBarrier(); err != nil {
		return err
	}

	if err := s.ctx.Dispatch(gpu.KernelEvolve, args, gx, gy, 1); err != nil {
		return fmt.Errorf("evolve: %w", err)
	}

	if err := s.ctx.MemoryBarrier(); err != nil {
		return err
	}

	for _, buf := range bs.fields {
		plan, err := s.cache.GetOrCreate(bs.nx, bs.nz)
		if err != nil {
			return err
		}

		if err := s.cache.ExecuteInverse(plan, buf, buf); err != nil {
			return err
		}
	}

	if err := s.ctx.MemoryBarrier(); err != nil {
		return err
	}

	for i, dst := range bs.host.Slices() {
		if err := bs.fields[i].Download(dst); err != nil {
			return fmt.Errorf("download: %w", err)
		}
	}

	spectrum.Pack(bs.back.disp, bs.back.normals, bs.host, bs.nx, bs.nz, s.dispSc, s.heightSc)

	bs.front, bs.back = bs.back, bs.front
	bs.frameTime = t
	bs.viewParams = p
	bs.ready = true

	return nil
}

// prepare resynthesizes H0 when the band changed and (re)allocates device
// buffers when its size changed.
func (s *Simulation) prepare(bs *bandState) error {
	p := bs.band.Params()
	nx, nz := int(p.ResolutionX), int(p.ResolutionY)

	if bs.h0 != nil && bs.uploadedGen == bs.band.Generation() {
		return nil
	}

	if bs.h0 == nil || nx != bs.nx || nz != bs.nz {
		if err := bs.release(); err != nil {
			s.log.Warn("ocean: releasing band buffers", "err", err)
		}

		if err := bs.allocate(s.ctx, nx, nz); err != nil {
			return err
		}
	}

	h0 := bs.band.H0()
	if err := bs.h0.Upload(h0); err != nil {
		return fmt.Errorf("upload h0: %w", err)
	}

	bs.uploadedGen = bs.band.Generation()
	s.log.Debug("ocean: band synthesized", "size_x", nx, "size_y", nz, "seed", p.Seed)

	return nil
}

type packed struct {
	disp, normals []float32
}

type bandState struct {
	band        *Band
	uploadedGen uint64

	nx, nz int
	h0     gpu.Buffer
	fields [5]gpu.Buffer
	host   spectrum.Fields

	front, back packed
	viewParams  BandParams
	frameTime   float64
	ready       bool
}

func (bs *bandState) allocate(c gpu.Context, nx, nz int) error {
	n := nx * nz
	size := n * gpu.ComplexSize
	flags := gpu.BufferStorage | gpu.BufferUpload | gpu.BufferDownload

	h0, err := c.NewBuffer(size, gpu.BufferStorage|gpu.BufferUpload)
	if err != nil {
		return fmt.Errorf("allocate h0: %w", err)
	}

	bs.h0 = h0

	for i := range bs.fields {
		b, err := c.NewBuffer(size, flags)
		if err != nil {
			_ = bs.release()
			return fmt.Errorf("allocate field %d: %w", i, err)
		}

		bs.fields[i] = b
	}

	bs.nx, bs.nz = nx, nz
	bs.host = spectrum.NewFields(n)
	bs.front = packed{disp: make([]float32, 3*n), normals: make([]float32, 3*n)}
	bs.back = packed{disp: make([]float32, 3*n), normals: make([]float32, 3*n)}
	bs.ready = false

	return nil
}

func (bs *bandState) release() error {
	var errs []error

	if bs.h0 != nil {
		errs = append(errs, bs.h0.Close())
		bs.h0 = nil
	}

	for i, b := range bs.fields {
		if b != nil {
			errs = append(errs, b.Close())
			bs.fields[i] = nil
		}
	}

	bs.nx, bs.nz = 0, 0
	bs.ready = false

	return errors.Join(errs...)
}
