package ocean

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-ocean/internal/spectrum"
)

// BandParams is the physical description of one frequency band.
type BandParams struct {
	ResolutionX uint32 `json:"resolutionX"`
	ResolutionY uint32 `json:"resolutionY"`

	// PatchX, PatchY are the world-space extent of one tile.
	PatchX float32 `json:"patchX"`
	PatchY float32 `json:"patchY"`

	// WindX, WindZ is the wind direction. Setters normalize it.
	WindX float32 `json:"windX"`
	WindZ float32 `json:"windZ"`

	WindSpeed        float32 `json:"windSpeed"`
	Gravity          float32 `json:"gravity"`
	Amplitude        float32 `json:"amplitude"`
	CrossWindDamping float32 `json:"crossWindDamping"`
	SmallWaveDamping float32 `json:"smallWaveDamping"`

	Seed uint32 `json:"seed"`
}

// DefaultBandParams returns a 256×256 band with a patch of 0.45 units per
// cell and a strong wind along +X.
func DefaultBandParams() BandParams {
	return BandParams{
		ResolutionX:      256,
		ResolutionY:      256,
		PatchX:           0.45 * 256,
		PatchY:           0.45 * 256,
		WindX:            1,
		WindZ:            0,
		WindSpeed:        75,
		Gravity:          9.8,
		Amplitude:        1e-5,
		CrossWindDamping: 1,
		SmallWaveDamping: 1e-7,
		Seed:             1337,
	}
}

// Validate reports the first parameter that cannot be synthesized.
func (p BandParams) Validate() error {
	if p.ResolutionX == 0 || p.ResolutionY == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidResolution, p.ResolutionX, p.ResolutionY)
	}

	if !positive(p.PatchX) || !positive(p.PatchY) {
		return fmt.Errorf("%w: %gx%g", ErrInvalidPatch, p.PatchX, p.PatchY)
	}

	if p.WindX == 0 && p.WindZ == 0 {
		return ErrZeroWind
	}

	if !finite(p.WindX) || !finite(p.WindZ) {
		return fmt.Errorf("%w: wind direction (%g,%g)", ErrInvalidParam, p.WindX, p.WindZ)
	}

	checks := []struct {
		name string
		v    float32
		ok   func(float32) bool
	}{
		{"wind speed", p.WindSpeed, positive},
		{"gravity", p.Gravity, positive},
		{"amplitude", p.Amplitude, nonNegative},
		{"cross-wind damping", p.CrossWindDamping, nonNegative},
		{"small-wave damping", p.SmallWaveDamping, nonNegative},
	}
	for _, c := range checks {
		if !c.ok(c.v) {
			return fmt.Errorf("%w: %s %g", ErrInvalidParam, c.name, c.v)
		}
	}

	return nil
}

// CellSize returns the world-space size of one grid cell.
func (p BandParams) CellSize() (x, y float32) {
	return p.PatchX / float32(p.ResolutionX), p.PatchY / float32(p.ResolutionY)
}

// UVScale returns the texture coordinate scale that tiles the band once
// per patch.
func (p BandParams) UVScale() (u, v float32) {
	return 1 / p.PatchX, 1 / p.PatchY
}

// MeshSize returns the vertex counts of a mesh covering one patch.
func (p BandParams) MeshSize() (x, y uint32) {
	return p.ResolutionX + 1, p.ResolutionY + 1
}

func (p BandParams) spectrumParams() spectrum.Params {
	wx, wz := normalize(p.WindX, p.WindZ)

	return spectrum.Params{
		NX:               int(p.ResolutionX),
		NZ:               int(p.ResolutionY),
		PatchX:           float64(p.PatchX),
		PatchZ:           float64(p.PatchY),
		WindX:            float64(wx),
		WindZ:            float64(wz),
		WindSpeed:        float64(p.WindSpeed),
		Gravity:          float64(p.Gravity),
		Amplitude:        float64(p.Amplitude),
		CrossWindDamping: float64(p.CrossWindDamping),
		SmallWaveDamping: float64(p.SmallWaveDamping),
		Seed:             p.Seed,
	}
}

func (p BandParams) grid() spectrum.Grid {
	return spectrum.Grid{
		NX:      int(p.ResolutionX),
		NZ:      int(p.ResolutionY),
		PatchX:  float64(p.PatchX),
		PatchZ:  float64(p.PatchY),
		Gravity: float64(p.Gravity),
	}
}

// Band owns the parameters of one frequency band and its H0 spectrum.
// Any setter call that changes a parameter invalidates H0; it is fully
// recomputed on the next H0 call. A rejected setter leaves the band
// untouched.
//
// A Band is not safe for concurrent use.
type Band struct {
	params     BandParams
	h0         []complex64
	generation uint64
	synthGen   uint64
}

// NewBand validates p and returns a band using it.
func NewBand(p BandParams) (*Band, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.WindX, p.WindZ = normalize(p.WindX, p.WindZ)

	return &Band{params: p, generation: 1}, nil
}

// Params returns a copy of the band parameters.
func (b *Band) Params() BandParams { return b.params }

// Generation increases every time a parameter changes.
func (b *Band) Generation() uint64 { return b.generation }

// Dirty reports whether H0 must be resynthesized.
func (b *Band) Dirty() bool { return b.synthGen != b.generation }

// H0 returns the band's initial spectrum, synthesizing it if needed. The
// returned slice is owned by the band and must not be modified.
func (b *Band) H0() []complex64 {
	if b.Dirty() {
		b.h0 = spectrum.H0(b.params.spectrumParams())
		b.synthGen = b.generation
	}

	return b.h0
}

func (b *Band) update(fn func(p *BandParams)) error {
	next := b.params
	fn(&next)

	if err := next.Validate(); err != nil {
		return err
	}

	if next != b.params {
		b.params = next
		b.generation++
	}

	return nil
}

// SetWindDirection sets and normalizes the wind direction.
func (b *Band) SetWindDirection(x, z float32) error {
	if x == 0 && z == 0 {
		return ErrZeroWind
	}

	return b.update(func(p *BandParams) {
		p.WindX, p.WindZ = normalize(x, z)
	})
}

func (b *Band) SetWindSpeed(v float32) error {
	return b.update(func(p *BandParams) { p.WindSpeed = v })
}

func (b *Band) SetGravity(g float32) error {
	return b.update(func(p *BandParams) { p.Gravity = g })
}

func (b *Band) SetAmplitude(a float32) error {
	return b.update(func(p *BandParams) { p.Amplitude = a })
}

func (b *Band) SetCrossWindDamping(d float32) error {
	return b.update(func(p *BandParams) { p.CrossWindDamping = d })
}

func (b *Band) SetSmallWaveDamping(d float32) error {
	return b.update(func(p *BandParams) { p.SmallWaveDamping = d })
}

func (b *Band) SetSeed(seed uint32) error {
	return b.update(func(p *BandParams) { p.Seed = seed })
}

// SetResolution changes the grid size. Buffers and plans for the new size
// are created on the next step.
func (b *Band) SetResolution(x, y uint32) error {
	return b.update(func(p *BandParams) { p.ResolutionX, p.ResolutionY = x, y })
}

func (b *Band) SetPatchSize(x, y float32) error {
	return b.update(func(p *BandParams) { p.PatchX, p.PatchY = x, y })
}

func positive(v float32) bool    { return v > 0 && finite(v) }
func nonNegative(v float32) bool { return v >= 0 && finite(v) }

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func normalize(x, z float32) (float32, float32) {
	l := float32(math.Hypot(float64(x), float64(z)))
	if l == 0 {
		return x, z
	}

	return x / l, z / l
}
