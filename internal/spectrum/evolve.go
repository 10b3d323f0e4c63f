package spectrum

import (
	"math"

	m "github.com/cwbudde/algo-ocean/internal/math"
)

// Grid describes the sampling of one band for time evolution.
type Grid struct {
	NX, NZ         int
	PatchX, PatchZ float64
	Gravity        float64
}

// Fields are the five frequency-domain (or, after transformation,
// spatial) quantities produced for each band per frame.
type Fields struct {
	Height []complex64
	DispX  []complex64
	DispZ  []complex64
	GradX  []complex64
	GradZ  []complex64
}

// NewFields allocates fields for n cells.
func NewFields(n int) Fields {
	return Fields{
		Height: make([]complex64, n),
		DispX:  make([]complex64, n),
		DispZ:  make([]complex64, n),
		GradX:  make([]complex64, n),
		GradZ:  make([]complex64, n),
	}
}

// Slices returns the fields in canonical order: height, dispX, dispZ,
// gradX, gradZ.
func (f Fields) Slices() [5][]complex64 {
	return [5][]complex64{f.Height, f.DispX, f.DispZ, f.GradX, f.GradZ}
}

// Evolve advances h0 to time t using the deep-water dispersion relation
// ω = sqrt(g|k|) and writes the spectrum plus its displacement and gradient
// derivatives into dst. Only rows [z0, z1) are written, so callers may split
// the grid across workers.
func Evolve(dst Fields, h0 []complex64, g Grid, t float64, z0, z1 int) {
	nx, nz := g.NX, g.NZ

	for z := z0; z < z1; z++ {
		for x := range nx {
			idx := z*nx + x
			k := KVector(nx, nz, g.PatchX, g.PatchZ, x, z)

			if k.IsZero() {
				dst.Height[idx] = 0
				dst.DispX[idx] = 0
				dst.DispZ[idx] = 0
				dst.GradX[idx] = 0
				dst.GradZ[idx] = 0
				continue
			}

			lenK := k.Len()
			omega := math.Sqrt(g.Gravity * lenK)
			sin, cos := math.Sincos(omega * t)

			h0k := h0[idx]
			h0c := h0[m.Mirror(z, nz)*nx+m.Mirror(x, nx)]

			// h0(k)·e^{iωt} + conj(h0(-k))·e^{-iωt}
			re := float64(real(h0k))*cos - float64(imag(h0k))*sin +
				float64(real(h0c))*cos - float64(imag(h0c))*sin
			im := float64(real(h0k))*sin + float64(imag(h0k))*cos -
				float64(real(h0c))*sin - float64(imag(h0c))*cos

			kx, kz := k.X/lenK, k.Z/lenK

			dst.Height[idx] = complex(float32(re), float32(im))
			// -i·k̂·h
			dst.DispX[idx] = complex(float32(kx*im), float32(-kx*re))
			dst.DispZ[idx] = complex(float32(kz*im), float32(-kz*re))
			// i·k·h
			dst.GradX[idx] = complex(float32(-k.X*im), float32(k.X*re))
			dst.GradZ[idx] = complex(float32(-k.Z*im), float32(k.Z*re))
		}
	}
}
