package spectrum

import (
	"math"
	"math/rand/v2"

	m "github.com/cwbudde/algo-ocean/internal/math"
)

// pcgStream is the fixed PCG increment paired with the band seed.
const pcgStream = 0x9e3779b97f4a7c15

// H0 synthesizes the initial spectrum for p.
//
// Each non-DC cell consumes exactly two normal draws in row-major order, so
// the output depends only on p. The conjugate of every drawn value is written
// to the mirrored cell; a later draw for that cell overwrites it and mirrors
// back, leaving each pair Hermitian. Cells that mirror onto themselves are
// fixed up afterwards by enforceSelfMirrored.
func H0(p Params) []complex64 {
	nx, nz := p.NX, p.NZ
	h0 := make([]complex64, nx*nz)
	rng := rand.New(rand.NewPCG(uint64(p.Seed), pcgStream))

	for z := range nz {
		for x := range nx {
			idx := z*nx + x
			k := KVector(nx, nz, p.PatchX, p.PatchZ, x, z)

			if k.IsZero() {
				h0[idx] = 0
				continue
			}

			amp := math.Sqrt(Phillips(p, k) / 2)
			a := rng.NormFloat64() * amp
			b := rng.NormFloat64() * amp
			h0[idx] = complex(float32(a), float32(b))

			mirror := m.Mirror(z, nz)*nx + m.Mirror(x, nx)
			h0[mirror] = complex(float32(a), float32(-b))
		}
	}

	enforceSelfMirrored(h0, nx, nz)

	return h0
}

// enforceSelfMirrored makes every cell that is its own mirror real. For even
// sizes those are DC and the three Nyquist corners; the corners carry
// k = -N/2, whose +N/2 partner does not exist on the grid, so they are
// cleared like DC.
func enforceSelfMirrored(h0 []complex64, nx, nz int) {
	for _, z := range selfMirrored(nz) {
		for _, x := range selfMirrored(nx) {
			idx := z*nx + x
			if isNyquist(x, nx) || isNyquist(z, nz) {
				h0[idx] = 0
				continue
			}

			h0[idx] = complex(real(h0[idx]), 0)
		}
	}
}

// selfMirrored lists the indices i in [0, n) with Mirror(i, n) == i.
func selfMirrored(n int) []int {
	if n%2 == 0 {
		return []int{0, n / 2}
	}

	return []int{0}
}

// isNyquist reports whether index i of a centered axis of length n holds
// the unpaired -n/2 frequency.
func isNyquist(i, n int) bool {
	return i == 0 && n%2 == 0 && n > 1
}

// IsHermitian reports whether h0 satisfies conjugate symmetry through the
// grid origin to within tol.
func IsHermitian(h0 []complex64, nx, nz int, tol float32) bool {
	for z := range nz {
		for x := range nx {
			a := h0[z*nx+x]
			b := h0[m.Mirror(z, nz)*nx+m.Mirror(x, nx)]

			if absf(real(a)-real(b)) > tol || absf(imag(a)+imag(b)) > tol {
				return false
			}
		}
	}

	return true
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}

	return v
}
