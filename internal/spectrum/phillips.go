// Package spectrum implements the statistical wave model: the Phillips
// spectrum, synthesis of the time-independent H0 field, its evolution under
// the deep-water dispersion relation, and packing of transformed fields into
// displacement and normal samples.
//
// Grids are stored row-major (index z*NX + x) with the zero wavevector at
// (NX/2, NZ/2).
package spectrum

import (
	"math"

	m "github.com/cwbudde/algo-ocean/internal/math"
)

// Params holds the physical description of one band.
type Params struct {
	NX, NZ int

	PatchX, PatchZ float64

	// WindX, WindZ must form a unit vector.
	WindX, WindZ float64

	WindSpeed        float64
	Gravity          float64
	Amplitude        float64
	CrossWindDamping float64
	SmallWaveDamping float64

	Seed uint32
}

// Vec2 is a wavevector.
type Vec2 struct {
	X, Z float64
}

// Len returns |k|.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Z)
}

// IsZero reports whether v is the zero wavevector.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Z == 0
}

// KVector returns the wavevector of grid cell (x, z).
func KVector(nx, nz int, patchX, patchZ float64, x, z int) Vec2 {
	return Vec2{
		X: (float64(x) - float64(nx)/2) * (m.TwoPi / patchX),
		Z: (float64(z) - float64(nz)/2) * (m.TwoPi / patchZ),
	}
}

// Phillips evaluates the Phillips spectrum at a non-zero wavevector k.
func Phillips(p Params, k Vec2) float64 {
	lenK := k.Len()
	lenK2 := lenK * lenK
	dotKWind := (k.X*p.WindX + k.Z*p.WindZ) / lenK
	l := p.WindSpeed * p.WindSpeed / p.Gravity
	l2 := l * l

	phillips := p.Amplitude * math.Exp(-1/(lenK2*l2)) * dotKWind * dotKWind / (lenK2 * lenK2)

	if dotKWind < 0 {
		phillips *= p.CrossWindDamping
	}

	return phillips * math.Exp(-lenK2*l2*p.SmallWaveDamping)
}
