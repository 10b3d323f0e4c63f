package spectrum

import (
	"math"

	m "github.com/cwbudde/algo-ocean/internal/math"
)

// Pack converts the five spatial fields of an nx×nz band into interleaved
// xyz displacement and normal samples. The checkerboard sign undoes the
// half-grid shift of the centered spectrum.
//
// displacement = (dispScale·dx, heightScale·h, dispScale·dz)
// normal       = normalize(-heightScale·gx, 1, -heightScale·gz)
func Pack(displacement, normals []float32, f Fields, nx, nz int, dispScale, heightScale float32) {
	for z := range nz {
		for x := range nx {
			idx := z*nx + x
			sign := m.CheckerSign(x, z)

			h := sign * real(f.Height[idx])
			dx := sign * real(f.DispX[idx])
			dz := sign * real(f.DispZ[idx])
			gx := sign * real(f.GradX[idx]) * heightScale
			gz := sign * real(f.GradZ[idx]) * heightScale

			o := idx * 3
			displacement[o] = dispScale * dx
			displacement[o+1] = heightScale * h
			displacement[o+2] = dispScale * dz

			inv := float32(1 / math.Sqrt(float64(gx*gx+1+gz*gz)))
			normals[o] = -gx * inv
			normals[o+1] = inv
			normals[o+2] = -gz * inv
		}
	}
}
