package ocean

// BandView is a read-only snapshot of one band's outputs after a step.
//
// Displacement and Normals hold three floats (x, y, z) per grid sample in
// row-major order. The slices alias simulation memory and are valid until
// the next Step; callers must not modify them.
type BandView struct {
	Index  int
	Params BandParams

	SizeX, SizeY int

	Displacement []float32
	Normals      []float32

	// UVScale maps world-space XZ to texture coordinates (1/patch).
	UVScale [2]float32
	Patch   [2]float32

	// Time is the simulated time in seconds the outputs belong to.
	Time float64
	// Valid is false until the band has completed a step.
	Valid bool
}

// Sample returns the displacement and normal at grid cell (x, z). Cells
// outside the grid wrap around.
func (v BandView) Sample(x, z int) (disp, normal [3]float32) {
	if !v.Valid || v.SizeX == 0 || v.SizeY == 0 {
		return disp, [3]float32{0, 1, 0}
	}

	x = ((x % v.SizeX) + v.SizeX) % v.SizeX
	z = ((z % v.SizeY) + v.SizeY) % v.SizeY
	o := (z*v.SizeX + x) * 3

	copy(disp[:], v.Displacement[o:o+3])
	copy(normal[:], v.Normals[o:o+3])

	return disp, normal
}

// Height returns the vertical displacement at grid cell (x, z).
func (v BandView) Height(x, z int) float32 {
	d, _ := v.Sample(x, z)
	return d[1]
}

// HeightRange returns the lowest and highest vertical displacement.
func (v BandView) HeightRange() (lo, hi float32) {
	if !v.Valid || len(v.Displacement) < 3 {
		return 0, 0
	}

	lo, hi = v.Displacement[1], v.Displacement[1]

	for i := 4; i < len(v.Displacement); i += 3 {
		h := v.Displacement[i]
		lo = min(lo, h)
		hi = max(hi, h)
	}

	return lo, hi
}
