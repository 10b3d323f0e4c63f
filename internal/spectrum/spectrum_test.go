package spectrum

import (
	"math"
	"testing"
)

func defaultParams(n int) Params {
	return Params{
		NX: n, NZ: n,
		PatchX: float64(n) * 0.45, PatchZ: float64(n) * 0.45,
		WindX: 1, WindZ: 0,
		WindSpeed:        75,
		Gravity:          9.8,
		Amplitude:        1e-5,
		CrossWindDamping: 1,
		SmallWaveDamping: 1e-7,
		Seed:             1337,
	}
}

func TestH0Hermitian(t *testing.T) {
	t.Parallel()

	for _, n := range []int{4, 16, 64, 256} {
		p := defaultParams(n)
		h0 := H0(p)

		if !IsHermitian(h0, n, n, 0) {
			t.Errorf("H0(%d) is not Hermitian", n)
		}

		dc := (n/2)*n + n/2
		if h0[dc] != 0 {
			t.Errorf("H0(%d)[DC] = %v, want 0", n, h0[dc])
		}
	}
}

func TestH0RectangularHermitian(t *testing.T) {
	t.Parallel()

	p := defaultParams(0)
	p.NX, p.NZ = 32, 8
	p.PatchX, p.PatchZ = 100, 25

	h0 := H0(p)
	if len(h0) != 32*8 {
		t.Fatalf("len = %d, want %d", len(h0), 32*8)
	}

	if !IsHermitian(h0, 32, 8, 0) {
		t.Fatal("rectangular H0 is not Hermitian")
	}
}

func TestH0SelfMirroredCellsReal(t *testing.T) {
	t.Parallel()

	const n = 32

	h0 := H0(defaultParams(n))

	for _, z := range []int{0, n / 2} {
		for _, x := range []int{0, n / 2} {
			if v := h0[z*n+x]; imag(v) != 0 {
				t.Errorf("h0[%d][%d] = %v, want real", z, x, v)
			}
		}
	}
}

func TestH0Deterministic(t *testing.T) {
	t.Parallel()

	p := defaultParams(256)
	a := H0(p)
	b := H0(p)

	if len(a) != 65536 {
		t.Fatalf("len = %d, want 65536", len(a))
	}

	if a[0] != 0 {
		t.Errorf("h0[0] = %v, want (0,0)", a[0])
	}

	for i := range a {
		if math.Float32bits(real(a[i])) != math.Float32bits(real(b[i])) ||
			math.Float32bits(imag(a[i])) != math.Float32bits(imag(b[i])) {
			t.Fatalf("h0[%d] differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestH0SeedChangesField(t *testing.T) {
	t.Parallel()

	p := defaultParams(16)
	a := H0(p)
	p.Seed++
	b := H0(p)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}

	if same {
		t.Fatal("different seeds produced identical spectra")
	}
}

func TestPhillipsCrossWindDamping(t *testing.T) {
	t.Parallel()

	p := defaultParams(64)
	p.CrossWindDamping = 0.25

	with := Phillips(p, Vec2{X: 0.5, Z: 0.1})
	against := Phillips(p, Vec2{X: -0.5, Z: -0.1})

	if with <= 0 {
		t.Fatalf("downwind Phillips = %g, want > 0", with)
	}

	if got := against / with; math.Abs(got-0.25) > 1e-12 {
		t.Errorf("upwind/downwind ratio = %g, want 0.25", got)
	}

	if perp := Phillips(p, Vec2{X: 0, Z: 1}); perp != 0 {
		t.Errorf("perpendicular Phillips = %g, want 0", perp)
	}
}

func TestKVectorCentered(t *testing.T) {
	t.Parallel()

	k := KVector(8, 8, 10, 20, 4, 4)
	if !k.IsZero() {
		t.Fatalf("KVector(center) = %+v, want zero", k)
	}

	k = KVector(8, 8, 10, 20, 5, 3)
	if math.Abs(k.X-2*math.Pi/10) > 1e-12 || math.Abs(k.Z+2*math.Pi/20) > 1e-12 {
		t.Errorf("KVector(5,3) = %+v", k)
	}
}

func TestEvolveKeepsHeightHermitian(t *testing.T) {
	t.Parallel()

	const n = 32

	p := defaultParams(n)
	h0 := H0(p)
	f := NewFields(n * n)
	g := Grid{NX: n, NZ: n, PatchX: p.PatchX, PatchZ: p.PatchZ, Gravity: p.Gravity}

	Evolve(f, h0, g, 1.37, 0, n)

	if !IsHermitian(f.Height, n, n, 1e-9) {
		t.Fatal("evolved height spectrum is not Hermitian")
	}

	dc := (n/2)*n + n/2
	for i, s := range f.Slices() {
		if s[dc] != 0 {
			t.Errorf("field %d at DC = %v, want 0", i, s[dc])
		}
	}
}

func TestEvolveAtZeroTime(t *testing.T) {
	t.Parallel()

	const n = 16

	p := defaultParams(n)
	h0 := H0(p)
	f := NewFields(n * n)
	g := Grid{NX: n, NZ: n, PatchX: p.PatchX, PatchZ: p.PatchZ, Gravity: p.Gravity}

	Evolve(f, h0, g, 0, 0, n)

	// With a Hermitian h0, conj(h0(-k)) == h0(k), so h(k, 0) == 2·h0(k).
	for i := range h0 {
		want := 2 * h0[i]
		if d := f.Height[i] - want; absf(real(d)) > 1e-12 || absf(imag(d)) > 1e-12 {
			t.Fatalf("h(%d, 0) = %v, want %v", i, f.Height[i], want)
		}
	}
}

func TestEvolveRowRange(t *testing.T) {
	t.Parallel()

	const n = 8

	p := defaultParams(n)
	h0 := H0(p)
	g := Grid{NX: n, NZ: n, PatchX: p.PatchX, PatchZ: p.PatchZ, Gravity: p.Gravity}

	whole := NewFields(n * n)
	Evolve(whole, h0, g, 0.5, 0, n)

	split := NewFields(n * n)
	Evolve(split, h0, g, 0.5, 0, 3)
	Evolve(split, h0, g, 0.5, 3, n)

	for i := range whole.GradZ {
		if whole.GradZ[i] != split.GradZ[i] {
			t.Fatalf("GradZ[%d] differs: %v vs %v", i, whole.GradZ[i], split.GradZ[i])
		}
	}
}

func TestPackFlatSurface(t *testing.T) {
	t.Parallel()

	const n = 4

	f := NewFields(n * n)
	disp := make([]float32, 3*n*n)
	normals := make([]float32, 3*n*n)

	Pack(disp, normals, f, n, n, -1, 1)

	for i := 0; i < len(normals); i += 3 {
		if normals[i] != 0 || normals[i+1] != 1 || normals[i+2] != 0 {
			t.Fatalf("normal %d = %v, want (0,1,0)", i/3, normals[i:i+3])
		}
	}
}

func TestPackAppliesSignAndScale(t *testing.T) {
	t.Parallel()

	const n = 4

	f := NewFields(n * n)
	for z := range n {
		for x := range n {
			sign := float32(1)
			if (x+z)%2 == 1 {
				sign = -1
			}
			f.Height[z*n+x] = complex(sign*2, 0)
			f.DispX[z*n+x] = complex(sign*3, 0)
		}
	}

	disp := make([]float32, 3*n*n)
	normals := make([]float32, 3*n*n)
	Pack(disp, normals, f, n, n, -0.5, 4)

	for i := range n * n {
		if disp[3*i] != -1.5 || disp[3*i+1] != 8 || disp[3*i+2] != 0 {
			t.Fatalf("displacement %d = %v, want (-1.5, 8, 0)", i, disp[3*i:3*i+3])
		}
	}
}
