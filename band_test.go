package ocean

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-ocean/internal/spectrum"
)

func TestSynthesize_ReferenceBand(t *testing.T) {
	t.Parallel()

	p := DefaultBandParams()
	p.ResolutionX, p.ResolutionY = 256, 256
	p.Seed = 1337
	p.WindSpeed = 75
	p.Gravity = 9.8
	p.Amplitude = 1e-5

	a, err := Synthesize(p)
	if err != nil {
		t.Fatal(err)
	}

	b, err := Synthesize(p)
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != 65536 || len(b) != 65536 {
		t.Fatalf("len = %d, %d; want 65536", len(a), len(b))
	}

	for i := range a {
		if math.Float32bits(real(a[i])) != math.Float32bits(real(b[i])) ||
			math.Float32bits(imag(a[i])) != math.Float32bits(imag(b[i])) {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}

	if a[0] != 0 {
		t.Errorf("h0[0] = %v, want 0", a[0])
	}

	if dc := a[128*256+128]; dc != 0 {
		t.Errorf("h0[DC] = %v, want 0", dc)
	}

	if !spectrum.IsHermitian(a, 256, 256, 0) {
		t.Error("h0 is not Hermitian")
	}

	nonZero := 0
	for _, v := range a {
		if v != 0 {
			nonZero++
		}
	}

	if nonZero < len(a)/2 {
		t.Errorf("only %d non-zero amplitudes", nonZero)
	}
}

func TestBand_SettersRejectInvalid(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())

	tests := []struct {
		name string
		set  func(*Band) error
		want error
	}{
		{"zero wind", func(b *Band) error { return b.SetWindDirection(0, 0) }, ErrZeroWind},
		{"zero resolution", func(b *Band) error { return b.SetResolution(0, 64) }, ErrInvalidResolution},
		{"negative patch", func(b *Band) error { return b.SetPatchSize(-1, 10) }, ErrInvalidPatch},
		{"infinite patch", func(b *Band) error { return b.SetPatchSize(float32(math.Inf(1)), 10) }, ErrInvalidPatch},
		{"zero gravity", func(b *Band) error { return b.SetGravity(0) }, ErrInvalidParam},
		{"nan wind speed", func(b *Band) error { return b.SetWindSpeed(nan) }, ErrInvalidParam},
		{"negative amplitude", func(b *Band) error { return b.SetAmplitude(-1) }, ErrInvalidParam},
		{"negative damping", func(b *Band) error { return b.SetSmallWaveDamping(-1) }, ErrInvalidParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBand(DefaultBandParams())
			if err != nil {
				t.Fatal(err)
			}

			_ = b.H0()
			before, gen := b.Params(), b.Generation()

			if err := tt.set(b); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			if b.Params() != before || b.Generation() != gen || b.Dirty() {
				t.Error("rejected setter changed the band")
			}
		})
	}
}

func TestBand_ChangeInvalidatesH0(t *testing.T) {
	t.Parallel()

	p := DefaultBandParams()
	p.ResolutionX, p.ResolutionY = 32, 32

	b, err := NewBand(p)
	if err != nil {
		t.Fatal(err)
	}

	if !b.Dirty() {
		t.Error("new band should need synthesis")
	}

	first := append([]complex64(nil), b.H0()...)

	if b.Dirty() {
		t.Error("band dirty after synthesis")
	}

	if err := b.SetAmplitude(p.Amplitude); err != nil {
		t.Fatal(err)
	}

	if b.Dirty() {
		t.Error("setting an unchanged value invalidated H0")
	}

	if err := b.SetSeed(p.Seed + 1); err != nil {
		t.Fatal(err)
	}

	if !b.Dirty() {
		t.Fatal("seed change did not invalidate H0")
	}

	second := b.H0()

	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}

	if same {
		t.Error("H0 unchanged after seed change")
	}

	if err := b.SetResolution(16, 8); err != nil {
		t.Fatal(err)
	}

	if got := len(b.H0()); got != 16*8 {
		t.Errorf("len(H0) = %d, want 128", got)
	}
}

func TestBand_WindDirectionNormalized(t *testing.T) {
	t.Parallel()

	b, err := NewBand(DefaultBandParams())
	if err != nil {
		t.Fatal(err)
	}

	if err := b.SetWindDirection(0.5, 0.9); err != nil {
		t.Fatal(err)
	}

	p := b.Params()
	if l := math.Hypot(float64(p.WindX), float64(p.WindZ)); math.Abs(l-1) > 1e-6 {
		t.Errorf("|wind| = %v, want 1", l)
	}
}

func TestBandParams_Geometry(t *testing.T) {
	t.Parallel()

	p := DefaultBandParams()
	p.ResolutionX, p.ResolutionY = 128, 64
	p.PatchX, p.PatchY = 64, 32

	if x, y := p.CellSize(); x != 0.5 || y != 0.5 {
		t.Errorf("CellSize = %v, %v", x, y)
	}

	if u, v := p.UVScale(); u != 1.0/64 || v != 1.0/32 {
		t.Errorf("UVScale = %v, %v", u, v)
	}

	if x, y := p.MeshSize(); x != 129 || y != 65 {
		t.Errorf("MeshSize = %v, %v", x, y)
	}
}
