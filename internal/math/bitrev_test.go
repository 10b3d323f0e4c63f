package math

import (
	"testing"
)

func TestIsPowerOf2(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 4, 64, 256, 1 << 20} {
		if !IsPowerOf2(n) {
			t.Errorf("IsPowerOf2(%d) = false, want true", n)
		}
	}

	for _, n := range []int{-4, 0, 3, 6, 100, 255} {
		if IsPowerOf2(n) {
			t.Errorf("IsPowerOf2(%d) = true, want false", n)
		}
	}
}

func TestLog2(t *testing.T) {
	t.Parallel()

	for bits := range 16 {
		if got := Log2(1 << bits); got != bits {
			t.Errorf("Log2(%d) = %d, want %d", 1<<bits, got, bits)
		}
	}
}

func TestMirror(t *testing.T) {
	t.Parallel()

	const n = 8

	if got := Mirror(0, n); got != 0 {
		t.Errorf("Mirror(0) = %d, want 0", got)
	}

	if got := Mirror(n/2, n); got != n/2 {
		t.Errorf("Mirror(n/2) = %d, want %d", got, n/2)
	}

	for i := range n {
		if back := Mirror(Mirror(i, n), n); back != i {
			t.Errorf("Mirror(Mirror(%d)) = %d", i, back)
		}
	}
}

func TestCheckerSign(t *testing.T) {
	t.Parallel()

	if CheckerSign(0, 0) != 1 || CheckerSign(1, 0) != -1 || CheckerSign(1, 1) != 1 || CheckerSign(2, 3) != -1 {
		t.Fatal("CheckerSign does not alternate")
	}
}
