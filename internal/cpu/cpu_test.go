package cpu

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDetectFeatures(t *testing.T) {
	t.Parallel()

	f := DetectFeatures()
	if f.Architecture != runtime.GOARCH {
		t.Errorf("Architecture = %q, want %q", f.Architecture, runtime.GOARCH)
	}

	if DetectFeatures() != f {
		t.Error("DetectFeatures is not stable")
	}

	if runtime.GOARCH == "amd64" && !f.HasSSE2 {
		t.Error("amd64 always has SSE2")
	}

	if w := f.VectorWidth(); w < 1 {
		t.Errorf("VectorWidth = %d", w)
	}
}

func TestFeatures_Class(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    Features
		want string
	}{
		{Features{Architecture: "amd64", HasSSE2: true, HasAVX: true, HasAVX2: true}, "cpu/amd64-avx2"},
		{Features{Architecture: "amd64", HasSSE2: true, HasAVX512: true}, "cpu/amd64-avx512"},
		{Features{Architecture: "arm64", HasNEON: true, HasASIMD: true, HasFPHP: true}, "cpu/arm64-neon+fp16"},
		{Features{Architecture: "wasm"}, "cpu/wasm"},
	}

	for _, tt := range tests {
		if got := tt.f.Class(); got != tt.want {
			t.Errorf("Class() = %q, want %q", got, tt.want)
		}
	}

	if !strings.HasPrefix(DetectFeatures().Class(), "cpu/") {
		t.Error("host class lacks cpu/ prefix")
	}
}

func TestStopwatch(t *testing.T) {
	t.Parallel()

	var s Stopwatch

	if s.Stop() != 0 || s.Laps() != 0 {
		t.Fatal("stopping an idle stopwatch recorded a lap")
	}

	for range 3 {
		s.Start()
		time.Sleep(time.Millisecond)
		s.Stop()
	}

	if s.Laps() != 3 {
		t.Errorf("Laps = %d, want 3", s.Laps())
	}

	if s.Total() < 3*time.Millisecond {
		t.Errorf("Total = %v, want >= 3ms", s.Total())
	}

	if s.PerLap() < time.Millisecond.Seconds() {
		t.Errorf("PerLap = %v", s.PerLap())
	}
}
