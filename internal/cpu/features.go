// Package cpu reports the host processor's vector capabilities and times
// short benchmark runs for the CPU compute backend.
package cpu

import (
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// Features describes the SIMD capabilities of the host.
type Features struct {
	HasSSE2   bool
	HasSSE41  bool
	HasAVX    bool
	HasAVX2   bool
	HasFMA    bool
	HasAVX512 bool

	HasNEON  bool
	HasASIMD bool
	HasFPHP  bool

	Architecture string
}

var (
	detectOnce sync.Once
	detected   Features
)

// DetectFeatures returns the host features. Detection runs once.
func DetectFeatures() Features {
	detectOnce.Do(func() {
		detected = detectFeatures()
	})

	return detected
}

func detectFeatures() Features {
	f := Features{Architecture: runtime.GOARCH}

	switch runtime.GOARCH {
	case "amd64", "386":
		f.HasSSE2 = cpu.X86.HasSSE2
		f.HasSSE41 = cpu.X86.HasSSE41
		f.HasAVX = cpu.X86.HasAVX
		f.HasAVX2 = cpu.X86.HasAVX2
		f.HasFMA = cpu.X86.HasFMA
		f.HasAVX512 = cpu.X86.HasAVX512F
	case "arm64":
		f.HasNEON = true
		f.HasASIMD = cpu.ARM64.HasASIMD
		f.HasFPHP = cpu.ARM64.HasFPHP
	case "arm":
		f.HasNEON = cpu.ARM.HasNEON
	}

	return f
}

// VectorWidth returns the widest native float32 vector, in lanes.
func (f Features) VectorWidth() int {
	switch {
	case f.HasAVX512:
		return 16
	case f.HasAVX2, f.HasAVX:
		return 8
	case f.HasSSE2, f.HasNEON, f.HasASIMD:
		return 4
	default:
		return 1
	}
}

// Class returns a short hardware class name such as "cpu/amd64-avx2". It
// is used as the renderer string for CPU devices.
func (f Features) Class() string {
	var b strings.Builder

	b.WriteString("cpu/")
	b.WriteString(f.Architecture)

	switch {
	case f.HasAVX512:
		b.WriteString("-avx512")
	case f.HasAVX2:
		b.WriteString("-avx2")
	case f.HasAVX:
		b.WriteString("-avx")
	case f.HasSSE41:
		b.WriteString("-sse4.1")
	case f.HasSSE2:
		b.WriteString("-sse2")
	case f.HasASIMD, f.HasNEON:
		b.WriteString("-neon")
	}

	if f.HasFPHP {
		b.WriteString("+fp16")
	}

	return b.String()
}
