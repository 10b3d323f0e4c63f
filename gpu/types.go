package gpu

import (
	"github.com/cwbudde/algo-ocean/internal/spectrum"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// Shape and Tuning are the wisdom library's transform key and parameters.
type (
	Shape  = wisdom.Shape
	Tuning = wisdom.Tuning
)

// ComplexSize is the size in bytes of one complex64 sample.
const ComplexSize = 8

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name   string
	Vendor string
	Driver string

	// Renderer is matched against the hardware-class table of the wisdom
	// library (for example "NVIDIA GeForce RTX 3080" or "cpu/amd64-avx2").
	Renderer string

	// MaxWorkgroupSize is the largest number of invocations per workgroup.
	MaxWorkgroupSize uint32

	MemoryMB int
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// BufferFlags describe how a buffer is used.
type BufferFlags uint32

const (
	// BufferStorage marks a buffer read and written by kernels.
	BufferStorage BufferFlags = 1 << iota
	// BufferUpload marks a buffer the host writes.
	BufferUpload
	// BufferDownload marks a buffer the host reads back.
	BufferDownload
)

// Kernel identifies a compute kernel a backend provides.
type Kernel uint32

const (
	// KernelEvolve advances H0 to time t and writes the five frequency
	// domain fields (height, dispX, dispZ, gradX, gradZ).
	KernelEvolve Kernel = iota
)

func (k Kernel) String() string {
	if k == KernelEvolve {
		return "evolve"
	}

	return "kernel(?)"
}

// EvolveGroupSize is the workgroup edge length of KernelEvolve.
const EvolveGroupSize = 8

// KernelArgs are the bindings of a kernel dispatch.
type KernelArgs struct {
	Grid spectrum.Grid
	Time float64

	H0 Buffer
	// Out receives height, dispX, dispZ, gradX, gradZ in that order.
	Out [5]Buffer
}
