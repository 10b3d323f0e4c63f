package gpu

import "context"

// Backend is implemented by compute backends (host CPU, WebGPU, OpenCL).
// It is responsible for device discovery and context creation.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context represents a backend-specific compute context tied to a device.
// Calls on one Context come from a single goroutine.
type Context interface {
	Device() DeviceInfo
	// NewBuffer allocates a device buffer of sizeBytes bytes holding
	// complex64 samples.
	NewBuffer(sizeBytes int, flags BufferFlags) (Buffer, error)
	// NewFFTPlan creates a 2D inverse transform for shape.Nx × shape.Ny
	// executed with tuning.
	NewFFTPlan(shape Shape, tuning Tuning) (PlanImpl, error)
	// Dispatch runs kernel k over gx × gy × gz workgroups.
	Dispatch(k Kernel, args KernelArgs, gx, gy, gz uint32) error
	// MemoryBarrier orders all previously submitted writes before any
	// later reads.
	MemoryBarrier() error
	// Benchmark runs p iterations times and returns the mean cost of one
	// transform in seconds.
	Benchmark(ctx context.Context, p *Plan, iterations int) (float64, error)
	Close() error
}

// Buffer is a device buffer of complex64 samples.
type Buffer interface {
	// Len returns the number of complex samples.
	Len() int
	// Size returns the size in bytes.
	Size() int
	// Upload copies from host to device.
	Upload(src []complex64) error
	// Download copies from device to host.
	Download(dst []complex64) error
	Close() error
}

// PlanImpl is a backend-specific transform implementation.
type PlanImpl interface {
	Shape() Shape
	Tuning() Tuning
	// Inverse runs the unnormalized 2D inverse transform from src into dst.
	Inverse(dst, src Buffer) error
	Close() error
}
