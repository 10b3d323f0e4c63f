//go:build !opencl

package opencl

import (
	"fmt"

	"github.com/cwbudde/algo-ocean/gpu"
)

// Backend is unavailable in builds without the opencl tag.
type Backend struct {
	opts options
}

// New returns a backend whose Available reports false.
func New(opts ...Option) *Backend {
	b := &Backend{}
	b.apply(opts)

	return b
}

func (b *Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{Name: "opencl", Description: "OpenCL (disabled)"}
}

func (b *Backend) Available() bool {
	return false
}

func (b *Backend) Devices() ([]gpu.DeviceInfo, error) {
	return nil, fmt.Errorf("%w: %w", gpu.ErrBackendUnavailable, ErrNotEnabled)
}

func (b *Backend) NewContext(int) (gpu.Context, error) {
	return nil, fmt.Errorf("%w: %w", gpu.ErrBackendUnavailable, ErrNotEnabled)
}
