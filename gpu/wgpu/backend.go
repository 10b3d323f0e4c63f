// Package wgpu runs the ocean kernels and inverse transforms as WebGPU
// compute pipelines through the gogpu hardware abstraction layer.
//
// The evolve kernel is a single dispatch per band. Transforms are radix-2
// Stockham passes, one dispatch per pass, specialised for the workgroup
// size and per-invocation butterfly count of their tuning. Power-of-two
// sizes only.
package wgpu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/cwbudde/algo-ocean/gpu"
)

var (
	// ErrShaderCompile is returned when a kernel variant fails to compile.
	ErrShaderCompile = errors.New("algo-ocean/gpu/wgpu: shader compile failed")

	// ErrUnsupportedTuning is returned for tunings the device cannot run.
	ErrUnsupportedTuning = errors.New("algo-ocean/gpu/wgpu: unsupported tuning")
)

// Option configures a Backend or Context.
type Option func(*options)

type options struct {
	dispatches int
	log        *slog.Logger
}

func defaultOptions() options {
	return options{dispatches: 1, log: slog.New(slog.DiscardHandler)}
}

// WithDispatches sets how many transforms Benchmark records per submit.
// Values below one are ignored.
func WithDispatches(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.dispatches = n
		}
	}
}

// WithLogger sets the logger for device and pipeline events.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Backend opens Vulkan devices through the hal layer.
type Backend struct {
	opts options
}

// New returns a Backend. Device discovery is deferred to Available,
// Devices and NewContext.
func New(opts ...Option) *Backend {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Backend{opts: o}
}

func (b *Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        "wgpu",
		Version:     "1",
		Description: "WebGPU compute pipelines (Vulkan hal)",
	}
}

// Available reports whether at least one adapter can be enumerated.
func (b *Backend) Available() bool {
	devices, err := b.Devices()
	return err == nil && len(devices) > 0
}

func (b *Backend) Devices() ([]gpu.DeviceInfo, error) {
	instance, adapters, err := openInstance()
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	out := make([]gpu.DeviceInfo, len(adapters))
	for i := range adapters {
		out[i] = deviceInfo(&adapters[i])
	}

	return out, nil
}

// NewContext opens adapter deviceIndex. The returned context owns the
// device and releases it on Close.
func (b *Backend) NewContext(deviceIndex int) (gpu.Context, error) {
	instance, adapters, err := openInstance()
	if err != nil {
		return nil, err
	}

	if deviceIndex < 0 || deviceIndex >= len(adapters) {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu backend: device index %d out of range", deviceIndex)
	}

	selected := &adapters[deviceIndex]

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", gpu.ErrBackendUnavailable, err)
	}

	c := newContext(openDev.Device, openDev.Queue, deviceInfo(selected), b.opts)
	c.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}

	b.opts.log.Info("wgpu: device opened", "adapter", selected.Info.Name)

	return c, nil
}

// NewContextFromDevice wraps an already opened device. The caller keeps
// ownership of device and queue.
func NewContextFromDevice(device hal.Device, queue hal.Queue, info gpu.DeviceInfo, opts ...Option) *Context {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if info.MaxWorkgroupSize == 0 {
		info.MaxWorkgroupSize = gputypes.DefaultLimits().MaxComputeWorkgroupSizeX
	}

	return newContext(device, queue, info, o)
}

func openInstance() (hal.Instance, []hal.ExposedAdapter, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, fmt.Errorf("%w: vulkan backend not registered", gpu.ErrBackendUnavailable)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create instance: %w", gpu.ErrBackendUnavailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, fmt.Errorf("%w: no adapters", gpu.ErrBackendUnavailable)
	}

	// Discrete and integrated GPUs first, keeping enumeration order.
	ordered := make([]hal.ExposedAdapter, 0, len(adapters))
	for i := range adapters {
		if isHardware(&adapters[i]) {
			ordered = append(ordered, adapters[i])
		}
	}

	for i := range adapters {
		if !isHardware(&adapters[i]) {
			ordered = append(ordered, adapters[i])
		}
	}

	return instance, ordered, nil
}

func isHardware(a *hal.ExposedAdapter) bool {
	return a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
		a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU
}

func deviceInfo(a *hal.ExposedAdapter) gpu.DeviceInfo {
	return gpu.DeviceInfo{
		Name:             a.Info.Name,
		Vendor:           fmt.Sprint(a.Info.DeviceType),
		Driver:           "vulkan",
		Renderer:         a.Info.Name,
		MaxWorkgroupSize: gputypes.DefaultLimits().MaxComputeWorkgroupSizeX,
	}
}
