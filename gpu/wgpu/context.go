package wgpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/internal/cpu"
)

// fenceTimeout bounds every wait for submitted work.
const fenceTimeout = 5 * time.Second

// Context records kernel dispatches and transform passes into one command
// encoder. Recorded work is submitted by MemoryBarrier, Download and
// Benchmark.
type Context struct {
	device hal.Device
	queue  hal.Queue
	info   gpu.DeviceInfo
	opts   options

	release func()

	evolve *pipeline

	// pending work, nil when nothing is recorded
	encoder   hal.CommandEncoder
	transient []hal.Buffer
	groups    []hal.BindGroup

	closed bool
}

var _ gpu.Context = (*Context)(nil)

func newContext(device hal.Device, queue hal.Queue, info gpu.DeviceInfo, o options) *Context {
	return &Context{device: device, queue: queue, info: info, opts: o}
}

func (c *Context) Device() gpu.DeviceInfo {
	return c.info
}

func (c *Context) NewBuffer(sizeBytes int, flags gpu.BufferFlags) (gpu.Buffer, error) {
	if c.closed {
		return nil, gpu.ErrClosed
	}

	if sizeBytes <= 0 || sizeBytes%gpu.ComplexSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", gpu.ErrInvalidLength, sizeBytes)
	}

	storage, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ocean_storage",
		Size:  uint64(sizeBytes),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create storage buffer: %w", err)
	}

	return &Buffer{ctx: c, storage: storage, size: sizeBytes, flags: flags}, nil
}

func (c *Context) NewFFTPlan(shape gpu.Shape, tuning gpu.Tuning) (gpu.PlanImpl, error) {
	if c.closed {
		return nil, gpu.ErrClosed
	}

	return newPlan(c, shape, tuning)
}

// Dispatch records kernel k. Group counts below one are raised to cover
// the grid with EvolveGroupSize² workgroups.
func (c *Context) Dispatch(k gpu.Kernel, args gpu.KernelArgs, gx, gy, gz uint32) error {
	if c.closed {
		return gpu.ErrClosed
	}

	if k != gpu.KernelEvolve {
		return fmt.Errorf("%w: %s", gpu.ErrNotImplemented, k)
	}

	n := args.Grid.NX * args.Grid.NZ
	if n <= 0 {
		return gpu.ErrInvalidLength
	}

	h0, err := c.own(args.H0, n)
	if err != nil {
		return err
	}

	var outs [5]*Buffer
	for i, b := range args.Out {
		if outs[i], err = c.own(b, n); err != nil {
			return err
		}
	}

	if c.evolve == nil {
		p, err := c.newPipeline("ocean_evolve", evolveShaderSource, 7)
		if err != nil {
			return err
		}

		c.evolve = p
	}

	params := evolveParams(args)

	uniform, err := c.newUniform("ocean_evolve_params", params)
	if err != nil {
		return err
	}

	c.transient = append(c.transient, uniform)

	buffers := []*Buffer{h0, outs[0], outs[1], outs[2], outs[3], outs[4]}

	bg, err := c.newBindGroup(c.evolve, uniform, uint64(len(params)), buffers...)
	if err != nil {
		return err
	}

	c.groups = append(c.groups, bg)

	const g = gpu.EvolveGroupSize
	gx = max(gx, uint32((args.Grid.NX+g-1)/g))
	gy = max(gy, uint32((args.Grid.NZ+g-1)/g))
	gz = max(gz, 1)

	enc, err := c.record()
	if err != nil {
		return err
	}

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "ocean_evolve"})
	pass.SetPipeline(c.evolve.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(gx, gy, gz)
	pass.End()

	return nil
}

// MemoryBarrier submits everything recorded so far and waits for it.
func (c *Context) MemoryBarrier() error {
	if c.closed {
		return gpu.ErrClosed
	}

	return c.flush()
}

// Benchmark records the opts dispatches count of transforms per submit and
// returns the mean wall time of one transform in seconds.
func (c *Context) Benchmark(ctx context.Context, p *gpu.Plan, iterations int) (float64, error) {
	if c.closed {
		return 0, gpu.ErrClosed
	}

	if p == nil || p.Impl() == nil {
		return 0, gpu.ErrClosed
	}

	n := p.Len()

	src, err := c.NewBuffer(n*gpu.ComplexSize, gpu.BufferStorage|gpu.BufferUpload)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := c.NewBuffer(n*gpu.ComplexSize, gpu.BufferStorage)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	data := make([]complex64, n)
	for i := range data {
		data[i] = complex(float32(i%7)-3, float32(i%5)-2)
	}

	if err := src.Upload(data); err != nil {
		return 0, err
	}

	if err := c.flush(); err != nil {
		return 0, err
	}

	var sw cpu.Stopwatch

	for range max(iterations, 1) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sw.Start()

		for range c.opts.dispatches {
			if err := p.Inverse(dst, src); err != nil {
				sw.Stop()
				return 0, err
			}
		}

		err := c.flush()

		sw.Stop()

		if err != nil {
			return 0, err
		}
	}

	return sw.PerLap() / float64(c.opts.dispatches), nil
}

// Close submits pending work, then destroys pipelines and, for contexts
// opened by a Backend, the device.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}

	var errs []error

	if c.encoder != nil {
		errs = append(errs, c.flush())
	}

	c.evolve.destroy(c.device)
	c.evolve = nil
	c.closed = true

	if c.release != nil {
		c.release()
	}

	return errors.Join(errs...)
}

// own checks that b is a buffer of this context holding at least n samples.
func (c *Context) own(b gpu.Buffer, n int) (*Buffer, error) {
	if b == nil {
		return nil, gpu.ErrNilBuffer
	}

	wb, ok := b.(*Buffer)
	if !ok || wb.ctx != c {
		return nil, gpu.ErrForeignBuffer
	}

	if wb.storage == nil {
		return nil, gpu.ErrClosed
	}

	if wb.Len() < n {
		return nil, gpu.ErrLengthMismatch
	}

	return wb, nil
}

// record returns the pending encoder, beginning one if needed.
func (c *Context) record() (hal.CommandEncoder, error) {
	if c.encoder != nil {
		return c.encoder, nil
	}

	enc, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "ocean_encoder"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}

	if err := enc.BeginEncoding("ocean"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	c.encoder = enc

	return enc, nil
}

// flush submits the pending encoder, waits on a fence and releases the
// per-submit uniforms and bind groups.
func (c *Context) flush() error {
	if c.encoder == nil {
		return nil
	}

	enc := c.encoder
	c.encoder = nil

	defer c.releaseTransient()

	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}

	ok, err := c.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait: %w", err)
	}

	if !ok {
		return fmt.Errorf("wgpu: wait: timed out after %v", fenceTimeout)
	}

	return nil
}

func (c *Context) releaseTransient() {
	for _, bg := range c.groups {
		c.device.DestroyBindGroup(bg)
	}

	for _, b := range c.transient {
		c.device.DestroyBuffer(b)
	}

	c.groups = c.groups[:0]
	c.transient = c.transient[:0]
}

// newUniform creates a uniform buffer holding data.
func (c *Context) newUniform(label string, data []byte) (hal.Buffer, error) {
	ub, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}

	c.queue.WriteBuffer(ub, 0, data)

	return ub, nil
}

// newBindGroup binds uniform at 0 followed by buffers at 1, 2, ...
func (c *Context) newBindGroup(p *pipeline, uniform hal.Buffer, uniformSize uint64, buffers ...*Buffer) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(buffers)+1)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: uniformSize},
	})

	for i, b := range buffers {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1),
			Resource: gputypes.BufferBinding{Buffer: b.storage.NativeHandle(), Offset: 0, Size: uint64(b.size)},
		})
	}

	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "ocean_bind",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}

	return bg, nil
}

func evolveParams(args gpu.KernelArgs) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], uint32(args.Grid.NX))
	binary.LittleEndian.PutUint32(buf[4:], uint32(args.Grid.NZ))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(args.Grid.PatchX)))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(args.Grid.PatchZ)))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(float32(args.Grid.Gravity)))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(float32(args.Time)))

	return buf
}

// pipeline is a compute pipeline whose bind group layout is one uniform
// buffer followed by storage buffers. The first storage buffer is read
// only.
type pipeline struct {
	module     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// newPipeline compiles source and builds a pipeline with bindings entries:
// one uniform, one read-only storage and bindings-2 writable storage
// buffers.
func (c *Context) newPipeline(label, source string, bindings int) (*pipeline, error) {
	spirv, err := compileSPIRV(source)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}

	p.module, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, label, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, bindings)
	for i := range entries {
		typ := gputypes.BufferBindingTypeStorage

		switch i {
		case 0:
			typ = gputypes.BufferBindingTypeUniform
		case 1:
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}

		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}

	p.layout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		p.destroy(c.device)
		return nil, fmt.Errorf("wgpu: %s: create bind group layout: %w", label, err)
	}

	p.pipeLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		p.destroy(c.device)
		return nil, fmt.Errorf("wgpu: %s: create pipeline layout: %w", label, err)
	}

	p.pipeline, err = c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label + "_pipeline",
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: "main"},
	})
	if err != nil {
		p.destroy(c.device)
		return nil, fmt.Errorf("wgpu: %s: create compute pipeline: %w", label, err)
	}

	return p, nil
}

func (p *pipeline) destroy(device hal.Device) {
	if p == nil {
		return
	}

	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}

	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}

	if p.layout != nil {
		device.DestroyBindGroupLayout(p.layout)
	}

	if p.module != nil {
		device.DestroyShaderModule(p.module)
	}
}
