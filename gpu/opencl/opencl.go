//go:build opencl

package opencl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/internal/cpu"
	m "github.com/cwbudde/algo-ocean/internal/math"
)

// Backend enumerates OpenCL GPUs, then CPUs when no GPU is present.
type Backend struct {
	opts options
}

// New returns an OpenCL backend.
func New(opts ...Option) *Backend {
	b := &Backend{}
	b.apply(opts)

	return b
}

func (b *Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        "opencl",
		Version:     "1",
		Description: "OpenCL kernels",
	}
}

func (b *Backend) Available() bool {
	devices, err := listDevices()
	return err == nil && len(devices) > 0
}

func (b *Backend) Devices() ([]gpu.DeviceInfo, error) {
	devices, err := listDevices()
	if err != nil {
		return nil, err
	}

	out := make([]gpu.DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = deviceInfo(d)
	}

	return out, nil
}

func (b *Backend) NewContext(deviceIndex int) (gpu.Context, error) {
	devices, err := listDevices()
	if err != nil {
		return nil, err
	}

	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, fmt.Errorf("opencl backend: device index %d out of range", deviceIndex)
	}

	device := devices[deviceIndex]

	clctx, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenCL context: %w", gpu.ErrBackendUnavailable, err)
	}

	queue, err := clctx.CreateCommandQueue(device, 0)
	if err != nil {
		clctx.Release()
		return nil, fmt.Errorf("%w: creating OpenCL command queue: %w", gpu.ErrBackendUnavailable, err)
	}

	c := &Context{
		device: device,
		clctx:  clctx,
		queue:  queue,
		info:   deviceInfo(device),
		opts:   b.opts,
	}

	c.base, err = c.build("")
	if err != nil {
		queue.Release()
		clctx.Release()

		return nil, err
	}

	b.opts.log.Info("opencl: device opened", "device", c.info.Name)

	return c, nil
}

func listDevices() ([]*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}

		return nil, fmt.Errorf("%w: %s: %w", gpu.ErrBackendUnavailable, msg, err)
	}

	for _, typ := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		var out []*cl.Device

		for _, p := range platforms {
			devices, derr := p.GetDevices(typ)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}

			out = append(out, devices...)
		}

		if len(out) > 0 {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: no OpenCL devices", gpu.ErrBackendUnavailable)
}

func deviceInfo(d *cl.Device) gpu.DeviceInfo {
	return gpu.DeviceInfo{
		Name:             d.Name(),
		Vendor:           d.Vendor(),
		Driver:           d.DriverVersion(),
		Renderer:         d.Name(),
		MaxWorkgroupSize: uint32(d.MaxWorkGroupSize()),
		MemoryMB:         int(d.GlobalMemSize() >> 20),
	}
}

// program is a built program with its three kernels.
type program struct {
	prog   *cl.Program
	evolve *cl.Kernel
	stage  *cl.Kernel
	copy   *cl.Kernel
}

func (p *program) release() {
	for _, k := range []*cl.Kernel{p.evolve, p.stage, p.copy} {
		if k != nil {
			k.Release()
		}
	}

	if p.prog != nil {
		p.prog.Release()
	}
}

// Context executes on one OpenCL command queue. Enqueued work completes
// in order; MemoryBarrier waits for all of it.
type Context struct {
	device *cl.Device
	clctx  *cl.Context
	queue  *cl.CommandQueue
	info   gpu.DeviceInfo
	opts   options

	// base is built without options and serves Dispatch and copies.
	base *program

	closed bool
}

var _ gpu.Context = (*Context)(nil)

func (c *Context) build(buildOptions string) (*program, error) {
	prog, err := c.clctx.CreateProgramWithSource([]string{kernelSource})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}

	p := &program{prog: prog}

	if err := prog.BuildProgram([]*cl.Device{c.device}, buildOptions); err != nil {
		p.release()

		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}

		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}

	for _, k := range []struct {
		name string
		dst  **cl.Kernel
	}{
		{"evolve", &p.evolve},
		{"fft_stage", &p.stage},
		{"copy_buffer", &p.copy},
	} {
		kernel, err := prog.CreateKernel(k.name)
		if err != nil {
			p.release()
			return nil, fmt.Errorf("creating kernel %s: %w", k.name, err)
		}

		*k.dst = kernel
	}

	return p, nil
}

func (c *Context) Device() gpu.DeviceInfo {
	return c.info
}

func (c *Context) NewBuffer(sizeBytes int, _ gpu.BufferFlags) (gpu.Buffer, error) {
	if c.closed {
		return nil, gpu.ErrClosed
	}

	if sizeBytes <= 0 || sizeBytes%gpu.ComplexSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", gpu.ErrInvalidLength, sizeBytes)
	}

	mem, err := c.clctx.CreateEmptyBuffer(cl.MemReadWrite, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("allocating buffer: %w", err)
	}

	return &Buffer{ctx: c, mem: mem, size: sizeBytes}, nil
}

func (c *Context) NewFFTPlan(shape gpu.Shape, tuning gpu.Tuning) (gpu.PlanImpl, error) {
	if c.closed {
		return nil, gpu.ErrClosed
	}

	return newPlan(c, shape, tuning)
}

func (c *Context) Dispatch(k gpu.Kernel, args gpu.KernelArgs, _, _, _ uint32) error {
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

	kargs := []any{
		int32(args.Grid.NX),
		int32(args.Grid.NZ),
		float32(args.Grid.PatchX),
		float32(args.Grid.PatchZ),
		float32(args.Grid.Gravity),
		float32(args.Time),
		h0.mem,
	}

	for _, b := range args.Out {
		out, err := c.own(b, n)
		if err != nil {
			return err
		}

		kargs = append(kargs, out.mem)
	}

	if err := c.base.evolve.SetArgs(kargs...); err != nil {
		return fmt.Errorf("setting evolve arguments: %w", err)
	}

	global := []int{args.Grid.NX, args.Grid.NZ}
	if _, err := c.queue.EnqueueNDRangeKernel(c.base.evolve, nil, global, nil, nil); err != nil {
		return fmt.Errorf("enqueueing evolve: %w", err)
	}

	return nil
}

// MemoryBarrier blocks until the queue is drained.
func (c *Context) MemoryBarrier() error {
	if c.closed {
		return gpu.ErrClosed
	}

	return c.queue.Finish()
}

func (c *Context) Benchmark(ctx context.Context, p *gpu.Plan, iterations int) (float64, error) {
	if c.closed {
		return 0, gpu.ErrClosed
	}

	if p == nil || p.Impl() == nil {
		return 0, gpu.ErrClosed
	}

	n := p.Len()

	src, err := c.NewBuffer(n*gpu.ComplexSize, gpu.BufferStorage)
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

		err := c.queue.Finish()

		sw.Stop()

		if err != nil {
			return 0, err
		}
	}

	return sw.PerLap() / float64(c.opts.dispatches), nil
}

func (c *Context) Close() error {
	if c.closed {
		return nil
	}

	err := c.queue.Finish()

	c.base.release()
	c.queue.Release()
	c.clctx.Release()
	c.closed = true

	return err
}

func (c *Context) own(b gpu.Buffer, n int) (*Buffer, error) {
	if b == nil {
		return nil, gpu.ErrNilBuffer
	}

	cb, ok := b.(*Buffer)
	if !ok || cb.ctx != c {
		return nil, gpu.ErrForeignBuffer
	}

	if cb.mem == nil {
		return nil, gpu.ErrClosed
	}

	if cb.Len() < n {
		return nil, gpu.ErrLengthMismatch
	}

	return cb, nil
}

// copyBuffer enqueues dst[0:n] = src[0:n].
func (c *Context) copyBuffer(dst, src *cl.MemObject, n int) error {
	if err := c.base.copy.SetArgs(int32(n), src, dst); err != nil {
		return fmt.Errorf("setting copy arguments: %w", err)
	}

	if _, err := c.queue.EnqueueNDRangeKernel(c.base.copy, nil, []int{n}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing copy: %w", err)
	}

	return nil
}

// Buffer is a read-write OpenCL buffer of complex64 samples.
type Buffer struct {
	ctx  *Context
	mem  *cl.MemObject
	size int
}

var _ gpu.Buffer = (*Buffer)(nil)

func (b *Buffer) Len() int {
	return b.size / gpu.ComplexSize
}

func (b *Buffer) Size() int {
	return b.size
}

func (b *Buffer) Upload(src []complex64) error {
	if b.mem == nil {
		return gpu.ErrClosed
	}

	if len(src) > b.Len() {
		return gpu.ErrLengthMismatch
	}

	if len(src) == 0 {
		return nil
	}

	if _, err := b.ctx.queue.EnqueueWriteBufferFloat32(b.mem, true, 0, floats(src), nil); err != nil {
		return fmt.Errorf("writing buffer: %w", err)
	}

	return nil
}

func (b *Buffer) Download(dst []complex64) error {
	if b.mem == nil {
		return gpu.ErrClosed
	}

	if len(dst) > b.Len() {
		return gpu.ErrLengthMismatch
	}

	if len(dst) == 0 {
		return nil
	}

	if _, err := b.ctx.queue.EnqueueReadBufferFloat32(b.mem, true, 0, floats(dst), nil); err != nil {
		return fmt.Errorf("reading buffer: %w", err)
	}

	return nil
}

func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}

	b.mem.Release()
	b.mem = nil

	return nil
}

// floats views interleaved complex samples as float32 pairs.
func floats(s []complex64) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&s[0])), 2*len(s)) //nolint:gosec // complex64 is two float32
}

type stageArgs struct {
	n, ns, lineStride, elemStride, butterflies int
	global                                     int
}

// plan runs radix-2 Stockham passes between two work buffers. The program
// is rebuilt with the tuning's butterflies per work item and the passes
// use its workgroup as local size.
type plan struct {
	ctx    *Context
	shape  gpu.Shape
	tuning gpu.Tuning
	prog   *program
	work   [2]*Buffer
	passes []stageArgs
	local  int
}

func newPlan(c *Context, shape gpu.Shape, tuning gpu.Tuning) (*plan, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	switch {
	case shape.Mode.IsResolve():
		return nil, fmt.Errorf("%w: %s", gpu.ErrNotImplemented, shape.Mode)
	case shape.Type.FP16 || shape.Type.InputFP16 || shape.Type.OutputFP16 || shape.Type.Normalize:
		return nil, fmt.Errorf("%w: %s", gpu.ErrNotImplemented, shape)
	case !m.IsPowerOf2(int(shape.Nx)) || !m.IsPowerOf2(int(shape.Ny)):
		return nil, fmt.Errorf("%w: %dx%d is not a power of two", gpu.ErrNotImplemented, shape.Nx, shape.Ny)
	}

	threads := int(tuning.Threads())
	if threads > int(c.info.MaxWorkgroupSize) {
		return nil, fmt.Errorf("%w: %d work items exceed %d", gpu.ErrNotImplemented, threads, c.info.MaxWorkgroupSize)
	}

	per := int(tuning.VectorSize / 2)

	prog, err := c.build(fmt.Sprintf("-D PER=%d", per))
	if err != nil {
		return nil, err
	}

	p := &plan{ctx: c, shape: shape, tuning: tuning, prog: prog, local: threads}

	n := int(shape.Nx * shape.Ny)
	for i := range p.work {
		b, err := c.NewBuffer(n*gpu.ComplexSize, gpu.BufferStorage)
		if err != nil {
			return nil, errors.Join(err, p.Close())
		}

		p.work[i] = b.(*Buffer)
	}

	nx, ny := int(shape.Nx), int(shape.Ny)
	p.addPasses(nx, ny, nx, 1, per)
	p.addPasses(ny, nx, 1, nx, per)

	return p, nil
}

func (p *plan) addPasses(n, lines, lineStride, elemStride, per int) {
	butterflies := lines * n / 2
	items := (butterflies + per - 1) / per
	global := (items + p.local - 1) / p.local * p.local

	for s := range m.Log2(n) {
		p.passes = append(p.passes, stageArgs{
			n:           n,
			ns:          1 << s,
			lineStride:  lineStride,
			elemStride:  elemStride,
			butterflies: butterflies,
			global:      global,
		})
	}
}

func (p *plan) Shape() gpu.Shape {
	return p.shape
}

func (p *plan) Tuning() gpu.Tuning {
	return p.tuning
}

func (p *plan) Inverse(dst, src gpu.Buffer) error {
	if p.prog == nil {
		return gpu.ErrClosed
	}

	n := int(p.shape.Nx * p.shape.Ny)

	in, err := p.ctx.own(src, n)
	if err != nil {
		return err
	}

	out, err := p.ctx.own(dst, n)
	if err != nil {
		return err
	}

	if err := p.ctx.copyBuffer(p.work[0].mem, in.mem, n); err != nil {
		return err
	}

	for i, s := range p.passes {
		from, to := p.work[i%2].mem, p.work[(i+1)%2].mem

		err := p.prog.stage.SetArgs(
			int32(s.n),
			int32(s.ns),
			int32(s.lineStride),
			int32(s.elemStride),
			int32(s.butterflies),
			from,
			to,
		)
		if err != nil {
			return fmt.Errorf("setting stage arguments: %w", err)
		}

		if _, err := p.ctx.queue.EnqueueNDRangeKernel(p.prog.stage, nil, []int{s.global}, []int{p.local}, nil); err != nil {
			return fmt.Errorf("enqueueing stage %d: %w", i, err)
		}
	}

	return p.ctx.copyBuffer(out.mem, p.work[len(p.passes)%2].mem, n)
}

func (p *plan) Close() error {
	if p.prog == nil {
		return nil
	}

	var errs []error

	if !p.ctx.closed {
		errs = append(errs, p.ctx.queue.Finish())
	}

	for _, b := range p.work {
		if b != nil {
			errs = append(errs, b.Close())
		}
	}

	p.prog.release()
	p.prog = nil

	return errors.Join(errs...)
}
