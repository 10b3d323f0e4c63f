package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/cwbudde/algo-ocean/gpu"
	m "github.com/cwbudde/algo-ocean/internal/math"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// maxGroupsPerDim is the WebGPU limit on workgroups per dispatch dimension.
const maxGroupsPerDim = 65535

const stageParamsSize = 32

type stagePass struct {
	uniform hal.Buffer
	group   hal.BindGroup
	gx, gy  uint32
}

// plan transforms rows then columns with radix-2 Stockham passes that
// ping-pong between two work buffers. Inverse copies the source into the
// first work buffer and the final pass result into the destination.
type plan struct {
	ctx    *Context
	shape  gpu.Shape
	tuning gpu.Tuning

	stage  *pipeline
	work   [2]*Buffer
	passes []stagePass
}

var _ gpu.PlanImpl = (*plan)(nil)

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
	case shape.Type.FP16 || shape.Type.InputFP16 || shape.Type.OutputFP16:
		return nil, fmt.Errorf("%w: fp16 transforms", gpu.ErrNotImplemented)
	case shape.Type.Normalize:
		return nil, fmt.Errorf("%w: normalized transforms", gpu.ErrNotImplemented)
	case !m.IsPowerOf2(int(shape.Nx)) || !m.IsPowerOf2(int(shape.Ny)):
		return nil, fmt.Errorf("%w: %dx%d is not a power of two", gpu.ErrNotImplemented, shape.Nx, shape.Ny)
	}

	threads, per := tuningFor(tuning)
	if threads > c.info.MaxWorkgroupSize {
		return nil, fmt.Errorf("%w: %d invocations exceed %d", ErrUnsupportedTuning, threads, c.info.MaxWorkgroupSize)
	}

	stage, err := c.newPipeline("ocean_fft_stage",
		stageShaderSource(tuning.WorkgroupSizeX, tuning.WorkgroupSizeY, per), 3)
	if err != nil {
		return nil, err
	}

	p := &plan{ctx: c, shape: shape, tuning: tuning, stage: stage}

	n := int(shape.Nx * shape.Ny)
	for i := range p.work {
		b, err := c.NewBuffer(n*gpu.ComplexSize, gpu.BufferStorage)
		if err != nil {
			return nil, errors.Join(err, p.Close())
		}

		p.work[i] = b.(*Buffer)
	}

	nx, ny := shape.Nx, shape.Ny

	// rows: ny lines of nx contiguous samples
	if err := p.addPasses(nx, ny, nx, 1, threads, per); err != nil {
		return nil, errors.Join(err, p.Close())
	}

	// columns: nx lines of ny samples strided by nx
	if err := p.addPasses(ny, nx, 1, nx, threads, per); err != nil {
		return nil, errors.Join(err, p.Close())
	}

	c.opts.log.Debug("wgpu: plan created",
		"shape", shape.String(), "tuning", tuning.String(), "passes", len(p.passes))

	return p, nil
}

// addPasses appends log2(n) passes over lines transforms of length n.
func (p *plan) addPasses(n, lines, lineStride, elemStride, threads, per uint32) error {
	butterflies := lines * n / 2
	invocations := (butterflies + per - 1) / per
	groups := (invocations + threads - 1) / threads
	gx := min(groups, maxGroupsPerDim)
	gy := (groups + gx - 1) / gx

	for s := range m.Log2(int(n)) {
		ns := uint32(1) << s

		params := make([]byte, stageParamsSize)
		binary.LittleEndian.PutUint32(params[0:], n)
		binary.LittleEndian.PutUint32(params[4:], ns)
		binary.LittleEndian.PutUint32(params[8:], lines)
		binary.LittleEndian.PutUint32(params[12:], lineStride)
		binary.LittleEndian.PutUint32(params[16:], elemStride)
		binary.LittleEndian.PutUint32(params[20:], butterflies)

		uniform, err := p.ctx.newUniform("ocean_fft_stage_params", params)
		if err != nil {
			return err
		}

		pass := stagePass{uniform: uniform, gx: gx, gy: gy}
		p.passes = append(p.passes, pass)

		in := len(p.passes) - 1

		src, dst := p.work[in%2], p.work[(in+1)%2]

		group, err := p.ctx.newBindGroup(p.stage, uniform, stageParamsSize, src, dst)
		if err != nil {
			return err
		}

		p.passes[in].group = group
	}

	return nil
}

func (p *plan) Shape() gpu.Shape {
	return p.shape
}

func (p *plan) Tuning() gpu.Tuning {
	return p.tuning
}

// Inverse records the transform. The work is submitted by the next
// MemoryBarrier or Download of the context.
func (p *plan) Inverse(dst, src gpu.Buffer) error {
	if p.stage == nil {
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

	enc, err := p.ctx.record()
	if err != nil {
		return err
	}

	size := uint64(n * gpu.ComplexSize)

	enc.CopyBufferToBuffer(in.storage, p.work[0].storage, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})

	for _, pass := range p.passes {
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "ocean_fft_stage"})
		cp.SetPipeline(p.stage.pipeline)
		cp.SetBindGroup(0, pass.group, nil)
		cp.Dispatch(pass.gx, pass.gy, 1)
		cp.End()
	}

	result := p.work[len(p.passes)%2]

	enc.CopyBufferToBuffer(result.storage, out.storage, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})

	return nil
}

// Close releases the plan's pipeline, pass bindings and work buffers after
// submitting any recorded work that uses them.
func (p *plan) Close() error {
	if p.stage == nil {
		return nil
	}

	var errs []error

	if !p.ctx.closed {
		errs = append(errs, p.ctx.flush())

		for _, pass := range p.passes {
			if pass.group != nil {
				p.ctx.device.DestroyBindGroup(pass.group)
			}

			p.ctx.device.DestroyBuffer(pass.uniform)
		}

		p.stage.destroy(p.ctx.device)
	}

	for _, b := range p.work {
		if b != nil {
			errs = append(errs, b.Close())
		}
	}

	p.passes = nil
	p.stage = nil

	return errors.Join(errs...)
}

// tuningFor reports the transform parameters a tuning maps to on this
// backend: invocations per workgroup and butterflies per invocation.
func tuningFor(t wisdom.Tuning) (threads, per uint32) {
	return t.Threads(), t.VectorSize / 2
}
