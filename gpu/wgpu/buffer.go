package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/cwbudde/algo-ocean/gpu"
)

// Buffer is a storage buffer of complex64 samples laid out as vec2<f32>.
// A map-readable staging twin is created on the first Download.
type Buffer struct {
	ctx     *Context
	storage hal.Buffer
	staging hal.Buffer
	size    int
	flags   gpu.BufferFlags
}

var _ gpu.Buffer = (*Buffer)(nil)

func (b *Buffer) Len() int {
	return b.size / gpu.ComplexSize
}

func (b *Buffer) Size() int {
	return b.size
}

// Upload writes src at the start of the buffer. Work recorded before the
// call is submitted first so it observes the previous contents.
func (b *Buffer) Upload(src []complex64) error {
	if b.storage == nil {
		return gpu.ErrClosed
	}

	if len(src) > b.Len() {
		return gpu.ErrLengthMismatch
	}

	if err := b.ctx.flush(); err != nil {
		return err
	}

	b.ctx.queue.WriteBuffer(b.storage, 0, packComplex(src))

	return nil
}

// Download submits recorded work, copies the buffer into its staging twin
// and reads len(dst) samples back.
func (b *Buffer) Download(dst []complex64) error {
	if b.storage == nil {
		return gpu.ErrClosed
	}

	if len(dst) > b.Len() {
		return gpu.ErrLengthMismatch
	}

	if b.staging == nil {
		staging, err := b.ctx.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "ocean_staging",
			Size:  uint64(b.size),
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create staging buffer: %w", err)
		}

		b.staging = staging
	}

	enc, err := b.ctx.record()
	if err != nil {
		return err
	}

	enc.CopyBufferToBuffer(b.storage, b.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: uint64(b.size)},
	})

	if err := b.ctx.flush(); err != nil {
		return err
	}

	raw := make([]byte, len(dst)*gpu.ComplexSize)
	if err := b.ctx.queue.ReadBuffer(b.staging, 0, raw); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}

	unpackComplex(dst, raw)

	return nil
}

// Close submits recorded work that may still reference the buffer before
// releasing it.
func (b *Buffer) Close() error {
	if b.storage == nil {
		return nil
	}

	if b.ctx.closed {
		// released together with the device
		b.storage, b.staging = nil, nil
		return nil
	}

	err := b.ctx.flush()

	if b.staging != nil {
		b.ctx.device.DestroyBuffer(b.staging)
		b.staging = nil
	}

	b.ctx.device.DestroyBuffer(b.storage)
	b.storage = nil

	return err
}

func packComplex(src []complex64) []byte {
	out := make([]byte, len(src)*gpu.ComplexSize)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(imag(v)))
	}

	return out
}

func unpackComplex(dst []complex64, raw []byte) {
	for i := range dst {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
		dst[i] = complex(re, im)
	}
}
