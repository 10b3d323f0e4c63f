package gpu

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwbudde/algo-ocean/internal/cpu"
	"github.com/cwbudde/algo-ocean/internal/half"
	"github.com/cwbudde/algo-ocean/internal/spectrum"
)

// CPUBackend executes kernels and transforms on the host. It is always
// available and serves as the fallback when no device backend can be
// opened.
type CPUBackend struct {
	device DeviceInfo
}

// NewCPUBackend returns a host backend with a single device.
func NewCPUBackend() *CPUBackend {
	f := cpu.DetectFeatures()

	return &CPUBackend{
		device: DeviceInfo{
			Name:             "host CPU",
			Vendor:           runtime.GOARCH,
			Driver:           "gonum",
			Renderer:         f.Class(),
			MaxWorkgroupSize: 256,
		},
	}
}

func (b *CPUBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "cpu",
		Version:     "1",
		Description: "host backend using gonum transforms",
	}
}

func (b *CPUBackend) Available() bool {
	return true
}

func (b *CPUBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *CPUBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("cpu backend: device index %d out of range", deviceIndex)
	}

	return &cpuContext{device: b.device}, nil
}

type cpuContext struct {
	device DeviceInfo
	closed bool
}

func (c *cpuContext) Device() DeviceInfo {
	return c.device
}

func (c *cpuContext) NewBuffer(sizeBytes int, _ BufferFlags) (Buffer, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if sizeBytes <= 0 || sizeBytes%ComplexSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, sizeBytes)
	}

	return &cpuBuffer{data: make([]complex64, sizeBytes/ComplexSize)}, nil
}

func (c *cpuContext) NewFFTPlan(shape Shape, tuning Tuning) (PlanImpl, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if err := shape.Validate(); err != nil {
		return nil, err
	}

	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	return newCPUPlan(shape, tuning), nil
}

// Dispatch runs the kernel synchronously. Rows are processed in bands of
// EvolveGroupSize regardless of the requested group counts.
func (c *cpuContext) Dispatch(k Kernel, args KernelArgs, _, _, _ uint32) error {
	if c.closed {
		return ErrClosed
	}

	if k != KernelEvolve {
		return fmt.Errorf("%w: %s", ErrNotImplemented, k)
	}

	h0, err := hostData(args.H0)
	if err != nil {
		return err
	}

	n := args.Grid.NX * args.Grid.NZ
	if len(h0) < n {
		return ErrLengthMismatch
	}

	var dst spectrum.Fields

	outs := [5]*[]complex64{&dst.Height, &dst.DispX, &dst.DispZ, &dst.GradX, &dst.GradZ}
	for i, b := range args.Out {
		d, err := hostData(b)
		if err != nil {
			return err
		}

		if len(d) < n {
			return ErrLengthMismatch
		}

		*outs[i] = d
	}

	const rowsPerGroup = EvolveGroupSize

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for z0 := 0; z0 < args.Grid.NZ; z0 += rowsPerGroup {
		z1 := min(z0+rowsPerGroup, args.Grid.NZ)

		g.Go(func() error {
			spectrum.Evolve(dst, h0, args.Grid, args.Time, z0, z1)
			return nil
		})
	}

	return g.Wait()
}

// MemoryBarrier is a no-op: every call completes before it returns.
func (c *cpuContext) MemoryBarrier() error {
	return nil
}

func (c *cpuContext) Benchmark(ctx context.Context, p *Plan, iterations int) (float64, error) {
	if p == nil || p.Impl() == nil {
		return 0, ErrClosed
	}

	n := p.Len()
	src := &cpuBuffer{data: make([]complex64, n)}
	dst := &cpuBuffer{data: make([]complex64, n)}

	for i := range src.data {
		src.data[i] = complex(float32(i%7)-3, float32(i%5)-2)
	}

	var sw cpu.Stopwatch

	for range max(iterations, 1) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sw.Start()
		err := p.Inverse(dst, src)
		sw.Stop()

		if err != nil {
			return 0, err
		}
	}

	return sw.PerLap(), nil
}

func (c *cpuContext) Close() error {
	c.closed = true
	return nil
}

type cpuBuffer struct {
	data []complex64
}

func hostData(b Buffer) ([]complex64, error) {
	if b == nil {
		return nil, ErrNilBuffer
	}

	cb, ok := b.(*cpuBuffer)
	if !ok {
		return nil, ErrForeignBuffer
	}

	if cb.data == nil {
		return nil, ErrClosed
	}

	return cb.data, nil
}

func (b *cpuBuffer) Len() int {
	return len(b.data)
}

func (b *cpuBuffer) Size() int {
	return len(b.data) * ComplexSize
}

func (b *cpuBuffer) Upload(src []complex64) error {
	if b.data == nil {
		return ErrClosed
	}

	if len(src) < len(b.data) {
		return ErrLengthMismatch
	}

	copy(b.data, src)

	return nil
}

func (b *cpuBuffer) Download(dst []complex64) error {
	if b.data == nil {
		return ErrClosed
	}

	if len(dst) < len(b.data) {
		return ErrLengthMismatch
	}

	copy(dst, b.data)

	return nil
}

func (b *cpuBuffer) Close() error {
	b.data = nil
	return nil
}

// cpuPlan runs rows then columns through gonum transforms. The tuning's
// workgroup size decides how many workers share the rows.
type cpuPlan struct {
	shape   Shape
	tuning  Tuning
	nx, ny  int
	workers []*cpuWorker
}

type cpuWorker struct {
	row, col *fourier.CmplxFFT
	in, out  []complex128
}

func newCPUPlan(shape Shape, tuning Tuning) *cpuPlan {
	nx, ny := int(shape.Nx), int(shape.Ny)

	workers := int(tuning.Threads()) / 32
	workers = max(1, min(workers, runtime.GOMAXPROCS(0), ny))

	p := &cpuPlan{shape: shape, tuning: tuning, nx: nx, ny: ny}

	for range workers {
		w := &cpuWorker{
			row: fourier.NewCmplxFFT(nx),
			in:  make([]complex128, max(nx, ny)),
			out: make([]complex128, max(nx, ny)),
		}

		if ny > 1 {
			w.col = fourier.NewCmplxFFT(ny)
		}

		p.workers = append(p.workers, w)
	}

	return p
}

func (p *cpuPlan) Shape() Shape   { return p.shape }
func (p *cpuPlan) Tuning() Tuning { return p.tuning }

func (p *cpuPlan) Inverse(dst, src Buffer) error {
	if p.workers == nil {
		return ErrClosed
	}

	in, err := hostData(src)
	if err != nil {
		return err
	}

	out, err := hostData(dst)
	if err != nil {
		return err
	}

	n := p.nx * p.ny
	if &in[0] != &out[0] {
		copy(out[:n], in[:n])
	}

	data := out[:n]

	if p.shape.Type.InputFP16 {
		half.RoundComplex(data)
	}

	if err := p.pass(p.ny, p.rowPass(data)); err != nil {
		return err
	}

	if p.ny > 1 {
		if err := p.pass(p.nx, p.colPass(data)); err != nil {
			return err
		}
	}

	if p.shape.Type.Normalize {
		scale := complex(1/float32(n), 0)
		for i := range data {
			data[i] *= scale
		}
	}

	if p.shape.Type.OutputFP16 {
		half.RoundComplex(data)
	}

	return nil
}

// pass splits [0, lines) evenly over the workers.
func (p *cpuPlan) pass(lines int, fn func(w *cpuWorker, lo, hi int)) error {
	if len(p.workers) == 1 {
		fn(p.workers[0], 0, lines)
		return nil
	}

	var g errgroup.Group

	chunk := (lines + len(p.workers) - 1) / len(p.workers)

	for i, w := range p.workers {
		lo := i * chunk
		hi := min(lo+chunk, lines)

		if lo >= hi {
			break
		}

		g.Go(func() error {
			fn(w, lo, hi)
			return nil
		})
	}

	return g.Wait()
}

func (p *cpuPlan) rowPass(data []complex64) func(*cpuWorker, int, int) {
	return func(w *cpuWorker, lo, hi int) {
		in, out := w.in[:p.nx], w.out[:p.nx]

		for z := lo; z < hi; z++ {
			row := data[z*p.nx : (z+1)*p.nx]
			for x, v := range row {
				in[x] = complex128(v)
			}

			w.row.Sequence(out, in)

			for x, v := range out {
				row[x] = complex64(v)
			}
		}
	}
}

func (p *cpuPlan) colPass(data []complex64) func(*cpuWorker, int, int) {
	return func(w *cpuWorker, lo, hi int) {
		in, out := w.in[:p.ny], w.out[:p.ny]

		for x := lo; x < hi; x++ {
			for z := range p.ny {
				in[z] = complex128(data[z*p.nx+x])
			}

			w.col.Sequence(out, in)

			for z, v := range out {
				data[z*p.nx+x] = complex64(v)
			}
		}
	}
}

func (p *cpuPlan) Close() error {
	p.workers = nil
	return nil
}
