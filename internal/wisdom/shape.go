// Package wisdom caches benchmarked transform execution parameters keyed by
// transform shape, searches for them, and persists them.
//
// A Library is safe for concurrent lookups. Learning a given shape is
// expected to run from one goroutine at a time.
package wisdom

import "fmt"

// Mode is the direction/layout of one transform pass.
type Mode uint32

const (
	ModeVertical Mode = iota
	ModeHorizontal
	ModeVerticalDual
	ModeHorizontalDual
	ModeResolveRealToComplex
	ModeResolveComplexToReal

	modeCount
)

// String returns a short name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeVertical:
		return "vertical"
	case ModeHorizontal:
		return "horizontal"
	case ModeVerticalDual:
		return "vertical-dual"
	case ModeHorizontalDual:
		return "horizontal-dual"
	case ModeResolveRealToComplex:
		return "resolve-r2c"
	case ModeResolveComplexToReal:
		return "resolve-c2r"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}

// IsDual reports whether the pass transforms two complex streams at once.
func (m Mode) IsDual() bool {
	return m == ModeVerticalDual || m == ModeHorizontalDual
}

// IsResolve reports whether the pass is a real/complex resolve pass.
func (m Mode) IsResolve() bool {
	return m == ModeResolveRealToComplex || m == ModeResolveComplexToReal
}

// Target is where a pass reads from or writes to.
type Target uint32

const (
	TargetSSBO Target = iota
	TargetImageReal
	TargetImage

	targetCount
)

// String returns a short name for the target.
func (t Target) String() string {
	switch t {
	case TargetSSBO:
		return "ssbo"
	case TargetImageReal:
		return "image-real"
	case TargetImage:
		return "image"
	default:
		return fmt.Sprintf("target(%d)", uint32(t))
	}
}

// TransformType is the kind of full transform a set of passes implements.
type TransformType uint32

const (
	ComplexToComplex TransformType = iota
	ComplexToComplexDual
	ComplexToReal
	RealToComplex
)

// NumericType holds the precision flags of a transform.
type NumericType struct {
	FP16       bool
	InputFP16  bool
	OutputFP16 bool
	Normalize  bool
}

// AllFP16 reports whether compute, input and output are all half precision.
func (t NumericType) AllFP16() bool {
	return t.FP16 && t.InputFP16 && t.OutputFP16
}

// Shape identifies one kind of transform pass. It is a comparable value
// type: two shapes are the same cache entry iff every field matches.
type Shape struct {
	Nx, Ny uint32
	Radix  uint32
	Mode   Mode
	Input  Target
	Output Target
	Type   NumericType
}

// String formats the shape for logs.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d radix=%d mode=%s in=%s out=%s fp16=%t/%t/%t norm=%t",
		s.Nx, s.Ny, s.Radix, s.Mode, s.Input, s.Output,
		s.Type.FP16, s.Type.InputFP16, s.Type.OutputFP16, s.Type.Normalize)
}

// Validate checks that the shape can describe a transform.
func (s Shape) Validate() error {
	if s.Nx == 0 || s.Ny == 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidShape, s.Nx, s.Ny)
	}

	if s.Radix < 2 {
		return fmt.Errorf("%w: radix %d", ErrInvalidShape, s.Radix)
	}

	if s.Mode >= modeCount {
		return fmt.Errorf("%w: %s", ErrInvalidShape, s.Mode)
	}

	if s.Input >= targetCount || s.Output >= targetCount {
		return fmt.Errorf("%w: targets %s/%s", ErrInvalidShape, s.Input, s.Output)
	}

	return nil
}
