package gpu

// Plan is a 2D inverse transform bound to one size and one tuning.
//
// The plan is safe for concurrent use only if the underlying backend is.
type Plan struct {
	sizeX, sizeY int
	impl         PlanImpl
}

// NewPlan creates a plan on c for shape executed with tuning.
func NewPlan(c Context, shape Shape, tuning Tuning) (*Plan, error) {
	if c == nil {
		return nil, ErrBackendUnavailable
	}

	if shape.Nx == 0 || shape.Ny == 0 {
		return nil, ErrInvalidLength
	}

	impl, err := c.NewFFTPlan(shape, tuning)
	if err != nil {
		return nil, err
	}

	return &Plan{sizeX: int(shape.Nx), sizeY: int(shape.Ny), impl: impl}, nil
}

// SizeX returns the transform width.
func (p *Plan) SizeX() int {
	if p == nil {
		return 0
	}

	return p.sizeX
}

// SizeY returns the transform height.
func (p *Plan) SizeY() int {
	if p == nil {
		return 0
	}

	return p.sizeY
}

// Len returns the number of complex samples the plan transforms.
func (p *Plan) Len() int {
	return p.SizeX() * p.SizeY()
}

// Shape returns the shape the plan was created for.
func (p *Plan) Shape() Shape {
	if p == nil || p.impl == nil {
		return Shape{}
	}

	return p.impl.Shape()
}

// Tuning returns the parameters the plan executes with.
func (p *Plan) Tuning() Tuning {
	if p == nil || p.impl == nil {
		return Tuning{}
	}

	return p.impl.Tuning()
}

// Impl returns the backend implementation of p.
func (p *Plan) Impl() PlanImpl {
	if p == nil {
		return nil
	}

	return p.impl
}

// Inverse runs the unnormalized inverse transform from src into dst.
// src and dst may be the same buffer.
func (p *Plan) Inverse(dst, src Buffer) error {
	if p == nil || p.impl == nil {
		return ErrClosed
	}

	if dst == nil || src == nil {
		return ErrNilBuffer
	}

	n := p.Len()
	if dst.Len() < n || src.Len() < n {
		return ErrLengthMismatch
	}

	return p.impl.Inverse(dst, src)
}

// Close releases resources associated with the plan.
func (p *Plan) Close() error {
	if p == nil || p.impl == nil {
		return nil
	}

	err := p.impl.Close()
	p.impl = nil

	return err
}
