package wisdom

import "fmt"

// Tuning is the set of execution parameters the auto-tuner searches over.
type Tuning struct {
	SharedBanked   bool
	VectorSize     uint32
	WorkgroupSizeX uint32
	WorkgroupSizeY uint32
}

// DefaultTuning returns the built-in parameters used when nothing better is
// known.
func DefaultTuning() Tuning {
	return Tuning{
		SharedBanked:   false,
		VectorSize:     2,
		WorkgroupSizeX: 4,
		WorkgroupSizeY: 1,
	}
}

// Threads returns the number of invocations per workgroup.
func (t Tuning) Threads() uint32 {
	return t.WorkgroupSizeX * t.WorkgroupSizeY
}

// String formats the tuning for logs.
func (t Tuning) String() string {
	return fmt.Sprintf("banked=%t vec=%d wg=(%d,%d)", t.SharedBanked, t.VectorSize, t.WorkgroupSizeX, t.WorkgroupSizeY)
}

// Validate checks the values every backend relies on.
func (t Tuning) Validate() error {
	switch t.VectorSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("%w: vector size %d", ErrInvalidTuning, t.VectorSize)
	}

	if t.WorkgroupSizeX == 0 || t.WorkgroupSizeY == 0 {
		return fmt.Errorf("%w: workgroup (%d,%d)", ErrInvalidTuning, t.WorkgroupSizeX, t.WorkgroupSizeY)
	}

	return nil
}

// Entry is a learned tuning and the cost measured for it.
type Entry struct {
	Tuning Tuning
	Cost   float64
}
