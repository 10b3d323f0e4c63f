package wisdom

import "errors"

var (
	// ErrInvalidShape is returned for shapes with zero sizes or unknown enums.
	ErrInvalidShape = errors.New("wisdom: invalid transform shape")

	// ErrInvalidTuning is returned for tuning parameters no backend accepts.
	ErrInvalidTuning = errors.New("wisdom: invalid tuning parameters")

	// ErrNoViableCandidate is returned when no candidate, including the
	// defaults, could be benchmarked for a shape.
	ErrNoViableCandidate = errors.New("wisdom: no candidate could be benchmarked")

	// ErrMalformed is returned by Extract for documents that do not
	// describe a library.
	ErrMalformed = errors.New("wisdom: malformed wisdom document")

	// ErrUnsupportedVersion is returned by Extract for documents written by
	// a newer format version.
	ErrUnsupportedVersion = errors.New("wisdom: unsupported wisdom version")
)
