package ocean

import "errors"

// Sentinel errors returned by band setters and simulation operations.
var (
	// ErrZeroWind is returned when a wind direction has zero length.
	ErrZeroWind = errors.New("ocean: wind direction has zero length")

	// ErrInvalidResolution is returned for non-positive grid resolutions.
	ErrInvalidResolution = errors.New("ocean: invalid resolution")

	// ErrInvalidPatch is returned for non-positive or non-finite patch sizes.
	ErrInvalidPatch = errors.New("ocean: invalid patch size")

	// ErrInvalidParam is returned for out-of-range physical parameters.
	ErrInvalidParam = errors.New("ocean: invalid parameter")

	// ErrNoSuchBand is returned when a band index is out of range.
	ErrNoSuchBand = errors.New("ocean: no such band")
)
