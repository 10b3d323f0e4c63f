package gpu

import "errors"

var (
	// ErrBackendUnavailable is returned when the backend has no usable device
	// on the current system (e.g., no device, driver missing).
	ErrBackendUnavailable = errors.New("algo-ocean/gpu: backend unavailable")

	// ErrNotImplemented is returned for kernels or modes a backend lacks.
	ErrNotImplemented = errors.New("algo-ocean/gpu: not implemented")

	// ErrInvalidLength is returned for invalid buffer or plan sizes.
	ErrInvalidLength = errors.New("algo-ocean/gpu: invalid length")

	// ErrNilBuffer is returned when a required buffer is nil.
	ErrNilBuffer = errors.New("algo-ocean/gpu: nil buffer")

	// ErrLengthMismatch is returned when buffer lengths are not as required.
	ErrLengthMismatch = errors.New("algo-ocean/gpu: length mismatch")

	// ErrForeignBuffer is returned when a buffer from another context is used.
	ErrForeignBuffer = errors.New("algo-ocean/gpu: buffer belongs to another backend")

	// ErrClosed is returned by operations on closed plans, caches or contexts.
	ErrClosed = errors.New("algo-ocean/gpu: use of closed resource")
)
