// Package opencl runs the ocean kernels and inverse transforms through
// OpenCL. The backend is compiled only with the opencl build tag; without
// it New returns a backend that reports itself unavailable.
package opencl

import (
	"errors"
	"log/slog"
)

// ErrNotEnabled is returned by the backend of builds without the opencl tag.
var ErrNotEnabled = errors.New("algo-ocean/gpu/opencl: OpenCL support is not enabled; rebuild with -tags opencl")

// Option configures a Backend.
type Option func(*options)

type options struct {
	dispatches int
	log        *slog.Logger
}

func defaultOptions() options {
	return options{dispatches: 1, log: slog.New(slog.DiscardHandler)}
}

// WithDispatches sets how many transforms Benchmark enqueues per finish.
// Values below one are ignored.
func WithDispatches(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.dispatches = n
		}
	}
}

// WithLogger sets the logger for device and program events.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func (b *Backend) apply(opts []Option) {
	b.opts = defaultOptions()
	for _, opt := range opts {
		opt(&b.opts)
	}
}
