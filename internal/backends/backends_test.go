package backends

import (
	"errors"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"", "cpu"},
		{"cpu", "cpu"},
		{" CPU ", "cpu"},
		{"wgpu", "wgpu"},
		{"Vulkan", "wgpu"},
		{"opencl", "opencl"},
	}

	for _, tt := range tests {
		b, err := Open(tt.name, Options{Dispatches: 10})
		if err != nil {
			t.Errorf("Open(%q): %v", tt.name, err)
			continue
		}

		if got := b.Info().Name; got != tt.want {
			t.Errorf("Open(%q).Info().Name = %q, want %q", tt.name, got, tt.want)
		}

		if !Known(tt.name) {
			t.Errorf("Known(%q) = false", tt.name)
		}
	}
}

func TestOpenUnknown(t *testing.T) {
	t.Parallel()

	if _, err := Open("metal", Options{}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(metal) error = %v, want ErrUnknownBackend", err)
	}

	if Known("metal") {
		t.Error("Known(metal) = true")
	}
}
