package ocean

import "github.com/cwbudde/algo-ocean/internal/spectrum"

// Synthesize validates p and returns its H0 spectrum: ResolutionX ×
// ResolutionY complex amplitudes, row-major, with the zero wavevector at
// the grid center. The result is Hermitian and zero at DC, and identical
// parameters always give bit-identical output.
func Synthesize(p BandParams) ([]complex64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return spectrum.H0(p.spectrumParams()), nil
}
