package ocean

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cwbudde/algo-ocean/internal/backends"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// DefaultWisdomPath is where tuned transform parameters are kept when no
// other path is configured.
const DefaultWisdomPath = "fft_wisdom.json"

// Config describes a simulation.
type Config struct {
	Bands []BandParams `json:"bands"`

	DisplacementScale float32 `json:"displacementScale"`
	HeightScale       float32 `json:"heightScale"`

	// WisdomPath is loaded at startup and written after tuning. Empty
	// disables persistence.
	WisdomPath string `json:"wisdomPath"`
	// AutoTune benchmarks every band size that has no learned tuning yet.
	AutoTune bool `json:"autoTune"`

	// Backend names the compute backend Open uses: "cpu", "wgpu",
	// "opencl" or "auto".
	Backend string `json:"backend"`

	Bench BenchConfig `json:"bench"`
}

// BenchConfig mirrors wisdom.BenchParams with a JSON-friendly timeout.
type BenchConfig struct {
	Warmup     int `json:"warmup"`
	Iterations int `json:"iterations"`
	Dispatches int `json:"dispatches"`
	TimeoutMs  int `json:"timeoutMs"`
}

// Params converts the configuration to benchmark parameters. A zero
// timeout selects the default time-box.
func (b BenchConfig) Params() wisdom.BenchParams {
	p := wisdom.BenchParams{
		Warmup:     b.Warmup,
		Iterations: b.Iterations,
		Dispatches: b.Dispatches,
		Timeout:    time.Duration(b.TimeoutMs) * time.Millisecond,
	}

	if b.TimeoutMs == 0 {
		p.Timeout = wisdom.DefaultBenchParams().Timeout
	}

	return p
}

// DefaultConfig returns one default band with inverted horizontal
// displacement, unit height scale and wisdom kept in DefaultWisdomPath.
func DefaultConfig() Config {
	bp := wisdom.DefaultBenchParams()

	return Config{
		Bands:             []BandParams{DefaultBandParams()},
		DisplacementScale: -1,
		HeightScale:       1,
		WisdomPath:        DefaultWisdomPath,
		Backend:           "cpu",
		Bench: BenchConfig{
			Warmup:     bp.Warmup,
			Iterations: bp.Iterations,
			Dispatches: bp.Dispatches,
			TimeoutMs:  int(bp.Timeout / time.Millisecond),
		},
	}
}

// Validate checks every band, the scale factors and the backend name.
func (c Config) Validate() error {
	for i, b := range c.Bands {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
	}

	if !finite(c.DisplacementScale) || !finite(c.HeightScale) {
		return fmt.Errorf("%w: scale (%g, %g)", ErrInvalidParam, c.DisplacementScale, c.HeightScale)
	}

	if !backends.Known(c.Backend) {
		return fmt.Errorf("%w: backend %q", ErrInvalidParam, c.Backend)
	}

	if c.Bench.TimeoutMs < 0 || c.Bench.Iterations < 0 || c.Bench.Warmup < 0 {
		return fmt.Errorf("%w: bench %+v", ErrInvalidParam, c.Bench)
	}

	return nil
}

// LoadConfig reads a JSON configuration from path on top of DefaultConfig.
// A missing file yields the defaults; any other error is returned. Bands
// listed in the file start from DefaultBandParams.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			Logger().Info("ocean: no config file, using defaults", "path", path)
			return cfg, nil
		}

		return cfg, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("ocean: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("ocean: %s: %w", path, err)
	}

	Logger().Info("ocean: config loaded", "path", path, "bands", len(cfg.Bands))

	return cfg, nil
}

// UnmarshalJSON decodes p on top of DefaultBandParams so that files only
// need to list what differs.
func (p *BandParams) UnmarshalJSON(data []byte) error {
	type plain BandParams

	q := plain(DefaultBandParams())
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}

	*p = BandParams(q)

	return nil
}
