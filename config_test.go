package ocean

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}

	def := DefaultConfig()
	if len(cfg.Bands) != 1 || cfg.Bands[0] != def.Bands[0] {
		t.Errorf("bands = %+v, want defaults", cfg.Bands)
	}

	if cfg.DisplacementScale != -1 || cfg.HeightScale != 1 {
		t.Errorf("scales = %v, %v", cfg.DisplacementScale, cfg.HeightScale)
	}

	if got := cfg.Bench.Params().Timeout; got != time.Second {
		t.Errorf("bench timeout = %v, want 1s", got)
	}
}

func TestLoadConfig_PartialBandsUseDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "ocean.json", `{
  "bands": [
    {"resolutionX": 64, "resolutionY": 64, "seed": 7},
    {"resolutionX": 32, "resolutionY": 32, "patchX": 10, "patchY": 10}
  ],
  "heightScale": 2,
  "autoTune": true
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Bands) != 2 {
		t.Fatalf("bands = %d, want 2", len(cfg.Bands))
	}

	b0 := cfg.Bands[0]
	if b0.ResolutionX != 64 || b0.Seed != 7 || b0.WindSpeed != 75 || b0.Gravity != 9.8 {
		t.Errorf("band 0 = %+v", b0)
	}

	if b1 := cfg.Bands[1]; b1.PatchX != 10 || b1.Seed != 1337 {
		t.Errorf("band 1 = %+v", b1)
	}

	if cfg.HeightScale != 2 || cfg.DisplacementScale != -1 || !cfg.AutoTune {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(writeFile(t, "bad.json", "{")); err == nil {
		t.Error("malformed JSON accepted")
	}

	_, err := LoadConfig(writeFile(t, "zero.json", `{"bands":[{"resolutionX":0}]}`))
	if !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("err = %v, want ErrInvalidResolution", err)
	}

	_, err = LoadConfig(writeFile(t, "wind.json", `{"bands":[{"windX":0,"windZ":0}]}`))
	if !errors.Is(err, ErrZeroWind) {
		t.Errorf("err = %v, want ErrZeroWind", err)
	}
}

func TestConfigValidate_Backend(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "cpu", "auto", "wgpu", "opencl"} {
		cfg := DefaultConfig()
		cfg.Backend = name

		if err := cfg.Validate(); err != nil {
			t.Errorf("backend %q: %v", name, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Backend = "directx"

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("err = %v, want ErrInvalidParam", err)
	}
}

func TestBenchConfig_ZeroTimeoutKeepsTimeBox(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "ocean.json", `{"bench": {"warmup": 1, "iterations": 3, "timeoutMs": 0}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.Bench.Params().Timeout; got != wisdom.DefaultBenchParams().Timeout {
		t.Errorf("timeout = %v, want default %v", got, wisdom.DefaultBenchParams().Timeout)
	}

	cfg.Bench.TimeoutMs = 250
	if got := cfg.Bench.Params().Timeout; got != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", got)
	}
}
