package wisdom

import (
	"strings"
	"time"
)

// Preference is a three-valued hardware preference.
type Preference int8

const (
	DontCare Preference = iota
	Prefer
	Avoid
)

// allows reports whether a setting is compatible with the preference.
func (p Preference) allows(on bool) bool {
	switch p {
	case Prefer:
		return on
	case Avoid:
		return !on
	}

	return true
}

// Static holds hardware-class bounds that prune the candidate space.
type Static struct {
	MinWorkgroupSize       uint32
	MinWorkgroupSizeShared uint32
	MaxWorkgroupSize       uint32
	MinVectorSize          uint32
	MaxVectorSize          uint32
	SharedBanked           Preference
}

// DefaultStatic returns the generic bounds used for unknown hardware.
func DefaultStatic() Static {
	return Static{
		MinWorkgroupSize:       1,
		MinWorkgroupSizeShared: 1,
		MaxWorkgroupSize:       128,
		MinVectorSize:          2,
		MaxVectorSize:          4,
		SharedBanked:           DontCare,
	}
}

// StaticFromRenderer picks bounds from a device or renderer description.
// maxThreads is the device's per-workgroup invocation limit; zero means
// unknown. The returned class names the matched row of the table.
func StaticFromRenderer(renderer string, maxThreads uint32) (Static, string) {
	clamp := func(v uint32) uint32 {
		if maxThreads != 0 && maxThreads < v {
			return maxThreads
		}

		return v
	}

	switch {
	case strings.Contains(renderer, "GeForce") || strings.Contains(renderer, "Quadro"):
		return Static{
			MinWorkgroupSize:       32,
			MinWorkgroupSizeShared: 32,
			MaxWorkgroupSize:       clamp(256),
			MinVectorSize:          2,
			MaxVectorSize:          2,
			SharedBanked:           Prefer,
		}, "nvidia"
	case strings.Contains(renderer, "Radeon"):
		return Static{
			MinWorkgroupSize:       64,
			MinWorkgroupSizeShared: 128,
			MaxWorkgroupSize:       clamp(256),
			MinVectorSize:          2,
			MaxVectorSize:          4,
			SharedBanked:           Prefer,
		}, "amd"
	case strings.Contains(renderer, "Mali"):
		return Static{
			MinWorkgroupSize:       4,
			MinWorkgroupSizeShared: 4,
			MaxWorkgroupSize:       clamp(64),
			MinVectorSize:          4,
			MaxVectorSize:          4,
			SharedBanked:           Avoid,
		}, "mali"
	}

	s := DefaultStatic()
	s.MaxWorkgroupSize = clamp(s.MaxWorkgroupSize)

	return s, "generic"
}

// Suggest derives a tuning from the bounds alone, without benchmarking.
// It prefers one-dimensional workgroups of about 64 invocations, the
// narrowest permitted vector width and the banking preference of the class.
// DefaultTuning is returned when the bounds admit no candidate.
func (s Static) Suggest(shape Shape) Tuning {
	cands := Candidates(shape, s)
	if len(cands) == 0 {
		return DefaultTuning()
	}

	target := uint32(64)
	if target > s.MaxWorkgroupSize {
		target = s.MaxWorkgroupSize
	}

	if target < s.MinWorkgroupSize {
		target = s.MinWorkgroupSize
	}

	wantBanked := s.SharedBanked == Prefer && shape.Radix >= 16

	best := cands[0]
	bestScore := suggestScore(best, target, wantBanked)

	for _, c := range cands[1:] {
		if sc := suggestScore(c, target, wantBanked); sc < bestScore {
			best, bestScore = c, sc
		}
	}

	return best
}

func suggestScore(t Tuning, target uint32, wantBanked bool) uint64 {
	threads := t.Threads()

	var dist uint64
	if threads > target {
		dist = uint64(threads - target)
	} else {
		dist = uint64(target - threads)
	}

	score := dist << 16
	score += uint64(t.WorkgroupSizeY) << 8
	score += uint64(t.VectorSize) << 1

	if t.SharedBanked != wantBanked {
		score++
	}

	return score
}

// BenchParams controls how long each candidate is measured.
type BenchParams struct {
	Warmup     int
	Iterations int
	Dispatches int
	// Timeout bounds each candidate. Zero means the default; it never
	// disables the limit.
	Timeout time.Duration
}

// DefaultBenchParams returns the parameters used when none are configured.
func DefaultBenchParams() BenchParams {
	return BenchParams{
		Warmup:     2,
		Iterations: 20,
		Dispatches: 50,
		Timeout:    time.Second,
	}
}
