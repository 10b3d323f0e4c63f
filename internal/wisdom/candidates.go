package wisdom

var (
	candidateVectorSizes = [...]uint32{2, 4, 8}
	candidateWorkgroupX  = [...]uint32{4, 8, 16, 32, 64, 128, 256}
	candidateWorkgroupY  = [...]uint32{1, 2, 4, 8}
)

// Candidates enumerates every tuning worth benchmarking for shape on
// hardware described by static. It has no side effects; the order is
// stable (unbanked first, then increasing vector width, workgroup X and Y).
// For radix 16 and up only the banking the hardware prefers is tried,
// unless it does not care.
func Candidates(shape Shape, static Static) []Tuning {
	minVec := static.MinVectorSize
	maxVec := static.MaxVectorSize

	// A dual pass packs two complex values per lane.
	if shape.Mode.IsDual() {
		minVec = max(minVec, 4)
		maxVec = max(maxVec, 4)
	}

	var out []Tuning

	for _, banked := range [...]bool{false, true} {
		if banked && shape.Radix < 16 {
			continue
		}

		if shape.Radix >= 16 && !static.SharedBanked.allows(banked) {
			continue
		}

		for _, vec := range candidateVectorSizes {
			if shape.Mode.IsResolve() && (vec != 2 || banked) {
				continue
			}

			if vec == 8 && !shape.Type.AllFP16() {
				continue
			}

			if shape.Mode.IsDual() && vec < 4 {
				continue
			}

			if !shape.Mode.IsResolve() && (vec < minVec || vec > maxVec) {
				continue
			}

			for _, wx := range candidateWorkgroupX {
				for _, wy := range candidateWorkgroupY {
					if shape.Ny == 1 && wy > 1 {
						continue
					}

					threads := wx * wy

					minThreads := static.MinWorkgroupSize
					if shape.Radix >= 16 {
						minThreads = static.MinWorkgroupSizeShared
					}

					if threads < minThreads || threads > static.MaxWorkgroupSize {
						continue
					}

					out = append(out, Tuning{
						SharedBanked:   banked,
						VectorSize:     vec,
						WorkgroupSizeX: wx,
						WorkgroupSizeY: wy,
					})
				}
			}
		}
	}

	return out
}
