package wisdom

import "context"

var exhaustiveRadices = [...]uint32{4, 8, 16, 64}

// LearnExhaustive learns every pass a transform of nx×ny may need: each
// radix in {4, 8, 16, 64} for vertical (when ny > 1) and horizontal passes,
// with plain buffers and with the requested input and output targets, plus
// the radix-2 resolve pass of real transforms. A radix whose passes fail is
// skipped. It returns the number of shapes learned; only cancellation of
// ctx is reported as an error.
func (l *Library) LearnExhaustive(ctx context.Context, nx, ny uint32, typ TransformType,
	in, out Target, nt NumericType, bench Benchmarker,
) (int, error) {
	resolve := typ == ComplexToReal || typ == RealToComplex
	if resolve {
		nx >>= 1
	}

	vertical, horizontal := ModeVertical, ModeHorizontal
	if typ == ComplexToComplexDual {
		vertical, horizontal = ModeVerticalDual, ModeHorizontalDual
	}

	before := l.Len()

	learn := func(radix uint32, mode Mode, src, dst Target, t NumericType) error {
		_, err := l.Learn(ctx, Shape{
			Nx: nx, Ny: ny, Radix: radix, Mode: mode,
			Input: src, Output: dst, Type: t,
		}, bench)

		return err
	}

	for _, radix := range exhaustiveRadices {
		err := l.learnRadix(radix, ny, vertical, horizontal, in, out, nt, learn)
		if err != nil {
			if ctx.Err() != nil {
				return l.Len() - before, ctx.Err()
			}

			l.mu.RLock()
			log := l.log
			l.mu.RUnlock()
			log.Debug("wisdom: radix skipped", "radix", radix, "nx", nx, "ny", ny, "err", err)
		}
	}

	if resolve {
		rt := nt
		rt.InputFP16 = rt.OutputFP16

		mode := ModeResolveRealToComplex
		if typ == ComplexToReal {
			mode = ModeResolveComplexToReal
		}

		src := TargetSSBO

		if typ == ComplexToReal && ny == 1 {
			rt = nt
			src = in
		}

		dst := TargetSSBO
		if ny == 1 && typ == RealToComplex {
			dst = out
		}

		if err := learn(2, mode, src, dst, rt); err != nil && ctx.Err() != nil {
			return l.Len() - before, ctx.Err()
		}
	}

	return l.Len() - before, nil
}

func (l *Library) learnRadix(radix, ny uint32, vertical, horizontal Mode, in, out Target, nt NumericType,
	learn func(uint32, Mode, Target, Target, NumericType) error,
) error {
	pair := func(src, dst Target) error {
		if ny > 1 {
			if err := learn(radix, vertical, src, dst, nt); err != nil {
				return err
			}
		}

		return learn(radix, horizontal, src, dst, nt)
	}

	if err := pair(TargetSSBO, TargetSSBO); err != nil {
		return err
	}

	if in != TargetSSBO {
		if err := pair(in, TargetSSBO); err != nil {
			return err
		}
	}

	if out != TargetSSBO {
		if err := pair(TargetSSBO, out); err != nil {
			return err
		}
	}

	return nil
}
