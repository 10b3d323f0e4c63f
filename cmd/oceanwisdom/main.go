// Command oceanwisdom benchmarks transform tunings on a compute backend and
// writes the winners to a wisdom file for later simulation runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	ocean "github.com/cwbudde/algo-ocean"
	"github.com/cwbudde/algo-ocean/gpu"
	"github.com/cwbudde/algo-ocean/internal/backends"
	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

var (
	// backendFlag selects the compute backend.
	backendFlag = flag.String("backend", "auto", "compute backend: "+strings.Join(backends.Names(), ", "))

	// sizesFlag lists transform sizes as N or WxH.
	sizesFlag = flag.String("sizes", "64,128,256", "comma-separated transform sizes (N or WxH)")

	// exhaustiveFlag learns every radix and pass mode instead of the
	// canonical shape the simulation uses.
	exhaustiveFlag = flag.Bool("exhaustive", false, "learn all radices and pass modes")

	wisdomFlag     = flag.String("wisdom", ocean.DefaultWisdomPath, "wisdom file to merge into and export")
	warmupFlag     = flag.Int("warmup", 2, "warmup iterations per candidate")
	itersFlag      = flag.Int("iters", 20, "timed iterations per candidate")
	dispatchesFlag = flag.Int("dispatches", 50, "transforms per submit on device backends")
	timeoutFlag    = flag.Duration("timeout", time.Second, "time limit per candidate")

	// verboseFlag logs every benchmarked candidate.
	verboseFlag = flag.Bool("v", false, "verbose logging")
)

type benchResult struct {
	shape  wisdom.Shape
	tuning wisdom.Tuning
	cost   float64
	err    error
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ocean.SetLogger(log)

	sizes := parseSizes(*sizesFlag)
	if len(sizes) == 0 {
		fmt.Println("no sizes specified")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log, sizes); err != nil {
		fmt.Fprintf(os.Stderr, "oceanwisdom: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, sizes [][2]uint32) error {
	backend, err := backends.Open(*backendFlag, backends.Options{Dispatches: *dispatchesFlag, Logger: log})
	if err != nil {
		return err
	}

	if !backend.Available() {
		log.Warn("backend unavailable, using CPU", "backend", backend.Info().Name)
		backend = gpu.NewCPUBackend()
	}

	c, err := backend.NewContext(0)
	if err != nil {
		return err
	}
	defer c.Close()

	dev := c.Device()

	lib := ocean.NewWisdom()
	lib.SetLogger(log)

	if *wisdomFlag != "" {
		ocean.LoadWisdom(lib, *wisdomFlag)
	}

	static, class := wisdom.StaticFromRenderer(dev.Renderer, dev.MaxWorkgroupSize)
	lib.SetStatic(static)
	lib.SetBenchParams(wisdom.BenchParams{
		Warmup:     *warmupFlag,
		Iterations: *itersFlag,
		Dispatches: *dispatchesFlag,
		Timeout:    *timeoutFlag,
	})

	fmt.Printf("device=%q class=%s warmup=%d iters=%d dispatches=%d\n",
		dev.Name, class, *warmupFlag, *itersFlag, *dispatchesFlag)

	var results []benchResult

	inner := gpu.NewBenchmarker(c)
	bench := wisdom.BenchFunc(func(ctx context.Context, shape wisdom.Shape, tuning wisdom.Tuning, p wisdom.BenchParams) (float64, error) {
		cost, err := inner.Bench(ctx, shape, tuning, p)
		results = append(results, benchResult{shape: shape, tuning: tuning, cost: cost, err: err})

		return cost, err
	})

	for _, size := range sizes {
		nx, ny := size[0], size[1]

		if *exhaustiveFlag {
			n, err := lib.LearnExhaustive(ctx, nx, ny, wisdom.ComplexToComplex,
				wisdom.TargetSSBO, wisdom.TargetSSBO, wisdom.NumericType{}, bench)
			if err != nil {
				return err
			}

			fmt.Printf("%dx%d: learned %d shapes\n", nx, ny, n)

			continue
		}

		if _, err := lib.Learn(ctx, gpu.CanonicalShape(int(nx), int(ny)), bench); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.Warn("no tuning learned", "size", fmt.Sprintf("%dx%d", nx, ny), "err", err)
		}
	}

	printResults(results)

	if *wisdomFlag != "" {
		if err := ocean.ExportWisdom(lib, *wisdomFlag); err != nil {
			return fmt.Errorf("exporting wisdom: %w", err)
		}

		fmt.Printf("\nWisdom exported to: %s (%d entries)\n", *wisdomFlag, lib.Len())
	}

	return nil
}

// printResults prints candidates grouped by shape, fastest first, failures
// last.
func printResults(results []benchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.shape != b.shape {
			return a.shape.String() < b.shape.String()
		}

		if (a.err == nil) != (b.err == nil) {
			return a.err == nil
		}

		return a.cost < b.cost
	})

	fmt.Printf("%-14s %-8s %-30s %12s\n", "size", "radix", "tuning", "us/op")

	for _, r := range results {
		size := fmt.Sprintf("%dx%d", r.shape.Nx, r.shape.Ny)

		if r.err != nil {
			fmt.Printf("%-14s %-8d %-30s %12s  (%v)\n", size, r.shape.Radix, r.tuning, "failed", r.err)
			continue
		}

		fmt.Printf("%-14s %-8d %-30s %12.2f\n", size, r.shape.Radix, r.tuning, r.cost*1e6)
	}
}

// parseSizes reads entries of the form N (square) or WxH. Malformed or
// non-positive entries are skipped.
func parseSizes(list string) [][2]uint32 {
	parts := strings.Split(list, ",")

	out := make([][2]uint32, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		var w, h int

		if strings.Contains(part, "x") {
			if _, err := fmt.Sscanf(part, "%dx%d", &w, &h); err != nil {
				continue
			}
		} else {
			if _, err := fmt.Sscanf(part, "%d", &w); err != nil {
				continue
			}

			h = w
		}

		if w <= 0 || h <= 0 {
			continue
		}

		out = append(out, [2]uint32{uint32(w), uint32(h)})
	}

	return out
}
