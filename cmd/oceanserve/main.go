// Command oceanserve steps a simulation and streams band heights to
// browsers over a websocket.
//
// Clients may send {"paused":true}, {"timeScale":0.5} or
// {"wind":[x,z]} to control the simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	ocean "github.com/cwbudde/algo-ocean"
)

var (
	addrFlag    = flag.String("addr", ":8080", "listen address")
	configFlag  = flag.String("config", "ocean.json", "simulation config file")
	backendFlag = flag.String("backend", "", "compute backend (overrides config)")
	fpsFlag     = flag.Int("fps", 30, "simulation steps per second")

	// strideFlag subsamples the streamed height field.
	strideFlag = flag.Int("stride", 2, "send every n-th sample per axis")

	verboseFlag = flag.Bool("v", false, "log client traffic")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ocean.SetLogger(logger)

	if err := run(logger); err != nil {
		log.Fatal(err)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := ocean.LoadConfig(*configFlag)
	if err != nil {
		return err
	}

	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}

	if len(cfg.Bands) == 0 {
		cfg.Bands = []ocean.BandParams{ocean.DefaultBandParams()}
	}

	sim, err := ocean.Open(cfg)
	if err != nil {
		return err
	}
	defer sim.Close()

	srv, err := newServer(sim, *strideFlag, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpServer := &http.Server{
		Addr:              *addrFlag,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = httpServer.Shutdown(shutdown)
	}()

	go func() {
		logger.Info("listening", "addr", *addrFlag, "device", sim.Device().Name)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	interval := time.Second / time.Duration(max(*fpsFlag, 1))

	if err := srv.run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
