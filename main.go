package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/editor"
	"github.com/lguibr/bazaar/market"
	"github.com/lguibr/bazaar/server"
	"github.com/lguibr/bazaar/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults when empty)")
		targets    = flag.String("targets", "", "comma separated titles; skips the prompts")
		cycles     = flag.Int("cycles", 1, "buying cycles to run when -targets is set")
		interval   = flag.Duration("interval", 0, "pause between negotiation rounds (config value when zero)")
		listen     = flag.String("listen", "", "HTTP observer address, overrides the config")
		listings   = flag.String("listings", "", "YAML listings file to watch, overrides the config")
		view       = flag.Bool("view", false, "re-render seller catalogues on every change")
		fast       = flag.Bool("fast", false, "millisecond windows for a quick demo")
	)
	flag.Parse()

	if err := run(*configPath, *targets, *cycles, *interval, *listen, *listings, *view, *fast); err != nil {
		fmt.Fprintln(os.Stderr, "bazaar:", err)
		os.Exit(1)
	}
}

func newLogger(cfg utils.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if cfg.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func run(configPath, targets string, cycles int, interval time.Duration, listen, listings string, view, fast bool) error {
	cfg := utils.DefaultConfig()
	if fast {
		cfg = utils.FastConfig()
	}
	if configPath != "" {
		loaded, err := utils.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if listings != "" {
		cfg.ListingsFile = listings
	}
	if interval <= 0 {
		interval = cfg.RequestInterval
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := bollywood.NewEngine(bollywood.NewRegistry(), logger)
	bus := market.NewBus(logger)
	sim := market.NewSimulation(engine, cfg, bus)
	if err := seedSellers(sim, cfg.Sellers); err != nil {
		return err
	}
	if view {
		for _, seller := range sim.Sellers() {
			editor.Attach(seller.Name(), seller, os.Stdout, false).Render()
		}
	}

	fmt.Println("Suggested titles:", strings.Join(utils.SuggestedTitles, ", "))

	surfaces, surfacesCtx := errgroup.WithContext(ctx)
	if cfg.ListingsFile != "" {
		fe := editor.NewFileEditor(cfg.ListingsFile, func(name string) (editor.Editor, error) {
			return sim.Seller(name)
		}, logger)
		surfaces.Go(func() error { return fe.Watch(surfacesCtx) })
	}
	if cfg.ListenAddr != "" {
		srv := server.New(sim, logger)
		surfaces.Go(func() error { return srv.ListenAndServe(surfacesCtx, cfg.ListenAddr) })
	}

	if err := sim.StartAgents(ctx); err != nil {
		return err
	}

	d := &driver{
		sim:      sim,
		cfg:      cfg,
		log:      logger,
		out:      os.Stdout,
		targets:  splitTargets(targets),
		interval: interval,
	}
	if len(d.targets) == 0 {
		d.in = bufio.NewReader(os.Stdin)
	}
	runErr := d.run(ctx, cycles)

	stop()
	sim.StopAgents()
	if err := surfaces.Wait(); err != nil {
		logger.WithError(err).Error("Surface failed")
	}
	if err := engine.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.WithError(err).Warn("Engine shutdown incomplete")
	}
	logger.Info("Simulation complete")
	return runErr
}
