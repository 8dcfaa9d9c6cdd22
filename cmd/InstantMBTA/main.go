// Package main is the entry point of InstantMBTA.
// It loads configuration, wires the core components, and runs the refresh
// scheduler until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"InstantMBTA/internal/biz"
	"InstantMBTA/internal/conf"
	"InstantMBTA/internal/data"
	"InstantMBTA/internal/render"
	zapLogger "InstantMBTA/pkg/log"

	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Version is the version of the compiled software.
	Version string

	flagconf  string
	flagonce  bool
	flaglevel string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagonce, "once", false, "run a single refresh cycle and exit")
	flag.StringVar(&flaglevel, "log-level", "", "override the configured log level")
}

func main() {
	flag.Parse()

	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Use the fallback logger before Zap is initialized.
		log.Fatalf("failed to load configuration: %v", err)
	}
	if flaglevel != "" {
		bc.Log.Level = flaglevel
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := zapLogger.NewKratosAdapter(zapLog)
	logger = log.With(logger,
		"service.name", "InstantMBTA",
		"service.version", Version,
	)
	helper := log.NewHelper(logger)

	helper.Infow(
		"msg", "InstantMBTA starting",
		"mode", bc.Mode,
		"refresh", bc.Display.Refresh.String(),
		"log.level", bc.Log.Level,
	)

	resolver := biz.NewNameResolver(biz.DefaultStations(), biz.DefaultRoutes(), logger)

	aggregator, err := biz.NewAggregator(bc, resolver, logger)
	if err != nil {
		helper.Fatalf("failed to build aggregator: %v", err)
	}

	breaker := biz.NewBreaker(bc.Breaker.FailureThreshold, bc.Breaker.Cooldown, biz.SystemClock(), logger)
	client := data.NewMBTAClient(bc.API, breaker, logger)
	renderer := render.NewConsole(os.Stdout, logger)
	scheduler := biz.NewScheduler(aggregator, client, renderer, bc.Display.Refresh, biz.SystemClock(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagonce {
		if err := scheduler.RunOnce(ctx); err != nil {
			helper.Fatalf("single cycle failed: %v", err)
		}
		return
	}

	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		helper.Fatalf("scheduler exited: %v", err)
	}
	helper.Info("shutting down InstantMBTA")
}
