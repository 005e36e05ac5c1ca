package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/dashboard"
	"github.com/halpertj/unwinder/internal/engine"
	"github.com/halpertj/unwinder/internal/mock"
	"github.com/halpertj/unwinder/internal/risk"
)

// Bot owns the polling loop and its collaborators.
type Bot struct {
	config *config.Config
	broker broker.Broker
	engine *engine.Engine
	risk   *risk.Monitor
	logger *logrus.Logger
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Environment.LogLevel)

	logger.Infof("Starting unwinder on %s in %s mode", cfg.Engine.Symbol, cfg.Environment.Mode)
	if cfg.IsPaperTrading() {
		logger.Info("PAPER TRADING MODE - simulated terminal, no real money at risk")
	} else {
		logger.Warn("LIVE TRADING MODE - real money at risk!")
		logger.Info("Waiting 10 seconds to confirm...")
		time.Sleep(10 * time.Second)
	}

	b := &Bot{
		config: cfg,
		broker: buildBroker(cfg, logger),
		risk:   risk.NewMonitor(cfg.Risk),
		logger: logger,
	}
	b.engine = engine.New(cfg, b.broker, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping bot...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(dashboard.Config{
			Port:      cfg.Dashboard.Port,
			AuthToken: cfg.Dashboard.AuthToken,
		}, b.engine, b.broker, logger)
		g.Go(func() error { return srv.Start(gctx) })
	}

	g.Go(func() error { return b.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatalf("Bot error: %v", err)
	}
	logger.Info("Bot stopped successfully")
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// buildBroker selects the terminal implementation from config: the HTTP
// bridge for live use, the simulated book for paper mode. Either way the
// engine talks through the circuit breaker.
func buildBroker(cfg *config.Config, logger *logrus.Logger) broker.Broker {
	var b broker.Broker
	if cfg.Broker.Provider == "sim" || cfg.IsPaperTrading() {
		logger.Info("Using simulated terminal")
		b = mock.NewSimBroker(cfg.Engine.Symbol, mock.DemoBook())
	} else {
		b = broker.NewMT5Bridge(cfg.Broker.Endpoint, cfg.Broker.APIToken)
	}
	return broker.NewCircuitBreakerBroker(b)
}

// Run drives the fixed-interval polling loop.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Verifying terminal connection...")
	acct, err := b.broker.GetAccountSnapshot()
	if err != nil {
		b.logger.WithError(err).Warn("terminal not reachable yet, continuing with degraded snapshots")
	} else {
		b.logger.Infof("Connected. Balance: $%.2f, equity: $%.2f, margin level: %.1f%%",
			acct.Balance, acct.Equity, acct.MarginLevel)
	}

	ticker := time.NewTicker(b.config.PollInterval())
	defer ticker.Stop()

	// Run immediately on start
	b.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}
