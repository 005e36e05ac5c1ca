// Command simulate runs the close engine against the simulated terminal for
// a fixed number of cycles and prints a summary. Useful for eyeballing
// detector behavior without a terminal bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/engine"
	"github.com/halpertj/unwinder/internal/mock"
)

func main() {
	var (
		cycles   int
		logLevel string
	)
	flag.IntVar(&cycles, "cycles", 20, "Number of decision cycles to run")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level during the run")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	cfg := simConfig()
	sim := mock.NewSimBroker(cfg.Engine.Symbol, mock.DemoBook())
	eng := engine.New(cfg, broker.NewCircuitBreakerBroker(sim), logger)

	ctx := context.Background()
	startBalance := sim.Balance()
	startOpen := sim.OpenCount()
	var executed, succeeded int

	fmt.Printf("Simulating %d cycles on %s (%d open positions, balance $%.2f)\n\n",
		cycles, cfg.Engine.Symbol, startOpen, startBalance)

	for i := 0; i < cycles; i++ {
		snap := eng.Refresh()
		if len(snap.Positions) == 0 {
			fmt.Printf("cycle %2d: book empty, stopping early\n", i+1)
			break
		}

		recs := eng.GetRecommendations(false, nil)
		fmt.Printf("cycle %2d: %d positions, health %.2f, %d recommendations\n",
			i+1, len(snap.Positions), snap.HealthScore, len(recs))

		for j, rec := range recs {
			if j >= cfg.MaxClosesPerCycle() {
				break
			}
			fmt.Printf("          -> %s\n", rec.Describe())
			result := eng.Execute(ctx, rec)
			executed++
			if result.Success {
				succeeded++
			}
		}
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Positions:  %d -> %d\n", startOpen, sim.OpenCount())
	fmt.Printf("Balance:    $%.2f -> $%.2f (%+.2f)\n",
		startBalance, sim.Balance(), sim.Balance()-startBalance)
	fmt.Printf("Executions: %d attempted, %d succeeded\n", executed, succeeded)
}

// simConfig builds an in-memory config so the simulator needs no YAML file.
func simConfig() *config.Config {
	cfg := &config.Config{
		Environment: config.EnvironmentConfig{Mode: "paper", LogLevel: "warn"},
		Broker:      config.BrokerConfig{Provider: "sim"},
		Engine: config.EngineConfig{
			Symbol:         "XAUUSD",
			PollInterval:   "1ms",
			SnapshotTTL:    "1ms",
			CloseCallDelay: "1ms",
			CloseTimeout:   "2s",
		},
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("sim config invalid: %v", err)
	}
	return cfg
}
