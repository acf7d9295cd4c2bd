package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/config"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/exchange"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/pkg/logger"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to marketsim.yaml (searched in ., ./configs, /etc/marketsim when empty)")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address while the run executes")
		eventTail   = flag.Int("events", 20, "number of trailing events to print after the run")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger := logger.New(logLevel)
	defer zapLogger.Sync()

	cfg, err := config.Load(*configPath, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ex, err := exchange.New(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to build simulation", zap.Error(err))
	}
	zapLogger.Info("simulation built",
		zap.String("run_id", ex.RunID().String()),
		zap.Uint64("seed", cfg.Seed),
		zap.Uint64("horizon_ticks", cfg.HorizonTicks))

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(ex.Metrics().Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				zapLogger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		zapLogger.Info("serving metrics", zap.String("addr", *metricsAddr))
	}

	if err := ex.Run(); err != nil {
		zapLogger.Fatal("Simulation run failed", zap.Error(err))
	}

	printReport(ex, *eventTail, zapLogger)
}

func printReport(ex *exchange.Exchange, eventTail int, zapLogger *zap.Logger) {
	snap, err := ex.Snapshot()
	if err != nil {
		zapLogger.Fatal("Snapshot failed", zap.Error(err))
	}
	ana, err := ex.Analytics()
	if err != nil {
		zapLogger.Fatal("Analytics failed", zap.Error(err))
	}

	fmt.Printf("run %s finished: tick=%d phase=%s events=%d (clamped=%d)\n",
		snap.RunID, snap.Tick, snap.Phase, snap.Events, snap.Clamped)

	fmt.Println("instruments:")
	for _, in := range snap.Instruments {
		last := "-"
		if in.HasLastTrade {
			last = fmt.Sprintf("%d", in.LastTrade)
		}
		fmt.Printf("  %-8s ref=%d last=%s resting=%d vpin=%.4f lambda=%.6f\n",
			in.Symbol, in.ReferencePrice, last, in.RestingOrders,
			ana.VPIN[in.ID], ana.KyleLambda[in.ID])
	}

	fmt.Println("participants:")
	for _, p := range snap.Participants {
		flag := ""
		if p.KillSwitch {
			flag = " KILL"
		}
		if !p.Active {
			flag += " INACTIVE"
		}
		fmt.Printf("  #%-4d cash=%s equity=%s realized=%s open=%d%s\n",
			p.ID, p.Cash, p.Equity, p.RealizedPnL, p.OpenPositions, flag)
	}

	fmt.Printf("clearing: settled=%d failed=%d pending=%d fails_on_record=%d fees=%s\n",
		ana.Settled, ana.Failed, ana.PendingSettlements, ana.FailsOnRecord, ana.FeesCollected)
	fmt.Printf("feed information advantage: %dns\n", ana.InformationAdvantage)

	if eventTail > 0 {
		events, err := ex.Events(eventTail)
		if err != nil {
			zapLogger.Fatal("Event tail failed", zap.Error(err))
		}
		fmt.Printf("last %d events:\n", len(events))
		for _, line := range events {
			fmt.Println("  " + line)
		}
	}
}
