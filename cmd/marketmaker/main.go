// Command marketmaker runs an automated market-making engine: it quotes a
// two-sided ladder on a FIX order-entry venue, mirrors the top of book over
// a FIX market-data session, hedges accumulated inventory on a REST venue,
// and tracks realized/unrealized P&L.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires collaborators, starts/stops the orchestrator
//	internal/orchestrator    — wires every subsystem's events together, owns start/stop lifecycle
//	internal/fixsession      — FIXT.1.1 session engine (logon, heartbeats, resend, reconnect)
//	internal/marketdata      — FIX market-data feed, local order book mirror
//	internal/quote           — quote-ladder engine, order-entry message construction
//	internal/inventory       — position tracking, skew, hedge signals, emergency policy
//	internal/pnl             — FIFO realized/unrealized P&L and fee accounting
//	internal/hedge           — hedge-execution state machine (limit-then-market, urgency)
//	internal/hedgevenue      — REST hedge-venue client (reference implementation)
//	internal/pricesource     — external fused reference-price WebSocket feed
//	internal/persistence     — JSON-file fill/order/OHLC persistence (optional)
//	internal/opstatus        — operator-facing SSE status surface (optional)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"truex-mm/internal/config"
	"truex-mm/internal/hedgevenue"
	"truex-mm/internal/mmtypes"
	"truex-mm/internal/opstatus"
	"truex-mm/internal/orchestrator"
	"truex-mm/internal/persistence"
	"truex-mm/internal/pricesource"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	venue := hedgevenue.NewClient(cfg.HedgeVenue.ToHedgeVenueConfig(), logger)
	priceSrc := pricesource.New(cfg.PriceSource.ToPriceSourceConfig(), logger)

	var persistenceAdapter mmtypes.PersistenceAdapter
	if cfg.Persistence.Enabled {
		store, err := persistence.Open(cfg.Persistence.DataDir, logger)
		if err != nil {
			logger.Error("failed to open persistence store", "error", err)
			os.Exit(1)
		}
		persistenceAdapter = store
	}

	orch := orchestrator.New(cfg.ToOrchestratorConfig(), venue, priceSrc, persistenceAdapter, logger)

	var statusServer *opstatus.Server
	if cfg.Status.Enabled {
		statusServer = opstatus.New(cfg.Status.ToStatusConfig(), orch, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status server started", "url", fmt.Sprintf("http://localhost:%d/events", cfg.Status.Port))
	}

	if cfg.DryRun {
		logger.Warn("dry_run is set but is not passed to the orchestrator — orders are still placed")
	}

	if err := orch.Start(context.Background()); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	logger.Info("market maker started",
		"order_entry_host", cfg.OrderEntry.Host,
		"hedge_symbol", cfg.Hedge.HedgeSymbol,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}

	orch.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
