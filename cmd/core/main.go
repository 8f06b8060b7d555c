// Cascade core — a multi-symbol, multi-venue decision core that turns raw
// market data into risk-gated trading decisions.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts the coordinator, waits for SIGINT/SIGTERM
//	internal/coordinator     — orchestrator: one goroutine per symbol, one ingest goroutine per venue
//	internal/signal          — the four per-symbol signal engines (OFI, depth, liquidation, impulse)
//	internal/arbiter         — cascade arbiter: fuses signals into a single directional decision
//	internal/risk            — the fixed nine-gate risk authority chain
//	internal/physics         — execution-physics classifier and capability/playbook matrix
//	internal/shadow          — shadow executor and maker-health tracker
//	internal/divergence      — shadow-vs-live divergence monitor
//	internal/position        — position and PnL book
//	internal/orders          — order lifecycle manager
//	internal/governance      — end-of-day capital-ramp ladder and global-kill latch
//	internal/venue           — venue abstraction (mock and reference REST+WS adapters)
//	internal/causal          — deterministic causal event recorder and replay reader
//	internal/telemetry       — WebSocket broadcast hub, Prometheus metrics, HTTP surface
//
// How it makes decisions:
//
//	Every symbol runs its own worker goroutine. Market data feeds four signal
//	engines; the arbiter fuses their votes into a cascade decision; the risk
//	authority's nine gates size or block it; the execution-physics matrix
//	picks a maker/taker playbook; the shadow simulator always runs, for
//	continuous divergence tracking, while a real order is only sent to the
//	venue when the run mode is Live.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cascadecore/internal/config"
	"cascadecore/internal/coordinator"
	"cascadecore/internal/governance"
	"cascadecore/internal/risk"
	"cascadecore/internal/telemetry"
	"cascadecore/internal/venue"
	"cascadecore/internal/venue/mockvenue"
	"cascadecore/internal/venue/refvenue"
	"cascadecore/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("CASCADE_CONFIG"); p != "" {
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

	runMode, err := parseRunMode(cfg.Mode)
	if err != nil {
		logger.Error("invalid run mode", "error", err)
		os.Exit(1)
	}
	if runMode == types.ModeReplay && cfg.ReplayInputPath == "" {
		logger.Error("replay mode requires replay_input_path")
		os.Exit(2)
	}

	venues := make(map[string]venue.Venue, len(cfg.Venues))
	for name, vc := range cfg.Venues {
		switch vc.Kind {
		case "mock":
			venues[name] = mockvenue.New()
		case "ref":
			venues[name] = refvenue.New(refvenue.Config{
				RESTBaseURL: vc.RESTBaseURL,
				WSURL:       vc.WSURL,
				APIKey:      vc.APIKey,
			}, logger)
		}
	}

	symbols := make([]coordinator.SymbolConfig, 0, len(cfg.Symbols))
	symbolToGroup := make(map[string]risk.CorrelationGroup, len(cfg.Symbols))
	var hostile []string
	for _, sc := range cfg.Symbols {
		symbols = append(symbols, coordinator.SymbolConfig{Symbol: sc.Symbol, Venue: sc.Venue, Leads: sc.Leads})
		if sc.CorrelationGroup != "" {
			symbolToGroup[sc.Symbol] = risk.CorrelationGroup(sc.CorrelationGroup)
		}
		if sc.Hostile {
			hostile = append(hostile, sc.Symbol)
		}
	}

	coordCfg := coordinator.Config{
		Symbols:        symbols,
		Venues:         venues,
		Mode:           runMode,
		HostileSymbols: hostile,
		SymbolToGroup:  symbolToGroup,
		Governance: governance.Config{
			DaysForSmall:    cfg.Governance.DaysForSmall,
			DaysForNormal:   cfg.Governance.DaysForNormal,
			DaysForScaled:   cfg.Governance.DaysForScaled,
			DemoteDrawdownR: cfg.Governance.DemoteDrawdownR,
			DailyKillR:      cfg.Governance.DailyKillR,
			WeeklyKillR:     cfg.Governance.WeeklyKillR,
		},
		Risk:             cfg.Risk,
		RebalanceEvery:   cfg.Rebalance,
		RecorderPath:     cfg.Recorder.BasePath,
		PositionStoreDir: cfg.PositionStore.Dir,
		ReplayInputPath:  cfg.ReplayInputPath,
	}

	telemetryCfg := telemetry.Config{
		Port:           cfg.Telemetry.Port,
		AllowedOrigins: cfg.Telemetry.AllowedOrigins,
	}

	coord, err := coordinator.New(coordCfg, telemetryCfg, logger)
	if err != nil {
		logger.Error("failed to build coordinator", "error", err)
		os.Exit(4)
	}

	logger.Info("cascade core starting",
		"mode", runMode.String(),
		"symbols", len(symbols),
		"venues", len(venues),
		"telemetry_enabled", cfg.Telemetry.Enabled,
	)

	if runMode == types.ModeReplay {
		result, err := coord.Replay(cfg.ReplayInputPath)
		if err != nil {
			logger.Error("replay failed", "error", err)
			os.Exit(4)
		}
		logger.Info("replay complete",
			"ticks_replayed", result.TicksReplayed,
			"risk_checked", result.RiskChecked,
			"mismatches", result.Mismatches,
		)
		if result.Diverged() {
			logger.Error("replay diverged from recorded decisions", "mismatches", result.Mismatches)
			os.Exit(3)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord.Start(ctx)

	logger.Info("cascade core stopped")
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

func parseRunMode(mode string) (types.RunMode, error) {
	switch mode {
	case "live":
		return types.ModeLive, nil
	case "shadow":
		return types.ModeShadow, nil
	case "replay":
		return types.ModeReplay, nil
	default:
		return 0, &invalidModeError{mode}
	}
}

type invalidModeError struct{ mode string }

func (e *invalidModeError) Error() string {
	return "unknown run mode " + e.mode + " (want live, shadow, or replay)"
}
