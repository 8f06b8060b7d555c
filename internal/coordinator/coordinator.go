// Package coordinator wires every decision-core subsystem into the running
// goroutine topology: one I/O goroutine per venue, one worker goroutine per
// symbol, a periodic rebalance goroutine that refreshes portfolio-wide
// aggregates and publishes telemetry snapshots, and a daily governance tick.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"cascadecore/internal/causal"
	"cascadecore/internal/clockid"
	"cascadecore/internal/config"
	"cascadecore/internal/governance"
	"cascadecore/internal/mode"
	"cascadecore/internal/orders"
	"cascadecore/internal/physics"
	"cascadecore/internal/position"
	"cascadecore/internal/risk"
	"cascadecore/internal/shadow"
	"cascadecore/internal/signal"
	"cascadecore/internal/telemetry"
	"cascadecore/internal/venue"
	"cascadecore/pkg/types"
)

// SymbolConfig is one traded symbol's venue assignment.
type SymbolConfig struct {
	Symbol string
	Venue  string
	// Leads lists the symbols this symbol's cascade suppresses via the
	// signal bridge when it fires.
	Leads []string
}

// Config is everything the coordinator needs to build the full pipeline.
type Config struct {
	Symbols          []SymbolConfig
	Venues           map[string]venue.Venue
	Mode             types.RunMode
	HostileSymbols   []string
	SymbolToGroup    map[string]risk.CorrelationGroup
	Governance       governance.Config
	Risk             config.RiskConfig
	RebalanceEvery   time.Duration
	RecorderPath     string
	PositionStoreDir string
	// ReplayInputPath is the causal-log base path driven by Replay, used
	// only when Mode is types.ModeReplay.
	ReplayInputPath string
}

// resolveRisk fills any zero-value RiskConfig field with the decision core's
// documented default, so a Config built without an explicit Risk section
// (e.g. in tests) still produces the same gate behaviour as before the
// tunables were threaded through.
func resolveRisk(r config.RiskConfig) config.RiskConfig {
	if r.ExpectancyFastAlpha <= 0 {
		r.ExpectancyFastAlpha = 0.2
	}
	if r.ExpectancySlowAlpha <= 0 {
		r.ExpectancySlowAlpha = 0.02
	}
	if r.ExpectancyBootstrapTrades <= 0 {
		r.ExpectancyBootstrapTrades = 20
	}
	if r.ExpectancyFastMinSamples <= 0 {
		r.ExpectancyFastMinSamples = 10
	}
	if r.ExpectancySlowMinSamples <= 0 {
		r.ExpectancySlowMinSamples = 50
	}
	if r.ExpectancyDisableThreshold == 0 {
		r.ExpectancyDisableThreshold = -5
	}
	if r.ExpectancyPauseThreshold == 0 {
		r.ExpectancyPauseThreshold = -2
	}
	if r.SlopeAlpha <= 0 {
		r.SlopeAlpha = 0.1
	}
	if r.SlopePauseThresh == 0 {
		r.SlopePauseThresh = -3
	}
	if r.SlopeHalfThresh == 0 {
		r.SlopeHalfThresh = -1.5
	}
	if r.SlopeDecayThresh == 0 {
		r.SlopeDecayThresh = -0.5
	}
	if r.SlippageAlpha <= 0 {
		r.SlippageAlpha = 0.1
	}
	if r.SpreadCaptureMakerOffThresh <= 0 {
		r.SpreadCaptureMakerOffThresh = 0.3
	}
	if r.SpreadCaptureSizeDecayThresh <= 0 {
		r.SpreadCaptureSizeDecayThresh = 0.6
	}
	if r.PortfolioGlobalCapR <= 0 {
		r.PortfolioGlobalCapR = 10
	}
	if r.PortfolioGroupCapR <= 0 {
		r.PortfolioGroupCapR = 4
	}
	if r.PortfolioMaxPositions <= 0 {
		r.PortfolioMaxPositions = 20
	}
	if r.ExpectedSlippageBps <= 0 {
		r.ExpectedSlippageBps = 2.0
	}
	if r.PerTradeRiskR <= 0 {
		r.PerTradeRiskR = 1.0
	}
	return r
}

// Coordinator owns every symbol worker and the subsystems shared across
// them.
type Coordinator struct {
	cfg     Config
	shared  *shared
	workers map[string]*symbolWorker
	portfolioGate *risk.PortfolioGovernorGate
	capitalGate   *risk.CapitalRampGate
	governance    *governance.Controller
	telemetry     *telemetry.Server
	logger        *slog.Logger
}

// New wires the risk authority's fixed nine-gate chain, the shared position
// book, the shadow simulator, the order lifecycle manager, the governance
// controller, and one worker per configured symbol.
func New(cfg Config, telemetryCfg telemetry.Config, logger *slog.Logger) (*Coordinator, error) {
	guard := mode.NewGuard()
	guard.Latch(cfg.Mode)

	riskCfg := resolveRisk(cfg.Risk)

	// A recorder opened in Replay mode would truncate the very log a Replay
	// run is driving (causal.Open is O_TRUNC on both sibling files), so
	// Replay never constructs one; it reads the log through causal.OpenReader
	// instead (see Replay in replay.go).
	var recorder *causal.Recorder
	if cfg.RecorderPath != "" && cfg.Mode != types.ModeReplay {
		r, err := causal.Open(cfg.RecorderPath)
		if err != nil {
			return nil, err
		}
		recorder = r
	}

	posBook := position.New()

	var posStore *position.Store
	if cfg.PositionStoreDir != "" {
		ps, err := position.OpenStore(cfg.PositionStoreDir)
		if err != nil {
			return nil, err
		}
		posStore = ps
		for _, sc := range cfg.Symbols {
			if snap, ok, err := posStore.LoadSnapshot(sc.Symbol); err != nil {
				logger.Error("failed to load position snapshot", "symbol", sc.Symbol, "error", err)
			} else if ok {
				posBook.Restore(sc.Symbol, snap)
			}
		}
	}

	portfolioGate := risk.NewPortfolioGovernorGate(riskCfg.PortfolioGlobalCapR, riskCfg.PortfolioGroupCapR, riskCfg.PortfolioMaxPositions, cfg.SymbolToGroup)
	capitalGate := risk.NewCapitalRampGate(types.RampMicro)
	slippageGate := risk.NewSlippageGovernorGate(riskCfg.SlippageAlpha)
	spreadGate := risk.NewSpreadCaptureGate(riskCfg.SpreadCaptureMakerOffThresh, riskCfg.SpreadCaptureSizeDecayThresh)

	authority := risk.New(logger,
		risk.NewModeGate(guard),
		risk.NewRegimeGate(),
		risk.NewExpectancyGate(riskCfg.ExpectancyFastAlpha, riskCfg.ExpectancySlowAlpha, riskCfg.ExpectancyBootstrapTrades, riskCfg.ExpectancyFastMinSamples, riskCfg.ExpectancySlowMinSamples, riskCfg.ExpectancyDisableThreshold, riskCfg.ExpectancyPauseThreshold),
		risk.NewSlopeGate(riskCfg.SlopeAlpha, riskCfg.SlopePauseThresh, riskCfg.SlopeHalfThresh, riskCfg.SlopeDecayThresh),
		risk.NewSessionQualityGate(),
		slippageGate,
		spreadGate,
		portfolioGate,
		capitalGate,
	)

	gov := governance.New(cfg.Governance, logger, capitalGate)

	followsMap := make(map[string][]string)
	for _, sc := range cfg.Symbols {
		if len(sc.Leads) > 0 {
			followsMap[sc.Symbol] = sc.Leads
		}
	}
	bridge := signal.NewBridge(followsMap)

	workers := make(map[string]*symbolWorker)

	ordersMgr := orders.NewManager(
		func(f types.Fill) {
			delta := posBook.OnFill(f.Symbol, f.ClientID, f.Price, signedQty(f))
			telemetry.IncOrderFill(f.Symbol, f.Side.String())
			if recorder != nil {
				recorder.RecordFill(causal.FillRecord{
					Header:    causal.NewHeader(types.Envelope{TSNanos: f.TSNanos, SymbolHash: clockid.FNV1a32(f.Symbol)}, causal.TypeFill),
					FillPrice: f.Price, FillQty: f.Qty,
				})
			}
			if delta != 0 {
				gov.RecordFillPnL(delta / riskCfg.PerTradeRiskR)
				if recorder != nil {
					recorder.RecordPnLAttribution(causal.PnLAttributionRecord{
						Header: causal.NewHeader(types.Envelope{TSNanos: f.TSNanos, SymbolHash: clockid.FNV1a32(f.Symbol)}, causal.TypePnLAttribution),
						PnL:    delta,
					})
				}
				if w, ok := workers[f.Symbol]; ok && f.MidAtSubmit > 0 && f.Qty > 0 {
					w.divergence.ObserveLive(delta / (f.MidAtSubmit * f.Qty) * 1e4)
				}
			}
			if posStore != nil {
				if err := posStore.SaveSnapshot(f.Symbol, posBook.Snapshot(f.Symbol)); err != nil {
					logger.Error("failed to persist position snapshot", "symbol", f.Symbol, "error", err)
				}
			}
		},
		func(s orders.SlippageSample) {
			slippageGate.Observe(s.Symbol, slippageRatio(s, riskCfg.ExpectedSlippageBps))
		},
		func(s orders.SpreadCaptureSample) {
			if ratio, ok := spreadCaptureRatio(s); ok {
				spreadGate.Observe(s.Symbol, ratio)
			}
		},
	)

	var clock clockid.Clock
	if cfg.Mode == types.ModeReplay {
		clock = clockid.NewReplayClock(0)
	} else {
		clock = clockid.NewSystemClock()
	}

	s := &shared{
		clock:       clock,
		minter:      clockid.NewIDMinter(),
		mode:        guard,
		authority:   authority,
		ordersMgr:   ordersMgr,
		posBook:     posBook,
		physMatrix:  physics.NewMatrix(cfg.HostileSymbols),
		shadowSim:   shadow.NewSimulator(0.3, 5),
		recorder:    recorder,
		governance:  gov,
		bridge:      bridge,
		venues:      cfg.Venues,
		symbolVenue: make(map[string]string),
		workers:     workers,
	}

	c := &Coordinator{
		cfg:           cfg,
		shared:        s,
		workers:       workers,
		portfolioGate: portfolioGate,
		capitalGate:   capitalGate,
		governance:    gov,
		telemetry:     telemetry.NewServer(telemetryCfg, logger),
		logger:        logger.With("component", "coordinator"),
	}

	for _, sc := range cfg.Symbols {
		workers[sc.Symbol] = newSymbolWorker(sc.Symbol, sc.Venue, s, logger)
	}

	return c, nil
}

// Start launches every worker goroutine, one ingest goroutine per venue,
// the telemetry server, and the rebalance loop. Blocks until ctx is
// cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	for _, w := range c.workers {
		go w.run(ctx)
	}

	for name, v := range c.shared.venues {
		go c.ingestVenue(ctx, name, v)
	}

	go func() {
		if err := c.telemetry.Start(); err != nil {
			c.logger.Error("telemetry server stopped", "error", err)
		}
	}()

	go c.rebalanceLoop(ctx)
	go c.governanceLoop(ctx)

	<-ctx.Done()
	c.telemetry.Stop()
	if c.shared.recorder != nil {
		c.shared.recorder.Close()
	}
}

// ingestVenue subscribes every symbol assigned to v and routes its
// callbacks to the owning symbol worker's bounded channels, dropping
// non-blockingly on a full channel per §8 property 5's intake discipline.
func (c *Coordinator) ingestVenue(ctx context.Context, name string, v venue.Venue) {
	cb := venue.Callbacks{
		OnTick: func(t types.Tick) {
			if !tickSymbolHashOK(t) {
				return
			}
			w, ok := c.workers[t.Symbol]
			if !ok {
				return
			}
			select {
			case w.tickCh <- t:
			default:
				c.logger.Warn("tick channel full, dropping", "symbol", t.Symbol)
			}
		},
		OnTrade: func(tr types.Trade) {
			if !tradeSymbolHashOK(tr) {
				return
			}
			w, ok := c.workers[tr.Symbol]
			if !ok {
				return
			}
			select {
			case w.tradeCh <- tr:
			default:
				c.logger.Warn("trade channel full, dropping", "symbol", tr.Symbol)
			}
		},
		OnDepth: func(d types.DepthUpdate) {
			if !depthSymbolHashOK(d) {
				return
			}
			w, ok := c.workers[d.Symbol]
			if !ok {
				return
			}
			select {
			case w.depthCh <- d:
			default:
				c.logger.Warn("depth channel full, dropping", "symbol", d.Symbol)
			}
		},
		OnLiquidation: func(l types.Liquidation) {
			if !liqSymbolHashOK(l) {
				return
			}
			w, ok := c.workers[l.Symbol]
			if !ok {
				return
			}
			select {
			case w.liqCh <- l:
			default:
				c.logger.Warn("liquidation channel full, dropping", "symbol", l.Symbol)
			}
		},
		OnOrderUpdate: func(u venue.OrderUpdate) {
			mo, ok := c.shared.ordersMgr.Get(u.ClientID)
			if !ok {
				return
			}
			w, ok := c.workers[mo.Symbol]
			if !ok {
				return
			}
			select {
			case w.orderUpdateCh <- u:
			default:
				c.logger.Warn("order update channel full, dropping", "symbol", mo.Symbol)
			}
		},
	}

	for _, sc := range c.cfg.Symbols {
		if sc.Venue != name {
			continue
		}
		if err := v.Subscribe(ctx, sc.Symbol); err != nil {
			c.logger.Error("subscribe failed", "venue", name, "symbol", sc.Symbol, "error", err)
		}
	}

	if err := v.Connect(ctx, cb); err != nil && ctx.Err() == nil {
		c.logger.Error("venue connection ended", "venue", name, "error", err)
	}
}

// rebalanceLoop refreshes the portfolio governor's aggregate risk snapshot
// and publishes a global telemetry snapshot at the ~10s cadence §5
// describes.
func (c *Coordinator) rebalanceLoop(ctx context.Context) {
	interval := c.cfg.RebalanceEvery
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.rebalanceOnce()
		}
	}
}

func (c *Coordinator) rebalanceOnce() {
	totalR := 0.0
	groupR := make(map[risk.CorrelationGroup]float64)
	openPositions := 0

	for _, sc := range c.cfg.Symbols {
		pos := c.shared.posBook.Snapshot(sc.Symbol)
		if !pos.NetQty.IsZero() {
			openPositions++
		}
		r, _ := pos.NetQty.Abs().Float64()
		totalR += r
		if g, ok := c.cfg.SymbolToGroup[sc.Symbol]; ok {
			groupR[g] += r
		}

		telemetry.SetExposureR(totalR)
	}

	c.portfolioGate.SetAggregate(totalR, groupR, openPositions, 0)
	telemetry.SetGlobalKill(c.governance.GlobalKilled())

	hub := c.telemetry.Hub()
	hub.Broadcast(telemetry.Event{Type: "global", Data: telemetry.GlobalSnapshot{
		Mode:         c.shared.mode.Mode().String(),
		CapitalRamp:  c.capitalGate.Level().String(),
		ExposureR:    totalR,
		GlobalKilled: c.governance.GlobalKilled(),
	}})
}

// governanceLoop runs the end-of-day capital-ramp evaluation once per
// day. The day boundary itself is an operational/administrative concern,
// not part of the deterministic replay path (§4.9 only binds decision
// processing), so it is driven by a plain wall-clock ticker rather than the
// replay clock.
func (c *Coordinator) governanceLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.governance.EndOfDay()
		}
	}
}

func signedQty(f types.Fill) float64 {
	if f.Side == types.SideSell {
		return -f.Qty
	}
	return f.Qty
}

// slippageRatio converts a fill's adverse slippage (in bps, signed positive
// when the fill landed worse than the quote mid) into the realised-vs-expected
// ratio the slippage governor gate tracks per symbol.
func slippageRatio(s orders.SlippageSample, expectedBps float64) float64 {
	if s.MidAtSubmit <= 0 || expectedBps <= 0 {
		return 0
	}
	var adverseBps float64
	if s.IsBuy {
		adverseBps = (s.FillPrice - s.MidAtSubmit) / s.MidAtSubmit * 1e4
	} else {
		adverseBps = (s.MidAtSubmit - s.FillPrice) / s.MidAtSubmit * 1e4
	}
	return adverseBps / expectedBps
}

// spreadCaptureRatio converts a maker fill into the realised-half-spread over
// quoted-half-spread ratio the spread-capture gate tracks per symbol.
func spreadCaptureRatio(s orders.SpreadCaptureSample) (float64, bool) {
	if s.MidAtSubmit <= 0 || s.QuotedSpread <= 0 {
		return 0, false
	}
	var capturedHalfSpread float64
	if s.IsBuy {
		capturedHalfSpread = s.MidAtSubmit - s.FillPrice
	} else {
		capturedHalfSpread = s.FillPrice - s.MidAtSubmit
	}
	return capturedHalfSpread / (s.QuotedSpread / 2), true
}
