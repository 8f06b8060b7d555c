package coordinator

import (
	"context"
	"log/slog"

	"cascadecore/internal/arbiter"
	"cascadecore/internal/causal"
	"cascadecore/internal/clockid"
	"cascadecore/internal/divergence"
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

const chanCap = 256

// symbolWorker owns every piece of per-symbol state and is the sole writer
// to it; the coordinator's venue-ingest goroutines never touch this state
// directly, only through the worker's bounded channels (single-writer
// discipline).
type symbolWorker struct {
	symbol     string
	symbolHash uint32
	baseSize   float64

	ofi     *signal.OFIEngine
	depth   *signal.DepthEngine
	liq     *signal.LiquidationEngine
	impulse *signal.ImpulseEngine
	physics *physics.Detector
	arb     *arbiter.Arbiter

	lastTick  types.Tick
	lastDepth types.DepthUpdate
	haveTick  bool

	tickCh        chan types.Tick
	tradeCh       chan types.Trade
	depthCh       chan types.DepthUpdate
	liqCh         chan types.Liquidation
	orderUpdateCh chan venue.OrderUpdate

	shared *shared

	makerHealth *shadow.MakerHealth
	divergence  *divergence.Monitor

	logger *slog.Logger
}

// shared is the state every symbolWorker reads/writes through thread-safe
// APIs: none of it is symbol-exclusive.
type shared struct {
	clock      clockid.Clock
	minter     *clockid.IDMinter
	mode       *mode.Guard
	authority  *risk.Authority
	ordersMgr  *orders.Manager
	posBook    *position.Book
	physMatrix *physics.Matrix
	shadowSim  *shadow.Simulator
	recorder   *causal.Recorder
	governance *governance.Controller
	bridge     *signal.Bridge
	venues     map[string]venue.Venue
	symbolVenue map[string]string
	workers    map[string]*symbolWorker
}

func newSymbolWorker(symbol, venueName string, shared *shared, logger *slog.Logger) *symbolWorker {
	w := &symbolWorker{
		symbol:      symbol,
		symbolHash:  clockid.FNV1a32(symbol),
		baseSize:    1.0,
		ofi:         signal.NewOFIEngine(0.1, 2.0, 1.5, 50, 20),
		depth:       signal.NewDepthEngine(0.05, 0.4, int64(2_000_000_000)),
		liq:         signal.NewLiquidationEngine(int64(30_000_000_000), 3.0),
		impulse:     signal.NewImpulseEngine(int64(5_000_000_000), 15, 5, 0.2),
		physics:     physics.NewDetector(500),
		arb:         arbiter.New(symbol, arbiter.Config{MinConfirmations: 2, MaxSpreadBps: 8, FollowerBlockNs: int64(2_000_000_000), CooldownNs: int64(10_000_000_000), MaxHoldNs: int64(60_000_000_000)}, shared.bridge),
		tickCh:        make(chan types.Tick, chanCap),
		tradeCh:       make(chan types.Trade, chanCap),
		depthCh:       make(chan types.DepthUpdate, chanCap),
		liqCh:         make(chan types.Liquidation, chanCap),
		orderUpdateCh: make(chan venue.OrderUpdate, chanCap),
		shared:        shared,
		makerHealth:   shadow.NewMakerHealth(0.1, 0.2, 0.5),
		divergence:    divergence.NewMonitor(200, 10, 15, 3, 5, 5),
		logger:        logger.With("component", "symbol_worker", "symbol", symbol),
	}
	shared.symbolVenue[symbol] = venueName
	shared.workers[symbol] = w
	return w
}

// run is the worker's single goroutine. It is the only writer of every
// field above.
func (w *symbolWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tickCh:
			w.onTick(t)
		case tr := <-w.tradeCh:
			w.onTrade(tr)
		case d := <-w.depthCh:
			w.onDepth(d)
		case l := <-w.liqCh:
			w.onLiquidation(l)
		case u := <-w.orderUpdateCh:
			w.onOrderUpdate(u)
		}
	}
}

func (w *symbolWorker) onTick(t types.Tick) {
	w.lastTick = t
	w.haveTick = true
	w.impulse.Ingest(t.Mid(), t.TSNanos)

	tickID := types.EventID(w.shared.minter.Next())
	if w.shared.recorder != nil {
		w.shared.recorder.RecordTick(causal.TickRecord{
			Header: causal.NewHeader(types.Envelope{ID: tickID, TSNanos: t.TSNanos, SymbolHash: w.symbolHash}, causal.TypeTick),
			Bid:    t.Bid, Ask: t.Ask, BidSz: t.BidSize, AskSz: t.AskSize,
		})
	}
	w.evaluateCascade(t.TSNanos, t.SpreadBps(), tickID)
}

func (w *symbolWorker) onTrade(tr types.Trade) {
	w.ofi.Ingest(tr.SignedQty())
	w.evaluateCascade(tr.TSNanos, w.spreadBps(), 0)
}

func (w *symbolWorker) onDepth(d types.DepthUpdate) {
	w.lastDepth = d
	bidDepth, askDepth := d.TopDepth(5)
	w.depth.Ingest(bidDepth, askDepth, d.TSNanos)
	w.evaluateCascade(d.TSNanos, w.spreadBps(), 0)
}

func (w *symbolWorker) onLiquidation(l types.Liquidation) {
	w.liq.Ingest(l.Notional, l.IsLong, l.TSNanos)
	w.evaluateCascade(l.TSNanos, w.spreadBps(), 0)
}

func (w *symbolWorker) spreadBps() float64 {
	if !w.haveTick {
		return 0
	}
	return w.lastTick.SpreadBps()
}

// onOrderUpdate folds a venue order-lifecycle event into the order manager
// and, for acknowledgements, into the execution-physics detector (the
// submit-to-ack latency is the detector's round-trip sample).
func (w *symbolWorker) onOrderUpdate(u venue.OrderUpdate) {
	if err := w.shared.ordersMgr.Update(u.ClientID, u.State, u.DeltaFilledQty, u.FillPrice, u.TSNanos); err != nil {
		w.logger.Warn("order update rejected", "client_id", u.ClientID, "error", err)
		return
	}
	if mo, ok := w.shared.ordersMgr.Get(u.ClientID); ok && u.State == types.OrderAcked {
		latencyMs := float64(u.TSNanos-mo.SubmitTSNanos) / 1e6
		if latencyMs > 0 {
			w.physics.Observe(latencyMs, u.TSNanos)
		}
	}

	if w.shared.recorder != nil && (u.State == types.OrderAcked || u.State == types.OrderRejected) {
		w.shared.recorder.RecordVenueAck(causal.VenueAckRecord{
			Header:    causal.NewHeader(types.Envelope{ID: types.EventID(w.shared.minter.Next()), TSNanos: u.TSNanos, SymbolHash: w.symbolHash}, causal.TypeVenueAck),
			Accepted:  u.State == types.OrderAcked,
			VenueCode: clockid.FNV1a32(w.shared.symbolVenue[w.symbol]),
		})
	}
}

// evaluateCascade re-evaluates the four signal engines and the arbiter
// after any market-data ingestion, and on a fresh fire runs the decision
// through the risk authority and, if allowed, the shadow simulator (and
// the live venue, in Live mode).
func (w *symbolWorker) evaluateCascade(nowNanos int64, spreadBps float64, parentID types.EventID) {
	sigs := [4]types.Signal{
		w.ofi.Evaluate(nowNanos),
		w.depth.Evaluate(nowNanos),
		w.liq.Evaluate(nowNanos),
		w.impulse.Evaluate(nowNanos),
	}

	decision := w.arb.Evaluate(nowNanos, spreadBps, sigs)
	if decision == nil {
		return
	}

	avgConfidence := 0.0
	for _, s := range sigs {
		if s.Fired {
			avgConfidence += s.Confidence
		}
	}
	if n := decision.ConfirmationCount; n > 0 {
		avgConfidence /= float64(n)
	}

	req := risk.Request{
		Symbol:           w.symbol,
		RequestedSize:    w.baseSize,
		Confidence:       avgConfidence,
		IsMaker:          false,
		UTCHour:          hourOfDay(nowNanos),
	}
	rd := w.shared.authority.Evaluate(req)
	telemetry.IncCascadeDecision(w.symbol, decision.Side.String())

	decisionID := types.EventID(w.shared.minter.Next())
	if w.shared.recorder != nil {
		var sigVec [8]float64
		for i, s := range sigs {
			sigVec[i] = s.Metric
		}
		w.shared.recorder.RecordDecision(causal.DecisionRecord{
			Header:       causal.NewHeader(types.Envelope{ID: decisionID, ParentID: parentID, TSNanos: nowNanos, SymbolHash: w.symbolHash}, causal.TypeDecision),
			EngineID:     uint32(decision.Side),
			EdgeScore:    avgConfidence,
			SignalVector: sigVec,
		})
	}

	if !rd.Allowed {
		telemetry.IncRiskGateBlock(gateName(rd), string(rd.Reason))
		w.recordRisk(decisionID, nowNanos, false, 0)
		return
	}

	if w.shared.governance != nil && w.shared.governance.GlobalKilled() {
		telemetry.IncRiskGateBlock("global_kill", string(types.ReasonGlobalKill))
		w.recordRisk(decisionID, nowNanos, false, 0)
		return
	}

	if w.divergence.Paused() {
		telemetry.IncRiskGateBlock("divergence_monitor", string(types.ReasonDivergencePause))
		w.recordRisk(decisionID, nowNanos, false, 0)
		return
	}

	w.recordRisk(decisionID, nowNanos, true, rd.FinalSize)

	class := w.physics.Classify()
	spiking := w.physics.Spiking(nowNanos)
	caps, playbook := w.shared.physMatrix.Resolve(w.symbol, class, spiking)

	size := rd.FinalSize * playbook.SizeMultiplier
	if size <= 0 {
		return
	}

	limitPrice := w.lastTick.Mid()
	quote := shadow.Quote{
		Bid:                  w.lastTick.Bid,
		Ask:                  w.lastTick.Ask,
		SameSideTopOfBookQty: topOfBookQtyForSide(w.lastDepth, decision.Side),
		RecentTakerVolume:    size,
	}

	execMode := shadow.ModeTakerOnly
	if caps.AllowMaker && playbook.PreferMaker {
		execMode = shadow.ModeMakerOnly
	} else if caps.AllowMaker {
		execMode = shadow.ModeHybrid
	}

	eventID := types.EventID(w.shared.minter.Next())
	sim := w.shared.shadowSim.Attempt(execMode, decision.Side, limitPrice, quote, eventID)
	w.divergence.ObserveShadow(slippageToBps(sim))

	if w.shared.recorder != nil {
		w.shared.recorder.RecordOrderIntent(causal.OrderIntentRecord{
			Header: causal.NewHeader(types.Envelope{ID: eventID, ParentID: decisionID, TSNanos: nowNanos, SymbolHash: w.symbolHash}, causal.TypeOrderIntent),
			IsBuy:  decision.Side == types.SideBuy,
			Price:  limitPrice,
			Qty:    size,
		})
	}

	if !w.shared.mode.IsLive() {
		w.arb.MarkExecuted(nowNanos)
		return
	}

	v, ok := w.shared.venues[w.shared.symbolVenue[w.symbol]]
	if !ok {
		w.logger.Error("no venue registered for symbol")
		return
	}

	clientID := orders.NewClientID()
	req2 := types.OrderRequest{ClientID: clientID, Symbol: w.symbol, Side: decision.Side, Qty: size, Price: limitPrice, Type: types.OrderLimit}
	w.shared.ordersMgr.Submit(req2, limitPrice, nowNanos)
	if err := v.SendOrder(context.Background(), req2); err != nil {
		w.logger.Error("send order failed", "client_id", clientID, "error", err)
		return
	}
	w.arb.MarkExecuted(nowNanos)
}

// recordRisk appends a RiskRecord mirroring the authority's verdict for this
// decision, when a recorder is active.
func (w *symbolWorker) recordRisk(decisionID types.EventID, nowNanos int64, allowed bool, maxPos float64) {
	if w.shared.recorder == nil {
		return
	}
	curPos, _ := w.shared.posBook.Snapshot(w.symbol).NetQty.Float64()
	w.shared.recorder.RecordRisk(causal.RiskRecord{
		Header:  causal.NewHeader(types.Envelope{ID: types.EventID(w.shared.minter.Next()), ParentID: decisionID, TSNanos: nowNanos, SymbolHash: w.symbolHash}, causal.TypeRisk),
		Allowed: allowed,
		MaxPos:  maxPos,
		CurPos:  curPos,
	})
}

func slippageToBps(sim shadow.SimResult) float64 {
	if !sim.Filled {
		return 0
	}
	return sim.SlippageBps
}

func topOfBookQtyForSide(d types.DepthUpdate, side types.Side) float64 {
	bidDepth, askDepth := d.TopDepth(1)
	if side == types.SideBuy {
		return askDepth
	}
	return bidDepth
}

func hourOfDay(nowNanos int64) int {
	const nsPerHour = 3_600_000_000_000
	return int((nowNanos / nsPerHour) % 24)
}

func gateName(d risk.Decision) string {
	if len(d.GateResults) == 0 {
		return "unknown"
	}
	return d.GateResults[len(d.GateResults)-1].Gate
}
