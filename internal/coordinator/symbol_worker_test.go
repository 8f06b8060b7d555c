package coordinator

import (
	"io"
	"log/slog"
	"testing"

	"cascadecore/internal/clockid"
	"cascadecore/internal/mode"
	"cascadecore/internal/orders"
	"cascadecore/internal/physics"
	"cascadecore/internal/position"
	"cascadecore/internal/risk"
	"cascadecore/internal/shadow"
	"cascadecore/internal/venue"
	"cascadecore/internal/venue/mockvenue"
	"cascadecore/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestShared(t *testing.T, runMode types.RunMode) (*shared, *mockvenue.Venue) {
	t.Helper()
	guard := mode.NewGuard()
	guard.Latch(runMode)

	posBook := position.New()
	ordersMgr := orders.NewManager(
		func(types.Fill) {},
		func(orders.SlippageSample) {},
		func(orders.SpreadCaptureSample) {},
	)
	authority := risk.New(testLogger(), risk.NewModeGate(guard))

	v := mockvenue.New()
	s := &shared{
		clock:       clockid.NewSystemClock(),
		minter:      clockid.NewIDMinter(),
		mode:        guard,
		authority:   authority,
		ordersMgr:   ordersMgr,
		posBook:     posBook,
		physMatrix:  physics.NewMatrix(nil),
		shadowSim:   shadow.NewSimulator(0.3, 5),
		recorder:    nil,
		venues:      map[string]venue.Venue{"mock": v},
		symbolVenue: make(map[string]string),
		workers:     make(map[string]*symbolWorker),
	}
	return s, v
}

func TestOnTickUpdatesLastTick(t *testing.T) {
	s, _ := newTestShared(t, types.ModeShadow)
	w := newSymbolWorker("BTC-USD", "mock", s, testLogger())

	tick := types.Tick{Symbol: "BTC-USD", Bid: 100, Ask: 100.5, BidSize: 10, AskSize: 10}
	tick.TSNanos = 1_000

	w.onTick(tick)

	if !w.haveTick {
		t.Fatalf("expected haveTick to be set")
	}
	if w.lastTick.Mid() != 100.25 {
		t.Fatalf("expected mid 100.25, got %v", w.lastTick.Mid())
	}
}

func TestEvaluateCascadeNoSignalsFiredIsNoop(t *testing.T) {
	s, v := newTestShared(t, types.ModeLive)
	w := newSymbolWorker("BTC-USD", "mock", s, testLogger())

	w.lastTick = types.Tick{Symbol: "BTC-USD", Bid: 100, Ask: 100.5}
	w.haveTick = true

	w.evaluateCascade(1_000, 5, 0)

	if len(v.Sent()) != 0 {
		t.Fatalf("expected no orders sent when no signal fired, got %d", len(v.Sent()))
	}
}

func TestOnOrderUpdateAppliesAckToOrderManager(t *testing.T) {
	s, _ := newTestShared(t, types.ModeShadow)
	w := newSymbolWorker("BTC-USD", "mock", s, testLogger())

	req := types.OrderRequest{ClientID: "c1", Symbol: "BTC-USD", Side: types.SideBuy, Qty: 1, Price: 100, Type: types.OrderLimit}
	s.ordersMgr.Submit(req, 100, 1_000_000)

	w.onOrderUpdate(venue.OrderUpdate{
		ClientID:       "c1",
		State:          types.OrderAcked,
		DeltaFilledQty: 0,
		FillPrice:      0,
		TSNanos:        1_500_000,
	})

	mo, ok := s.ordersMgr.Get("c1")
	if !ok {
		t.Fatalf("expected order c1 to be tracked")
	}
	if mo.State != types.OrderAcked {
		t.Fatalf("expected state OrderAcked, got %v", mo.State)
	}
}

func TestGateNameReturnsBlockingGate(t *testing.T) {
	d := risk.Decision{
		GateResults: []risk.GateMultiplier{
			{Gate: "mode", Reason: types.ReasonNone},
			{Gate: "regime", Reason: types.ReasonRegimeToxic},
		},
	}
	if got := gateName(d); got != "regime" {
		t.Fatalf("expected last gate name 'regime', got %q", got)
	}
}

func TestGateNameEmptyResultsReturnsUnknown(t *testing.T) {
	if got := gateName(risk.Decision{}); got != "unknown" {
		t.Fatalf("expected 'unknown' for empty gate results, got %q", got)
	}
}

func TestHourOfDayWrapsAt24(t *testing.T) {
	const nsPerHour = 3_600_000_000_000
	if got := hourOfDay(25 * nsPerHour); got != 1 {
		t.Fatalf("expected hour 1, got %d", got)
	}
}

func TestTopOfBookQtyForSidePicksOppositeBook(t *testing.T) {
	d := types.DepthUpdate{
		Bids: []types.PriceLevel{{Price: 99, Qty: 5}},
		Asks: []types.PriceLevel{{Price: 101, Qty: 7}},
	}
	if got := topOfBookQtyForSide(d, types.SideBuy); got != 7 {
		t.Fatalf("buy should consume ask depth, got %v", got)
	}
	if got := topOfBookQtyForSide(d, types.SideSell); got != 5 {
		t.Fatalf("sell should consume bid depth, got %v", got)
	}
}

func TestSlippageToBpsZeroWhenUnfilled(t *testing.T) {
	if got := slippageToBps(shadow.SimResult{Filled: false, SlippageBps: 99}); got != 0 {
		t.Fatalf("expected 0 slippage for unfilled sim, got %v", got)
	}
}
