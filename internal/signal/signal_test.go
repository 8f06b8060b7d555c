package signal

import "testing"

func TestOFIEngineFiresOnAcceleratingImbalance(t *testing.T) {
	t.Parallel()
	e := NewOFIEngine(0.2, 1.5, 0.3, 50, 20)

	// Warm up with near-zero noise so baseline mean/stddev settle low.
	for i := 0; i < 30; i++ {
		sign := 1.0
		if i%2 == 0 {
			sign = -1.0
		}
		e.Ingest(sign * 0.01)
	}
	if sig := e.Evaluate(0); sig.Fired {
		t.Fatalf("engine fired during noise warm-up: %+v", sig)
	}

	// Now push a sustained, strongly one-sided imbalance.
	var fired bool
	for i := 0; i < 10; i++ {
		e.Ingest(5.0)
		sig := e.Evaluate(int64(i))
		if sig.Fired {
			fired = true
			if sig.Side.String() != "buy" {
				t.Fatalf("expected buy side, got %s", sig.Side)
			}
			break
		}
	}
	if !fired {
		t.Fatalf("expected OFI engine to fire on sustained imbalance")
	}
}

func TestOFIEngineWarmupGuard(t *testing.T) {
	t.Parallel()
	e := NewOFIEngine(0.3, 1.0, 0.1, 50, 20)
	for i := 0; i < 19; i++ {
		e.Ingest(10)
		if sig := e.Evaluate(0); sig.Fired {
			t.Fatalf("fired before warm-up count reached at sample %d", i)
		}
	}
}

func TestDepthEngineFiresOnSustainedCollapse(t *testing.T) {
	t.Parallel()
	e := NewDepthEngine(0.05, 0.5, 100)

	e.Ingest(100, 100, 0)
	for ts := int64(1); ts < 20; ts++ {
		e.Ingest(100, 100, ts)
	}

	e.Ingest(10, 10, 20)
	if sig := e.Evaluate(20); sig.Fired {
		t.Fatalf("should not fire before minVacuumNanos elapses: %+v", sig)
	}

	e.Ingest(10, 10, 150)
	sig := e.Evaluate(150)
	if !sig.Fired {
		t.Fatalf("expected collapse to fire after sustained duration")
	}
}

func TestDepthEngineDirectionless(t *testing.T) {
	t.Parallel()
	e := NewDepthEngine(0.05, 0.5, 0)
	e.Ingest(100, 100, 0)
	e.Ingest(5, 5, 1)
	sig := e.Evaluate(1)
	if !sig.Fired {
		t.Fatalf("expected fire")
	}
	if sig.Side != 0 {
		t.Fatalf("depth engine must not vote a side, got %v", sig.Side)
	}
}

func TestLiquidationEngineSpikeDirection(t *testing.T) {
	t.Parallel()
	e := NewLiquidationEngine(1_000_000_000, 1000)

	e.Ingest(2000, true, 0)
	sig := e.Evaluate(0)
	if !sig.Fired || sig.Side.String() != "buy" {
		t.Fatalf("expected buy-side fire on long liquidation spike, got %+v", sig)
	}
}

func TestLiquidationEngineWindowReset(t *testing.T) {
	t.Parallel()
	e := NewLiquidationEngine(100, 1000)
	e.Ingest(2000, true, 0)
	e.Ingest(50, true, 500) // window elapsed, should reset before accumulating
	sig := e.Evaluate(500)
	if sig.Fired {
		t.Fatalf("expected no fire after window reset dropped the spike: %+v", sig)
	}
}

func TestImpulseEngineFiresOnAgreeingDisplacementAndVelocity(t *testing.T) {
	t.Parallel()
	e := NewImpulseEngine(10_000_000_000, 20, 5, 0.5)

	e.Ingest(100, 0)
	ts := int64(0)
	price := 100.0
	var sig = e.Evaluate(ts)
	for i := 0; i < 10; i++ {
		ts += int64(100 * 1e6) // 100ms steps
		price += 0.5
		e.Ingest(price, ts)
		sig = e.Evaluate(ts)
	}
	if !sig.Fired {
		t.Fatalf("expected impulse engine to fire on sustained upward move, got %+v", sig)
	}
	if sig.Side.String() != "buy" {
		t.Fatalf("expected buy side, got %s", sig.Side)
	}
}

func TestImpulseEngineReanchorsAfterWindow(t *testing.T) {
	t.Parallel()
	e := NewImpulseEngine(1000, 20, 5, 0.5)
	e.Ingest(100, 0)
	e.Ingest(100, 2000) // window elapsed, re-anchors at 100
	sig := e.Evaluate(2000)
	if sig.Fired {
		t.Fatalf("expected no fire immediately after re-anchor: %+v", sig)
	}
}

func TestBridgeBlocksFollowerUntilExpiry(t *testing.T) {
	t.Parallel()
	b := NewBridge(map[string][]string{"BTC": {"ETH"}})

	if b.Blocked("ETH", 0) {
		t.Fatalf("ETH should not be blocked before any fire")
	}

	b.Block("BTC", 1000, 500)
	if !b.Blocked("ETH", 1200) {
		t.Fatalf("ETH should be blocked within the block window")
	}
	if b.Blocked("ETH", 1500) {
		t.Fatalf("ETH should no longer be blocked after the window expires")
	}
}

func TestBridgeOnlyBlocksConfiguredFollowers(t *testing.T) {
	t.Parallel()
	b := NewBridge(map[string][]string{"BTC": {"ETH"}})
	b.Block("BTC", 0, 1_000_000)
	if b.Blocked("SOL", 10) {
		t.Fatalf("unrelated symbol must never be blocked")
	}
}
