package signal

import (
	"math"

	"cascadecore/pkg/types"
)

// LiquidationEngine sums notional liquidations per side over a sliding
// window, firing when one side's intensity spikes well above the other's.
// Directional convention: a long-liquidation spike implies expected
// short-term mean reversion upward (Buy), and vice versa (§4.1).
type LiquidationEngine struct {
	window      int64
	spikeThresh float64

	longNotional   float64
	shortNotional  float64
	longWindowStart, shortWindowStart int64
}

// NewLiquidationEngine builds a liquidation engine with sliding window
// duration windowNanos (W_liq) and spike threshold spikeThresh (notional).
func NewLiquidationEngine(windowNanos int64, spikeThresh float64) *LiquidationEngine {
	return &LiquidationEngine{window: windowNanos, spikeThresh: spikeThresh}
}

// Ingest folds one liquidation print into the relevant side's accumulator,
// resetting it first if the sliding window has elapsed.
func (e *LiquidationEngine) Ingest(notional float64, isLong bool, tsNanos int64) {
	if isLong {
		if tsNanos-e.longWindowStart > e.window {
			e.longNotional = 0
			e.longWindowStart = tsNanos
		}
		e.longNotional += notional
	} else {
		if tsNanos-e.shortWindowStart > e.window {
			e.shortNotional = 0
			e.shortWindowStart = tsNanos
		}
		e.shortNotional += notional
	}
}

// Evaluate returns whether one side's intensity has spiked at least 1.5x the
// other's above the configured threshold.
func (e *LiquidationEngine) Evaluate(nowNanos int64) types.Signal {
	sig := types.Signal{Engine: types.EngineLiquidation, TSNanos: nowNanos}

	if e.longNotional > e.spikeThresh && e.longNotional >= 1.5*e.shortNotional {
		sig.Fired = true
		sig.Side = types.SideBuy
		sig.Metric = e.longNotional
		sig.Confidence = math.Min(e.longNotional/e.spikeThresh/2, 1)
		return sig
	}
	if e.shortNotional > e.spikeThresh && e.shortNotional >= 1.5*e.longNotional {
		sig.Fired = true
		sig.Side = types.SideSell
		sig.Metric = e.shortNotional
		sig.Confidence = math.Min(e.shortNotional/e.spikeThresh/2, 1)
		return sig
	}
	return sig
}
