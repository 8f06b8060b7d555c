package signal

import (
	"math"

	"cascadecore/pkg/types"
)

// DepthEngine tracks a slow EWMA baseline of top-of-book depth on each side
// and fires when the instantaneous ratio to baseline collapses and stays
// collapsed for at least minVacuumDuration. Directionless: it gates the
// arbiter, it does not vote a side (§4.1).
type DepthEngine struct {
	baselineAlpha    float64 // e.g. 0.005
	collapseThresh   float64
	minVacuumNanos   int64
	haveBaseline     bool
	baselineBid      float64
	baselineAsk      float64
	inCollapse       bool
	collapseStartTS  int64
	collapseDuration int64
	ratio            float64
}

// NewDepthEngine builds a depth engine with the given baseline smoothing,
// collapse ratio threshold, and minimum sustained-collapse duration.
func NewDepthEngine(baselineAlpha, collapseThresh float64, minVacuumDuration int64) *DepthEngine {
	return &DepthEngine{
		baselineAlpha:  baselineAlpha,
		collapseThresh: collapseThresh,
		minVacuumNanos: minVacuumDuration,
		ratio:          1,
	}
}

// Ingest folds one depth observation into the rolling baseline.
func (e *DepthEngine) Ingest(bidDepth, askDepth float64, tsNanos int64) {
	if !e.haveBaseline {
		if bidDepth > 0 {
			e.baselineBid = bidDepth
			e.baselineAsk = askDepth
			e.haveBaseline = true
		}
	} else {
		e.baselineBid = e.baselineAlpha*bidDepth + (1-e.baselineAlpha)*e.baselineBid
		e.baselineAsk = e.baselineAlpha*askDepth + (1-e.baselineAlpha)*e.baselineAsk
	}

	bidRatio, askRatio := 1.0, 1.0
	if e.baselineBid > 0 {
		bidRatio = bidDepth / e.baselineBid
	}
	if e.baselineAsk > 0 {
		askRatio = askDepth / e.baselineAsk
	}
	e.ratio = math.Min(bidRatio, askRatio)

	collapsed := e.ratio < e.collapseThresh
	switch {
	case collapsed && !e.inCollapse:
		e.collapseStartTS = tsNanos
		e.inCollapse = true
	case !collapsed && e.inCollapse:
		e.inCollapse = false
		e.collapseStartTS = 0
	}
	if e.inCollapse {
		e.collapseDuration = tsNanos - e.collapseStartTS
	} else {
		e.collapseDuration = 0
	}
}

// Evaluate reports whether the collapse has persisted long enough to fire.
func (e *DepthEngine) Evaluate(nowNanos int64) types.Signal {
	sig := types.Signal{Engine: types.EngineDepth, TSNanos: nowNanos, Metric: e.ratio}
	if e.inCollapse && e.collapseDuration >= e.minVacuumNanos {
		sig.Fired = true
		sig.Confidence = math.Min((1-e.ratio)/0.4, 1)
	}
	return sig
}
