// Package signal implements the four per-symbol signal engines (§4.1) and
// the cross-symbol signal bridge (§4.9 design note: leader/follower
// suppression modelled as a block-until table, not mutual references).
//
// Every engine shares the ingest/evaluate contract and is single-symbol,
// single-writer: callers must only ever drive one engine instance from one
// goroutine, matching the per-symbol worker discipline in §5. Grounded in
// the rolling-window/EWMA idiom of internal/strategy/flow_tracker.go and the
// original source's chimera/core/{ofi_engine,depth_engine,...}.hpp.
package signal

import (
	"math"

	"cascadecore/pkg/types"
)

// Engine is the shared contract for all four signal engines.
type Engine interface {
	Evaluate(nowNanos int64) types.Signal
}

// OFIEngine tracks order-flow imbalance: an EWMA of signed trade size, a
// rolling window of EWMA samples for mean/stddev, and z-score acceleration.
type OFIEngine struct {
	alpha       float64 // EWMA smoothing for the raw delta EWMA
	zThresh     float64
	accelThresh float64
	nMin        int

	haveEMA   bool
	ema       float64
	window    []float64 // ring of EMA samples, most recent last
	windowCap int
	priorZ    float64
	haveZ     bool

	sampleCount int
}

// NewOFIEngine builds an OFI engine. windowCap is N_ofi (e.g. 200); nMin is
// the minimum window population before any signal may fire.
func NewOFIEngine(alpha, zThresh, accelThresh float64, windowCap, nMin int) *OFIEngine {
	return &OFIEngine{
		alpha:       alpha,
		zThresh:     zThresh,
		accelThresh: accelThresh,
		nMin:        nMin,
		windowCap:   windowCap,
	}
}

// Ingest folds one trade's signed size into the OFI EWMA.
func (e *OFIEngine) Ingest(signedQty float64) {
	if !e.haveEMA {
		e.ema = signedQty
		e.haveEMA = true
	} else {
		e.ema = e.alpha*signedQty + (1-e.alpha)*e.ema
	}
	e.window = append(e.window, e.ema)
	if len(e.window) > e.windowCap {
		e.window = e.window[1:]
	}
	e.sampleCount++
}

// Evaluate computes the current z-score/acceleration and decides whether the
// engine fires, per §4.1.
func (e *OFIEngine) Evaluate(nowNanos int64) types.Signal {
	sig := types.Signal{Engine: types.EngineOFI, TSNanos: nowNanos}
	if e.sampleCount < e.nMin || len(e.window) < 2 {
		return sig
	}

	mean, stddev := meanStddev(e.window)
	if stddev == 0 {
		return sig
	}
	zscore := (e.ema - mean) / stddev

	accel := 0.0
	if e.haveZ {
		accel = zscore - e.priorZ
	}
	e.priorZ = zscore
	e.haveZ = true

	sig.Metric = zscore
	sig.Confidence = math.Min(math.Abs(zscore)/3, 1)

	if math.Abs(accel) > e.accelThresh && math.Abs(zscore) > e.zThresh {
		sig.Fired = true
		if zscore > 0 {
			sig.Side = types.SideBuy
		} else {
			sig.Side = types.SideSell
		}
	}
	return sig
}

func meanStddev(xs []float64) (mean, stddev float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean = sum / n
	var sqsum float64
	for _, x := range xs {
		d := x - mean
		sqsum += d * d
	}
	stddev = math.Sqrt(sqsum / n)
	return mean, stddev
}
