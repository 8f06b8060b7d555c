package signal

import (
	"math"

	"cascadecore/pkg/types"
)

// ImpulseEngine tracks price displacement over a rolling re-anchoring window
// and a velocity EWMA normalised to bps/second, firing when both displacement
// and velocity clear their thresholds and share sign (§4.1).
type ImpulseEngine struct {
	window          int64
	minDisplacement float64
	minVelocity     float64
	velocityAlpha   float64

	haveAnchor   bool
	anchorPrice  float64
	anchorTS     int64
	lastPrice    float64
	lastTS       int64
	haveVelocity bool
	velocity     float64
	displacement float64
}

// NewImpulseEngine builds an impulse engine: windowNanos is W_impulse,
// velocityAlpha smooths the bps/s velocity EWMA.
func NewImpulseEngine(windowNanos int64, minDisplacement, minVelocity, velocityAlpha float64) *ImpulseEngine {
	return &ImpulseEngine{
		window:          windowNanos,
		minDisplacement: minDisplacement,
		minVelocity:     minVelocity,
		velocityAlpha:   velocityAlpha,
	}
}

// Ingest folds one price observation in, re-anchoring the window start when
// it has aged out.
func (e *ImpulseEngine) Ingest(price float64, tsNanos int64) {
	if !e.haveAnchor {
		e.anchorPrice = price
		e.anchorTS = tsNanos
		e.haveAnchor = true
		e.lastPrice = price
		e.lastTS = tsNanos
		return
	}

	if tsNanos-e.anchorTS > e.window {
		e.anchorPrice = price
		e.anchorTS = tsNanos
	}

	if e.anchorPrice != 0 {
		e.displacement = (price - e.anchorPrice) / e.anchorPrice * 1e4
	}

	dtSeconds := float64(tsNanos-e.lastTS) / 1e9
	if dtSeconds > 0 {
		instVelocity := (price - e.lastPrice) / e.lastPrice * 1e4 / dtSeconds
		if !e.haveVelocity {
			e.velocity = instVelocity
			e.haveVelocity = true
		} else {
			e.velocity = e.velocityAlpha*instVelocity + (1-e.velocityAlpha)*e.velocity
		}
	}

	e.lastPrice = price
	e.lastTS = tsNanos
}

// Evaluate reports whether displacement and velocity clear their thresholds
// and agree in sign.
func (e *ImpulseEngine) Evaluate(nowNanos int64) types.Signal {
	sig := types.Signal{Engine: types.EngineImpulse, TSNanos: nowNanos, Metric: e.displacement}

	sameSign := (e.displacement > 0 && e.velocity > 0) || (e.displacement < 0 && e.velocity < 0)
	if math.Abs(e.displacement) >= e.minDisplacement && math.Abs(e.velocity) >= e.minVelocity && sameSign {
		sig.Fired = true
		if e.displacement > 0 {
			sig.Side = types.SideBuy
		} else {
			sig.Side = types.SideSell
		}
		sig.Confidence = math.Min(math.Abs(e.displacement)/(e.minDisplacement*3), 1)
	}
	return sig
}
