// Package shadow implements the deterministic fill simulator (§4.8) used in
// Shadow mode and, in parallel with live execution, for divergence
// monitoring. All randomness is seeded from event_id so a replay reproduces
// the exact same fill/no-fill decisions as the live run (§4.9).
package shadow

import (
	"math"
	"math/rand"

	"cascadecore/pkg/types"
)

// ExecutionMode selects which simulated execution style an order attempts.
type ExecutionMode int

const (
	ModeTakerOnly ExecutionMode = iota
	ModeMakerOnly
	ModeHybrid
)

// Quote is the book state the simulator needs to evaluate a fill attempt.
type Quote struct {
	Bid, Ask                   float64
	SameSideTopOfBookQty       float64
	RecentTakerVolume          float64
}

func (q Quote) mid() float64       { return (q.Bid + q.Ask) / 2 }
func (q Quote) spreadBps() float64 {
	m := q.mid()
	if m <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / m * 1e4
}

// SimResult is the outcome of one simulated attempt.
type SimResult struct {
	Filled      bool
	FillPrice   float64
	SlippageBps float64
}

// Simulator runs one symbol's deterministic fill simulation. Its parameters
// (min fill probability, min spread for maker) are fixed at construction;
// all per-attempt randomness is reseeded from the triggering event_id.
type Simulator struct {
	minFillProb        float64
	minSpreadForMaker  float64
}

// NewSimulator builds a shadow executor.
func NewSimulator(minFillProb, minSpreadForMakerBps float64) *Simulator {
	return &Simulator{minFillProb: minFillProb, minSpreadForMaker: minSpreadForMakerBps}
}

// Attempt simulates one order attempt under mode, using eventID to seed the
// maker-fill RNG deterministically.
func (s *Simulator) Attempt(mode ExecutionMode, side types.Side, limitPrice float64, q Quote, eventID types.EventID) SimResult {
	switch mode {
	case ModeTakerOnly:
		return s.taker(side, q)
	case ModeMakerOnly:
		r := s.maker(side, limitPrice, q, eventID)
		if !r.Filled {
			return SimResult{}
		}
		return r
	case ModeHybrid:
		r := s.maker(side, limitPrice, q, eventID)
		if r.Filled {
			return r
		}
		return s.taker(side, q)
	default:
		return SimResult{}
	}
}

func (s *Simulator) taker(side types.Side, q Quote) SimResult {
	mid := q.mid()
	fillPrice := q.Ask
	if side == types.SideSell {
		fillPrice = q.Bid
	}
	slip := 0.0
	if mid > 0 {
		slip = math.Abs(fillPrice-mid) / mid * 1e4
	}
	return SimResult{Filled: true, FillPrice: fillPrice, SlippageBps: slip}
}

func (s *Simulator) maker(side types.Side, limitPrice float64, q Quote, eventID types.EventID) SimResult {
	if q.spreadBps() < s.minSpreadForMaker {
		return SimResult{}
	}
	queueAhead := 1.5 * q.SameSideTopOfBookQty
	if queueAhead <= 0 {
		return SimResult{}
	}
	p := 1 - math.Exp(-q.RecentTakerVolume/queueAhead)
	if p < s.minFillProb {
		return SimResult{}
	}

	rng := rand.New(rand.NewSource(int64(eventID)))
	if rng.Float64() > p {
		return SimResult{}
	}
	return SimResult{Filled: true, FillPrice: limitPrice, SlippageBps: 0}
}

// ExitPnL computes PnL at a (always-taker) exit: (exit - entry) * qty *
// sign(side).
func ExitPnL(entryPrice, exitPrice, qty float64, side types.Side) float64 {
	return (exitPrice - entryPrice) * qty * side.Sign()
}
