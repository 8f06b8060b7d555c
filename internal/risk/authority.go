// Package risk implements the risk authority: a non-bypassable, ordered
// chain of gates that translates a requested order size into a final size
// multiplier or a block reason. The authority is the only writer of
// final_size; strategy code cannot override it.
//
// The RWMutex-guarded aggregate snapshot and the drain-then-retry
// non-blocking audit channel generalize a single global/per-market exposure
// check into a fixed nine-gate chain plus a decision-audit feed.
package risk

import (
	"log/slog"
	"sync"

	"cascadecore/pkg/types"
)

// Request is what the signal/arbiter layer proposes to the authority.
type Request struct {
	Symbol        string
	RequestedSize float64
	Confidence    float64
	IsMaker       bool
	UTCHour       int
}

// GateMultiplier records one gate's verdict for audit.
type GateMultiplier struct {
	Gate       string
	Multiplier float64
	Reason     types.NoTradeReason
}

// Decision is the authority's full, audited verdict for one Request.
type Decision struct {
	Symbol        string
	Allowed       bool
	FinalSize     float64
	Reason        types.NoTradeReason
	GateResults   []GateMultiplier
	MakerOnly     bool
}

// Gate is one link in the ordered chain. It returns a multiplier in [0,
// maxMultiplier] and, when the multiplier is 0, the NoTradeReason that
// explains the block. forceMakerOnly lets a gate (slippage governor) demote
// a taker-eligible order to maker-only without fully blocking it.
type Gate interface {
	Name() string
	Evaluate(req Request) (multiplier float64, reason types.NoTradeReason, forceMakerOnly bool)
}

// Authority runs the fixed, ordered nine-gate chain and audits every
// decision for telemetry.
type Authority struct {
	logger *slog.Logger
	gates  []Gate

	mu        sync.RWMutex
	lastByKey map[string]Decision

	auditCh chan Decision
}

// New builds an authority from the gates in their required fixed order
// (§4.3: Mode, Regime, DualHorizonExpectancy, ExpectancySlope,
// TimeBucketQuality, SlippageGovernor, SpreadCapture, PortfolioGovernor,
// CapitalRamp).
func New(logger *slog.Logger, gates ...Gate) *Authority {
	return &Authority{
		logger:    logger.With("component", "risk"),
		gates:     gates,
		lastByKey: make(map[string]Decision),
		auditCh:   make(chan Decision, 256),
	}
}

// Evaluate runs req through every gate in order. The first gate returning a
// zero multiplier (a hard block) stops the chain; otherwise multipliers
// compose multiplicatively and the final size is requested_size times their
// product.
func (a *Authority) Evaluate(req Request) Decision {
	size := req.RequestedSize
	results := make([]GateMultiplier, 0, len(a.gates))
	makerOnly := req.IsMaker

	for _, g := range a.gates {
		mult, reason, forceMaker := g.Evaluate(req)
		results = append(results, GateMultiplier{Gate: g.Name(), Multiplier: mult, Reason: reason})
		if forceMaker {
			makerOnly = true
		}
		if mult == 0 {
			d := Decision{Symbol: req.Symbol, Allowed: false, FinalSize: 0, Reason: reason, GateResults: results, MakerOnly: makerOnly}
			a.record(d)
			return d
		}
		size *= mult
	}

	d := Decision{Symbol: req.Symbol, Allowed: true, FinalSize: size, Reason: types.ReasonNone, GateResults: results, MakerOnly: makerOnly}
	a.record(d)
	return d
}

func (a *Authority) record(d Decision) {
	a.mu.Lock()
	a.lastByKey[d.Symbol] = d
	a.mu.Unlock()

	if d.Allowed {
		a.logger.Debug("risk decision", "symbol", d.Symbol, "final_size", d.FinalSize)
	} else {
		a.logger.Debug("risk gate blocked", "symbol", d.Symbol, "reason", d.Reason)
	}

	// Non-blocking audit publish: drop the oldest queued decision rather
	// than ever stall the hot path.
	select {
	case a.auditCh <- d:
	default:
		select {
		case <-a.auditCh:
		default:
		}
		select {
		case a.auditCh <- d:
		default:
		}
	}
}

// Audit returns the channel telemetry drains for per-decision, per-gate
// multiplier records (§4.3: "every decision is recorded... for audit").
func (a *Authority) Audit() <-chan Decision { return a.auditCh }

// Last returns the most recent decision for symbol, if any.
func (a *Authority) Last(symbol string) (Decision, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.lastByKey[symbol]
	return d, ok
}
