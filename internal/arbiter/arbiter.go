// Package arbiter implements the cascade arbiter: a per-leader-symbol state
// machine that fuses the four signal engines into a directional entry
// decision (§4.2), consulting the signal bridge to suppress follower
// symbols while a leader's cascade is live.
package arbiter

import (
	"cascadecore/internal/signal"
	"cascadecore/pkg/types"
)

// Config holds the tunables for one arbiter instance.
type Config struct {
	MinConfirmations int
	MaxSpreadBps     float64
	FollowerBlockNs  int64
	CooldownNs       int64
	MaxHoldNs        int64
}

// Arbiter drives one leader symbol's {Idle, Armed, InTrade, Cooldown} state
// machine. It is single-writer: one goroutine per leader, matching the
// per-symbol worker discipline in §5.
type Arbiter struct {
	symbol string
	cfg    Config
	bridge *signal.Bridge

	state         types.ArbiterState
	entryTS       int64
	cooldownStart int64
}

// New builds an arbiter for the given leader symbol.
func New(symbol string, cfg Config, bridge *signal.Bridge) *Arbiter {
	return &Arbiter{symbol: symbol, cfg: cfg, bridge: bridge, state: types.StateIdle}
}

// State returns the current arbiter state.
func (a *Arbiter) State() types.ArbiterState { return a.state }

// Evaluate folds in the four current signals and the quoted spread at
// nowNanos, advancing the state machine and returning a non-nil decision
// only on a fresh cascade fire.
func (a *Arbiter) Evaluate(nowNanos int64, spreadBps float64, sigs [4]types.Signal) *types.CascadeDecision {
	switch a.state {
	case types.StateCooldown:
		if nowNanos-a.cooldownStart >= a.cfg.CooldownNs {
			a.state = types.StateIdle
		}
		return nil
	case types.StateInTrade:
		if nowNanos-a.entryTS >= a.cfg.MaxHoldNs {
			a.state = types.StateCooldown
			a.cooldownStart = nowNanos
		}
		return nil
	}

	// Idle or Armed: evaluate, unless the bridge reports this leader blocked
	// by a recent follower signal.
	if a.bridge != nil && a.bridge.Blocked(a.symbol, nowNanos) {
		return nil
	}

	var ofi, depth, liq, imp types.Signal
	for _, s := range sigs {
		switch s.Engine {
		case types.EngineOFI:
			ofi = s
		case types.EngineDepth:
			depth = s
		case types.EngineLiquidation:
			liq = s
		case types.EngineImpulse:
			imp = s
		}
	}

	confirmations := types.Confirmations{
		OFI:         ofi.Fired,
		Depth:       depth.Fired,
		Liquidation: liq.Fired,
		Impulse:     imp.Fired,
	}

	consensus, ok := consensusSide(ofi, liq, imp)
	if !ok {
		return nil
	}

	fire := (confirmations.Liquidation && confirmations.Depth && confirmations.OFI) ||
		(confirmations.Liquidation && confirmations.Impulse && liq.Side == imp.Side) ||
		(confirmations.Depth && confirmations.OFI && confirmations.Impulse) ||
		(confirmations.Count() >= a.cfg.MinConfirmations && consensus != types.SideNone)

	if !fire || consensus == types.SideNone {
		a.state = types.StateArmed
		return nil
	}

	if spreadBps > a.cfg.MaxSpreadBps {
		return nil
	}

	decision := &types.CascadeDecision{
		Symbol:            a.symbol,
		Side:              consensus,
		Confirmations:     confirmations,
		ConfirmationCount: confirmations.Count(),
		TSNanos:           nowNanos,
	}

	if a.bridge != nil {
		a.bridge.Block(a.symbol, nowNanos, a.cfg.FollowerBlockNs)
	}
	return decision
}

// MarkExecuted transitions Armed/Idle -> InTrade on a fill, recording the
// entry timestamp for the forced time-stop.
func (a *Arbiter) MarkExecuted(nowNanos int64) {
	a.state = types.StateInTrade
	a.entryTS = nowNanos
}

// MarkExit transitions InTrade -> Cooldown on a closed position.
func (a *Arbiter) MarkExit(nowNanos int64) {
	a.state = types.StateCooldown
	a.cooldownStart = nowNanos
}

// consensusSide votes across the three signed engines (Depth is
// directionless and never votes). Disagreement among fired signed signals
// aborts consensus entirely.
func consensusSide(ofi, liq, imp types.Signal) (types.Side, bool) {
	var side types.Side
	seen := false
	for _, s := range []types.Signal{ofi, liq, imp} {
		if !s.Fired || s.Side == types.SideNone {
			continue
		}
		if !seen {
			side = s.Side
			seen = true
			continue
		}
		if s.Side != side {
			return types.SideNone, false
		}
	}
	if !seen {
		return types.SideNone, true
	}
	return side, true
}
