// Package position implements the position & PnL book (§4.4): weighted
// average cost, realised/unrealised PnL, and cross-symbol exposure. Uses
// github.com/shopspring/decimal for deterministic fixed-point accumulation
// so the live path and a replay of the same fills always agree bit-for-bit
// (§4.9's no-reordering-of-summation requirement), rather than the
// original's latent float accumulation order dependence.
package position

import (
	"sync"

	"github.com/shopspring/decimal"

	"cascadecore/pkg/types"
)

// Position is one symbol's net position and PnL state.
type Position struct {
	NetQty       decimal.Decimal
	AvgPrice     decimal.Decimal
	RealizedPnL  decimal.Decimal
	unrealizedAt decimal.Decimal // last mark price used for UnrealizedPnL
}

// UnrealizedPnL returns (mark - avg_price) * net_qty at the last mark.
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.unrealizedAt.Sub(p.AvgPrice).Mul(p.NetQty)
}

// Book tracks one Position per symbol plus per-(symbol,client_id) fill
// idempotence. Single writer per symbol on the hot path; Snapshot exposes a
// lock-free-ish read via copy for telemetry.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*Position
	seenFills map[string]map[string]bool // symbol -> client_id -> applied
}

// New builds an empty position book.
func New() *Book {
	return &Book{
		positions: make(map[string]*Position),
		seenFills: make(map[string]map[string]bool),
	}
}

func (b *Book) positionLocked(symbol string) *Position {
	p, ok := b.positions[symbol]
	if !ok {
		p = &Position{}
		b.positions[symbol] = p
	}
	return p
}

// OnFill applies one fill to symbol's position. clientID idempotence key:
// re-delivering the same (symbol, clientID) is a no-op after the first
// application. signedQty carries the fill's direction (positive = buy).
// Returns the realised PnL delta booked by this specific fill (zero for a
// same-direction extend or an idempotent re-delivery), for callers that
// attribute or accumulate PnL per fill (governance R-accounting, causal
// attribution records).
func (b *Book) OnFill(symbol, clientID string, fillPrice, signedQty float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := b.seenFills[symbol]
	if seen == nil {
		seen = make(map[string]bool)
		b.seenFills[symbol] = seen
	}
	if seen[clientID] {
		return 0
	}
	seen[clientID] = true

	p := b.positionLocked(symbol)
	price := decimal.NewFromFloat(fillPrice)
	qty := decimal.NewFromFloat(signedQty)

	netQty := p.NetQty
	sameDirection := netQty.Sign() == 0 || netQty.Sign() == qty.Sign()

	if sameDirection {
		newNet := netQty.Add(qty)
		weighted := netQty.Abs().Mul(p.AvgPrice).Add(qty.Abs().Mul(price))
		denom := newNet.Abs()
		if !denom.IsZero() {
			p.AvgPrice = weighted.Div(denom)
		}
		p.NetQty = newNet
		return 0
	}

	// Opposite direction: close up to min(|qty|, |net_qty|), realise PnL on
	// the closed portion, sign from the prior net_qty's direction.
	closedQty := decimal.Min(qty.Abs(), netQty.Abs())
	priorSign := decimal.NewFromInt(int64(netQty.Sign()))
	pnl := closedQty.Mul(price.Sub(p.AvgPrice)).Mul(priorSign)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)

	newNet := netQty.Add(qty)
	p.NetQty = newNet

	switch {
	case newNet.IsZero():
		p.AvgPrice = decimal.Zero
	case newNet.Sign() != netQty.Sign():
		// The fill flipped the side: the remainder resets avg_price to the
		// fill's own price rather than blending in the pre-flip average.
		p.AvgPrice = price
	}

	delta, _ := pnl.Float64()
	return delta
}

// Mark records the latest market price for a symbol, used by UnrealizedPnL.
func (b *Book) Mark(symbol string, markPrice float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.positionLocked(symbol)
	p.unrealizedAt = decimal.NewFromFloat(markPrice)
}

// Restore installs pos as symbol's current position, for startup recovery
// from a persisted snapshot. It does not touch the fill-idempotence set, so
// fills already reflected in pos must not be re-delivered after a restore.
func (b *Book) Restore(symbol string, pos Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := pos
	b.positions[symbol] = &cp
}

// Snapshot returns a copy of symbol's position.
func (b *Book) Snapshot(symbol string) Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.positions[symbol]; ok {
		return *p
	}
	return Position{}
}

// Exposure returns sum of |net_qty| across every tracked symbol.
func (b *Book) Exposure() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := decimal.Zero
	for _, p := range b.positions {
		total = total.Add(p.NetQty.Abs())
	}
	return total
}

// Side returns the position's current direction.
func (p Position) Side() types.Side {
	switch p.NetQty.Sign() {
	case 1:
		return types.SideBuy
	case -1:
		return types.SideSell
	default:
		return types.SideNone
	}
}
