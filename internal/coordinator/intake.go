package coordinator

import (
	"cascadecore/internal/clockid"
	"cascadecore/internal/telemetry"
	"cascadecore/pkg/types"
)

// validSymbolHash enforces §8 property 5: every envelope's symbol_hash must
// equal fnv1a32(symbol); a mismatch means the event was corrupted or
// misrouted upstream of the coordinator and must be dropped, not processed.
func validSymbolHash(symbol string, got uint32) bool {
	ok := got == clockid.FNV1a32(symbol)
	if !ok {
		telemetry.IncSymbolHashMismatch()
	}
	return ok
}

func tickSymbolHashOK(t types.Tick) bool        { return validSymbolHash(t.Symbol, t.SymbolHash) }
func tradeSymbolHashOK(t types.Trade) bool      { return validSymbolHash(t.Symbol, t.SymbolHash) }
func depthSymbolHashOK(d types.DepthUpdate) bool { return validSymbolHash(d.Symbol, d.SymbolHash) }
func liqSymbolHashOK(l types.Liquidation) bool  { return validSymbolHash(l.Symbol, l.SymbolHash) }
