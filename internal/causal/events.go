// Package causal implements the append-only causal recorder and its replay
// reader: the append-only binary+text event log required by §4.9/§6, and the
// deterministic replay loader required to make live and replayed decisions
// byte-identical (§8 property 2).
//
// Grounded in internal/store/store.go's crash-safe write idiom (write, then
// fsync) generalised from a per-entity JSON snapshot into an append-only
// binary+JSONL event stream, and in the original source's
// chimera/causal/{recorder,replay}.{hpp,cpp} record-type catalogue.
package causal

import "cascadecore/pkg/types"

// Header is the fixed-size record prefix shared by every causal record:
// (event_id, parent_id, type, ts_ns, symbol_hash) per §4.9.
type Header struct {
	ID         uint64
	ParentID   uint64
	Type       uint8
	TSNanos    uint64
	SymbolHash uint32
}

// The seven record kinds the recorder persists, matching the decision
// core's causal audit trail exactly (DepthUpdate/Liquidation feed the signal
// engines but are not themselves causally recorded, matching the original
// source's record-type catalogue).
const (
	TypeTick uint8 = iota + 1
	TypeDecision
	TypeRisk
	TypeOrderIntent
	TypeVenueAck
	TypeFill
	TypePnLAttribution
)

// TickRecord mirrors a market tick at the moment it entered the causal chain.
type TickRecord struct {
	Header
	Bid, Ask, BidSz, AskSz float64
}

// DecisionRecord mirrors a cascade-arbiter or risk-authority decision point;
// SignalVector holds up to eight engine-specific metrics for audit.
type DecisionRecord struct {
	Header
	EngineID     uint32
	EdgeScore    float64
	SignalVector [8]float64
}

// RiskRecord mirrors one risk-authority gate decision.
type RiskRecord struct {
	Header
	Allowed bool
	MaxPos  float64
	CurPos  float64
}

// OrderIntentRecord mirrors an order about to be submitted to a venue.
type OrderIntentRecord struct {
	Header
	IsBuy bool
	Price float64
	Qty   float64
}

// VenueAckRecord mirrors a venue's acceptance/rejection of an order intent.
type VenueAckRecord struct {
	Header
	Accepted  bool
	VenueCode uint32
}

// FillRecord mirrors an execution fill.
type FillRecord struct {
	Header
	FillPrice float64
	FillQty   float64
}

// PnLAttributionRecord mirrors a closed trade's PnL attribution.
type PnLAttributionRecord struct {
	Header
	PnL      float64
	Fee      float64
	EngineID uint32
}

// NewHeader builds a causal Header from an event envelope and a record kind.
func NewHeader(env types.Envelope, kind uint8) Header {
	return Header{
		ID:         uint64(env.ID),
		ParentID:   uint64(env.ParentID),
		Type:       kind,
		TSNanos:    uint64(env.TSNanos),
		SymbolHash: env.SymbolHash,
	}
}
