package telemetry

import "cascadecore/pkg/types"

// SymbolSnapshot is the telemetry feed's shape for one symbol's
// point-in-time state. Nothing publishes it: the coordinator's rebalance
// goroutine broadcasts only a GlobalSnapshot.
type SymbolSnapshot struct {
	Symbol        string             `json:"symbol"`
	ArbiterState  string             `json:"arbiter_state"`
	Physics       string             `json:"physics"`
	Regime        string             `json:"regime"`
	NetQty        string             `json:"net_qty"`
	AvgPrice      string             `json:"avg_price"`
	UnrealizedPnL string             `json:"unrealized_pnl"`
	RiskReason    types.NoTradeReason `json:"risk_reason,omitempty"`
	DivergencePaused bool            `json:"divergence_paused"`
}

// GlobalSnapshot is the process-wide state the coordinator's rebalance
// goroutine publishes on every tick.
type GlobalSnapshot struct {
	Mode         string  `json:"mode"`
	CapitalRamp  string  `json:"capital_ramp"`
	ExposureR    float64 `json:"exposure_r"`
	GlobalKilled bool    `json:"global_killed"`
}
