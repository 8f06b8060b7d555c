// Package telemetry exposes the decision core's observability surface: a
// Prometheus registry adapted from the chidi150c-coinbase bot's metrics.go
// CounterVec/GaugeVec idiom, and a broadcast WebSocket hub adapted from the
// teacher's internal/api Hub/Client for the global telemetry snapshot
// (§6).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	cascadeDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_cascade_decisions_total",
			Help: "Cascade arbiter fire decisions, by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	riskGateBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_risk_gate_blocks_total",
			Help: "Risk authority blocks, by the gate that fired and its reason.",
		},
		[]string{"gate", "reason"},
	)

	orderFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_order_fills_total",
			Help: "Order fills, by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	divergencePauses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_divergence_pauses_total",
			Help: "Times the divergence monitor paused a symbol.",
		},
		[]string{"symbol"},
	)

	capitalRampLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "core_capital_ramp_level",
			Help: "Current capital-ramp level indicator (one labeled series per level, 0/1).",
		},
		[]string{"level"},
	)

	exposureR = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "core_exposure_r",
			Help: "Current aggregate open exposure, in units of R.",
		},
	)

	symbolHashMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "core_symbol_hash_mismatches_total",
			Help: "Events dropped at intake because symbol_hash didn't match fnv1a32(symbol).",
		},
	)

	globalKill = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "core_global_kill",
			Help: "1 if the governance controller has latched a global kill, else 0.",
		},
	)
)

func init() {
	prometheus.MustRegister(cascadeDecisions, riskGateBlocks, orderFills, divergencePauses)
	prometheus.MustRegister(capitalRampLevel, exposureR, symbolHashMismatches, globalKill)
}

// IncCascadeDecision records one cascade fire.
func IncCascadeDecision(symbol, side string) { cascadeDecisions.WithLabelValues(symbol, side).Inc() }

// IncRiskGateBlock records one risk-authority block.
func IncRiskGateBlock(gate, reason string) { riskGateBlocks.WithLabelValues(gate, reason).Inc() }

// IncOrderFill records one order fill.
func IncOrderFill(symbol, side string) { orderFills.WithLabelValues(symbol, side).Inc() }

// IncDivergencePause records one divergence-monitor pause.
func IncDivergencePause(symbol string) { divergencePauses.WithLabelValues(symbol).Inc() }

// SetCapitalRampLevel flips the labeled ramp-level series so exactly one
// reads 1.
func SetCapitalRampLevel(levels []string, active string) {
	for _, l := range levels {
		if l == active {
			capitalRampLevel.WithLabelValues(l).Set(1)
		} else {
			capitalRampLevel.WithLabelValues(l).Set(0)
		}
	}
}

// SetExposureR sets the current aggregate exposure gauge.
func SetExposureR(r float64) { exposureR.Set(r) }

// IncSymbolHashMismatch records one dropped event at the intake boundary.
func IncSymbolHashMismatch() { symbolHashMismatches.Inc() }

// SetGlobalKill sets the global-kill indicator gauge.
func SetGlobalKill(killed bool) {
	if killed {
		globalKill.Set(1)
		return
	}
	globalKill.Set(0)
}
