package physics

import "cascadecore/pkg/types"

// Capabilities is the allowed-tactic set derived from a physics
// classification (§4.7).
type Capabilities struct {
	AllowMaker           bool
	AllowQueueEstimation bool
	AllowMicroRepost     bool
	AllowSpreadCapture   bool
	AllowEdgeCollapse    bool
	AllowClockSync       bool
}

// Playbook is the per-symbol tactic configuration derived alongside
// Capabilities.
type Playbook struct {
	MakerTimeoutMs  float64
	RepostIntervalMs float64
	MinEdgeBps      float64
	TargetEdgeBps   float64
	PreferMaker     bool
	SizeMultiplier  float64
}

// Matrix maps a physics classification (and per-symbol overrides) to a
// Capabilities/Playbook pair.
type Matrix struct {
	HostileSymbols map[string]bool
}

// NewMatrix builds a capability matrix. hostileSymbols names symbols that
// force allow_maker=false regardless of physics.
func NewMatrix(hostileSymbols []string) *Matrix {
	m := &Matrix{HostileSymbols: make(map[string]bool, len(hostileSymbols))}
	for _, s := range hostileSymbols {
		m.HostileSymbols[s] = true
	}
	return m
}

// Resolve derives the capability set and playbook for (physics, symbol),
// downgrading one step while the venue is spiking.
func (m *Matrix) Resolve(symbol string, class types.Physics, spiking bool) (Capabilities, Playbook) {
	effective := class
	if spiking {
		effective = downgrade(class)
	}

	var cap Capabilities
	var pb Playbook

	switch effective {
	case types.PhysicsColo:
		cap = Capabilities{true, true, true, true, true, true}
		pb = Playbook{MakerTimeoutMs: 50, RepostIntervalMs: 25, MinEdgeBps: 0.5, TargetEdgeBps: 1.5, PreferMaker: true, SizeMultiplier: 1.0}
	case types.PhysicsNearColo:
		cap = Capabilities{AllowMaker: true, AllowQueueEstimation: false, AllowMicroRepost: true, AllowSpreadCapture: true, AllowEdgeCollapse: false, AllowClockSync: true}
		pb = Playbook{MakerTimeoutMs: 75, RepostIntervalMs: 37.5, MinEdgeBps: 0.5, TargetEdgeBps: 2.0, PreferMaker: true, SizeMultiplier: 0.75}
	default: // Wan, Unknown
		cap = Capabilities{AllowMaker: true, AllowQueueEstimation: false, AllowMicroRepost: false, AllowSpreadCapture: false, AllowEdgeCollapse: false, AllowClockSync: false}
		pb = Playbook{MakerTimeoutMs: 150, RepostIntervalMs: 100, MinEdgeBps: 1.0, TargetEdgeBps: 3.0, PreferMaker: false, SizeMultiplier: 0.5}
	}

	if m.HostileSymbols[symbol] {
		cap.AllowMaker = false
	}
	return cap, pb
}

// downgrade steps a physics class down one tier: Colo->NearColo,
// NearColo->Wan, everything else stays put.
func downgrade(class types.Physics) types.Physics {
	switch class {
	case types.PhysicsColo:
		return types.PhysicsNearColo
	case types.PhysicsNearColo:
		return types.PhysicsWan
	default:
		return class
	}
}
