package risk

import (
	"sync"

	"cascadecore/pkg/types"
)

// SlippageGovernorGate implements the slippage governor. Gate 6.
type SlippageGovernorGate struct {
	alpha float64

	mu    sync.Mutex
	ratio map[string]float64
	have  map[string]bool
}

func NewSlippageGovernorGate(alpha float64) *SlippageGovernorGate {
	return &SlippageGovernorGate{alpha: alpha, ratio: make(map[string]float64), have: make(map[string]bool)}
}

// Observe folds in a fill's realised-vs-expected slippage ratio for symbol.
func (g *SlippageGovernorGate) Observe(symbol string, realizedVsExpected float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.have[symbol] {
		g.ratio[symbol] = realizedVsExpected
		g.have[symbol] = true
		return
	}
	g.ratio[symbol] = g.alpha*realizedVsExpected + (1-g.alpha)*g.ratio[symbol]
}

func (g *SlippageGovernorGate) Name() string { return "slippage_governor" }
func (g *SlippageGovernorGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.Lock()
	r, ok := g.ratio[req.Symbol]
	g.mu.Unlock()
	if !ok {
		return 1.0, types.ReasonNone, false
	}
	switch {
	case r >= 2.0:
		return 0, types.ReasonSlippageCritical, false
	case r >= 1.6:
		return 0.25, types.ReasonNone, true // High: maker-only
	case r >= 1.3:
		return 0.5, types.ReasonNone, false
	default:
		return 1.0, types.ReasonNone, false
	}
}

// SpreadCaptureGate implements the maker-only spread-capture gate. Gate 7.
type SpreadCaptureGate struct {
	makerOffThresh, sizeDecayThresh float64

	mu       sync.Mutex
	captured map[string]float64
	have     map[string]bool
}

func NewSpreadCaptureGate(makerOffThresh, sizeDecayThresh float64) *SpreadCaptureGate {
	return &SpreadCaptureGate{makerOffThresh: makerOffThresh, sizeDecayThresh: sizeDecayThresh, captured: make(map[string]float64), have: make(map[string]bool)}
}

// Observe folds in the realised-half-spread/quoted-half-spread ratio for a
// maker fill.
func (g *SpreadCaptureGate) Observe(symbol string, capturedRatio float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.have[symbol] {
		g.captured[symbol] = capturedRatio
		g.have[symbol] = true
		return
	}
	g.captured[symbol] = 0.1*capturedRatio + 0.9*g.captured[symbol]
}

func (g *SpreadCaptureGate) Name() string { return "spread_capture" }
func (g *SpreadCaptureGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	if !req.IsMaker {
		return 1.0, types.ReasonNone, false
	}
	g.mu.Lock()
	r, ok := g.captured[req.Symbol]
	g.mu.Unlock()
	if !ok {
		return 1.0, types.ReasonNone, false
	}
	switch {
	case r < g.makerOffThresh:
		return 0, types.ReasonSpreadCaptureOff, false
	case r < g.sizeDecayThresh:
		return 0.7, types.ReasonNone, false
	default:
		return 1.0, types.ReasonNone, false
	}
}

// CorrelationGroup buckets symbols for the portfolio governor's group caps.
type CorrelationGroup string

const (
	GroupCryptoMajor  CorrelationGroup = "crypto_major"
	GroupCryptoAlt    CorrelationGroup = "crypto_alt"
	GroupUSIndices    CorrelationGroup = "us_indices"
	GroupMetals       CorrelationGroup = "metals"
	GroupUSDForex     CorrelationGroup = "usd_forex"
	GroupForexCross   CorrelationGroup = "forex_cross"
	GroupUncorrelated CorrelationGroup = "uncorrelated"
)

// PortfolioGovernorGate implements the portfolio governor. Gate 8.
// Per-market/global exposure caps generalize here into per-group/global
// R-budget caps, guarded by an RWMutex over the aggregate state.
type PortfolioGovernorGate struct {
	globalCapR    float64
	groupCapR     float64
	maxPositions  int
	symbolToGroup map[string]CorrelationGroup

	mu              sync.RWMutex
	totalRiskR      float64
	groupRiskR      map[CorrelationGroup]float64
	openPositions   int
	dailyPnLR       float64
	symbolExpectBps map[string]float64
}

func NewPortfolioGovernorGate(globalCapR, groupCapR float64, maxPositions int, symbolToGroup map[string]CorrelationGroup) *PortfolioGovernorGate {
	return &PortfolioGovernorGate{
		globalCapR: globalCapR, groupCapR: groupCapR, maxPositions: maxPositions,
		symbolToGroup:   symbolToGroup,
		groupRiskR:      make(map[CorrelationGroup]float64),
		symbolExpectBps: make(map[string]float64),
	}
}

// SetAggregate updates the governor's read of current risk usage; called by
// the rebalance goroutine (§5).
func (g *PortfolioGovernorGate) SetAggregate(totalRiskR float64, groupRiskR map[CorrelationGroup]float64, openPositions int, dailyPnLR float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.totalRiskR = totalRiskR
	g.groupRiskR = groupRiskR
	g.openPositions = openPositions
	g.dailyPnLR = dailyPnLR
}

// SetSymbolExpectancy records the latest per-symbol expectancy, used for the
// portfolio-wide pause check.
func (g *PortfolioGovernorGate) SetSymbolExpectancy(symbol string, bps float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.symbolExpectBps[symbol] = bps
}

func (g *PortfolioGovernorGate) Name() string { return "portfolio_governor" }
func (g *PortfolioGovernorGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.symbolExpectBps) > 0 {
		if medianExpectancy(g.symbolExpectBps) < -0.05 {
			return 0, types.ReasonPortfolioPaused, false
		}
	}

	if g.maxPositions > 0 && g.openPositions >= g.maxPositions {
		return 0, types.ReasonPortfolioCapExceeded, false
	}

	proposedR := req.RequestedSize * req.Confidence
	group := g.symbolToGroup[req.Symbol]
	if g.globalCapR > 0 && g.totalRiskR+proposedR > g.globalCapR {
		return 0, types.ReasonPortfolioCapExceeded, false
	}
	if g.groupCapR > 0 && g.groupRiskR[group]+proposedR > g.groupCapR {
		return 0, types.ReasonPortfolioCapExceeded, false
	}

	mult := 1.0
	if g.globalCapR > 0 {
		dailyLossR := -g.dailyPnLR
		switch {
		case dailyLossR > 0.75*g.globalCapR:
			mult = 0.25
		case dailyLossR > 0.5*g.globalCapR:
			mult = 0.5
		}

		utilization := (g.totalRiskR + proposedR) / g.globalCapR
		if utilization > 1.0 {
			utilization = 1.0
		}
		mult *= (1.0 - 0.5*utilization)
	}
	return mult, types.ReasonNone, false
}

func medianExpectancy(m map[string]float64) float64 {
	vals := make([]float64, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j-1] > vals[j]; j-- {
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// CapitalRampGate implements the final capital-ramp multiplier. Gate 9.
type CapitalRampGate struct {
	mu    sync.RWMutex
	level types.CapitalRampLevel
}

func NewCapitalRampGate(initial types.CapitalRampLevel) *CapitalRampGate {
	return &CapitalRampGate{level: initial}
}

// SetLevel updates the ramp level; the governance controller calls this
// only at end-of-day (§4.3: "Ramp level changes only at end-of-day").
func (g *CapitalRampGate) SetLevel(level types.CapitalRampLevel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.level = level
}

func (g *CapitalRampGate) Level() types.CapitalRampLevel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.level
}

func (g *CapitalRampGate) Name() string { return "capital_ramp" }
func (g *CapitalRampGate) Evaluate(Request) (float64, types.NoTradeReason, bool) {
	return g.Level().R(), types.ReasonNone, false
}
