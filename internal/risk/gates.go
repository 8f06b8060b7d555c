package risk

import (
	"sync"

	"cascadecore/internal/mode"
	"cascadecore/pkg/types"
)

// ModeGate blocks every request while the mode guard is Off-equivalent,
// i.e. whenever the process is not in a mode that permits live risk
// evaluation at all. Gate 1.
type ModeGate struct {
	guard *mode.Guard
}

func NewModeGate(guard *mode.Guard) *ModeGate { return &ModeGate{guard: guard} }
func (g *ModeGate) Name() string              { return "mode" }
func (g *ModeGate) Evaluate(Request) (float64, types.NoTradeReason, bool) {
	if g.guard == nil {
		return 1.0, types.ReasonNone, false
	}
	if err := g.guard.Require("risk.Evaluate", types.ModeLive, types.ModeShadow, types.ModeReplay); err != nil {
		return 0, types.ReasonModeOff, false
	}
	return 1.0, types.ReasonNone, false
}

// RegimeGate blocks Toxic-regime symbols outright and demotes Transition
// regime symbols to 0.3x. Gate 2.
type RegimeGate struct {
	mu      sync.RWMutex
	regimes map[string]types.Regime
}

func NewRegimeGate() *RegimeGate { return &RegimeGate{regimes: make(map[string]types.Regime)} }

// SetRegime updates symbol's classifier output; called by whatever feeds
// the regime classifier (outside this package's scope per §1 non-goals).
func (g *RegimeGate) SetRegime(symbol string, r types.Regime) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regimes[symbol] = r
}

func (g *RegimeGate) Name() string { return "regime" }
func (g *RegimeGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.RLock()
	r := g.regimes[req.Symbol]
	g.mu.RUnlock()
	switch r {
	case types.RegimeToxic:
		return 0, types.ReasonRegimeToxic, false
	case types.RegimeTransition:
		return 0.3, types.ReasonNone, false
	default:
		return 1.0, types.ReasonNone, false
	}
}

// ExpectancyGate implements the dual-horizon expectancy gate. Gate 3.
type ExpectancyGate struct {
	fastAlpha, slowAlpha               float64
	bootstrapTrades                    int
	disableThreshold, pauseThreshold   float64
	fastMinSamples, slowMinSamples     int

	mu                sync.Mutex
	state             map[string]*expectancyState
}

type expectancyState struct {
	totalTrades       int
	fastHaveEMA       bool
	fastEMA           float64
	fastSamples       int
	slowHaveEMA       bool
	slowEMA           float64
	slowSamples       int
}

func NewExpectancyGate(fastAlpha, slowAlpha float64, bootstrapTrades, fastMinSamples, slowMinSamples int, disableThreshold, pauseThreshold float64) *ExpectancyGate {
	return &ExpectancyGate{
		fastAlpha: fastAlpha, slowAlpha: slowAlpha,
		bootstrapTrades: bootstrapTrades,
		fastMinSamples: fastMinSamples, slowMinSamples: slowMinSamples,
		disableThreshold: disableThreshold, pauseThreshold: pauseThreshold,
		state: make(map[string]*expectancyState),
	}
}

// Observe folds a closed trade's PnL in bps into symbol's dual-horizon EMAs.
func (g *ExpectancyGate) Observe(symbol string, pnlBps float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stateLocked(symbol)
	s.totalTrades++

	if !s.fastHaveEMA {
		s.fastEMA, s.fastHaveEMA = pnlBps, true
	} else {
		s.fastEMA = g.fastAlpha*pnlBps + (1-g.fastAlpha)*s.fastEMA
	}
	s.fastSamples++

	if !s.slowHaveEMA {
		s.slowEMA, s.slowHaveEMA = pnlBps, true
	} else {
		s.slowEMA = g.slowAlpha*pnlBps + (1-g.slowAlpha)*s.slowEMA
	}
	s.slowSamples++
}

func (g *ExpectancyGate) stateLocked(symbol string) *expectancyState {
	s, ok := g.state[symbol]
	if !ok {
		s = &expectancyState{}
		g.state[symbol] = s
	}
	return s
}

func (g *ExpectancyGate) Name() string { return "expectancy" }
func (g *ExpectancyGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stateLocked(req.Symbol)

	if s.totalTrades < g.bootstrapTrades {
		return 1.0, types.ReasonNone, false
	}
	if s.slowSamples >= g.slowMinSamples && s.slowEMA < g.disableThreshold {
		return 0, types.ReasonExpectancyDisabled, false
	}
	if s.fastSamples >= g.fastMinSamples && s.fastEMA < g.pauseThreshold {
		return 0, types.ReasonExpectancyPaused, false
	}
	if s.fastEMA < 0 && s.slowEMA > 0 {
		return 0.5, types.ReasonNone, false
	}
	// Bounded size-by-expectancy scalar in [0, 1.5x]: linearly scale with
	// the fast EMA, clamped.
	scalar := 1.0 + s.fastEMA/10.0
	if scalar < 0 {
		scalar = 0
	}
	if scalar > 1.5 {
		scalar = 1.5
	}
	return scalar, types.ReasonNone, false
}

// SlopeGate implements the expectancy slope gate. Gate 4.
type SlopeGate struct {
	pauseThresh, halfThresh, decayThresh float64
	slopeAlpha                           float64

	mu    sync.Mutex
	prior map[string]float64
	have  map[string]bool
	ema   map[string]float64
}

func NewSlopeGate(slopeAlpha, pauseThresh, halfThresh, decayThresh float64) *SlopeGate {
	return &SlopeGate{
		slopeAlpha: slopeAlpha, pauseThresh: pauseThresh, halfThresh: halfThresh, decayThresh: decayThresh,
		prior: make(map[string]float64), have: make(map[string]bool), ema: make(map[string]float64),
	}
}

// ObserveSlowExpectancy folds in the latest slow-expectancy reading for
// symbol, updating the slope EMA against the prior reading.
func (g *SlopeGate) ObserveSlowExpectancy(symbol string, slowExpectancy float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.have[symbol] {
		g.prior[symbol] = slowExpectancy
		g.have[symbol] = true
		return
	}
	delta := slowExpectancy - g.prior[symbol]
	g.prior[symbol] = slowExpectancy
	if _, ok := g.ema[symbol]; !ok {
		g.ema[symbol] = delta
	} else {
		g.ema[symbol] = g.slopeAlpha*delta + (1-g.slopeAlpha)*g.ema[symbol]
	}
}

func (g *SlopeGate) Name() string { return "expectancy_slope" }
func (g *SlopeGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slope, ok := g.ema[req.Symbol]
	if !ok {
		return 1.0, types.ReasonNone, false
	}
	switch {
	case slope < g.pauseThresh:
		return 0, types.ReasonSlopePaused, false
	case slope < g.halfThresh:
		return 0.5, types.ReasonNone, false
	case slope < g.decayThresh:
		return 0.8, types.ReasonNone, false
	default:
		return 1.0, types.ReasonNone, false
	}
}

// TimeBucket identifies one of the seven UTC-hour session buckets.
type TimeBucket int

const (
	BucketAsiaEarly TimeBucket = iota
	BucketAsiaLate
	BucketLondonOpen
	BucketLondonMain
	BucketUSOverlap
	BucketUSMain
	BucketUSClose
)

// BucketForHour maps a UTC hour [0,24) to its session bucket.
func BucketForHour(hour int) TimeBucket {
	switch {
	case hour >= 0 && hour < 4:
		return BucketAsiaEarly
	case hour >= 4 && hour < 7:
		return BucketAsiaLate
	case hour >= 7 && hour < 9:
		return BucketLondonOpen
	case hour >= 9 && hour < 12:
		return BucketLondonMain
	case hour >= 12 && hour < 16:
		return BucketUSOverlap
	case hour >= 16 && hour < 20:
		return BucketUSMain
	default:
		return BucketUSClose
	}
}

// SessionQualityGate implements the time-bucket quality gate. Gate 5.
type SessionQualityGate struct {
	mu      sync.Mutex
	buckets map[TimeBucket]*sessionBucketState
}

type sessionBucketState struct {
	baselineHaveEMA bool
	baselineEMA     float64
	badStreak       int
	lastRatio       float64
}

func NewSessionQualityGate() *SessionQualityGate {
	return &SessionQualityGate{buckets: make(map[TimeBucket]*sessionBucketState)}
}

func (g *SessionQualityGate) bucketLocked(b TimeBucket) *sessionBucketState {
	s, ok := g.buckets[b]
	if !ok {
		s = &sessionBucketState{}
		g.buckets[b] = s
	}
	return s
}

// ObserveSessionExpectancy folds in a closed session's realised expectancy
// for its UTC-hour bucket, updating the baseline and bad-session streak.
func (g *SessionQualityGate) ObserveSessionExpectancy(utcHour int, expectancy float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := BucketForHour(utcHour)
	s := g.bucketLocked(b)

	if !s.baselineHaveEMA {
		s.baselineEMA = expectancy
		s.baselineHaveEMA = true
	}
	if s.baselineEMA > 0 {
		s.lastRatio = expectancy / s.baselineEMA
	} else {
		s.lastRatio = 1.0
	}
	bad := s.baselineEMA > 0 && expectancy < 0.4*s.baselineEMA
	if bad {
		s.badStreak++
	} else {
		s.badStreak = 0
	}
	s.baselineEMA = 0.1*expectancy + 0.9*s.baselineEMA
}

func (g *SessionQualityGate) Name() string { return "session_quality" }
func (g *SessionQualityGate) Evaluate(req Request) (float64, types.NoTradeReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.bucketLocked(BucketForHour(req.UTCHour))
	switch {
	case !s.baselineHaveEMA:
		return 1.0, types.ReasonNone, false
	case s.badStreak >= 2:
		return 0, types.ReasonSessionBad, false
	case s.badStreak == 1:
		return 0.5, types.ReasonNone, false
	case s.lastRatio >= 0.85:
		return 1.0, types.ReasonNone, false
	case s.lastRatio >= 0.6:
		return 0.7, types.ReasonNone, false
	default:
		return 0.4, types.ReasonNone, false
	}
}
