// Package governance implements the governance controller: daily/weekly
// drawdown aggregation, capital-ramp promotion and demotion, and the
// process-wide global kill switch, which latches. Realised PnL arrives per
// closing fill through RecordFillPnL; promotion and demotion run when the
// coordinator's once-a-day governance loop calls EndOfDay.
package governance

import (
	"log/slog"
	"sync"

	"cascadecore/internal/risk"
	"cascadecore/pkg/types"
)

// Config holds the controller's tunables.
type Config struct {
	DaysForSmall      int // profitable days at Micro required to promote to Small
	DaysForNormal     int
	DaysForScaled     int
	DemoteDrawdownR   float64 // a single day's drawdown in R that demotes one level
	DailyKillR        float64 // daily loss in R that triggers a global kill
	WeeklyKillR       float64
}

// Controller aggregates daily/weekly drawdown and drives the capital-ramp
// gate. It is the only writer of the ramp level; "No manual override is
// permitted" per §3.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	ramp   *risk.CapitalRampGate

	mu                sync.Mutex
	profitableStreak  int
	dailyPnLR         float64
	weeklyPnLR        float64
	globalKilled      bool
}

// New builds a governance controller driving the given capital-ramp gate.
func New(cfg Config, logger *slog.Logger, ramp *risk.CapitalRampGate) *Controller {
	return &Controller{cfg: cfg, logger: logger.With("component", "governance"), ramp: ramp}
}

// RecordFillPnL folds a closed fill's PnL (in R) into the running daily and
// weekly aggregates and checks the global-kill thresholds.
func (c *Controller) RecordFillPnL(pnlR float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyPnLR += pnlR
	c.weeklyPnLR += pnlR

	if c.dailyPnLR <= -c.cfg.DailyKillR || c.weeklyPnLR <= -c.cfg.WeeklyKillR {
		if !c.globalKilled {
			c.globalKilled = true
			c.logger.Error("global kill triggered", "daily_pnl_r", c.dailyPnLR, "weekly_pnl_r", c.weeklyPnLR)
		}
	}
}

// GlobalKilled reports whether the governance controller has latched a
// global kill. Once latched it stays latched for the process lifetime —
// recovery requires an operator restart, matching the mode guard's
// one-way-latch discipline (§4's "no manual override").
func (c *Controller) GlobalKilled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.globalKilled
}

// EndOfDay evaluates promotion/demotion exactly once at end-of-day ("Ramp
// level changes only at end-of-day", §4.3) and resets the daily aggregate.
// Promotion requires cfg.DaysFor<Level> consecutive profitable days at the
// current level; any day at or below -DemoteDrawdownR demotes one level and
// resets the streak (§3: "no manual override is permitted" on either path).
func (c *Controller) EndOfDay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	profitable := c.dailyPnLR > 0
	drawdown := c.dailyPnLR <= -c.cfg.DemoteDrawdownR

	level := c.ramp.Level()

	switch {
	case drawdown:
		c.profitableStreak = 0
		if demoted, ok := demoteLevel(level); ok {
			c.ramp.SetLevel(demoted)
			c.logger.Warn("capital ramp demoted", "from", level, "to", demoted, "daily_pnl_r", c.dailyPnLR)
		}
	case profitable:
		c.profitableStreak++
		if promoted, required, ok := c.promotionTarget(level); ok && c.profitableStreak >= required {
			c.ramp.SetLevel(promoted)
			c.profitableStreak = 0
			c.logger.Info("capital ramp promoted", "from", level, "to", promoted)
		}
	default:
		c.profitableStreak = 0
	}

	c.dailyPnLR = 0
}

// WeekEnd resets the weekly aggregate; called by the caller's own weekly
// scheduling (outside this package's concern).
func (c *Controller) WeekEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weeklyPnLR = 0
}

func (c *Controller) promotionTarget(level types.CapitalRampLevel) (types.CapitalRampLevel, int, bool) {
	switch level {
	case types.RampMicro:
		return types.RampSmall, c.cfg.DaysForSmall, true
	case types.RampSmall:
		return types.RampNormal, c.cfg.DaysForNormal, true
	case types.RampNormal:
		return types.RampScaled, c.cfg.DaysForScaled, true
	default:
		return level, 0, false
	}
}

func demoteLevel(level types.CapitalRampLevel) (types.CapitalRampLevel, bool) {
	switch level {
	case types.RampScaled:
		return types.RampNormal, true
	case types.RampNormal:
		return types.RampSmall, true
	case types.RampSmall:
		return types.RampMicro, true
	default:
		return level, false
	}
}
