package governance

import (
	"io"
	"log/slog"
	"testing"

	"cascadecore/internal/risk"
	"cascadecore/pkg/types"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	return Config{DaysForSmall: 7, DaysForNormal: 14, DaysForScaled: 30, DemoteDrawdownR: 3, DailyKillR: 5, WeeklyKillR: 10}
}

// §8 scenario 5: 7 consecutive profitable days promotes Micro -> Small
// exactly once, not continuously.
func TestCapitalRampPromotesAfterConsecutiveProfitableDays(t *testing.T) {
	t.Parallel()
	ramp := risk.NewCapitalRampGate(types.RampMicro)
	c := New(testConfig(), testLogger(), ramp)

	for day := 0; day < 7; day++ {
		c.RecordFillPnL(0.1)
		c.EndOfDay()
	}
	if ramp.Level() != types.RampSmall {
		t.Fatalf("expected promotion to Small after 7 profitable days, got %v", ramp.Level())
	}

	// One more profitable day should NOT promote again immediately — it
	// needs a fresh streak of DaysForNormal at the new level.
	c.RecordFillPnL(0.1)
	c.EndOfDay()
	if ramp.Level() != types.RampSmall {
		t.Fatalf("expected level to stay at Small, got %v (promotion must not be continuous)", ramp.Level())
	}
}

func TestCapitalRampDemotesOnDrawdownAndResetsStreak(t *testing.T) {
	t.Parallel()
	ramp := risk.NewCapitalRampGate(types.RampNormal)
	c := New(testConfig(), testLogger(), ramp)

	for day := 0; day < 3; day++ {
		c.RecordFillPnL(0.1)
		c.EndOfDay()
	}
	c.RecordFillPnL(-4) // exceeds DemoteDrawdownR=3
	c.EndOfDay()

	if ramp.Level() != types.RampSmall {
		t.Fatalf("expected demotion Normal -> Small, got %v", ramp.Level())
	}

	// The profitable streak must have reset: one profitable day shouldn't
	// be enough to re-promote immediately.
	c.RecordFillPnL(0.1)
	c.EndOfDay()
	if ramp.Level() != types.RampSmall {
		t.Fatalf("expected level to remain Small (streak reset by the demotion), got %v", ramp.Level())
	}
}

func TestGlobalKillLatchesOnDailyLoss(t *testing.T) {
	t.Parallel()
	ramp := risk.NewCapitalRampGate(types.RampMicro)
	c := New(testConfig(), testLogger(), ramp)

	if c.GlobalKilled() {
		t.Fatalf("expected no kill initially")
	}
	c.RecordFillPnL(-6) // exceeds DailyKillR=5
	if !c.GlobalKilled() {
		t.Fatalf("expected global kill to latch on daily loss breach")
	}
}
