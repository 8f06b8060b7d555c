package shadow

import "time"

// MakerHealth tracks one symbol's maker-mode viability via EWMAs of fill
// rate, adverse-selection rate, and maker expectancy. Breaching any of the
// three thresholds triggers a 15-minute cooldown during which maker mode is
// unavailable for the symbol (§4.8).
type MakerHealth struct {
	alpha           float64
	minFillRate     float64
	maxAdverseRate  float64
	cooldown        time.Duration

	haveFillRate bool
	fillRate     float64
	haveAdverse  bool
	adverseRate  float64
	haveExpect   bool
	expectancy   float64

	cooldownUntilNanos int64
}

// NewMakerHealth builds a maker-health tracker with the given EWMA
// smoothing and thresholds.
func NewMakerHealth(alpha, minFillRate, maxAdverseRate float64) *MakerHealth {
	return &MakerHealth{
		alpha: alpha, minFillRate: minFillRate, maxAdverseRate: maxAdverseRate,
		cooldown: 15 * time.Minute,
	}
}

// Observe folds in one maker attempt's outcome: whether it filled, whether
// the fill was adversely selected, and its realised expectancy in bps.
func (h *MakerHealth) Observe(filled bool, adverse bool, expectancyBps float64, nowNanos int64) {
	fillSample := 0.0
	if filled {
		fillSample = 1.0
	}
	if !h.haveFillRate {
		h.fillRate, h.haveFillRate = fillSample, true
	} else {
		h.fillRate = h.alpha*fillSample + (1-h.alpha)*h.fillRate
	}

	if filled {
		adverseSample := 0.0
		if adverse {
			adverseSample = 1.0
		}
		if !h.haveAdverse {
			h.adverseRate, h.haveAdverse = adverseSample, true
		} else {
			h.adverseRate = h.alpha*adverseSample + (1-h.alpha)*h.adverseRate
		}

		if !h.haveExpect {
			h.expectancy, h.haveExpect = expectancyBps, true
		} else {
			h.expectancy = h.alpha*expectancyBps + (1-h.alpha)*h.expectancy
		}
	}

	if h.fillRate < h.minFillRate || h.adverseRate > h.maxAdverseRate || (h.haveExpect && h.expectancy < 0) {
		h.cooldownUntilNanos = nowNanos + h.cooldown.Nanoseconds()
	}
}

// Available reports whether maker mode is currently usable for this symbol.
func (h *MakerHealth) Available(nowNanos int64) bool {
	return nowNanos >= h.cooldownUntilNanos
}
