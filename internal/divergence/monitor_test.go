package divergence

import "testing"

func TestNoPauseBelowMinTrades(t *testing.T) {
	t.Parallel()
	m := NewMonitor(200, 10, 5, 3, 1, 5)
	for i := 0; i < 9; i++ {
		m.ObserveShadow(0)
		if m.ObserveLive(100) {
			t.Fatalf("should not evaluate before min_trades samples accumulate")
		}
	}
}

func TestPausesOnExcessDivergence(t *testing.T) {
	t.Parallel()
	m := NewMonitor(200, 5, 5, 100, 1, 3)
	for i := 0; i < 5; i++ {
		m.ObserveShadow(0)
		m.ObserveLive(0)
	}
	for i := 0; i < 5; i++ {
		m.ObserveShadow(0)
	}
	paused := false
	for i := 0; i < 5; i++ {
		paused = m.ObserveLive(50) // way beyond max_divergence=5
	}
	if !paused || !m.Paused() {
		t.Fatalf("expected monitor to pause on excess divergence")
	}
}

func TestAutomaticRecoveryAfterSustainedConvergence(t *testing.T) {
	t.Parallel()
	// Small ring capacity so a run of converged samples fully displaces the
	// diverged history within the test's iteration budget.
	m := NewMonitor(3, 3, 5, 100, 1, 3)
	for i := 0; i < 3; i++ {
		m.ObserveShadow(0)
		m.ObserveLive(50) // trigger pause
	}
	if !m.Paused() {
		t.Fatalf("expected pause before recovery sequence")
	}

	for i := 0; i < 6; i++ {
		m.ObserveShadow(0)
		m.ObserveLive(0) // converge, flushing the diverged ring contents
	}
	if m.Paused() {
		t.Fatalf("expected automatic recovery after recovery_fills of sustained convergence")
	}
}

func TestManualResetClearsPause(t *testing.T) {
	t.Parallel()
	m := NewMonitor(200, 3, 5, 100, 1, 3)
	for i := 0; i < 3; i++ {
		m.ObserveShadow(0)
		m.ObserveLive(50)
	}
	if !m.Paused() {
		t.Fatalf("expected pause")
	}
	m.Reset()
	if m.Paused() {
		t.Fatalf("expected manual reset to clear the pause")
	}
}
