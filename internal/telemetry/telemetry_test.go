package telemetry

import "testing"

func TestIncCascadeDecisionDoesNotPanic(t *testing.T) {
	t.Parallel()
	IncCascadeDecision("BTC-USD", "buy")
	IncRiskGateBlock("regime", "toxic")
	IncOrderFill("BTC-USD", "buy")
	IncDivergencePause("BTC-USD")
	SetExposureR(1.5)
	IncSymbolHashMismatch()
	SetGlobalKill(true)
	SetCapitalRampLevel([]string{"micro", "small", "normal", "scaled"}, "small")
}

func TestIsOriginAllowedEmptyListAllowsAll(t *testing.T) {
	t.Parallel()
	if !isOriginAllowed("https://example.com", nil) {
		t.Fatalf("expected empty allow-list to permit any origin")
	}
	if !isOriginAllowed("", []string{"https://dashboard.local"}) {
		t.Fatalf("expected empty origin (non-browser client) to be permitted")
	}
	if isOriginAllowed("https://evil.example", []string{"https://dashboard.local"}) {
		t.Fatalf("expected origin not on the allow-list to be rejected")
	}
}
