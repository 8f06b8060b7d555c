package mode

import (
	"errors"
	"testing"

	"cascadecore/pkg/types"
)

func TestLatchAndMode(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	g.Latch(types.ModeShadow)
	if g.Mode() != types.ModeShadow {
		t.Fatalf("Mode() = %v, want Shadow", g.Mode())
	}
	if !g.IsShadow() || g.IsLive() || g.IsReplay() {
		t.Fatalf("predicate mismatch for Shadow mode")
	}
}

func TestLatchTwicePanics(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	g.Latch(types.ModeLive)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second Latch call")
		}
	}()
	g.Latch(types.ModeShadow)
}

func TestModeBeforeLatchPanics(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading Mode before Latch")
		}
	}()
	_ = g.Mode()
}

func TestRequireBlocksWrongMode(t *testing.T) {
	t.Parallel()
	g := NewGuard()
	g.Latch(types.ModeReplay)

	err := g.Require("send_live_order", types.ModeLive)
	var mv *ErrModeViolation
	if !errors.As(err, &mv) {
		t.Fatalf("expected ErrModeViolation, got %v", err)
	}

	if err := g.Require("load_replay_file", types.ModeReplay); err != nil {
		t.Fatalf("Require should allow replay-mode op in replay mode: %v", err)
	}
}
