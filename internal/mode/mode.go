// Package mode implements the process-wide run-mode guard: one of the two
// sanctioned singletons in the system (the other is internal/causal's
// Recorder). The mode is set once at startup from config and is logically
// immutable thereafter; any attempt to perform a mode-restricted operation
// from the wrong mode is an invariant violation (fatal, per §7).
package mode

import (
	"fmt"
	"sync/atomic"

	"cascadecore/pkg/types"
)

// ErrModeViolation is returned (and should be treated as fatal by callers in
// cmd/) when an operation is attempted in a mode that forbids it.
type ErrModeViolation struct {
	Op      string
	Current types.RunMode
	Allowed []types.RunMode
}

func (e *ErrModeViolation) Error() string {
	return fmt.Sprintf("mode violation: %s not permitted in %s mode (allowed: %v)", e.Op, e.Current, e.Allowed)
}

// Guard holds the latched run mode. Zero value is not ready for use; call
// Latch exactly once before any component reads Mode().
type Guard struct {
	mode    atomic.Int32
	latched atomic.Bool
}

// NewGuard returns an unlatched Guard.
func NewGuard() *Guard { return &Guard{} }

// Latch sets the process run mode. It may be called exactly once; a second
// call panics, since mode is fixed at startup and must never mutate while
// the process is running.
func (g *Guard) Latch(m types.RunMode) {
	if !g.latched.CompareAndSwap(false, true) {
		panic("mode: Latch called more than once")
	}
	g.mode.Store(int32(m))
}

// Mode returns the latched run mode. Panics if called before Latch, since
// every component that reads it should exist only after startup has latched
// a mode.
func (g *Guard) Mode() types.RunMode {
	if !g.latched.Load() {
		panic("mode: Mode() read before Latch")
	}
	return types.RunMode(g.mode.Load())
}

// Require returns an *ErrModeViolation if the current mode is not one of
// allowed. Callers performing a mode-restricted operation (e.g. reading the
// wall clock, sending a live order, loading a replay file) should call this
// first and treat a non-nil result as fatal.
func (g *Guard) Require(op string, allowed ...types.RunMode) error {
	cur := g.Mode()
	for _, a := range allowed {
		if cur == a {
			return nil
		}
	}
	return &ErrModeViolation{Op: op, Current: cur, Allowed: allowed}
}

// IsLive, IsShadow, IsReplay are convenience predicates over Mode().
func (g *Guard) IsLive() bool   { return g.Mode() == types.ModeLive }
func (g *Guard) IsShadow() bool { return g.Mode() == types.ModeShadow }
func (g *Guard) IsReplay() bool { return g.Mode() == types.ModeReplay }
