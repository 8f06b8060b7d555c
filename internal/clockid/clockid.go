// Package clockid is the single source of time and identity for the
// decision core: a monotonic nanosecond clock and a monotonic event-id
// minter. Wall-clock time is never used for ordering or correctness, only
// for human-facing display fields (see internal/mode for the Replay-mode
// restriction on reading it at all).
package clockid

import (
	"hash/fnv"
	"sync/atomic"
	"time"
)

// Clock is a monotonic nanosecond time source. In Live/Shadow mode it wraps
// time.Now's monotonic reading; in Replay mode the caller must use a Clock
// seeded from the causal log instead of NewSystemClock (see internal/mode).
type Clock interface {
	NowNanos() int64
}

// SystemClock reads the runtime's monotonic clock via time.Now, as the
// offset from an epoch captured at construction. One SystemClock's readings
// increase monotonically; two SystemClocks have different epochs, so their
// readings are not comparable with each other.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock returns a Clock backed by the real monotonic clock. Must not
// be constructed in Replay mode.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) NowNanos() int64 {
	return time.Since(c.epoch).Nanoseconds()
}

// ReplayClock replays a fixed sequence of timestamps recorded in the causal
// log, guaranteeing Replay mode never touches the wall clock. Advance must be
// called once per replayed event, in log order.
type ReplayClock struct {
	current int64
}

// NewReplayClock starts a ReplayClock at the given initial timestamp.
func NewReplayClock(startNanos int64) *ReplayClock {
	return &ReplayClock{current: startNanos}
}

func (c *ReplayClock) NowNanos() int64 { return c.current }

// Advance sets the replay clock to the next event's recorded timestamp. ts
// must be non-decreasing; callers violating this have an invariant bug in
// the recorded log itself.
func (c *ReplayClock) Advance(ts int64) { c.current = ts }

// IDMinter hands out process-wide monotonic EventIDs starting at 1 (0 is
// reserved to mean "no parent", i.e. a root/external event).
type IDMinter struct {
	counter atomic.Uint64
}

// NewIDMinter returns a minter whose first Next() call returns 1.
func NewIDMinter() *IDMinter {
	return &IDMinter{}
}

// Next returns the next monotonic id. Safe for concurrent use: every caller
// across every symbol worker shares one minter so the recorder sees a single
// global total order, per the no-hidden-globals design note (the minter
// itself is the one sanctioned piece of shared mutable state here, alongside
// the mode guard and causal recorder).
func (m *IDMinter) Next() uint64 {
	return m.counter.Add(1)
}

// FNV1a32 computes the 32-bit FNV-1a hash of name, the mandatory symbol_hash
// routing key stamped onto every event at intake.
func FNV1a32(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
