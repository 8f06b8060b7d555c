package signal

import "sync"

// Bridge is the central block-until table connecting leader and follower
// symbols (§9 design note: modelled as one mutex-guarded table shared by
// every symbol worker rather than mutual references between per-symbol lane
// objects). A leader firing a
// cascade blocks its followers for follower_block_ns; the arbiter consults
// Blocked before evaluating a leader tick.
type Bridge struct {
	mu        sync.Mutex
	blockedTo map[string]int64 // symbol -> ts_until nanos
	followers map[string][]string
}

// NewBridge builds an empty signal bridge. follows maps a leader symbol to
// the follower symbols it suppresses on fire.
func NewBridge(follows map[string][]string) *Bridge {
	b := &Bridge{
		blockedTo: make(map[string]int64),
		followers: make(map[string][]string, len(follows)),
	}
	for leader, followers := range follows {
		cp := make([]string, len(followers))
		copy(cp, followers)
		b.followers[leader] = cp
	}
	return b
}

// Block marks every follower of leader as blocked until nowNanos+blockNanos.
// Called by the arbiter on cascade fire.
func (b *Bridge) Block(leader string, nowNanos, blockNanos int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until := nowNanos + blockNanos
	for _, f := range b.followers[leader] {
		if cur, ok := b.blockedTo[f]; !ok || until > cur {
			b.blockedTo[f] = until
		}
	}
}

// Blocked reports whether symbol is currently suppressed at nowNanos.
func (b *Bridge) Blocked(symbol string, nowNanos int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.blockedTo[symbol]
	if !ok {
		return false
	}
	if nowNanos >= until {
		delete(b.blockedTo, symbol)
		return false
	}
	return true
}
