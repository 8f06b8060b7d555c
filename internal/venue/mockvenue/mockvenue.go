// Package mockvenue is an in-memory venue.Venue test double: it records
// submitted orders and lets a test script drive callbacks directly, with no
// network I/O.
package mockvenue

import (
	"context"
	"sync"

	"cascadecore/internal/venue"
	"cascadecore/pkg/types"
)

// Venue is a thread-safe in-memory venue.Venue implementation.
type Venue struct {
	mu          sync.Mutex
	connected   bool
	subscribed  map[string]bool
	sent        []types.OrderRequest
	cancelled   []string
	cb          venue.Callbacks
	sendErr     error
	cancelErr   error
}

// New returns a disconnected mock venue.
func New() *Venue {
	return &Venue{subscribed: make(map[string]bool)}
}

func (v *Venue) Connect(ctx context.Context, cb venue.Callbacks) error {
	v.mu.Lock()
	v.connected = true
	v.cb = cb
	v.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (v *Venue) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = false
	return nil
}

func (v *Venue) Subscribe(ctx context.Context, symbol string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subscribed[symbol] = true
	return nil
}

// SetSendError makes future SendOrder calls fail with err (nil to clear).
func (v *Venue) SetSendError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sendErr = err
}

// SetCancelError makes future CancelOrder calls fail with err (nil to clear).
func (v *Venue) SetCancelError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelErr = err
}

func (v *Venue) SendOrder(ctx context.Context, req types.OrderRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sendErr != nil {
		return v.sendErr
	}
	v.sent = append(v.sent, req)
	return nil
}

func (v *Venue) CancelOrder(ctx context.Context, clientID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancelErr != nil {
		return v.cancelErr
	}
	v.cancelled = append(v.cancelled, clientID)
	return nil
}

// Sent returns every order submitted so far.
func (v *Venue) Sent() []types.OrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.OrderRequest, len(v.sent))
	copy(out, v.sent)
	return out
}

// Cancelled returns every client_id cancelled so far.
func (v *Venue) Cancelled() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.cancelled))
	copy(out, v.cancelled)
	return out
}

// Subscribed reports whether symbol has an active subscription.
func (v *Venue) Subscribed(symbol string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.subscribed[symbol]
}

// PushTick delivers a tick to the connected callback set, if any.
func (v *Venue) PushTick(t types.Tick) {
	v.mu.Lock()
	cb := v.cb
	v.mu.Unlock()
	if cb.OnTick != nil {
		cb.OnTick(t)
	}
}

// PushTrade delivers a trade to the connected callback set, if any.
func (v *Venue) PushTrade(t types.Trade) {
	v.mu.Lock()
	cb := v.cb
	v.mu.Unlock()
	if cb.OnTrade != nil {
		cb.OnTrade(t)
	}
}

// PushDepth delivers a depth update to the connected callback set, if any.
func (v *Venue) PushDepth(d types.DepthUpdate) {
	v.mu.Lock()
	cb := v.cb
	v.mu.Unlock()
	if cb.OnDepth != nil {
		cb.OnDepth(d)
	}
}

// PushLiquidation delivers a liquidation print to the connected callback
// set, if any.
func (v *Venue) PushLiquidation(l types.Liquidation) {
	v.mu.Lock()
	cb := v.cb
	v.mu.Unlock()
	if cb.OnLiquidation != nil {
		cb.OnLiquidation(l)
	}
}

// PushOrderUpdate delivers an order-lifecycle update to the connected
// callback set, if any.
func (v *Venue) PushOrderUpdate(u venue.OrderUpdate) {
	v.mu.Lock()
	cb := v.cb
	v.mu.Unlock()
	if cb.OnOrderUpdate != nil {
		cb.OnOrderUpdate(u)
	}
}
