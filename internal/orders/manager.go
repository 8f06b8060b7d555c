// Package orders implements the client-side order lifecycle manager (§4.5):
// one ManagedOrder per client_id, forward-only state transitions, slippage
// and spread-capture accounting on fill, and killAll cancellation.
package orders

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"cascadecore/pkg/types"
)

// ErrBackwardTransition is returned when a venue update would move an
// order's state backward along the permitted partial order (§8 property 4).
var ErrBackwardTransition = errors.New("orders: backward state transition rejected")

// SlippageSample is recorded for the risk authority's slippage governor on
// every fill.
type SlippageSample struct {
	Symbol      string
	MidAtSubmit float64
	FillPrice   float64
	IsBuy       bool
}

// SpreadCaptureSample is recorded for the spread-capture tracker on every
// fill of a maker order.
type SpreadCaptureSample struct {
	Symbol       string
	MidAtSubmit  float64
	FillPrice    float64
	QuotedSpread float64
	IsBuy        bool
}

// Manager owns the live set of ManagedOrders, single-writer per symbol.
type Manager struct {
	mu     sync.Mutex
	orders map[string]*types.ManagedOrder // client_id -> order

	onFill            func(types.Fill)
	onSlippageSample  func(SlippageSample)
	onSpreadSample    func(SpreadCaptureSample)
}

// NewManager builds an order lifecycle manager. Callbacks may be nil.
func NewManager(onFill func(types.Fill), onSlippage func(SlippageSample), onSpread func(SpreadCaptureSample)) *Manager {
	return &Manager{
		orders:           make(map[string]*types.ManagedOrder),
		onFill:           onFill,
		onSlippageSample: onSlippage,
		onSpreadSample:   onSpread,
	}
}

// NewClientID mints a fresh externally-visible order tag.
func NewClientID() string {
	return uuid.NewString()
}

// Submit registers a new order, transitioning Idle -> Submitted.
func (m *Manager) Submit(req types.OrderRequest, midAtSubmit float64, submitTSNanos int64) *types.ManagedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := &types.ManagedOrder{
		ClientID:      req.ClientID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty,
		Price:         req.Price,
		Type:          req.Type,
		State:         types.OrderSubmitted,
		MidAtSubmit:   midAtSubmit,
		SubmitTSNanos: submitTSNanos,
	}
	m.orders[req.ClientID] = o
	return o
}

// Update applies a venue state-transition update (ack, partial fill, fill,
// cancel, reject). deltaFilledQty/fillPrice are the quantity filled by this
// update and its price; pass 0 for updates with no fill. Returns ErrBackwardTransition if next
// would regress the order's state, and is a no-op (idempotent) if this
// exact update was already applied (same next state and cumulative filled
// qty).
func (m *Manager) Update(clientID string, next types.OrderState, deltaFilledQty, fillPrice float64, tsNanos int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[clientID]
	if !ok {
		return fmt.Errorf("orders: update for unknown client_id %q", clientID)
	}

	if next == o.State && deltaFilledQty == 0 {
		return nil // idempotent re-delivery of the same update
	}

	if !o.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrBackwardTransition, o.State, next, clientID)
	}

	if deltaFilledQty > 0 {
		newFilled := o.FilledQty + deltaFilledQty
		if o.AvgFillPrice == 0 {
			o.AvgFillPrice = fillPrice
		} else {
			o.AvgFillPrice = (o.AvgFillPrice*o.FilledQty + fillPrice*deltaFilledQty) / newFilled
		}
		o.FilledQty = newFilled

		if m.onSlippageSample != nil {
			m.onSlippageSample(SlippageSample{Symbol: o.Symbol, MidAtSubmit: o.MidAtSubmit, FillPrice: fillPrice, IsBuy: o.Side == types.SideBuy})
		}
		if m.onSpreadSample != nil && o.Type == types.OrderLimit {
			m.onSpreadSample(SpreadCaptureSample{Symbol: o.Symbol, MidAtSubmit: o.MidAtSubmit, FillPrice: fillPrice, QuotedSpread: o.QuotedSpread, IsBuy: o.Side == types.SideBuy})
		}
		if m.onFill != nil {
			m.onFill(types.Fill{ClientID: clientID, Symbol: o.Symbol, Side: o.Side, Qty: deltaFilledQty, Price: fillPrice, MidAtSubmit: o.MidAtSubmit, TSNanos: tsNanos})
		}
	}

	switch next {
	case types.OrderAcked:
		o.AckTSNanos = tsNanos
	case types.OrderFilled, types.OrderCancelled, types.OrderRejected:
		o.TermTSNanos = tsNanos
	}
	o.State = next

	if next.Terminal() {
		delete(m.orders, clientID)
	}
	return nil
}

// KillAll returns the client_ids of every non-terminal order, for the
// caller to issue venue cancels against.
func (m *Manager) KillAll() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.orders))
	for id, o := range m.orders {
		if !o.State.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns a copy of the order for client_id, if still live.
func (m *Manager) Get(clientID string) (types.ManagedOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[clientID]
	if !ok {
		return types.ManagedOrder{}, false
	}
	return *o, true
}
