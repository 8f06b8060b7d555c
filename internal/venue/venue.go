// Package venue defines the wire-protocol boundary (§6): a Venue abstracts
// one exchange/market-data source behind a connect/subscribe/send-order
// surface and a set of typed callbacks, so every layer above it is venue
// agnostic. Concrete adapters live in sibling packages: mockvenue for tests,
// refvenue for a real REST+WebSocket exchange.
package venue

import (
	"context"

	"cascadecore/pkg/types"
)

// OrderUpdate is the venue's report of one order-state change, translated
// from the wire into the fields internal/orders.Manager.Update needs.
type OrderUpdate struct {
	ClientID      string
	State         types.OrderState
	DeltaFilledQty float64
	FillPrice     float64
	TSNanos       int64
}

// Callbacks receives every event a Venue produces. A Venue must not block a
// slow callback against its own read loop — callers are expected to buffer
// or drop per §8 property 5's non-blocking intake discipline; a Venue
// implementation enforces that on its own send side, not here.
type Callbacks struct {
	OnTick        func(types.Tick)
	OnTrade       func(types.Trade)
	OnDepth       func(types.DepthUpdate)
	OnLiquidation func(types.Liquidation)
	OnOrderUpdate func(OrderUpdate)
}

// Venue is one exchange/market-data connection. Connect and Disconnect
// manage the underlying transport; Subscribe adds a symbol to the venue's
// active feed set. SendOrder and CancelOrder are fire-and-forget from the
// caller's perspective — acknowledgement and fill state arrive later via
// Callbacks.OnOrderUpdate.
type Venue interface {
	// Connect establishes the transport and begins invoking cb for every
	// event the venue produces. Blocks until ctx is cancelled or the
	// connection is permanently lost.
	Connect(ctx context.Context, cb Callbacks) error

	// Disconnect tears down the transport. Safe to call even if Connect's
	// context was already cancelled.
	Disconnect() error

	// Subscribe adds symbol to the venue's active market-data feed.
	Subscribe(ctx context.Context, symbol string) error

	// SendOrder submits a new order. The returned error reports only
	// send-side failure (network, rejection of the request shape); the
	// order's actual lifecycle arrives via Callbacks.OnOrderUpdate.
	SendOrder(ctx context.Context, req types.OrderRequest) error

	// CancelOrder requests cancellation of a previously sent order by its
	// client-assigned id.
	CancelOrder(ctx context.Context, clientID string) error
}
