package mockvenue

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"cascadecore/internal/venue"
	"cascadecore/pkg/types"
)

// waitConnected blocks until a Connect running in another goroutine has
// registered its callbacks.
func waitConnected(v *Venue) {
	for {
		v.mu.Lock()
		ok := v.connected
		v.mu.Unlock()
		if ok {
			return
		}
		runtime.Gosched()
	}
}

func TestConnectInvokesCallbacksUntilCancelled(t *testing.T) {
	t.Parallel()
	v := New()
	ctx, cancel := context.WithCancel(context.Background())

	var gotTick types.Tick
	done := make(chan struct{})
	go func() {
		v.Connect(ctx, venue.Callbacks{OnTick: func(tk types.Tick) { gotTick = tk }})
		close(done)
	}()

	waitConnected(v)
	v.PushTick(types.Tick{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	cancel()
	<-done

	if gotTick.Symbol != "BTC-USD" {
		t.Fatalf("expected callback to receive pushed tick, got %+v", gotTick)
	}
}

func TestSubscribeTracksSymbols(t *testing.T) {
	t.Parallel()
	v := New()
	if v.Subscribed("ETH-USD") {
		t.Fatalf("expected no subscription before Subscribe")
	}
	if err := v.Subscribe(context.Background(), "ETH-USD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Subscribed("ETH-USD") {
		t.Fatalf("expected Subscribe to register the symbol")
	}
}

func TestSendOrderRecordsAndCanFail(t *testing.T) {
	t.Parallel()
	v := New()
	req := types.OrderRequest{ClientID: "c1", Symbol: "BTC-USD", Side: types.SideBuy, Qty: 1, Price: 100}
	if err := v.SendOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Sent()) != 1 || v.Sent()[0].ClientID != "c1" {
		t.Fatalf("expected order to be recorded")
	}

	v.SetSendError(errors.New("boom"))
	if err := v.SendOrder(context.Background(), req); err == nil {
		t.Fatalf("expected injected error")
	}
}

func TestCancelOrderRecords(t *testing.T) {
	t.Parallel()
	v := New()
	if err := v.CancelOrder(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Cancelled()) != 1 || v.Cancelled()[0] != "c1" {
		t.Fatalf("expected cancellation to be recorded")
	}
}

func TestPushOrderUpdateReachesCallback(t *testing.T) {
	t.Parallel()
	v := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got venue.OrderUpdate
	doneConnect := make(chan struct{})
	go func() {
		v.Connect(ctx, venue.Callbacks{OnOrderUpdate: func(u venue.OrderUpdate) { got = u }})
		close(doneConnect)
	}()

	waitConnected(v)
	v.PushOrderUpdate(venue.OrderUpdate{ClientID: "c1", State: types.OrderAcked})
	cancel()
	<-doneConnect

	if got.ClientID != "c1" || got.State != types.OrderAcked {
		t.Fatalf("expected order update to reach callback, got %+v", got)
	}
}
