package refvenue

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"cascadecore/internal/venue"
	"cascadecore/pkg/types"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSendOrderPostsToOrdersEndpoint(t *testing.T) {
	t.Parallel()
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Config{RESTBaseURL: srv.URL}, testLogger())
	err := v.SendOrder(context.Background(), types.OrderRequest{ClientID: "c1", Symbol: "BTC-USD", Side: types.SideBuy, Qty: 1, Price: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/orders" || gotMethod != http.MethodPost {
		t.Fatalf("expected POST /orders, got %s %s", gotMethod, gotPath)
	}
}

func TestSendOrderNon200IsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := New(Config{RESTBaseURL: srv.URL}, testLogger())
	v.http.SetRetryCount(0)
	err := v.SendOrder(context.Background(), types.OrderRequest{ClientID: "c1"})
	if err == nil {
		t.Fatalf("expected error on 500 response")
	}
}

func TestCancelOrderDeletesByClientID(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Config{RESTBaseURL: srv.URL}, testLogger())
	if err := v.CancelOrder(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/orders/c1" {
		t.Fatalf("expected DELETE /orders/c1, got %s", gotPath)
	}
}

func TestDispatchRoutesEventsByType(t *testing.T) {
	t.Parallel()
	v := New(Config{RESTBaseURL: "http://unused"}, testLogger())

	var gotTick types.Tick
	var gotUpdate venue.OrderUpdate
	cb := venue.Callbacks{
		OnTick:        func(tk types.Tick) { gotTick = tk },
		OnOrderUpdate: func(u venue.OrderUpdate) { gotUpdate = u },
	}

	v.dispatch([]byte(`{"event_type":"tick","Symbol":"ETH-USD","Bid":100,"Ask":101}`), cb)
	if gotTick.Symbol != "ETH-USD" {
		t.Fatalf("expected tick dispatch to reach OnTick, got %+v", gotTick)
	}

	v.dispatch([]byte(`{"event_type":"order_update","client_id":"c1","state":"filled","delta_filled_qty":1,"fill_price":100}`), cb)
	if gotUpdate.ClientID != "c1" || gotUpdate.State != types.OrderFilled {
		t.Fatalf("expected order_update dispatch to reach OnOrderUpdate, got %+v", gotUpdate)
	}
}

func TestParseOrderStateUnknownDefaultsToSubmitted(t *testing.T) {
	t.Parallel()
	if got := parseOrderState("garbage"); got != types.OrderSubmitted {
		t.Fatalf("expected unknown state to default to Submitted, got %v", got)
	}
}
