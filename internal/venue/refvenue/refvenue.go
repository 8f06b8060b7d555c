// Package refvenue is a reference venue.Venue adapter over a generic
// REST + WebSocket exchange: orders go out over resty, market data and order
// updates arrive over a gorilla/websocket feed tagged by an "event_type"
// envelope, reconnecting with exponential backoff, with wire shapes
// generalized to the venue package's symbol-agnostic event types.
package refvenue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"cascadecore/internal/venue"
	"cascadecore/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Config addresses and credentials for one venue connection.
type Config struct {
	RESTBaseURL string
	WSURL       string
	APIKey      string
}

// Venue is the reference REST+WebSocket adapter.
type Venue struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger
	limits *rateLimiter

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu      sync.RWMutex
	subscribed map[string]bool
}

// New builds a reference venue adapter. Connect must be called before
// Subscribe/SendOrder/CancelOrder take effect over the wire.
func New(cfg Config, logger *slog.Logger) *Venue {
	httpClient := resty.New().
		SetBaseURL(cfg.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &Venue{
		cfg:        cfg,
		http:       httpClient,
		logger:     logger.With("component", "refvenue"),
		limits:     newRateLimiter(),
		subscribed: make(map[string]bool),
	}
}

// Connect dials the WebSocket feed and reconnects with exponential backoff
// (1s -> 30s) until ctx is cancelled, re-subscribing every tracked symbol on
// each reconnect.
func (v *Venue) Connect(ctx context.Context, cb venue.Callbacks) error {
	backoff := time.Second
	for {
		err := v.connectAndRead(ctx, cb)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (v *Venue) connectAndRead(ctx context.Context, cb venue.Callbacks) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, v.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	v.connMu.Lock()
	v.conn = conn
	v.connMu.Unlock()
	defer func() {
		v.connMu.Lock()
		conn.Close()
		v.conn = nil
		v.connMu.Unlock()
	}()

	if err := v.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	v.logger.Info("venue connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go v.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		v.dispatch(msg, cb)
	}
}

func (v *Venue) dispatch(data []byte, cb venue.Callbacks) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		v.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "tick":
		var t types.Tick
		if err := json.Unmarshal(data, &t); err != nil {
			v.logger.Error("unmarshal tick", "error", err)
			return
		}
		if cb.OnTick != nil {
			cb.OnTick(t)
		}
	case "trade":
		var t types.Trade
		if err := json.Unmarshal(data, &t); err != nil {
			v.logger.Error("unmarshal trade", "error", err)
			return
		}
		if cb.OnTrade != nil {
			cb.OnTrade(t)
		}
	case "depth":
		var d types.DepthUpdate
		if err := json.Unmarshal(data, &d); err != nil {
			v.logger.Error("unmarshal depth", "error", err)
			return
		}
		if cb.OnDepth != nil {
			cb.OnDepth(d)
		}
	case "liquidation":
		var l types.Liquidation
		if err := json.Unmarshal(data, &l); err != nil {
			v.logger.Error("unmarshal liquidation", "error", err)
			return
		}
		if cb.OnLiquidation != nil {
			cb.OnLiquidation(l)
		}
	case "order_update":
		var u wireOrderUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			v.logger.Error("unmarshal order_update", "error", err)
			return
		}
		if cb.OnOrderUpdate != nil {
			cb.OnOrderUpdate(u.toDomain())
		}
	default:
		v.logger.Debug("unknown ws event type", "type", envelope.EventType)
	}
}

type wireOrderUpdate struct {
	ClientID       string  `json:"client_id"`
	State          string  `json:"state"`
	DeltaFilledQty float64 `json:"delta_filled_qty"`
	FillPrice      float64 `json:"fill_price"`
	TSNanos        int64   `json:"ts_nanos"`
}

func (u wireOrderUpdate) toDomain() venue.OrderUpdate {
	return venue.OrderUpdate{
		ClientID:       u.ClientID,
		State:          parseOrderState(u.State),
		DeltaFilledQty: u.DeltaFilledQty,
		FillPrice:      u.FillPrice,
		TSNanos:        u.TSNanos,
	}
}

func parseOrderState(s string) types.OrderState {
	switch s {
	case "acked":
		return types.OrderAcked
	case "partial":
		return types.OrderPartial
	case "filled":
		return types.OrderFilled
	case "cancelled":
		return types.OrderCancelled
	case "rejected":
		return types.OrderRejected
	default:
		return types.OrderSubmitted
	}
}

func (v *Venue) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				v.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (v *Venue) writeJSON(msg interface{}) error {
	v.connMu.Lock()
	defer v.connMu.Unlock()
	if v.conn == nil {
		return fmt.Errorf("venue not connected")
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return v.conn.WriteJSON(msg)
}

func (v *Venue) writeMessage(msgType int, data []byte) error {
	v.connMu.Lock()
	defer v.connMu.Unlock()
	if v.conn == nil {
		return fmt.Errorf("venue not connected")
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return v.conn.WriteMessage(msgType, data)
}

func (v *Venue) resubscribeAll() error {
	v.subMu.RLock()
	symbols := make([]string, 0, len(v.subscribed))
	for s := range v.subscribed {
		symbols = append(symbols, s)
	}
	v.subMu.RUnlock()
	if len(symbols) == 0 {
		return nil
	}
	return v.writeJSON(struct {
		Operation string   `json:"operation"`
		Symbols   []string `json:"symbols"`
	}{Operation: "subscribe", Symbols: symbols})
}

// Subscribe adds symbol to the feed and writes a subscribe frame if
// connected.
func (v *Venue) Subscribe(ctx context.Context, symbol string) error {
	v.subMu.Lock()
	v.subscribed[symbol] = true
	v.subMu.Unlock()
	return v.writeJSON(struct {
		Operation string   `json:"operation"`
		Symbols   []string `json:"symbols"`
	}{Operation: "subscribe", Symbols: []string{symbol}})
}

// Disconnect closes the active WebSocket connection, if any.
func (v *Venue) Disconnect() error {
	v.connMu.Lock()
	defer v.connMu.Unlock()
	if v.conn != nil {
		return v.conn.Close()
	}
	return nil
}

// SendOrder posts a new order over REST.
func (v *Venue) SendOrder(ctx context.Context, req types.OrderRequest) error {
	if err := v.limits.order.wait(ctx); err != nil {
		return fmt.Errorf("send order: rate limit: %w", err)
	}
	resp, err := v.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/orders")
	if err != nil {
		return fmt.Errorf("send order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("send order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelOrder cancels an order by client id over REST.
func (v *Venue) CancelOrder(ctx context.Context, clientID string) error {
	if err := v.limits.cancel.wait(ctx); err != nil {
		return fmt.Errorf("cancel order: rate limit: %w", err)
	}
	resp, err := v.http.R().
		SetContext(ctx).
		Delete("/orders/" + clientID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
