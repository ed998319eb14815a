package rpc

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Client is the public façade over a Connection: callers pass and receive
// ordinary Go values, never raw frames. Subscription handlers are the one
// exception to plain Go values: they receive the notification payload as
// json.RawMessage.
type Client struct {
	conn *Connection
}

// NewClient dials cfg.URL and returns a ready Client. The dial itself is
// asynchronous — Call/Subscribe block on a per-request basis and surface a
// transport error immediately if the connection is not in a state that can
// accept new work.
func NewClient(cfg Config, logger *zap.Logger, metrics *Metrics) (*Client, error) {
	conn, err := Dial(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Call marshals params, submits method as a JSON-RPC request, waits for the
// correlated response (or ctx cancellation, or the request timeout, or a
// connection failure), and unmarshals the result into out. out may be nil
// when the caller doesn't need the result value.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	encoded, err := marshalParams(params)
	if err != nil {
		return protocolErr("failed to marshal params for %s: %v", method, err)
	}

	raw, err := c.conn.Submit(ctx, method, encoded, c.conn.cfg.DefaultRequestTimeout)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocolErr("failed to decode result for %s: %v", method, err)
	}
	return nil
}

// CallTimeout is Call with an explicit per-request timeout overriding the
// connection's default, for callers issuing slow administrative methods.
func (c *Client) CallTimeout(ctx context.Context, method string, params any, out any, timeout time.Duration) error {
	encoded, err := marshalParams(params)
	if err != nil {
		return protocolErr("failed to marshal params for %s: %v", method, err)
	}
	raw, err := c.conn.Submit(ctx, method, encoded, timeout)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocolErr("failed to decode result for %s: %v", method, err)
	}
	return nil
}

// Handler is the caller-facing notification callback: it receives the
// notification's undecoded params.result JSON, not the whole frame.
type Handler func(payload json.RawMessage)

// Subscribe issues subscribeMethod (conventionally "eth_subscribe") with
// params, registers handler against the returned subscription id, and
// returns that id for a matching Unsubscribe call.
func (c *Client) Subscribe(ctx context.Context, subscribeMethod string, params any, handler Handler) (string, error) {
	encoded, err := marshalParams(params)
	if err != nil {
		return "", protocolErr("failed to marshal params for %s: %v", subscribeMethod, err)
	}
	return c.conn.Subscribe(ctx, subscribeMethod, encoded, Listener(handler))
}

// Unsubscribe issues unsubscribeMethod (conventionally "eth_unsubscribe")
// with subscriptionID and removes its listener regardless of outcome.
func (c *Client) Unsubscribe(ctx context.Context, unsubscribeMethod, subscriptionID string) error {
	return c.conn.Unsubscribe(ctx, unsubscribeMethod, subscriptionID)
}

// Stats returns a snapshot of the underlying connection's counters.
func (c *Client) Stats() ConnectionStats {
	return c.conn.Stats()
}

// State returns the underlying connection's current lifecycle state.
func (c *Client) State() ConnectionState {
	return c.conn.State()
}

// Close tears the connection down, failing every pending call, and blocks
// until the connection's event loop has fully exited.
func (c *Client) Close() error {
	return c.conn.Close()
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(params)
}
