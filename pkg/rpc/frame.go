package rpc

import (
	"encoding/json"
	"strconv"
)

// requestFrame is the wire shape of a JSON-RPC call (§6). id is carried as
// a string-encoded number, matching the framing this transport targets.
type requestFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// responseFrame is the wire shape of a JSON-RPC reply. At most one of
// Result/Error is populated.
type responseFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
	ID      string          `json:"id,omitempty"`
}

type rpcErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// notificationFrame is the wire shape of an unsolicited eth_subscription
// push: no id, a method name, and a params object naming the subscription.
type notificationFrame struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  notificationParamsBody `json:"params"`
}

type notificationParamsBody struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// rawFrame is decoded first to discriminate response vs notification
// without committing to either shape: a frame carrying "id" is a response,
// one carrying "method" (and no "id") is a notification.
type rawFrame struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func buildRequestFrame(id int64, method string, params json.RawMessage) ([]byte, error) {
	f := requestFrame{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      strconv.FormatInt(id, 10),
	}
	return json.Marshal(f)
}

// classifyFrame reports whether data is a response (carrying a non-null
// "id") or a notification (carrying "method" and no "id"), per §4.5.
func classifyFrame(data []byte) (isResponse bool, isNotification bool, err error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return false, false, err
	}
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		return true, false, nil
	}
	if raw.Method != "" {
		return false, true, nil
	}
	return false, false, nil
}
