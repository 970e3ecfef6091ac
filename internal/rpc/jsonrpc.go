package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Caller is implemented by the daemon and wallet clients.
type Caller interface {
	Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)
}

type request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *errorObject    `json:"error"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// jsonRPC is the JSON-RPC 2.0 call path shared by the daemon and wallet.
type jsonRPC struct {
	url     string
	t       *transport
	headers func(body []byte) http.Header
}

func (c *jsonRPC) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: 0, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}

	var header http.Header
	if c.headers != nil {
		header = c.headers(body)
	}

	raw, err := c.t.post(ctx, c.url, method, body, header)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &TransportError{Backend: c.t.backend, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != nil {
		return nil, &RPCError{Backend: c.t.backend, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result, nil
}

// CallAs invokes method and decodes the result into T.
func CallAs[T any](ctx context.Context, c Caller, method string, params map[string]any) (T, error) {
	var out T
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}
