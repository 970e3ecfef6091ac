package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// TradeClient calls the Zano trade REST API. All endpoints are POST with a
// JSON body and reply with {"success": bool, "data": ..., "error": ...}.
type TradeClient struct {
	baseURL string
	t       *transport

	mu    sync.RWMutex
	token string
}

// NewTradeClient creates a client for baseURL. token may be empty until
// SetToken is called.
func NewTradeClient(baseURL, token string, opts Options) *TradeClient {
	if opts.Logger != nil {
		opts.Logger = opts.Logger.Named("trade")
	}
	return &TradeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		t:       newTransport(BackendTrade, opts),
		token:   token,
	}
}

// SetToken replaces the session token used by authenticated calls.
func (c *TradeClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// HasToken reports whether a session token is set.
func (c *TradeClient) HasToken() bool {
	return c.currentToken() != ""
}

func (c *TradeClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root with any trailing slash removed.
func (c *TradeClient) BaseURL() string { return c.baseURL }

// Post sends data to path and returns the data member of a successful reply.
// With requireAuth the session token is merged into the body as "token",
// overriding any caller-supplied key of that name.
func (c *TradeClient) Post(ctx context.Context, path string, data map[string]any, requireAuth bool) (json.RawMessage, error) {
	payload := data
	if requireAuth {
		token := c.currentToken()
		if token == "" {
			return nil, ErrAuthRequired
		}
		payload = make(map[string]any, len(data)+1)
		maps.Copy(payload, data)
		payload["token"] = token
	}
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", path, err)
	}

	raw, err := c.t.post(ctx, c.baseURL+path, path, body, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, &TransportError{Backend: BackendTrade, Err: fmt.Errorf("decode response: invalid JSON")}
	}

	reply := gjson.ParseBytes(raw)
	if !truthy(reply.Get("success")) {
		return nil, &APIError{Message: failureMessage(reply)}
	}

	out := reply.Get("data")
	if !out.Exists() {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(out.Raw), nil
}

// PostAs posts and decodes the data member into T.
func PostAs[T any](ctx context.Context, c *TradeClient, path string, data map[string]any, requireAuth bool) (T, error) {
	var out T
	raw, err := c.Post(ctx, path, data, requireAuth)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s data: %w", path, err)
	}
	return out, nil
}

// failureMessage picks the error member, then the data member, then a fixed fallback.
func failureMessage(reply gjson.Result) string {
	for _, key := range []string{"error", "data"} {
		if v := reply.Get(key); truthy(v) {
			if v.Type == gjson.String {
				return v.Str
			}
			return v.Raw
		}
	}
	return "Unknown error"
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return false
}
