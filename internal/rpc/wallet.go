package rpc

import (
	"context"
	"encoding/json"
	"net/http"
)

// AccessTokenHeader carries the wallet's shared-secret token.
const AccessTokenHeader = "Zano-Access-Token"

// WalletClient calls a local Zano wallet's JSON-RPC endpoint.
// The URL must already have passed the loopback check in config.
type WalletClient struct {
	rpc    *jsonRPC
	secret string
}

// NewWalletClient creates a client for the wallet at url. An empty secret
// sends no access token.
func NewWalletClient(url, secret string, opts Options) *WalletClient {
	if opts.Logger != nil {
		opts.Logger = opts.Logger.Named("wallet")
	}
	c := &WalletClient{secret: secret}
	c.rpc = &jsonRPC{url: url, t: newTransport(BackendWallet, opts), headers: c.headers}
	return c
}

// Call invokes method with params and returns the raw result member.
func (c *WalletClient) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	return c.rpc.call(ctx, method, params)
}

// URL returns the endpoint this client posts to.
func (c *WalletClient) URL() string { return c.rpc.url }

func (c *WalletClient) headers(body []byte) http.Header {
	if c.secret == "" {
		return nil
	}
	h := http.Header{}
	h.Set(AccessTokenHeader, accessToken(c.secret, body))
	return h
}

// accessToken derives the per-request token from the shared secret and the
// serialized request body.
// TODO: switch to the signed token format once the wallet's --rpc-access-token
// scheme is confirmed; until then the secret is sent as-is.
func accessToken(secret string, _ []byte) string {
	return secret
}
