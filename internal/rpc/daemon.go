package rpc

import (
	"context"
	"encoding/json"
)

// DaemonClient calls the Zano daemon's /json_rpc endpoint.
type DaemonClient struct {
	rpc *jsonRPC
}

// NewDaemonClient creates a client for the daemon at url.
func NewDaemonClient(url string, opts Options) *DaemonClient {
	if opts.Logger != nil {
		opts.Logger = opts.Logger.Named("daemon")
	}
	return &DaemonClient{rpc: &jsonRPC{url: url, t: newTransport(BackendDaemon, opts)}}
}

// Call invokes method with params and returns the raw result member.
func (c *DaemonClient) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	return c.rpc.call(ctx, method, params)
}

// URL returns the endpoint this client posts to.
func (c *DaemonClient) URL() string { return c.rpc.url }
