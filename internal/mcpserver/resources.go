package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/b0ase/path402/apps/zanomcp/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const networkInfoURI = "zano://network/info"

type networkInfo struct {
	Network            string       `json:"network"`
	DaemonURL          string       `json:"daemonUrl"`
	WalletConfigured   bool         `json:"walletConfigured"`
	TradeAuthenticated bool         `json:"tradeAuthenticated"`
	DefaultPorts       config.Ports `json:"defaultPorts"`
	PublicNode         string       `json:"publicNode"`
}

func (s *MCPServer) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         networkInfoURI,
		Name:        "network-info",
		Description: "Current Zano network configuration",
		MIMEType:    "application/json",
	}, s.readNetworkInfo)
}

func (s *MCPServer) readNetworkInfo(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	info := networkInfo{
		Network:            s.opts.Network,
		DaemonURL:          s.opts.DaemonURL,
		WalletConfigured:   s.wallet != nil,
		TradeAuthenticated: s.trade != nil && s.trade.HasToken(),
		DefaultPorts:       config.DefaultPorts(s.opts.Network),
		PublicNode:         config.PublicNode(s.opts.Network),
	}
	text, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      networkInfoURI,
			MIMEType: "application/json",
			Text:     string(text),
		}},
	}, nil
}
