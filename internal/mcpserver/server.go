package mcpserver

import (
	"context"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/rpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Backends are the upstream clients the tools call. Wallet is nil when no
// wallet URL is configured.
type Backends struct {
	Daemon rpc.Caller
	Wallet rpc.Caller
	Trade  *rpc.TradeClient
}

// Options control which tools are exposed.
type Options struct {
	Version     string
	Network     string
	DaemonURL   string
	EnableWrite bool
	Logger      *zap.Logger
}

// MCPServer wraps the MCP protocol server with the Zano tools.
type MCPServer struct {
	server *mcp.Server
	opts   Options
	log    *zap.Logger

	daemon rpc.Caller
	wallet rpc.Caller
	trade  *rpc.TradeClient
	assets *amount.Registry

	toolCount int
}

// New creates an MCP server with every tool the configuration allows.
func New(opts Options, b Backends, assets *amount.Registry) *MCPServer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPServer{
		opts:   opts,
		log:    logger.Named("mcp"),
		daemon: b.Daemon,
		wallet: b.Wallet,
		trade:  b.Trade,
		assets: assets,
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:    "zano-mcp",
				Version: opts.Version,
			},
			&mcp.ServerOptions{
				Instructions: "Zano blockchain gateway. Query the daemon (blocks, transactions, assets, aliases), " +
					"a local wallet (balances, history, transfers, assets, ionic swaps) and the Zano trade DEX. " +
					"Amounts are given in human units (e.g. \"1.5\") and converted with each asset's decimal point.",
			},
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Server exposes the underlying MCP server, e.g. for in-memory transports.
func (s *MCPServer) Server() *mcp.Server {
	return s.server
}

// ToolCount is the number of tools registered.
func (s *MCPServer) ToolCount() int {
	return s.toolCount
}

// Run starts the MCP server on stdio, blocking until the client disconnects.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs one MCP session over t until the peer disconnects or ctx ends.
func (s *MCPServer) Serve(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}
