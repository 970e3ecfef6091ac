// Package gateway wires the configuration, backend clients, asset registry,
// MCP server and status API into one process.
package gateway

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/config"
	"github.com/b0ase/path402/apps/zanomcp/internal/db"
	"github.com/b0ase/path402/apps/zanomcp/internal/mcpserver"
	"github.com/b0ase/path402/apps/zanomcp/internal/rpc"
	"github.com/b0ase/path402/apps/zanomcp/internal/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Gateway owns every subsystem of a running zanomcp process.
type Gateway struct {
	cfg       *config.Config
	log       *zap.Logger
	version   string
	startTime time.Time

	assets   *amount.Registry
	store    *db.Store
	registry *prometheus.Registry

	daemon *rpc.DaemonClient
	wallet *rpc.WalletClient
	trade  *rpc.TradeClient

	mcp *mcpserver.MCPServer
	api *server.Server
}

// New builds a gateway from a finalized config. Nothing is started until Run.
func New(cfg *config.Config, logger *zap.Logger, version string) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		cfg:       cfg,
		log:       logger,
		version:   version,
		startTime: time.Now(),
		assets:    amount.NewRegistry(),
		registry:  prometheus.NewRegistry(),
	}

	// 1. Asset registry: configured assets, then the on-disk cache
	for _, a := range cfg.Assets {
		if err := g.assets.Register(a.AssetID, a.Ticker, a.Decimals); err != nil {
			return nil, fmt.Errorf("configured asset %s: %w", a.Ticker, err)
		}
	}
	if cfg.AssetCache {
		g.openCache()
	}

	// 2. Metrics
	g.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := rpc.NewMetricsWithRegistry(g.registry)

	// 3. Backend clients
	opts := rpc.Options{Timeout: cfg.RequestTimeout, Logger: logger, Metrics: metrics}
	g.daemon = rpc.NewDaemonClient(cfg.DaemonURL, opts)
	backends := mcpserver.Backends{Daemon: g.daemon}
	if cfg.WalletEnabled() {
		g.wallet = rpc.NewWalletClient(cfg.Wallet.URL, cfg.Wallet.Auth, opts)
		backends.Wallet = g.wallet
	}
	g.trade = rpc.NewTradeClient(cfg.Trade.URL, cfg.Trade.Token, opts)
	backends.Trade = g.trade

	// 4. MCP server
	g.mcp = mcpserver.New(mcpserver.Options{
		Version:     version,
		Network:     cfg.Network,
		DaemonURL:   cfg.DaemonURL,
		EnableWrite: cfg.EnableWriteTools,
		Logger:      logger,
	}, backends, g.assets)

	// 5. Status API
	if cfg.API.Enabled {
		g.api = server.New(cfg.API.Bind, cfg.API.Port, g,
			promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}), logger)
	}

	logger.Info("gateway created",
		zap.String("network", cfg.Network),
		zap.String("daemon", cfg.DaemonURL),
		zap.Bool("wallet", cfg.WalletEnabled()),
		zap.Bool("trade_authenticated", g.trade.HasToken()),
		zap.Int("tools", g.mcp.ToolCount()),
	)
	return g, nil
}

// openCache opens the asset cache, warms the registry from it and writes
// newly observed assets back. Failures only disable the cache.
func (g *Gateway) openCache() {
	if err := os.MkdirAll(g.cfg.DataDir, 0o700); err != nil {
		g.log.Warn("asset cache disabled", zap.Error(err))
		return
	}
	store, err := db.Open(g.cfg.DBPath(), g.log)
	if err != nil {
		g.log.Warn("asset cache disabled", zap.Error(err))
		return
	}
	g.store = store

	cached, err := store.LoadAssets(g.cfg.Network)
	if err != nil {
		g.log.Warn("loading cached assets", zap.Error(err))
	}
	for _, a := range cached {
		// Configured assets win over cached ones.
		if _, ok := g.assets.Lookup(a.ID); ok {
			continue
		}
		if err := g.assets.Register(a.ID, a.Ticker, a.Decimals); err != nil {
			g.log.Debug("skipping cached asset", zap.String("asset_id", a.ID), zap.Error(err))
		}
	}
	g.log.Info("asset registry warmed", zap.Int("cached", len(cached)), zap.Int("known", g.assets.Len()))

	network := g.cfg.Network
	g.assets.SetObserver(func(a amount.Asset) {
		if err := store.SaveAsset(network, a); err != nil {
			g.log.Warn("caching asset", zap.String("asset_id", a.ID), zap.Error(err))
		}
	})
}

// Run serves MCP on stdio until the client disconnects or ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	return g.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the MCP session over t alongside the status API.
func (g *Gateway) Serve(ctx context.Context, t mcp.Transport) error {
	g.startTime = time.Now()
	if g.cfg.EnableWriteTools {
		g.log.Warn("write tools enabled, fund-moving operations are exposed to the MCP client")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if g.api != nil {
		if _, err := g.api.Start(); err != nil {
			g.log.Warn("status API not started", zap.Error(err))
		} else {
			eg.Go(func() error {
				<-ctx.Done()
				g.api.Stop()
				return nil
			})
		}
	}

	eg.Go(func() error {
		defer cancel()
		g.log.Info("MCP session started")
		err := g.mcp.Serve(ctx, t)
		g.log.Info("MCP session ended")
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return eg.Wait()
}

// Close releases the asset cache.
func (g *Gateway) Close() error {
	return g.store.Close()
}

// CheckResult is what Check learned from the backends.
type CheckResult struct {
	Height        int64
	NetworkHeight int64
	WalletAddress string
}

// Check probes the daemon and, when configured, the wallet concurrently.
func (g *Gateway) Check(ctx context.Context) (CheckResult, error) {
	var res CheckResult
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		raw, err := g.daemon.Call(ctx, "getinfo", nil)
		if err != nil {
			return err
		}
		info := gjson.ParseBytes(raw)
		res.Height = info.Get("height").Int()
		res.NetworkHeight = info.Get("max_net_seen_height").Int()
		return nil
	})
	if g.wallet != nil {
		eg.Go(func() error {
			raw, err := g.wallet.Call(ctx, "getaddress", nil)
			if err != nil {
				return err
			}
			res.WalletAddress = gjson.GetBytes(raw, "address").String()
			return nil
		})
	}
	err := eg.Wait()
	return res, err
}

// --- server.GatewayInfo ---

func (g *Gateway) Version() string       { return g.version }
func (g *Gateway) Uptime() time.Duration { return time.Since(g.startTime) }
func (g *Gateway) Assets() []amount.Asset { return g.assets.Assets() }

func (g *Gateway) Status() server.Status {
	return server.Status{
		Network:            g.cfg.Network,
		DaemonURL:          g.cfg.DaemonURL,
		WalletConfigured:   g.wallet != nil,
		TradeURL:           g.trade.BaseURL(),
		TradeAuthenticated: g.trade.HasToken(),
		WriteTools:         g.cfg.EnableWriteTools,
		Tools:              g.mcp.ToolCount(),
		KnownAssets:        g.assets.Len(),
	}
}

// Registry exposes the asset registry.
func (g *Gateway) Registry() *amount.Registry { return g.assets }

// MCP exposes the MCP server.
func (g *Gateway) MCP() *mcpserver.MCPServer { return g.mcp }
