package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/config"
	"github.com/b0ase/path402/apps/zanomcp/internal/db"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// rpcBackend answers JSON-RPC methods with canned result objects.
func rpcBackend(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		res, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":` + res + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, daemonURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DaemonURL = daemonURL
	cfg.DataDir = t.TempDir()
	cfg.RequestTimeout = 2 * time.Second
	require.NoError(t, cfg.Finalize())
	return cfg
}

func TestCheck(t *testing.T) {
	daemon := rpcBackend(t, map[string]string{"getinfo": `{"height":10,"max_net_seen_height":12}`})
	wallet := rpcBackend(t, map[string]string{"getaddress": `{"address":"ZxWallet"}`})

	cfg := testConfig(t, daemon.URL)
	cfg.Wallet.URL = wallet.URL
	g, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g.Close()

	res, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CheckResult{Height: 10, NetworkHeight: 12, WalletAddress: "ZxWallet"}, res)

	st := g.Status()
	assert.True(t, st.WalletConfigured)
	assert.Equal(t, config.Mainnet, st.Network)
	assert.Equal(t, config.DefaultTradeURL, st.TradeURL)
	assert.Equal(t, g.MCP().ToolCount(), st.Tools)
}

func TestCheckDaemonDown(t *testing.T) {
	daemon := rpcBackend(t, nil)
	g, err := New(testConfig(t, daemon.URL), zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method not found")
}

func TestConfiguredAssetsRegistered(t *testing.T) {
	id := strings.Repeat("a1", 32)
	cfg := testConfig(t, "http://127.0.0.1:1/json_rpc")
	cfg.Assets = []config.AssetConfig{{AssetID: id, Ticker: "CFG", Decimals: 5}}

	g, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, 5, g.Registry().DecimalsOf(id))
	assert.Equal(t, 2, g.Status().KnownAssets)
}

func TestAssetCacheRoundTrip(t *testing.T) {
	id := strings.Repeat("b2", 32)
	cfg := testConfig(t, "http://127.0.0.1:1/json_rpc")

	g, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	require.NoError(t, g.Registry().Register(id, "OBS", 7))
	require.NoError(t, g.Close())

	store, err := db.Open(cfg.DBPath(), nil)
	require.NoError(t, err)
	cached, err := store.LoadAssets(cfg.Network)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Contains(t, cached, amount.Asset{ID: id, Ticker: "OBS", Decimals: 7})

	g2, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g2.Close()
	a, ok := g2.Registry().Lookup(id)
	require.True(t, ok, "registry warmed from cache")
	assert.Equal(t, "OBS", a.Ticker)
}

func TestAssetCacheDisabled(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/json_rpc")
	cfg.AssetCache = false

	g, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	require.NoError(t, g.Registry().Register(strings.Repeat("c3", 32), "X", 1))
	assert.NoError(t, g.Close())
	assert.NoFileExists(t, cfg.DBPath())
}

func TestServeSession(t *testing.T) {
	daemon := rpcBackend(t, map[string]string{"getheight": `{"height":77}`})
	g, err := New(testConfig(t, daemon.URL), zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g.Close()

	st, ct := mcp.NewInMemoryTransports()
	done := make(chan error, 1)
	go func() { done <- g.Serve(context.Background(), st) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_height", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	assert.Equal(t, "Current blockchain height: 77", res.Content[0].(*mcp.TextContent).Text)

	require.NoError(t, cs.Close())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the client disconnected")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/json_rpc")
	cfg.API.Enabled = true
	cfg.API.Port = 0
	g, err := New(cfg, zaptest.NewLogger(t), "test")
	require.NoError(t, err)
	defer g.Close()

	st, _ := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, st) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
