package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{"ZANO_NETWORK", "ZANO_DAEMON_URL", "ZANO_WALLET_URL", "ZANO_WALLET_AUTH",
		"ZANO_TRADE_URL", "ZANO_TRADE_TOKEN", "ZANO_LOG_LEVEL", "ZANO_ENABLE_WRITE_TOOLS",
		"ZANO_REQUEST_TIMEOUT", "ZANO_DATA_DIR"} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "zanomcpd v"+Version+"\n", out)
}

func TestCheckAgainstDaemon(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":{"height":321,"max_net_seen_height":322}}`))
	}))
	defer srv.Close()

	out, err := run(t, "check", "--daemon-url", srv.URL, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "height 321 (network 322)")
	assert.Contains(t, out, "wallet  not configured")
}

func TestCheckRejectsRemoteWallet(t *testing.T) {
	isolate(t)
	_, err := run(t, "check", "--wallet-url", "http://10.0.0.5:11212/json_rpc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "zanomcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: testnet\nrequest_timeout: 10s\n"), 0o600))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--timeout", "3s", "--enable-write-tools"}))

	f := &flags{config: path, timeout: 3 * time.Second, enableWrite: true}
	cfg, logger, err := setup(cmd, f)
	require.NoError(t, err)
	defer logger.Sync()

	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.EnableWriteTools)
	assert.Equal(t, "http://127.0.0.1:12211/json_rpc", cfg.DaemonURL)
}
