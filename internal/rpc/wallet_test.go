package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletSendsAccessToken(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(AccessTokenHeader)
		w.Write([]byte(`{"result":{"address":"ZxAbc"}}`))
	}))
	defer srv.Close()

	c := NewWalletClient(srv.URL, "s3cret", testOptions(t))
	raw, err := c.Call(context.Background(), "getaddress", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"ZxAbc"}`, string(raw))
	assert.Equal(t, "s3cret", <-got)
}

func TestWalletWithoutSecretSendsNoToken(t *testing.T) {
	present := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header[http.CanonicalHeaderKey(AccessTokenHeader)]
		present <- ok
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	c := NewWalletClient(srv.URL, "", testOptions(t))
	_, err := c.Call(context.Background(), "getbalance", nil)
	require.NoError(t, err)
	assert.False(t, <-present)
}

func TestWalletErrorsNameTheWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":-7,"message":"WALLET_RPC_ERROR_CODE_NOT_ENOUGH_MONEY"}}`))
	}))
	defer srv.Close()

	c := NewWalletClient(srv.URL, "", testOptions(t))
	_, err := c.Call(context.Background(), "transfer", map[string]any{"fee": 10000000000})
	var rerr *RPCError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, BackendWallet, rerr.Backend)
	assert.Equal(t, "Wallet RPC error: WALLET_RPC_ERROR_CODE_NOT_ENOUGH_MONEY (code: -7)", err.Error())
}
