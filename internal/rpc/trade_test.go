package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPost struct {
	Path string
	Body map[string]any
}

func mockTradeAPI(t *testing.T, reply string) (*httptest.Server, *atomic.Int32, func() capturedPost) {
	t.Helper()
	var (
		hits atomic.Int32
		mu   sync.Mutex
		last capturedPost
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		last = capturedPost{Path: r.URL.Path, Body: body}
		mu.Unlock()
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, func() capturedPost {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestTradePostReturnsData(t *testing.T) {
	srv, _, last := mockTradeAPI(t, `{"success":true,"data":{"id":1,"rate":0.5}}`)
	c := NewTradeClient(srv.URL+"/", "", testOptions(t))

	raw, err := c.Post(context.Background(), "/api/dex/get-pair", map[string]any{"id": 1}, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"rate":0.5}`, string(raw))
	assert.Equal(t, "/api/dex/get-pair", last().Path)
	assert.NotContains(t, last().Body, "token")
}

func TestTradeBaseURLTrailingSlash(t *testing.T) {
	c := NewTradeClient("https://api.trade.zano.org/", "", Options{})
	assert.Equal(t, "https://api.trade.zano.org", c.BaseURL())
}

func TestTradeAuthRequiredSendsNothing(t *testing.T) {
	srv, hits, _ := mockTradeAPI(t, `{"success":true,"data":null}`)
	c := NewTradeClient(srv.URL, "", testOptions(t))

	_, err := c.Post(context.Background(), "/api/orders/cancel", map[string]any{"orderId": 3}, true)
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Zero(t, hits.Load())
	assert.Equal(t, "auth_required", Kind(err))
}

func TestTradeTokenMerge(t *testing.T) {
	srv, _, last := mockTradeAPI(t, `{"success":true,"data":{"ok":1}}`)
	c := NewTradeClient(srv.URL, "", testOptions(t))
	c.SetToken("T")
	assert.True(t, c.HasToken())

	data := map[string]any{"pairId": 7, "token": "caller"}
	_, err := c.Post(context.Background(), "/api/orders/get-user-page", data, true)
	require.NoError(t, err)

	body := last().Body
	assert.Equal(t, "T", body["token"])
	assert.EqualValues(t, 7, body["pairId"])
	assert.Equal(t, "caller", data["token"], "caller map must not be mutated")
}

func TestTradeAPIErrorMessage(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{`{"success":false,"error":"bad pair"}`, "bad pair"},
		{`{"success":false,"data":"fallback msg"}`, "fallback msg"},
		{`{"success":false,"error":"","data":{"code":4}}`, `{"code":4}`},
		{`{"success":false}`, "Unknown error"},
		{`{"data":{"id":1}}`, `{"id":1}`},
	}
	for _, tc := range cases {
		srv, _, _ := mockTradeAPI(t, tc.reply)
		c := NewTradeClient(srv.URL, "", testOptions(t))

		_, err := c.Post(context.Background(), "/api/dex/get-pair", nil, false)
		var aerr *APIError
		require.ErrorAs(t, err, &aerr, tc.reply)
		assert.Equal(t, tc.want, aerr.Message)
	}
}

func TestTradeAPIErrorText(t *testing.T) {
	srv, _, _ := mockTradeAPI(t, `{"success":false,"error":"bad pair"}`)
	c := NewTradeClient(srv.URL, "", testOptions(t))
	_, err := c.Post(context.Background(), "/api/dex/get-pair", nil, false)
	assert.EqualError(t, err, "Trade API error: bad pair")
}

func TestTradeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewTradeClient(srv.URL, "", testOptions(t))

	_, err := c.Post(context.Background(), "/api/orders/get-page", nil, false)
	assert.EqualError(t, err, "Trade API HTTP 502: Bad Gateway")
}

func TestTradeNilDataSendsEmptyObject(t *testing.T) {
	srv, _, last := mockTradeAPI(t, `{"success":true,"data":[]}`)
	c := NewTradeClient(srv.URL, "", testOptions(t))

	_, err := c.Post(context.Background(), "/api/orders/get-page", nil, false)
	require.NoError(t, err)
	assert.NotNil(t, last().Body)
	assert.Empty(t, last().Body)
}

func TestTradePostAs(t *testing.T) {
	srv, _, _ := mockTradeAPI(t, `{"success":true,"data":"session-token"}`)
	c := NewTradeClient(srv.URL, "", testOptions(t))

	tok, err := PostAs[string](context.Background(), c, "/api/auth", map[string]any{"neverExpires": true}, false)
	require.NoError(t, err)
	assert.Equal(t, "session-token", tok)
}

func TestTradeSetTokenConcurrent(t *testing.T) {
	c := NewTradeClient("http://127.0.0.1:1", "", Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.SetToken("a") }()
		go func() { defer wg.Done(); _ = c.HasToken() }()
	}
	wg.Wait()
	assert.True(t, c.HasToken())
}
