package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// mockNode serves canned JSON-RPC replies keyed by method.
func mockNode(t *testing.T, replies map[string]string) (*httptest.Server, func() []request) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		reply, ok := replies[req.Method]
		if !ok {
			http.Error(w, "no such method", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []request {
		mu.Lock()
		defer mu.Unlock()
		return append([]request(nil), seen...)
	}
}

func testOptions(t *testing.T) Options {
	return Options{Timeout: 2 * time.Second, Logger: zaptest.NewLogger(t)}
}

func TestDaemonCallReturnsResult(t *testing.T) {
	srv, seen := mockNode(t, map[string]string{
		"getheight": `{"jsonrpc":"2.0","id":0,"result":{"height":5}}`,
	})
	c := NewDaemonClient(srv.URL, testOptions(t))

	raw, err := c.Call(context.Background(), "getheight", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"height":5}`, string(raw))

	require.Len(t, seen(), 1)
	req := seen()[0]
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, 0, req.ID)
	assert.Equal(t, "getheight", req.Method)
	assert.NotNil(t, req.Params, "nil params must be sent as {}")
	assert.Empty(t, req.Params)
}

func TestDaemonCallAs(t *testing.T) {
	srv, _ := mockNode(t, map[string]string{
		"getheight": `{"result":{"height":3180000}}`,
	})
	c := NewDaemonClient(srv.URL, testOptions(t))

	res, err := CallAs[struct {
		Height uint64 `json:"height"`
	}](context.Background(), c, "getheight", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3180000, res.Height)
}

func TestDaemonCallForwardsParams(t *testing.T) {
	srv, seen := mockNode(t, map[string]string{
		"getblockheaderbyheight": `{"result":{"block_header":{"height":7}}}`,
	})
	c := NewDaemonClient(srv.URL, testOptions(t))

	_, err := c.Call(context.Background(), "getblockheaderbyheight", map[string]any{"height": 7})
	require.NoError(t, err)
	assert.EqualValues(t, 7, seen()[0].Params["height"])
}

func TestDaemonRPCError(t *testing.T) {
	srv, _ := mockNode(t, map[string]string{
		"getinfo": `{"jsonrpc":"2.0","id":0,"error":{"code":-1,"message":"x"}}`,
	})
	c := NewDaemonClient(srv.URL, testOptions(t))

	_, err := c.Call(context.Background(), "getinfo", nil)
	var rerr *RPCError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, -1, rerr.Code)
	assert.Equal(t, "x", rerr.Message)
	assert.Equal(t, "Daemon RPC error: x (code: -1)", err.Error())
}

func TestDaemonMissingResultIsNull(t *testing.T) {
	srv, _ := mockNode(t, map[string]string{"store": `{"jsonrpc":"2.0","id":0}`})
	c := NewDaemonClient(srv.URL, testOptions(t))

	raw, err := c.Call(context.Background(), "store", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestDaemonHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewDaemonClient(srv.URL, testOptions(t))

	_, err := c.Call(context.Background(), "getinfo", nil)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 500, terr.StatusCode)
	assert.Equal(t, "Daemon RPC HTTP 500: Internal Server Error", err.Error())
	assert.Equal(t, "http_status", Kind(err))
}

func TestDaemonMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()
	c := NewDaemonClient(srv.URL, testOptions(t))

	_, err := c.Call(context.Background(), "getinfo", nil)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.StatusCode)
}

func TestRedirectIsNotFollowed(t *testing.T) {
	var targetHits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetHits.Add(1)
		w.Write([]byte(`{"result":{}}`))
	}))
	defer target.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	c := NewDaemonClient(srv.URL, testOptions(t))
	_, err := c.Call(context.Background(), "getinfo", nil)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusTemporaryRedirect, terr.StatusCode)
	assert.Zero(t, targetHits.Load())
}

func TestTimeoutGuardFires(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewDaemonClient(srv.URL, Options{Timeout: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)})

	start := time.Now()
	_, err := c.Call(context.Background(), "getinfo", nil)
	elapsed := time.Since(start)

	var tmo *TimeoutError
	require.ErrorAs(t, err, &tmo)
	assert.Equal(t, 50*time.Millisecond, tmo.Timeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, "timeout", Kind(err))
}

func TestConnectionRefusedIsNotTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewDaemonClient("http://"+addr+"/json_rpc", testOptions(t))
	_, err = c.Call(context.Background(), "getinfo", nil)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.StatusCode)
	var tmo *TimeoutError
	assert.False(t, errors.As(err, &tmo))
	assert.Equal(t, "transport", Kind(err))
}

func TestCallerCancellationIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewDaemonClient(srv.URL, testOptions(t))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Call(ctx, "getinfo", nil)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuardTimersAreIndependent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte(`{"result":1}`))
	}))
	defer srv.Close()
	c := NewDaemonClient(srv.URL, Options{Timeout: 500 * time.Millisecond})

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := c.Call(context.Background(), "getheight", nil)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestMetricsRecordOutcome(t *testing.T) {
	srv, _ := mockNode(t, map[string]string{
		"getheight": `{"result":{"height":1}}`,
		"getinfo":   `{"error":{"code":-2,"message":"busy"}}`,
	})
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	c := NewDaemonClient(srv.URL, Options{Metrics: m})

	_, _ = c.Call(context.Background(), "getheight", nil)
	_, _ = c.Call(context.Background(), "getinfo", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(BackendDaemon, "getheight", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(BackendDaemon, "getinfo", "rpc_error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight.WithLabelValues(BackendDaemon)))
}
