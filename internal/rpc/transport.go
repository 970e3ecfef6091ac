// Package rpc holds the clients for the three upstream backends: the Zano
// daemon and wallet JSON-RPC endpoints and the trade REST API.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every backend call unless Options.Timeout is set.
const DefaultTimeout = 30 * time.Second

// Options are shared by all backend clients.
type Options struct {
	Timeout    time.Duration
	Logger     *zap.Logger
	Metrics    *Metrics
	HTTPClient *http.Client
}

var errGuardExpired = errors.New("request guard expired")

// timeoutGuard bounds a single backend call. Each call gets its own timer.
type timeoutGuard struct {
	timeout time.Duration
}

// do runs fn under a fresh deadline. fn must bind all network I/O to the
// context it receives so the connection is torn down when the guard fires.
func (g timeoutGuard) do(ctx context.Context, backend string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeoutCause(ctx, g.timeout, errGuardExpired)
	defer cancel()

	err := fn(ctx)
	if err != nil && errors.Is(context.Cause(ctx), errGuardExpired) {
		return &TimeoutError{Backend: backend, Timeout: g.timeout}
	}
	return err
}

// transport posts JSON bodies to one backend.
type transport struct {
	backend string
	client  *http.Client
	guard   timeoutGuard
	log     *zap.Logger
	metrics *Metrics
}

func newTransport(backend string, opts Options) *transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	// A redirect is never followed; the 3xx surfaces as a TransportError.
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &transport{
		backend: backend,
		client:  client,
		guard:   timeoutGuard{timeout: timeout},
		log:     logger,
		metrics: opts.Metrics,
	}
}

// post sends one POST and returns the body of a 2xx response.
func (t *transport) post(ctx context.Context, url, method string, body []byte, header http.Header) ([]byte, error) {
	reqID := uuid.NewString()
	start := time.Now()
	t.metrics.begin(t.backend)

	var out []byte
	err := t.guard.do(ctx, t.backend, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return &TransportError{Backend: t.backend, Err: err}
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return &TransportError{Backend: t.backend, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return &TransportError{Backend: t.backend, StatusCode: resp.StatusCode, Status: statusText(resp)}
		}

		out, err = io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Backend: t.backend, Err: err}
		}
		return nil
	})

	elapsed := time.Since(start)
	t.metrics.observe(t.backend, method, elapsed, err)
	t.log.Debug("backend call",
		zap.String("backend", t.backend),
		zap.String("method", method),
		zap.String("request_id", reqID),
		zap.Duration("elapsed", elapsed),
		zap.String("outcome", Kind(err)),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func statusText(resp *http.Response) string {
	s := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}
