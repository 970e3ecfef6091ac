package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names used in error messages, logs and metric labels.
const (
	BackendDaemon = "Daemon RPC"
	BackendWallet = "Wallet RPC"
	BackendTrade  = "Trade API"
)

// ErrAuthRequired is returned by an authenticated trade call made without a
// session token. No request is sent in that case.
var ErrAuthRequired = errors.New("trade API authentication required: set ZANO_TRADE_TOKEN or call dex_authenticate first")

// TransportError is a failure to get a usable HTTP response: a non-2xx
// status (StatusCode set), or a network/decoding failure (StatusCode 0, Err set).
type TransportError struct {
	Backend    string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s HTTP %d: %s", e.Backend, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s request failed: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError means the request guard fired before the backend answered.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Backend, e.Timeout)
}

// Is lets errors.Is(err, context.DeadlineExceeded) match a guard timeout.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// RPCError is a JSON-RPC error object returned by the daemon or wallet.
type RPCError struct {
	Backend string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s error: %s (code: %d)", e.Backend, e.Message, e.Code)
}

// APIError is a trade API response with success != true.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error: %s", BackendTrade, e.Message)
}

// Kind classifies err for metric labels and log fields.
func Kind(err error) string {
	var (
		terr *TransportError
		tmo  *TimeoutError
		rerr *RPCError
		aerr *APIError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &tmo):
		return "timeout"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.As(err, &rerr):
		return "rpc_error"
	case errors.As(err, &aerr):
		return "api_error"
	case errors.As(err, &terr):
		if terr.StatusCode != 0 {
			return "http_status"
		}
		return "transport"
	}
	return "error"
}
