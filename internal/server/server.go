package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"go.uber.org/zap"
)

// Status is the gateway state reported on /status.
type Status struct {
	Network            string `json:"network"`
	DaemonURL          string `json:"daemon_url"`
	WalletConfigured   bool   `json:"wallet_configured"`
	TradeURL           string `json:"trade_url"`
	TradeAuthenticated bool   `json:"trade_authenticated"`
	WriteTools         bool   `json:"write_tools"`
	Tools              int    `json:"tools"`
	KnownAssets        int    `json:"known_assets"`
}

// GatewayInfo provides read-only access to gateway state for the API.
type GatewayInfo interface {
	Version() string
	Uptime() time.Duration
	Status() Status
	Assets() []amount.Asset
}

// corsMiddleware allows cross-origin requests from admin dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server is the loopback HTTP status API of the gateway.
type Server struct {
	httpSrv *http.Server
	gateway GatewayInfo
	log     *zap.Logger
	bind    string
	port    int
}

// New creates an HTTP server. metrics serves /metrics and may be nil.
func New(bind string, port int, gateway GatewayInfo, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{gateway: gateway, log: logger.Named("api"), bind: bind, port: port}
	mux := http.NewServeMux()
	s.registerRoutes(mux, metrics)

	s.httpSrv = &http.Server{
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start pre-acquires the port and begins serving HTTP requests.
// If the primary port is in use, it falls back to port+1.
// Returns the actual port bound.
func (s *Server) Start() (int, error) {
	addr := net.JoinHostPort(s.bind, fmt.Sprint(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fallbackPort := s.port + 1
		fallbackAddr := net.JoinHostPort(s.bind, fmt.Sprint(fallbackPort))
		ln, err = net.Listen("tcp", fallbackAddr)
		if err != nil {
			return 0, fmt.Errorf("listen on %s and fallback %s: %w", addr, fallbackAddr, err)
		}
		s.log.Warn("using fallback port", zap.Int("port", fallbackPort), zap.Int("primary", s.port))
		s.port = fallbackPort
	}
	if s.port == 0 {
		s.port = ln.Addr().(*net.TCPAddr).Port
	}

	s.log.Info("status API listening", zap.String("addr", net.JoinHostPort(s.bind, fmt.Sprint(s.port))))
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", zap.Error(err))
		}
	}()
	return s.port, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warn("HTTP shutdown", zap.Error(err))
	}
	s.log.Info("status API stopped")
}
