package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/b0ase/path402/apps/zanomcp/internal/config"
	"github.com/b0ase/path402/apps/zanomcp/internal/gateway"
	"github.com/b0ase/path402/apps/zanomcp/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "0.1.0"

type flags struct {
	config      string
	daemonURL   string
	walletURL   string
	walletAuth  string
	tradeURL    string
	tradeToken  string
	network     string
	logLevel    string
	enableWrite bool
	timeout     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "zanomcpd",
		Short:         "MCP server for the Zano daemon, wallet and trade DEX",
		Long:          "zanomcpd serves Model Context Protocol tools over stdio, bridging to a Zano daemon, an optional local wallet and the Zano trade API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "path to zanomcp.yaml (default ~/.zanomcp/zanomcp.yaml)")
	pf.StringVar(&f.daemonURL, "daemon-url", "", "daemon JSON-RPC URL")
	pf.StringVar(&f.walletURL, "wallet-url", "", "wallet JSON-RPC URL (loopback only)")
	pf.StringVar(&f.walletAuth, "wallet-auth", "", "wallet RPC access secret")
	pf.StringVar(&f.tradeURL, "trade-url", "", "trade API base URL")
	pf.StringVar(&f.tradeToken, "trade-token", "", "trade API session token")
	pf.StringVar(&f.network, "network", "", "mainnet or testnet")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&f.enableWrite, "enable-write-tools", false, "expose fund-moving tools")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-request backend timeout")

	root.AddCommand(newCheckCmd(f), newVersionCmd())
	return root
}

func newCheckCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the configured daemon and wallet, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, f)
			if err != nil {
				return err
			}
			defer logger.Sync()
			cfg.AssetCache = false

			g, err := gateway.New(cfg, logger, Version)
			if err != nil {
				return err
			}
			defer g.Close()

			res, err := g.Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "daemon  %s  height %d (network %d)\n", cfg.DaemonURL, res.Height, res.NetworkHeight)
			if cfg.WalletEnabled() {
				fmt.Fprintf(out, "wallet  %s  address %s\n", cfg.Wallet.URL, res.WalletAddress)
			} else {
				fmt.Fprintln(out, "wallet  not configured")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "zanomcpd v%s\n", Version)
		},
	}
}

func runServe(cmd *cobra.Command, f *flags) error {
	cfg, logger, err := setup(cmd, f)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// stdout carries the MCP stream, so the banner goes to stderr.
	fmt.Fprintf(os.Stderr, "\033[38;5;208mzanomcpd\033[0m \033[2mv%s  %s\033[0m\n", Version, cfg.Network)
	logger.Info("starting", zap.String("data_dir", cfg.DataDir))

	g, err := gateway.New(cfg, logger, Version)
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := g.Run(ctx); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
		return err
	}
	logger.Info("goodbye")
	return nil
}

// setup loads .env, the config file, the environment and changed flags, in
// that order of increasing precedence, then builds the logger.
func setup(cmd *cobra.Command, f *flags) (*config.Config, *zap.Logger, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	path := f.config
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".zanomcp", "zanomcp.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Finalize(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("daemon-url") {
		cfg.DaemonURL = f.daemonURL
	}
	if changed("wallet-url") {
		cfg.Wallet.URL = f.walletURL
	}
	if changed("wallet-auth") {
		cfg.Wallet.Auth = f.walletAuth
	}
	if changed("trade-url") {
		cfg.Trade.URL = f.tradeURL
	}
	if changed("trade-token") {
		cfg.Trade.Token = f.tradeToken
	}
	if changed("network") {
		cfg.Network = f.network
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("enable-write-tools") {
		cfg.EnableWriteTools = f.enableWrite
	}
	if changed("timeout") {
		cfg.RequestTimeout = f.timeout
	}
}
