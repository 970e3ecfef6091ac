package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Networks and their well-known endpoints.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"

	DefaultTradeURL = "https://api.trade.zano.org"
)

// Ports are the default local RPC ports of a network.
type Ports struct {
	Daemon int `json:"daemon"`
	Wallet int `json:"wallet"`
}

var defaultPorts = map[string]Ports{
	Mainnet: {Daemon: 11211, Wallet: 11212},
	Testnet: {Daemon: 12211, Wallet: 12212},
}

var publicNodes = map[string]string{
	Mainnet: "http://37.27.100.59:10500/json_rpc",
	Testnet: "http://37.27.100.59:10505/json_rpc",
}

// DefaultPorts returns the default ports for network, falling back to mainnet.
func DefaultPorts(network string) Ports {
	if p, ok := defaultPorts[network]; ok {
		return p
	}
	return defaultPorts[Mainnet]
}

// PublicNode returns the public daemon endpoint for network.
func PublicNode(network string) string {
	if n, ok := publicNodes[network]; ok {
		return n
	}
	return publicNodes[Mainnet]
}

// DefaultDaemonURL is the local daemon endpoint for network.
func DefaultDaemonURL(network string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/json_rpc", DefaultPorts(network).Daemon)
}

type WalletConfig struct {
	URL  string `yaml:"url" validate:"omitempty,url"`
	Auth string `yaml:"auth"`
}

type TradeConfig struct {
	URL   string `yaml:"url" validate:"required,url"`
	Token string `yaml:"token"`
}

type AssetConfig struct {
	AssetID  string `yaml:"asset_id" validate:"required,len=64,hexadecimal"`
	Ticker   string `yaml:"ticker" validate:"required"`
	Decimals int    `yaml:"decimals" validate:"min=0,max=18"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port" validate:"min=0,max=65535"`
	Bind    string `yaml:"bind"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type Config struct {
	Network          string        `yaml:"network" validate:"oneof=mainnet testnet"`
	DaemonURL        string        `yaml:"daemon_url" validate:"required,url"`
	Wallet           WalletConfig  `yaml:"wallet"`
	Trade            TradeConfig   `yaml:"trade"`
	RequestTimeout   time.Duration `yaml:"request_timeout" validate:"gt=0"`
	EnableWriteTools bool          `yaml:"enable_write_tools"`
	DataDir          string        `yaml:"data_dir"`
	AssetCache       bool          `yaml:"asset_cache"`
	Assets           []AssetConfig `yaml:"assets" validate:"dive"`
	API              APIConfig     `yaml:"api"`
	Log              LogConfig     `yaml:"log"`
}

// DefaultConfig returns a mainnet config pointing at a local daemon.
// DaemonURL is left empty so a later network override can pick its port;
// Finalize fills it in.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Network: Mainnet,
		Trade: TradeConfig{
			URL: DefaultTradeURL,
		},
		RequestTimeout: 30 * time.Second,
		DataDir:        filepath.Join(home, ".zanomcp"),
		AssetCache:     true,
		API: APIConfig{
			Port: 8412,
			Bind: "127.0.0.1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file and merges it with defaults and the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromBytes parses YAML config from bytes and merges with defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays ZANO_* environment variables on top of config values.
func (c *Config) applyEnv() {
	if v := os.Getenv("ZANO_NETWORK"); v != "" {
		c.Network = v
	}
	if v := os.Getenv("ZANO_DAEMON_URL"); v != "" {
		c.DaemonURL = v
	}
	if v := os.Getenv("ZANO_WALLET_URL"); v != "" {
		c.Wallet.URL = v
	}
	if v := os.Getenv("ZANO_WALLET_AUTH"); v != "" {
		c.Wallet.Auth = v
	}
	if v := os.Getenv("ZANO_TRADE_URL"); v != "" {
		c.Trade.URL = v
	}
	if v := os.Getenv("ZANO_TRADE_TOKEN"); v != "" {
		c.Trade.Token = v
	}
	if v := os.Getenv("ZANO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ZANO_ENABLE_WRITE_TOOLS"); v != "" {
		c.EnableWriteTools = v == "true"
	}
	if v := os.Getenv("ZANO_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("ZANO_DATA_DIR"); v != "" {
		c.DataDir = expandHome(v)
	}
}

// Finalize fills derived defaults and validates the config. A wallet URL
// that is not loopback-only is rejected here, before any client exists.
func (c *Config) Finalize() error {
	c.Network = strings.ToLower(strings.TrimSpace(c.Network))
	if c.DaemonURL == "" {
		c.DaemonURL = DefaultDaemonURL(c.Network)
	}

	if err := validator.New().Struct(c); err != nil {
		return fieldError(err)
	}
	if c.Wallet.URL != "" {
		if err := AssertLocalWalletURL(c.Wallet.URL); err != nil {
			return err
		}
	}
	return nil
}

// WalletEnabled reports whether wallet-backed tools should be registered.
func (c *Config) WalletEnabled() bool {
	return c.Wallet.URL != ""
}

// DBPath returns the full path to the asset cache database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "zanomcp.db")
}

func expandHome(p string) string {
	if len(p) > 0 && p[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[1:])
	}
	return p
}

func fieldError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ConfigurationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &ConfigurationError{
		Field:  strings.TrimPrefix(fe.Namespace(), "Config."),
		Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
	}
}
