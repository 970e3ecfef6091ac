package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigurationError is a startup configuration problem. The process must
// not start serving when one is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

var loopbackHosts = map[string]bool{
	"127.0.0.1": true,
	"localhost": true,
	"::1":       true,
}

// AssertLocalWalletURL accepts only http(s) URLs whose host is 127.0.0.1,
// localhost or ::1 (bracketed or not, any case).
func AssertLocalWalletURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Field: "wallet.url", Reason: "Invalid ZANO_WALLET_URL: not a valid URL"}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &ConfigurationError{
			Field:  "wallet.url",
			Reason: fmt.Sprintf("Invalid ZANO_WALLET_URL: unsupported protocol %s:", u.Scheme),
		}
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if !loopbackHosts[host] {
		return &ConfigurationError{
			Field: "wallet.url",
			Reason: fmt.Sprintf("Refusing non-local wallet RPC host %q. "+
				"Wallet must be localhost-only (127.0.0.1, localhost, or [::1]).", u.Hostname()),
		}
	}
	return nil
}
