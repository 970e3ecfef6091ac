// Package amount converts between atomic integer amounts and human-readable
// decimal strings, and tracks the asset metadata needed to do so.
package amount

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest decimal point an asset may declare.
const MaxDecimals = 18

// humanAmount is a plain non-negative decimal: digits with at most one dot.
// Signs and exponents are rejected.
var humanAmount = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// AtomicToHuman renders an atomic amount with the given number of decimals.
// Trailing fractional zeros are dropped; a zero fraction yields the bare whole part.
func AtomicToHuman(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// HumanToAtomic converts a decimal string into an atomic amount.
// Fraction digits beyond decimals are truncated, never rounded.
func HumanToAtomic(amount string, decimals int) (string, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return "", fmt.Errorf("invalid amount %q: empty", amount)
	}
	if decimals < 0 || decimals > MaxDecimals {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}
	if strings.HasPrefix(s, "-") {
		return "", fmt.Errorf("invalid amount %q: negative", amount)
	}
	if !humanAmount.MatchString(s) {
		return "", fmt.Errorf("invalid amount %q: expected digits with an optional fraction", amount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt().String(), nil
}

// ParseAtomic parses a base-10 atomic amount as it appears on the wire.
func ParseAtomic(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid atomic amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("invalid atomic amount %q: negative", s)
	}
	return v, nil
}

// FormatAtomic is AtomicToHuman for a wire string. Unparseable input is
// returned unchanged.
func FormatAtomic(s string, decimals int) string {
	v, err := ParseAtomic(s)
	if err != nil {
		return s
	}
	return AtomicToHuman(v, decimals)
}
