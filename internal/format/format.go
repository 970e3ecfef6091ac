// Package format holds the display helpers shared by the MCP tool handlers.
package format

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp renders a unix timestamp as "2006-01-02 15:04:05 UTC", or "N/A" for zero.
func Timestamp(ts int64) string {
	if ts == 0 {
		return "N/A"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// Difficulty scales a difficulty value to TH, GH, MH or KH.
func Difficulty(d float64) string {
	switch {
	case d >= 1e12:
		return fmt.Sprintf("%.2f TH", d/1e12)
	case d >= 1e9:
		return fmt.Sprintf("%.2f GH", d/1e9)
	case d >= 1e6:
		return fmt.Sprintf("%.2f MH", d/1e6)
	case d >= 1e3:
		return fmt.Sprintf("%.2f KH", d/1e3)
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// Hashrate scales a hashes-per-second value.
func Hashrate(h float64) string {
	switch {
	case h >= 1e9:
		return fmt.Sprintf("%.2f GH/s", h/1e9)
	case h >= 1e6:
		return fmt.Sprintf("%.2f MH/s", h/1e6)
	case h >= 1e3:
		return fmt.Sprintf("%.2f KH/s", h/1e3)
	}
	return fmt.Sprintf("%.2f H/s", h)
}

// ShortHash keeps the first and last n characters of a long hash.
func ShortHash(hash string, n int) string {
	if len(hash) <= n*2 {
		return hash
	}
	return hash[:n] + "..." + hash[len(hash)-n:]
}

// Prefix truncates s to n characters and appends "..." when it was longer.
func Prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// YesNo renders a boolean as "Yes" or "No".
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
