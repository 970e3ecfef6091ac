package amount

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// NativeAssetID is the asset id of ZANO itself.
	NativeAssetID = "d6329b5b1f7c0805b5c345f4957554002a2f557845f64d7645dae0e051a6498a"
	// NativeTicker is the ticker of the native asset.
	NativeTicker = "ZANO"
	// NativeDecimals is the decimal point of the native asset.
	NativeDecimals = 12
)

// Asset is the display metadata for one asset id.
type Asset struct {
	ID       string `json:"asset_id"`
	Ticker   string `json:"ticker"`
	Decimals int    `json:"decimals"`
}

// Registry maps asset ids to their ticker and decimals.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	assets   map[string]Asset
	observer func(Asset)
}

// NewRegistry returns a registry holding only the native asset.
func NewRegistry() *Registry {
	r := &Registry{assets: make(map[string]Asset)}
	r.assets[NativeAssetID] = Asset{ID: NativeAssetID, Ticker: NativeTicker, Decimals: NativeDecimals}
	return r
}

// SetObserver installs fn to be called after every successful Register.
// fn runs on the caller's goroutine, outside the registry lock.
func (r *Registry) SetObserver(fn func(Asset)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Register adds or replaces the metadata for id. Last write wins.
func (r *Registry) Register(id, ticker string, decimals int) error {
	if id == "" {
		return fmt.Errorf("register asset: empty id")
	}
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("register asset %s: decimals %d out of range", id, decimals)
	}
	a := Asset{ID: id, Ticker: ticker, Decimals: decimals}

	r.mu.Lock()
	prev, existed := r.assets[id]
	r.assets[id] = a
	fn := r.observer
	r.mu.Unlock()

	if fn != nil && (!existed || prev != a) {
		fn(a)
	}
	return nil
}

// Lookup returns the metadata for id, if known.
func (r *Registry) Lookup(id string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return a, ok
}

// DecimalsOf returns the decimals for id, falling back to the native decimals.
func (r *Registry) DecimalsOf(id string) int {
	if a, ok := r.Lookup(id); ok {
		return a.Decimals
	}
	return NativeDecimals
}

// Assets returns a snapshot of every registered asset, ordered by ticker then id.
func (r *Registry) Assets() []Asset {
	r.mu.RLock()
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// FormatAssetAmount renders an atomic amount of asset id for display.
// Unknown assets are shown as the raw atomic value tagged with a short id.
func (r *Registry) FormatAssetAmount(atomic, id string) string {
	a, ok := r.Lookup(id)
	if !ok {
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		return fmt.Sprintf("%s (asset: %s...)", atomic, short)
	}
	return FormatAtomic(atomic, a.Decimals) + " " + a.Ticker
}

// FormatNative renders an atomic amount of the native asset, e.g. "0.01 ZANO".
func FormatNative(atomic string) string {
	return FormatAtomic(atomic, NativeDecimals) + " " + NativeTicker
}
