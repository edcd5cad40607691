package asset

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultDecimals applies to symbols the registry does not know.
const DefaultDecimals uint8 = 18

// Registry indexes assets by chain and symbol.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[uint64]map[string]*Asset
	chainID  uint64 // chain used by symbol-only lookups
}

// NewRegistry creates an empty registry whose symbol lookups target chainID.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[uint64]map[string]*Asset),
		chainID:  chainID,
	}
}

// Register adds an asset. Registering the same id twice panics.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.byID[a.ID()] = a

	chain := r.bySymbol[a.ChainID()]
	if chain == nil {
		chain = make(map[string]*Asset)
		r.bySymbol[a.ChainID()] = chain
	}
	chain[a.Symbol()] = a
}

// ChainID returns the chain used by Lookup.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Get retrieves an asset by id.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Lookup resolves a symbol on the registry's chain.
func (r *Registry) Lookup(symbol string) (*Asset, bool) {
	return r.LookupOnChain(symbol, r.chainID)
}

// LookupOnChain resolves a symbol on a specific chain.
func (r *Registry) LookupOnChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[chainID][strings.ToUpper(symbol)]
	return a, ok
}

// IsStable reports whether symbol is a known stablecoin on any chain.
func (r *Registry) IsStable(symbol string) bool {
	sym := strings.ToUpper(symbol)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, chain := range r.bySymbol {
		if a, ok := chain[sym]; ok && a.IsStable() {
			return true
		}
	}
	return false
}

// Decimals returns the decimals of symbol on the registry's chain, or
// DefaultDecimals when unknown.
func (r *Registry) Decimals(symbol string) uint8 {
	if a, ok := r.Lookup(symbol); ok {
		return a.Decimals()
	}
	return DefaultDecimals
}

// PriceID returns the external price feed id for symbol on any chain.
func (r *Registry) PriceID(symbol string) (string, bool) {
	sym := strings.ToUpper(symbol)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.bySymbol[r.chainID][sym]; ok && a.PriceID() != "" {
		return a.PriceID(), true
	}
	for _, chain := range r.bySymbol {
		if a, ok := chain[sym]; ok && a.PriceID() != "" {
			return a.PriceID(), true
		}
	}
	return "", false
}

// Symbols returns the sorted symbols registered on the registry's chain.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bySymbol[r.chainID]))
	for sym := range r.bySymbol[r.chainID] {
		out = append(out, sym)
	}
	slices.Sort(out)
	return out
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
