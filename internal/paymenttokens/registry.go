// Package paymenttokens knows which ERC-20 tokens the distributor accepts and
// how many decimals each one uses.
package paymenttokens

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type PaymentToken struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

var defaults = []PaymentToken{
	{Address: common.HexToAddress("0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4"), Symbol: "USDC", Decimals: 6},
	{Address: common.HexToAddress("0xf55BEC9cafDbE8730f096Aa55dad6D22d44099Df"), Symbol: "USDT", Decimals: 6},
}

// Defaults returns a copy of the built-in token list.
func Defaults() []PaymentToken {
	out := make([]PaymentToken, len(defaults))
	copy(out, defaults)
	return out
}

// Registry is keyed by lower-cased address. Entries never change once added.
type Registry struct {
	mu     sync.RWMutex
	byAddr map[string]PaymentToken
}

// NewRegistry holds the defaults plus any extra tokens. Extras with an
// address already present are ignored.
func NewRegistry(extra ...PaymentToken) *Registry {
	r := &Registry{byAddr: make(map[string]PaymentToken, len(defaults)+len(extra))}
	for _, t := range defaults {
		r.byAddr[key(t.Address)] = t
	}
	for _, t := range extra {
		r.add(t)
	}
	return r
}

func (r *Registry) add(t PaymentToken) bool {
	k := key(t.Address)
	if _, ok := r.byAddr[k]; ok {
		return false
	}
	r.byAddr[k] = t
	return true
}

// Add registers a token learned at runtime, reporting whether it was new.
func (r *Registry) Add(t PaymentToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(t)
}

func (r *Registry) Lookup(addr common.Address) (PaymentToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byAddr[key(addr)]
	return t, ok
}

// LookupHex is Lookup for a user-supplied address string in any case.
func (r *Registry) LookupHex(addr string) (PaymentToken, bool) {
	a, err := ParseAddress(addr)
	if err != nil {
		return PaymentToken{}, false
	}
	return r.Lookup(a)
}

// ResolveList keeps the known addresses, in input order, and silently drops
// the rest.
func (r *Registry) ResolveList(addrs []common.Address) []PaymentToken {
	known, _ := r.ResolveListReport(addrs)
	return known
}

// ResolveListReport is ResolveList that also returns what it dropped.
func (r *Registry) ResolveListReport(addrs []common.Address) ([]PaymentToken, []common.Address) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	known := make([]PaymentToken, 0, len(addrs))
	var unknown []common.Address
	for _, a := range addrs {
		if t, ok := r.byAddr[key(a)]; ok {
			known = append(known, t)
			continue
		}
		unknown = append(unknown, a)
	}
	return known, unknown
}

// All lists every registered token ordered by symbol.
func (r *Registry) All() []PaymentToken {
	r.mu.RLock()
	out := make([]PaymentToken, 0, len(r.byAddr))
	for _, t := range r.byAddr {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Symbol) < strings.ToLower(out[j].Symbol)
	})
	return out
}

// ParseAddress accepts an address with or without 0x prefix.
func ParseAddress(addr string) (common.Address, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return common.Address{}, fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	a = strings.ToLower(a)
	if !common.IsHexAddress(a) {
		return common.Address{}, fmt.Errorf("invalid address: %q", addr)
	}
	return common.HexToAddress(a), nil
}

func key(a common.Address) string {
	return strings.ToLower(a.Hex())
}
