package paymenttokens

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
)

// MetadataFetcher reads symbol and decimals for a token the registry lacks.
type MetadataFetcher interface {
	Fetch(ctx context.Context, addr common.Address) (PaymentToken, error)
}

// Fetcher reads token metadata through the ERC-20 binding.
type Fetcher struct {
	caller bind.ContractCaller
}

func NewFetcher(caller bind.ContractCaller) *Fetcher {
	return &Fetcher{caller: caller}
}

func (f *Fetcher) Fetch(ctx context.Context, addr common.Address) (PaymentToken, error) {
	if addr == (common.Address{}) {
		return PaymentToken{}, fmt.Errorf("paymenttokens: zero address is not a token")
	}

	token := contracts.NewERC20Caller(f.caller, addr)

	symbol, err := token.Symbol(ctx)
	if err != nil {
		return PaymentToken{}, fmt.Errorf("paymenttokens: symbol: %w", err)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return PaymentToken{}, fmt.Errorf("paymenttokens: decimals: %w", err)
	}

	return PaymentToken{Address: addr, Symbol: symbol, Decimals: decimals}, nil
}

// Resolve is ResolveList that first tries to learn unknown tokens through f.
// Tokens whose metadata cannot be read are dropped and logged.
func (r *Registry) Resolve(ctx context.Context, f MetadataFetcher, addrs []common.Address) []PaymentToken {
	known, unknown := r.ResolveListReport(addrs)
	if len(unknown) == 0 || f == nil {
		if len(unknown) > 0 {
			log.Warn("dropping unknown payment tokens", "count", len(unknown))
		}
		return known
	}

	for _, a := range unknown {
		t, err := f.Fetch(ctx, a)
		if err != nil {
			log.Warn("dropping payment token", "address", a.Hex(), "error", err)
			continue
		}
		r.Add(t)
	}

	// second pass keeps the distributor's ordering
	resolved, _ := r.ResolveListReport(addrs)
	return resolved
}
