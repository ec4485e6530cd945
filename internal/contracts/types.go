package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PropertyInfo mirrors the distributor's property tuple. Field names follow
// the ABI component names so results convert directly.
type PropertyInfo struct {
	Name         string
	TokenAddress common.Address
	TokenId      *big.Int
	Treasury     common.Address
	PriceUSD     *big.Int // 18 decimals
	Active       bool
	Available    *big.Int // 2 decimals
}

// Exists reports whether the distributor knows the property at all.
func (p PropertyInfo) Exists() bool {
	return p.TokenAddress != (common.Address{})
}

// Listing mirrors the trade contract's listing tuple.
type Listing struct {
	ListingId    *big.Int
	Seller       common.Address
	PropertyCode string
	TokenAddress common.Address
	TokenId      *big.Int
	AmountListed *big.Int // 2 decimals
	Active       bool
}

// Signer hands out transaction options for an authorized account. Write
// handles ask for fresh options on every transaction.
type Signer interface {
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// Backend is a connection that can both call contracts and wait for receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// ReadThrough answers eth_call traffic from reader and leaves nonces, gas,
// sends and receipts to b.
func ReadThrough(b Backend, reader bind.ContractCaller) Backend {
	return readThrough{Backend: b, reader: reader}
}

type readThrough struct {
	Backend
	reader bind.ContractCaller
}

func (r readThrough) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return r.reader.CallContract(ctx, call, blockNumber)
}

func (r readThrough) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return r.reader.CodeAt(ctx, contract, blockNumber)
}
