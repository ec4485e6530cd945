package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TradeCaller reads the secondary market contract.
type TradeCaller struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewTradeCaller(caller bind.ContractCaller, address common.Address) *TradeCaller {
	return &TradeCaller{
		address:  address,
		contract: bind.NewBoundContract(address, tradeABI, caller, nil, nil),
	}
}

func (t *TradeCaller) Address() common.Address { return t.address }

func (t *TradeCaller) GetActiveListings(ctx context.Context) ([]Listing, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getActiveListings"); err != nil {
		return nil, fmt.Errorf("trade: getActiveListings: %w", err)
	}
	return *abi.ConvertType(out[0], new([]Listing)).(*[]Listing), nil
}

type Trade struct {
	*TradeCaller
	signer Signer
}

func NewTrade(backend bind.ContractBackend, address common.Address, signer Signer) *Trade {
	return &Trade{
		TradeCaller: &TradeCaller{
			address:  address,
			contract: bind.NewBoundContract(address, tradeABI, backend, backend, backend),
		},
		signer: signer,
	}
}

func (t *Trade) ListToken(ctx context.Context, code string, token common.Address, tokenID, amount *big.Int) (*types.Transaction, error) {
	tx, err := transact(ctx, t.contract, t.signer, "listToken", code, token, tokenID, amount)
	if err != nil {
		return nil, fmt.Errorf("trade: listToken: %w", err)
	}
	return tx, nil
}

func (t *Trade) Buy(ctx context.Context, listingID, amount *big.Int, paymentToken common.Address) (*types.Transaction, error) {
	tx, err := transact(ctx, t.contract, t.signer, "buy", listingID, amount, paymentToken)
	if err != nil {
		return nil, fmt.Errorf("trade: buy: %w", err)
	}
	return tx, nil
}
