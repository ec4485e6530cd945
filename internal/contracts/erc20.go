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

type ERC20Caller struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewERC20Caller(caller bind.ContractCaller, address common.Address) *ERC20Caller {
	return &ERC20Caller{
		address:  address,
		contract: bind.NewBoundContract(address, erc20ABI, caller, nil, nil),
	}
}

func (e *ERC20Caller) Address() common.Address { return e.address }

func (e *ERC20Caller) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("erc20 %s: decimals: %w", e.address.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (e *ERC20Caller) Symbol(ctx context.Context) (string, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "symbol"); err != nil {
		return "", fmt.Errorf("erc20 %s: symbol: %w", e.address.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (e *ERC20Caller) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	v, err := callBigInt(ctx, e.contract, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("erc20 %s: allowance: %w", e.address.Hex(), err)
	}
	return v, nil
}

type ERC20 struct {
	*ERC20Caller
	signer Signer
}

func NewERC20(backend bind.ContractBackend, address common.Address, signer Signer) *ERC20 {
	return &ERC20{
		ERC20Caller: &ERC20Caller{
			address:  address,
			contract: bind.NewBoundContract(address, erc20ABI, backend, backend, backend),
		},
		signer: signer,
	}
}

func (e *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := transact(ctx, e.contract, e.signer, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("erc20 %s: approve: %w", e.address.Hex(), err)
	}
	return tx, nil
}
