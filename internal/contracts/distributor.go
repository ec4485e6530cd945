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

// DistributorCaller is a read-only handle on the primary-sale distributor.
type DistributorCaller struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewDistributorCaller(caller bind.ContractCaller, address common.Address) *DistributorCaller {
	return &DistributorCaller{
		address:  address,
		contract: bind.NewBoundContract(address, distributorABI, caller, nil, nil),
	}
}

func (d *DistributorCaller) Address() common.Address { return d.address }

func (d *DistributorCaller) GetPropertyInfo(ctx context.Context, code string) (PropertyInfo, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPropertyInfo", code); err != nil {
		return PropertyInfo{}, fmt.Errorf("distributor: getPropertyInfo(%q): %w", code, err)
	}
	if len(out) == 0 {
		return PropertyInfo{}, fmt.Errorf("distributor: getPropertyInfo(%q): empty result", code)
	}
	info := *abi.ConvertType(out[0], new(PropertyInfo)).(*PropertyInfo)
	return info, nil
}

func (d *DistributorCaller) GetAvailable(ctx context.Context, code string) (*big.Int, error) {
	v, err := callBigInt(ctx, d.contract, "getAvailable", code)
	if err != nil {
		return nil, fmt.Errorf("distributor: getAvailable(%q): %w", code, err)
	}
	return v, nil
}

func (d *DistributorCaller) GetPropertyStatus(ctx context.Context, code string) (bool, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPropertyStatus", code); err != nil {
		return false, fmt.Errorf("distributor: getPropertyStatus(%q): %w", code, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (d *DistributorCaller) GetPaymentTokens(ctx context.Context) ([]common.Address, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPaymentTokens"); err != nil {
		return nil, fmt.Errorf("distributor: getPaymentTokens: %w", err)
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// GetPrice returns the USD total (2 decimals) for amount (2 decimals) of code.
func (d *DistributorCaller) GetPrice(ctx context.Context, code string, amount *big.Int) (*big.Int, error) {
	v, err := callBigInt(ctx, d.contract, "getPrice", code, amount)
	if err != nil {
		return nil, fmt.Errorf("distributor: getPrice(%q, %s): %w", code, amount, err)
	}
	return v, nil
}

// Distributor adds the purchase method on top of the reads.
type Distributor struct {
	*DistributorCaller
	signer Signer
}

func NewDistributor(backend bind.ContractBackend, address common.Address, signer Signer) *Distributor {
	return &Distributor{
		DistributorCaller: &DistributorCaller{
			address:  address,
			contract: bind.NewBoundContract(address, distributorABI, backend, backend, backend),
		},
		signer: signer,
	}
}

func (d *Distributor) BuySQMU(ctx context.Context, code string, amount *big.Int, token common.Address, agentCode string) (*types.Transaction, error) {
	tx, err := transact(ctx, d.contract, d.signer, "buySQMU", code, amount, token, agentCode)
	if err != nil {
		return nil, fmt.Errorf("distributor: buySQMU: %w", err)
	}
	return tx, nil
}

func callBigInt(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func transact(ctx context.Context, c *bind.BoundContract, signer Signer, method string, params ...interface{}) (*types.Transaction, error) {
	if signer == nil {
		return nil, fmt.Errorf("%s: no signer", method)
	}
	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Context == nil {
		opts.Context = ctx
	}
	return c.Transact(opts, method, params...)
}
