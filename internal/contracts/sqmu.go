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

// SQMUCaller reads the multi-token SQMU contract.
type SQMUCaller struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewSQMUCaller(caller bind.ContractCaller, address common.Address) *SQMUCaller {
	return &SQMUCaller{
		address:  address,
		contract: bind.NewBoundContract(address, sqmuABI, caller, nil, nil),
	}
}

func (s *SQMUCaller) Address() common.Address { return s.address }

// BalanceOfBatch returns one balance per (account, id) pair.
func (s *SQMUCaller) BalanceOfBatch(ctx context.Context, accounts []common.Address, ids []*big.Int) ([]*big.Int, error) {
	if len(accounts) != len(ids) {
		return nil, fmt.Errorf("sqmu: balanceOfBatch: %d accounts for %d ids", len(accounts), len(ids))
	}
	var out []interface{}
	if err := s.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOfBatch", accounts, ids); err != nil {
		return nil, fmt.Errorf("sqmu: balanceOfBatch: %w", err)
	}
	balances := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	if len(balances) != len(ids) {
		return nil, fmt.Errorf("sqmu: balanceOfBatch: %d balances for %d ids", len(balances), len(ids))
	}
	return balances, nil
}

func (s *SQMUCaller) IsApprovedForAll(ctx context.Context, account, operator common.Address) (bool, error) {
	var out []interface{}
	if err := s.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isApprovedForAll", account, operator); err != nil {
		return false, fmt.Errorf("sqmu: isApprovedForAll: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

type SQMU struct {
	*SQMUCaller
	signer Signer
}

func NewSQMU(backend bind.ContractBackend, address common.Address, signer Signer) *SQMU {
	return &SQMU{
		SQMUCaller: &SQMUCaller{
			address:  address,
			contract: bind.NewBoundContract(address, sqmuABI, backend, backend, backend),
		},
		signer: signer,
	}
}

func (s *SQMU) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*types.Transaction, error) {
	tx, err := transact(ctx, s.contract, s.signer, "setApprovalForAll", operator, approved)
	if err != nil {
		return nil, fmt.Errorf("sqmu: setApprovalForAll: %w", err)
	}
	return tx, nil
}
