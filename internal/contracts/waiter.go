package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrReverted = errors.New("transaction reverted")

// Waiter blocks until a transaction is mined.
type Waiter struct {
	backend bind.DeployBackend
}

func NewWaiter(backend bind.DeployBackend) *Waiter {
	return &Waiter{backend: backend}
}

// Wait returns the receipt of tx, or ErrReverted when it was mined with a
// failed status.
func (w *Waiter) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, errors.New("wait: nil transaction")
	}
	receipt, err := bind.WaitMined(ctx, w.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx=%s", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}
