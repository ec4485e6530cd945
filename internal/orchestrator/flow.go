// Package orchestrator runs the SQMU transaction flows: primary purchases
// from the distributor, and portfolio sell/buy on the trade contract.
package orchestrator

import (
	"context"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
)

// Reporter receives progress for the widget's status line.
type Reporter interface {
	Status(msg string)
	Submitted(kind string, hash common.Hash)
	Refreshed(r Refresh)
}

type nopReporter struct{}

func (nopReporter) Status(string) {}
func (nopReporter) Submitted(string, common.Hash) {}
func (nopReporter) Refreshed(Refresh) {}

// Guard allows one in-flight action per widget.
type Guard struct {
	busy atomic.Bool
}

func (g *Guard) begin() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, errors.Mark(errors.New("another action is still running"), apperr.ErrPendingRequest)
	}
	return func() { g.busy.Store(false) }, nil
}

func (g *Guard) Busy() bool { return g.busy.Load() }

// Result describes a confirmed action.
type Result struct {
	TxHash      common.Hash `json:"txHash"`
	ApprovalTx  common.Hash `json:"approvalTx,omitempty"`
	Approved    bool        `json:"approved"`
	Required    *big.Int    `json:"required,omitempty"`
	BlockNumber uint64      `json:"blockNumber"`
	Refresh     *Refresh    `json:"refresh,omitempty"`
}

// Refresh carries the views re-read after a transaction confirmed.
type Refresh struct {
	Property  *PropertyView  `json:"property,omitempty"`
	Portfolio *PortfolioView `json:"portfolio,omitempty"`
	Listings  []ListingView  `json:"listings"`
}

// submit sends a transaction, reports its hash and waits for it. Waiting is
// detached from ctx: once submitted a transaction is not cancelled.
func submit(ctx context.Context, waiter Waiter, rep Reporter, kind string, send func() (*types.Transaction, error)) (common.Hash, *types.Receipt, error) {
	tx, err := send()
	if err != nil {
		return common.Hash{}, nil, apperr.Contract(err, kind)
	}
	hash := tx.Hash()
	rep.Submitted(kind, hash)
	log.Info("transaction submitted", "kind", kind, "tx", hash.Hex())

	receipt, err := waiter.Wait(context.WithoutCancel(ctx), tx)
	if err != nil {
		return hash, nil, apperr.Contract(err, kind)
	}
	return hash, receipt, nil
}

func blockOf(r *types.Receipt) uint64 {
	if r == nil || r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return apperr.Invalid("email", "not a valid address")
	}
	return nil
}
