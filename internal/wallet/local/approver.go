package local

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sqmu-io/sqmu-dapp/internal/helpers"
)

type RequestKind string

const (
	RequestConnect     RequestKind = "connect"
	RequestSwitchChain RequestKind = "switch_chain"
	RequestAddChain    RequestKind = "add_chain"
	RequestTransaction RequestKind = "transaction"
)

type ApprovalRequest struct {
	Kind    RequestKind
	Origin  string
	Account common.Address
	ChainID uint64
	Detail  string
}

func (r ApprovalRequest) String() string {
	switch r.Kind {
	case RequestConnect:
		return fmt.Sprintf("%s wants to connect to account %s", r.Origin, r.Account.Hex())
	case RequestSwitchChain:
		return fmt.Sprintf("%s wants to switch to chain %d", r.Origin, r.ChainID)
	case RequestAddChain:
		return fmt.Sprintf("%s wants to add chain %d (%s)", r.Origin, r.ChainID, r.Detail)
	default:
		return fmt.Sprintf("%s wants to send a transaction on chain %d: %s", r.Origin, r.ChainID, r.Detail)
	}
}

// Approver stands in for the wallet's confirmation dialog.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove accepts everything. For unattended agents and tests.
var AutoApprove = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil })

// PromptApprover asks on the terminal.
type PromptApprover struct {
	Prompter *helpers.Prompter
}

func (p PromptApprover) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	type answer struct {
		ok  bool
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		ok, err := p.Prompter.YesNo(req.String() + ". Approve?")
		ch <- answer{ok, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		return a.ok, a.err
	}
}
