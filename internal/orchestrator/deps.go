package orchestrator

import (
	"context"
	"math/big"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/receipt"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
)

// Session is the slice of wallet.Session the flows use.
type Session interface {
	RequireConnected() error
	Snapshot() wallet.Snapshot
	EnsureChain(ctx context.Context, params chains.Params) error
}

type Distributor interface {
	Address() common.Address
	GetPropertyInfo(ctx context.Context, code string) (contracts.PropertyInfo, error)
	GetAvailable(ctx context.Context, code string) (*big.Int, error)
	GetPropertyStatus(ctx context.Context, code string) (bool, error)
	GetPaymentTokens(ctx context.Context) ([]common.Address, error)
	GetPrice(ctx context.Context, code string, amount *big.Int) (*big.Int, error)
	BuySQMU(ctx context.Context, code string, amount *big.Int, token common.Address, agentCode string) (*types.Transaction, error)
}

type ERC20 interface {
	Address() common.Address
	Decimals(ctx context.Context) (uint8, error)
	Symbol(ctx context.Context) (string, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

type SQMU interface {
	Address() common.Address
	BalanceOfBatch(ctx context.Context, accounts []common.Address, ids []*big.Int) ([]*big.Int, error)
	IsApprovedForAll(ctx context.Context, account, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*types.Transaction, error)
}

type Trade interface {
	Address() common.Address
	GetActiveListings(ctx context.Context) ([]contracts.Listing, error)
	ListToken(ctx context.Context, code string, token common.Address, tokenID, amount *big.Int) (*types.Transaction, error)
	Buy(ctx context.Context, listingID, amount *big.Int, paymentToken common.Address) (*types.Transaction, error)
}

type Waiter interface {
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Contracts hands out contract handles bound to the current connection.
type Contracts interface {
	Distributor(ctx context.Context) (Distributor, error)
	ERC20(ctx context.Context, token common.Address) (ERC20, error)
	SQMU(ctx context.Context) (SQMU, error)
	Trade(ctx context.Context) (Trade, error)
	Waiter(ctx context.Context) (Waiter, error)
	TokenMetadata(ctx context.Context) (paymenttokens.MetadataFetcher, error)
}

// ReceiptSender is satisfied by *receipt.Sender.
type ReceiptSender interface {
	Send(kind receipt.Kind, fields url.Values)
}

// Addresses of the fixed deployments.
type Addresses struct {
	Distributor common.Address
	SQMU        common.Address
	Trade       common.Address
}

// BackendSource yields the RPC connection to bind against.
type BackendSource interface {
	Backend(ctx context.Context) (contracts.Backend, error)
}

// BoundSession is what SessionContracts needs from a wallet session.
type BoundSession interface {
	BackendSource
	contracts.Signer
	RequireConnected() error
}

// SessionContracts binds handles for the widget's configured chain. Calls
// always go through Reader, whatever chain the wallet sits on. While
// connected, nonces, sends and receipts go through the session's backend and
// transactions are signed by its account.
type SessionContracts struct {
	Session   BoundSession
	Reader    BackendSource
	Addresses Addresses
}

func (c *SessionContracts) reader(ctx context.Context) (contracts.Backend, error) {
	if c.Reader == nil {
		return c.Session.Backend(ctx)
	}
	return c.Reader.Backend(ctx)
}

func (c *SessionContracts) backend(ctx context.Context) (contracts.Backend, error) {
	read, err := c.reader(ctx)
	if err != nil {
		return nil, err
	}
	if c.Reader == nil || c.Session.RequireConnected() != nil {
		return read, nil
	}
	write, err := c.Session.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.ReadThrough(write, read), nil
}

func (c *SessionContracts) Distributor(ctx context.Context) (Distributor, error) {
	b, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewDistributor(b, c.Addresses.Distributor, c.Session), nil
}

func (c *SessionContracts) ERC20(ctx context.Context, token common.Address) (ERC20, error) {
	b, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewERC20(b, token, c.Session), nil
}

func (c *SessionContracts) SQMU(ctx context.Context) (SQMU, error) {
	b, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewSQMU(b, c.Addresses.SQMU, c.Session), nil
}

func (c *SessionContracts) Trade(ctx context.Context) (Trade, error) {
	b, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewTrade(b, c.Addresses.Trade, c.Session), nil
}

func (c *SessionContracts) Waiter(ctx context.Context) (Waiter, error) {
	b, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewWaiter(b), nil
}

// ChainBackend reads through the shared chain client for one chain.
type ChainBackend struct {
	Chains  *chains.Service
	ChainID uint64
}

func (b ChainBackend) Backend(ctx context.Context) (contracts.Backend, error) {
	c, err := b.Chains.Client(ctx, b.ChainID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SessionContracts) TokenMetadata(ctx context.Context) (paymenttokens.MetadataFetcher, error) {
	b, err := c.reader(ctx)
	if err != nil {
		return nil, err
	}
	return paymenttokens.NewFetcher(b), nil
}
