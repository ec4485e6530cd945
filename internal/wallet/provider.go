package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
)

type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventDisconnect      EventKind = "disconnect"
)

// ProviderEvent is pushed by a provider when the wallet side changes.
type ProviderEvent struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  uint64
}

// Provider is one live connection to a wallet. Errors reported by the wallet
// itself carry EIP-1193 codes as *apperr.ProviderError.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params chains.Params) error

	// Backend is the RPC connection for the provider's current chain.
	Backend(ctx context.Context) (contracts.Backend, error)
	TransactOpts(ctx context.Context, account common.Address) (*bind.TransactOpts, error)

	// Subscribe must not call fn before it returns.
	Subscribe(fn func(ProviderEvent)) (unsubscribe func())
	Close(ctx context.Context) error
}

// Connector builds a fresh provider for one session. It returns an error
// matching apperr.ErrProviderUnavailable when no wallet is present.
type Connector interface {
	Connect(ctx context.Context) (Provider, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Provider, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Provider, error) { return f(ctx) }
