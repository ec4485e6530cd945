// Package local is a wallet provider backed by a key held by this process.
// It answers the same requests a browser wallet would, including user
// approval and the 4902 "unrecognized chain" flow.
package local

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
)

// ChainRegistry is the part of chains.Service the provider needs.
type ChainRegistry interface {
	Lookup(chainID uint64) (chains.Params, bool)
	Register(p chains.Params) error
	Client(ctx context.Context, chainID uint64) (chains.Client, error)
}

// Connector builds one Provider per session connect.
type Connector struct {
	Keys     KeySource
	Approver Approver
	Chains   ChainRegistry
	// StartChainID is the chain a new provider reports before any switch.
	StartChainID uint64
	// Origin names the dapp in approval prompts.
	Origin string
	// ConfirmTransactions asks the approver before signing.
	ConfirmTransactions bool
}

func (c *Connector) Connect(ctx context.Context) (wallet.Provider, error) {
	if c == nil || c.Keys == nil {
		return nil, cerrors.Mark(ErrNoKey, apperr.ErrProviderUnavailable)
	}
	key, err := c.Keys.Key(ctx)
	if errors.Is(err, ErrNoKey) {
		return nil, cerrors.Mark(err, apperr.ErrProviderUnavailable)
	}
	if err != nil {
		return nil, err
	}

	approver := c.Approver
	if approver == nil {
		approver = AutoApprove
	}
	return &Provider{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:   c.StartChainID,
		chains:    c.Chains,
		approver:  approver,
		origin:    c.Origin,
		confirmTx: c.ConfirmTransactions,
		handlers:  make(map[int]func(wallet.ProviderEvent)),
	}, nil
}

type Provider struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	chains    ChainRegistry
	approver  Approver
	origin    string
	confirmTx bool

	mu         sync.Mutex
	chainID    uint64
	authorized bool
	closed     bool
	handlers   map[int]func(wallet.ProviderEvent)
	nextID     int
}

func rejected(what string) error {
	return apperr.NewProviderError(apperr.CodeUserRejected, what+": user rejected the request")
}

func (p *Provider) ask(ctx context.Context, req ApprovalRequest) error {
	req.Origin = p.origin
	if req.Account == (common.Address{}) {
		req.Account = p.address
	}
	ok, err := p.approver.Approve(ctx, req)
	if err != nil {
		return fmt.Errorf("local: approval: %w", err)
	}
	if !ok {
		return rejected(string(req.Kind))
	}
	return nil
}

func (p *Provider) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperr.NewProviderError(apperr.CodeDisconnected, "provider closed")
	}
	return nil
}

func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()

	if !authorized {
		if err := p.ask(ctx, ApprovalRequest{Kind: RequestConnect, ChainID: p.currentChain()}); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.authorized = true
		p.mu.Unlock()
	}
	return []common.Address{p.address}, nil
}

func (p *Provider) currentChain() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

func (p *Provider) ChainID(ctx context.Context) (uint64, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	return p.currentChain(), nil
}

func (p *Provider) SwitchChain(ctx context.Context, chainID uint64) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.currentChain() == chainID {
		return nil
	}
	if _, ok := p.chains.Lookup(chainID); !ok {
		return apperr.NewProviderError(apperr.CodeUnrecognizedChain,
			fmt.Sprintf("Unrecognized chain ID 0x%x. Try adding the chain first.", chainID))
	}
	if err := p.ask(ctx, ApprovalRequest{Kind: RequestSwitchChain, ChainID: chainID}); err != nil {
		return err
	}

	p.mu.Lock()
	p.chainID = chainID
	p.mu.Unlock()

	p.emit(wallet.ProviderEvent{Kind: wallet.EventChainChanged, ChainID: chainID})
	return nil
}

func (p *Provider) AddChain(ctx context.Context, params chains.Params) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("local: add chain: %w", err)
	}
	if _, ok := p.chains.Lookup(params.ChainID); ok {
		return nil
	}
	if err := p.ask(ctx, ApprovalRequest{Kind: RequestAddChain, ChainID: params.ChainID, Detail: params.ChainName}); err != nil {
		return err
	}
	return p.chains.Register(params)
}

func (p *Provider) Backend(ctx context.Context) (contracts.Backend, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	client, err := p.chains.Client(ctx, p.currentChain())
	if err != nil {
		return nil, err
	}
	return client, nil
}

// TransactOpts returns keyed options with nonce and fees filled from the
// current chain.
func (p *Provider) TransactOpts(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if account != p.address {
		return nil, apperr.NewProviderError(apperr.CodeUnauthorized,
			fmt.Sprintf("account %s is not authorized", account.Hex()))
	}

	chainID := p.currentChain()
	client, err := p.chains.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	opts, err := transactorFromKey(ctx, client, p.key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("local: transactor: %w", err)
	}

	if p.confirmTx {
		sign := opts.Signer
		opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			detail := "contract creation"
			if tx.To() != nil {
				detail = fmt.Sprintf("to %s, %d bytes of calldata", tx.To().Hex(), len(tx.Data()))
			}
			if err := p.ask(ctx, ApprovalRequest{Kind: RequestTransaction, ChainID: chainID, Detail: detail}); err != nil {
				return nil, err
			}
			return sign(from, tx)
		}
	}
	return opts, nil
}

// transactorFromKey prefers EIP-1559 fees and falls back to a legacy gas price.
func transactorFromKey(ctx context.Context, client bind.ContractTransactor, key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	tip, tipErr := client.SuggestGasTipCap(ctx)
	hdr, hdrErr := client.HeaderByNumber(ctx, nil)

	if tipErr == nil && hdrErr == nil && hdr != nil && hdr.BaseFee != nil {
		feeCap := new(big.Int).Mul(hdr.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		opts.GasTipCap = tip
		opts.GasFeeCap = feeCap
	} else {
		gp, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		opts.GasPrice = gp
	}

	opts.Context = ctx
	return opts, nil
}

func (p *Provider) Subscribe(fn func(wallet.ProviderEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(ev wallet.ProviderEvent) {
	p.mu.Lock()
	fns := make([]func(wallet.ProviderEvent), 0, len(p.handlers))
	for _, fn := range p.handlers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close revokes the connection; listeners still attached see an empty
// accountsChanged.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.authorized = false
	p.mu.Unlock()

	p.emit(wallet.ProviderEvent{Kind: wallet.EventAccountsChanged})
	log.Info("local wallet provider closed", "account", p.address.Hex())
	return nil
}

func (p *Provider) Address() common.Address { return p.address }
