// Package wallet owns the per-widget wallet session: connection state, the
// connected account and chain, and the provider behind them.
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return errors.Newf("wallet: unknown state %q", b)
	}
	return nil
}

// Snapshot is a copy of the session's observable state.
type Snapshot struct {
	State     State          `json:"state"`
	Connected bool           `json:"connected"`
	Account   common.Address `json:"account"`
	ChainID   uint64         `json:"chainId"`
}

type Options struct {
	// DappURL feeds the mobile deep link offered when no wallet is found.
	DappURL string
	// ChainSwitchTimeout bounds each switch/add request. Zero waits forever.
	ChainSwitchTimeout time.Duration
}

// Session is one widget's wallet session. All methods are safe for
// concurrent use. Subscribers run after the lock is released, so they may
// call back into the session.
type Session struct {
	connector Connector
	opts      Options

	mu         sync.Mutex
	state      State
	account    common.Address
	chainID    uint64
	provider   Provider
	detach     func()
	generation uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewSession(connector Connector, opts Options) *Session {
	return &Session{
		connector: connector,
		opts:      opts,
		subs:      make(map[int]func(Snapshot)),
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:     s.state,
		Connected: s.state == Connected,
		Account:   s.account,
		ChainID:   s.chainID,
	}
}

// Subscribe registers fn for every state transition.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Connect asks the wallet for an account. It is a no-op when already
// connected and fails with ErrPendingRequest while another connect runs.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connected:
		s.mu.Unlock()
		return nil
	case Connecting:
		s.mu.Unlock()
		return errors.Mark(errors.New("wallet: connect already in progress"), apperr.ErrPendingRequest)
	}
	s.state = Connecting
	s.generation++
	gen := s.generation
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	provider, account, chainID, err := s.handshake(ctx)
	if err != nil {
		s.abortConnect(gen)
		return err
	}

	s.mu.Lock()
	if s.generation != gen || s.state != Connecting {
		// Disconnect won the race.
		s.mu.Unlock()
		closeProvider(ctx, provider)
		return errors.Mark(errors.New("wallet: connect cancelled"), apperr.ErrNotConnected)
	}
	s.provider = provider
	s.account = account
	s.chainID = chainID
	s.state = Connected
	s.detach = provider.Subscribe(func(ev ProviderEvent) { s.handleEvent(provider, ev) })
	snap = s.snapshotLocked()
	s.mu.Unlock()

	log.Info("wallet connected", "account", account.Hex(), "chainId", chainID)
	s.notify(snap)
	return nil
}

func (s *Session) handshake(ctx context.Context) (Provider, common.Address, uint64, error) {
	if s.connector == nil {
		return nil, common.Address{}, 0, s.unavailable(nil)
	}

	provider, err := s.connector.Connect(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrProviderUnavailable) {
			return nil, common.Address{}, 0, s.unavailable(err)
		}
		return nil, common.Address{}, 0, classify(ctx, err, "wallet: open provider")
	}
	if provider == nil {
		return nil, common.Address{}, 0, s.unavailable(nil)
	}

	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		closeProvider(ctx, provider)
		return nil, common.Address{}, 0, classify(ctx, err, "wallet: request accounts")
	}
	if len(accounts) == 0 {
		closeProvider(ctx, provider)
		return nil, common.Address{}, 0, errors.Mark(errors.New("wallet: no accounts returned"), apperr.ErrUserRejected)
	}

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		closeProvider(ctx, provider)
		return nil, common.Address{}, 0, classify(ctx, err, "wallet: read chain id")
	}
	return provider, accounts[0], chainID, nil
}

func (s *Session) unavailable(cause error) error {
	return &UnavailableError{DeepLink: DeepLink(s.opts.DappURL), Cause: cause}
}

func (s *Session) abortConnect(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Disconnect tears the session down. Provider close errors are logged and
// dropped. Calling it while disconnected does nothing.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	provider, detach := s.provider, s.detach
	s.generation++
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
	closeProvider(ctx, provider)

	log.Info("wallet disconnected")
	s.notify(snap)
}

func (s *Session) resetLocked() {
	s.state = Disconnected
	s.account = common.Address{}
	s.chainID = 0
	s.provider = nil
	s.detach = nil
}

func closeProvider(ctx context.Context, p Provider) {
	if p == nil {
		return
	}
	if err := p.Close(ctx); err != nil {
		log.Warn("wallet provider close failed", "error", err)
	}
}

func (s *Session) handleEvent(from Provider, ev ProviderEvent) {
	s.mu.Lock()
	if s.provider != from || s.state != Connected {
		s.mu.Unlock()
		return
	}

	var detach func()
	switch ev.Kind {
	case EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			detach = s.detach
			s.generation++
			s.resetLocked()
		} else {
			s.account = ev.Accounts[0]
		}
	case EventChainChanged:
		s.chainID = ev.ChainID
	case EventDisconnect:
		detach = s.detach
		s.generation++
		s.resetLocked()
	default:
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
	s.notify(snap)
}

// EnsureChain moves the wallet to params.ChainID, adding the chain first if
// the wallet does not know it.
func (s *Session) EnsureChain(ctx context.Context, params chains.Params) error {
	s.mu.Lock()
	provider, current, state := s.provider, s.chainID, s.state
	s.mu.Unlock()

	if state != Connected || provider == nil {
		return errors.Mark(errors.New("wallet: ensure chain"), apperr.ErrNotConnected)
	}
	if current == params.ChainID {
		return nil
	}

	err := s.switchOnce(ctx, provider, params.ChainID)
	if code, ok := apperr.ProviderCode(err); ok && code == apperr.CodeUnrecognizedChain {
		log.Info("wallet does not know chain, adding it", "chainId", params.ChainID, "name", params.ChainName)
		if err = s.addOnce(ctx, provider, params); err == nil {
			err = s.switchOnce(ctx, provider, params.ChainID)
		}
	}
	if err != nil {
		return chainError(ctx, err, params.ChainID)
	}

	s.mu.Lock()
	changed := s.provider == provider && s.state == Connected && s.chainID != params.ChainID
	if changed {
		s.chainID = params.ChainID
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return nil
}

func (s *Session) withSwitchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ChainSwitchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.ChainSwitchTimeout)
}

func (s *Session) switchOnce(ctx context.Context, p Provider, chainID uint64) error {
	ctx, cancel := s.withSwitchTimeout(ctx)
	defer cancel()
	if err := p.SwitchChain(ctx, chainID); err != nil {
		if ctx.Err() != nil {
			return errors.Mark(errors.Wrapf(err, "switch to chain %d", chainID), apperr.ErrTimeout)
		}
		return err
	}
	return nil
}

func (s *Session) addOnce(ctx context.Context, p Provider, params chains.Params) error {
	ctx, cancel := s.withSwitchTimeout(ctx)
	defer cancel()
	if err := p.AddChain(ctx, params); err != nil {
		if ctx.Err() != nil {
			return errors.Mark(errors.Wrapf(err, "add chain %d", params.ChainID), apperr.ErrTimeout)
		}
		return err
	}
	return nil
}

func chainError(ctx context.Context, err error, chainID uint64) error {
	wrapped := errors.Wrapf(err, "wallet: switch to chain %d", chainID)
	switch {
	case errors.Is(err, apperr.ErrUserRejected),
		errors.Is(err, apperr.ErrPendingRequest),
		errors.Is(err, apperr.ErrTimeout):
		return wrapped
	case ctx.Err() != nil:
		return errors.Mark(wrapped, apperr.ErrTimeout)
	default:
		return errors.Mark(wrapped, apperr.ErrChainSwitchFailed)
	}
}

func classify(ctx context.Context, err error, op string) error {
	wrapped := errors.Wrap(err, op)
	if apperr.Kind(err) != apperr.ErrUnknown {
		return wrapped
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Mark(wrapped, apperr.ErrTimeout)
	}
	return wrapped
}

// RequireConnected returns ErrNotConnected unless the session is connected.
func (s *Session) RequireConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return errors.Mark(errors.New("wallet: not connected"), apperr.ErrNotConnected)
	}
	return nil
}

func (s *Session) current() (Provider, common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected || s.provider == nil {
		return nil, common.Address{}, errors.Mark(errors.New("wallet: not connected"), apperr.ErrNotConnected)
	}
	return s.provider, s.account, nil
}

// Backend is the RPC connection of the connected wallet.
func (s *Session) Backend(ctx context.Context) (contracts.Backend, error) {
	p, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return p.Backend(ctx)
}

// TransactOpts signs as the connected account. Session satisfies
// contracts.Signer.
func (s *Session) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	p, account, err := s.current()
	if err != nil {
		return nil, err
	}
	return p.TransactOpts(ctx, account)
}

// Signer returns the session as a contracts.Signer.
func (s *Session) Signer() contracts.Signer { return s }
