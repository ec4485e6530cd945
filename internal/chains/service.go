// Package chains keeps the table of known networks and one cached RPC client
// per chain.
package chains

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
)

var ErrUnknownChain = errors.New("unknown chain")

// Client is what the flows need from an RPC connection.
type Client interface {
	contracts.Backend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc opens a client for an RPC URL.
type DialFunc func(ctx context.Context, url string) (Client, error)

func dialEthClient(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Service is safe for concurrent use; widgets share it.
type Service struct {
	mu      sync.Mutex
	params  map[uint64]Params
	clients map[uint64]Client
	dial    DialFunc
}

func NewService(cfg Config) (*Service, error) {
	cfg.Normalize()
	s := &Service{
		params:  make(map[uint64]Params, len(cfg.Networks)),
		clients: make(map[uint64]Client),
		dial:    dialEthClient,
	}
	for name, n := range cfg.Networks {
		p := n.Params()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("chains: network %q: %w", name, err)
		}
		s.params[p.ChainID] = p
	}
	return s, nil
}

// WithDialer swaps the RPC dialer; used by tests.
func (s *Service) WithDialer(dial DialFunc) *Service {
	s.dial = dial
	return s
}

func (s *Service) Lookup(chainID uint64) (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[chainID]
	return p, ok
}

// Register adds or replaces a chain. A cached client for it is dropped so the
// next call dials the new RPC.
func (s *Service) Register(p Params) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("chains: register: %w", err)
	}

	s.mu.Lock()
	s.params[p.ChainID] = p
	stale := s.clients[p.ChainID]
	delete(s.clients, p.ChainID)
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	log.Info("chain registered", "chainId", p.ChainID, "name", p.ChainName)
	return nil
}

// Client returns (and caches) the client for chainID.
func (s *Service) Client(ctx context.Context, chainID uint64) (Client, error) {
	s.mu.Lock()
	if existing := s.clients[chainID]; existing != nil {
		s.mu.Unlock()
		return existing, nil
	}
	p, ok := s.params[chainID]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("chains: %w: %d", ErrUnknownChain, chainID)
	}

	// Dial outside the lock so other chains are not blocked.
	dialed, err := s.dial(ctx, p.RPCURL())
	if err != nil {
		return nil, fmt.Errorf("chains: dial %q: %w", p.ChainName, err)
	}

	s.mu.Lock()
	if existing := s.clients[chainID]; existing != nil {
		s.mu.Unlock()
		dialed.Close()
		return existing, nil
	}
	s.clients[chainID] = dialed
	s.mu.Unlock()

	return dialed, nil
}

// Close closes all cached clients.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.Close()
		delete(s.clients, id)
	}
}
