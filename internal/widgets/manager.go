package widgets

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/hostpage"
	"github.com/sqmu-io/sqmu-dapp/internal/metrics"
	"github.com/sqmu-io/sqmu-dapp/internal/orchestrator"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
)

// ConnectorFactory builds the wallet connector for one widget.
type ConnectorFactory func(cfg widgetconfig.Resolved) wallet.Connector

type Deps struct {
	Chains     *chains.Service
	Connectors ConnectorFactory
	Receipts   orchestrator.ReceiptSender
	Metrics    *metrics.Metrics
}

// Manager holds every widget of the host page.
type Manager struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Instance
}

// NewManager instantiates the planned widgets.
func NewManager(planned []hostpage.Widget, deps Deps) (*Manager, error) {
	if deps.Chains == nil {
		return nil, fmt.Errorf("widgets: chain service is required")
	}
	if deps.Connectors == nil {
		return nil, fmt.Errorf("widgets: connector factory is required")
	}

	m := &Manager{byID: make(map[string]*Instance, len(planned))}
	for _, p := range planned {
		w, err := newInstance(p.ID, p.Config, deps)
		if err != nil {
			m.Close(context.Background())
			return nil, fmt.Errorf("widgets: %s: %w", p.ID, err)
		}
		m.order = append(m.order, p.ID)
		m.byID[p.ID] = w
		log.Info("widget ready", "id", p.ID, "variant", string(p.Config.Variant), "chainId", p.Config.Chain.ChainID)
	}
	return m, nil
}

func newInstance(id string, cfg widgetconfig.Resolved, deps Deps) (*Instance, error) {
	if _, known := deps.Chains.Lookup(cfg.Chain.ChainID); !known {
		if err := deps.Chains.Register(cfg.Chain); err != nil {
			return nil, err
		}
	}

	session := wallet.NewSession(deps.Connectors(cfg), wallet.Options{
		DappURL:            cfg.DappURL,
		ChainSwitchTimeout: cfg.ChainSwitchTimeout,
	})
	w := &Instance{
		ID:       id,
		Config:   cfg,
		session:  session,
		metrics:  deps.Metrics,
		explorer: cfg.Chain.ExplorerURL(),
		subs:     make(map[int]func(Event)),
	}
	w.unsub = session.Subscribe(w.onSession)
	w.onSession(session.Snapshot())

	contracts := &orchestrator.SessionContracts{
		Session: session,
		Reader:  orchestrator.ChainBackend{Chains: deps.Chains, ChainID: cfg.Chain.ChainID},
		Addresses: orchestrator.Addresses{
			Distributor: cfg.Distributor,
			SQMU:        cfg.SQMU,
			Trade:       cfg.Trade,
		},
	}
	flowDeps := orchestrator.ListingDeps{
		Session:   session,
		Contracts: contracts,
		Tokens:    paymenttokens.NewRegistry(cfg.ExtraTokens...),
		Receipts:  deps.Receipts,
		Reporter:  reporter{w},
		Guard:     &orchestrator.Guard{},
	}

	switch cfg.Variant {
	case widgetconfig.VariantListing:
		w.listing = orchestrator.NewListing(orchestrator.ListingConfig{
			PropertyCode: cfg.PropertyCode,
			AgentCode:    cfg.AgentCode,
			Chain:        cfg.Chain,
		}, flowDeps)
	case widgetconfig.VariantPortfolio:
		w.portfolio = orchestrator.NewPortfolio(orchestrator.PortfolioConfig{
			MaxTokenID: cfg.MaxTokenID,
			EnableSell: cfg.EnableSell,
			EnableBuy:  cfg.EnableBuy,
			AgentCode:  cfg.AgentCode,
			Chain:      cfg.Chain,
		}, flowDeps)
	}
	return w, nil
}

func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.byID[id]
	return w, ok
}

// List returns the widgets in page order.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Close disconnects every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Instance, 0, len(m.byID))
	for _, w := range m.byID {
		all = append(all, w)
	}
	m.byID = map[string]*Instance{}
	m.order = nil
	m.mu.Unlock()

	for _, w := range all {
		w.close(ctx)
	}
}
