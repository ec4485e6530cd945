// Package widgets owns the live widget instances: one wallet session and
// the flows for its variant per mount point.
package widgets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/metrics"
	"github.com/sqmu-io/sqmu-dapp/internal/orchestrator"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
)

// Status is the widget's status line plus the full error text behind it.
type Status struct {
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type EventType string

const (
	EventSession   EventType = "session"
	EventStatus    EventType = "status"
	EventSubmitted EventType = "submitted"
	EventRefreshed EventType = "refreshed"
)

// Event is pushed to subscribers on session, status and transaction updates.
type Event struct {
	Type    EventType             `json:"type"`
	Widget  string                `json:"widget"`
	Session *wallet.Snapshot      `json:"session,omitempty"`
	Status  *Status               `json:"status,omitempty"`
	Kind    string                `json:"kind,omitempty"`
	TxHash  string                `json:"txHash,omitempty"`
	Refresh *orchestrator.Refresh `json:"refresh,omitempty"`
}

// Instance is one mounted widget.
type Instance struct {
	ID     string
	Config widgetconfig.Resolved

	session   *wallet.Session
	listing   *orchestrator.Listing
	portfolio *orchestrator.Portfolio
	metrics   *metrics.Metrics
	explorer  string

	mu        sync.Mutex
	status    Status
	lastState string
	subs      map[int]func(Event)
	nextSub   int
	unsub     func()
}

func (w *Instance) Session() *wallet.Session { return w.session }

func (w *Instance) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Subscribe registers fn for this widget's events.
func (w *Instance) Subscribe(fn func(Event)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

func (w *Instance) publish(ev Event) {
	ev.Widget = w.ID
	w.mu.Lock()
	fns := make([]func(Event), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (w *Instance) setStatus(s Status) {
	s.At = time.Now().UTC()
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
	w.publish(Event{Type: EventStatus, Status: &s})
}

func (w *Instance) onSession(snap wallet.Snapshot) {
	state := snap.State.String()
	w.mu.Lock()
	prev := w.lastState
	w.lastState = state
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.SessionChanged(prev, state)
	}
	w.publish(Event{Type: EventSession, Session: &snap})
}

// reporter feeds flow progress into the widget's status line.
type reporter struct{ w *Instance }

func (r reporter) Status(msg string) { r.w.setStatus(Status{Message: msg}) }

func (r reporter) Submitted(kind string, hash common.Hash) {
	if r.w.metrics != nil {
		r.w.metrics.Submitted(kind)
	}
	msg := fmt.Sprintf("Transaction sent: %s", hash.Hex())
	if r.w.explorer != "" {
		msg = fmt.Sprintf("Transaction sent: %s/tx/%s", r.w.explorer, hash.Hex())
	}
	r.w.setStatus(Status{Message: msg})
	r.w.publish(Event{Type: EventSubmitted, Kind: kind, TxHash: hash.Hex()})
}

// Refreshed pushes the views re-read after a confirmed transaction.
func (r reporter) Refreshed(data orchestrator.Refresh) {
	r.w.publish(Event{Type: EventRefreshed, Refresh: &data})
}

// track turns an action's outcome into the status line and metrics.
func (w *Instance) track(action string, start time.Time, err error) error {
	result := "ok"
	if err != nil {
		result = apperr.KindName(err)
		w.setStatus(Status{
			Message: apperr.Status(action, err),
			Error:   result,
			Detail:  apperr.Detail(err),
		})
		log.Warn("widget action failed", "widget", w.ID, "action", action, "kind", result, "error", err)
	}
	if w.metrics != nil {
		w.metrics.Action(action, result, time.Since(start))
	}
	return err
}

func (w *Instance) Connect(ctx context.Context) (wallet.Snapshot, error) {
	start := time.Now()
	err := w.session.Connect(ctx)
	if err == nil {
		snap := w.session.Snapshot()
		w.setStatus(Status{Message: fmt.Sprintf("Connected: %s", snap.Account.Hex())})
	}
	return w.session.Snapshot(), w.track("Connect", start, err)
}

func (w *Instance) Disconnect(ctx context.Context) wallet.Snapshot {
	w.session.Disconnect(ctx)
	w.setStatus(Status{Message: "Disconnected"})
	return w.session.Snapshot()
}

// SwitchChain moves the wallet to the widget's configured chain.
func (w *Instance) SwitchChain(ctx context.Context) (wallet.Snapshot, error) {
	start := time.Now()
	err := w.session.EnsureChain(ctx, w.Config.Chain)
	if err == nil {
		w.setStatus(Status{Message: fmt.Sprintf("On %s", w.Config.Chain.ChainName)})
	}
	return w.session.Snapshot(), w.track("Switch network", start, err)
}

func (w *Instance) needListing() error {
	if w.listing == nil {
		return apperr.Invalid("widget", fmt.Sprintf("%s is not a listing widget", w.ID))
	}
	return nil
}

func (w *Instance) needPortfolio() error {
	if w.portfolio == nil {
		return apperr.Invalid("widget", fmt.Sprintf("%s is not a portfolio widget", w.ID))
	}
	return nil
}

func (w *Instance) Property(ctx context.Context, code string) (orchestrator.PropertyView, error) {
	start := time.Now()
	if err := w.needListing(); err != nil {
		return orchestrator.PropertyView{}, err
	}
	v, err := w.listing.LoadProperty(ctx, code)
	return v, w.track("Load property", start, err)
}

func (w *Instance) PaymentTokens(ctx context.Context) ([]paymenttokens.PaymentToken, error) {
	start := time.Now()
	if err := w.needListing(); err != nil {
		return nil, err
	}
	v, err := w.listing.LoadPaymentTokens(ctx)
	return v, w.track("Load payment tokens", start, err)
}

func (w *Instance) Buy(ctx context.Context, req orchestrator.BuyRequest) (orchestrator.Result, error) {
	start := time.Now()
	if err := w.needListing(); err != nil {
		return orchestrator.Result{}, err
	}
	if req.Email == "" {
		req.Email = w.Config.Email
	}
	if req.Token == "" {
		req.Token = w.Config.TokenAddress
	}
	v, err := w.listing.Buy(ctx, req)
	return v, w.track("Purchase", start, err)
}

func (w *Instance) Portfolio(ctx context.Context) (orchestrator.PortfolioView, error) {
	start := time.Now()
	if err := w.needPortfolio(); err != nil {
		return orchestrator.PortfolioView{}, err
	}
	v, err := w.portfolio.LoadPortfolio(ctx)
	return v, w.track("Load portfolio", start, err)
}

func (w *Instance) Listings(ctx context.Context) ([]orchestrator.ListingView, error) {
	start := time.Now()
	if err := w.needPortfolio(); err != nil {
		return nil, err
	}
	v, err := w.portfolio.LoadListings(ctx)
	return v, w.track("Load listings", start, err)
}

func (w *Instance) Sell(ctx context.Context, req orchestrator.SellRequest) (orchestrator.Result, error) {
	start := time.Now()
	if err := w.needPortfolio(); err != nil {
		return orchestrator.Result{}, err
	}
	v, err := w.portfolio.Sell(ctx, req)
	return v, w.track("Sell", start, err)
}

func (w *Instance) BuyListing(ctx context.Context, req orchestrator.BuyListingRequest) (orchestrator.Result, error) {
	start := time.Now()
	if err := w.needPortfolio(); err != nil {
		return orchestrator.Result{}, err
	}
	if req.Email == "" {
		req.Email = w.Config.Email
	}
	v, err := w.portfolio.BuyListing(ctx, req)
	return v, w.track("Buy", start, err)
}

// close tears the session down and detaches the metrics observer.
func (w *Instance) close(ctx context.Context) {
	w.session.Disconnect(ctx)
	if w.unsub != nil {
		w.unsub()
	}
	w.mu.Lock()
	state := w.lastState
	w.mu.Unlock()
	if w.metrics != nil && state != "" {
		w.metrics.SessionRemoved(state)
	}
}
