package orchestrator

import (
	"context"
	"math/big"
	"net/url"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/receipt"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
)

var (
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	distAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	tradeAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	sqmuAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d3")
	usdcAddr    = paymenttokens.Defaults()[0].Address
	errBoom     = errors.New("boom")
	usd18       = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	hundredUSD  = new(big.Int).Mul(big.NewInt(100), usd18)
	testAddrs   = Addresses{Distributor: distAddr, SQMU: sqmuAddr, Trade: tradeAddr}
	scrollChain = chains.DefaultConfig().Networks["scroll"].Params()
)

// recorder is shared by the fakes so tests can assert call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
	nonce uint64
}

func (r *recorder) record(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) tx(c string) *types.Transaction {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.nonce++
	n := r.nonce
	r.mu.Unlock()
	return types.NewTx(&types.LegacyTx{Nonce: n, GasPrice: big.NewInt(1), Gas: 21000})
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeSession struct {
	connected bool
	chainErr  error
	rec       *recorder
}

func (s *fakeSession) RequireConnected() error {
	if !s.connected {
		return errors.Mark(errors.New("wallet not connected"), apperr.ErrNotConnected)
	}
	return nil
}

func (s *fakeSession) Snapshot() wallet.Snapshot {
	if !s.connected {
		return wallet.Snapshot{}
	}
	return wallet.Snapshot{State: wallet.Connected, Connected: true, Account: testOwner, ChainID: scrollChain.ChainID}
}

func (s *fakeSession) EnsureChain(_ context.Context, p chains.Params) error {
	s.rec.record("ensureChain")
	return s.chainErr
}

type fakeDistributor struct {
	rec       *recorder
	info      map[string]contracts.PropertyInfo
	active    map[string]bool
	prices    map[string]*big.Int // usd (2dp) per whole SQMU, applied linearly
	tokens    []common.Address
	buyErr    error
	lastBuy   []any
	priceErrs map[string]error
}

func (d *fakeDistributor) Address() common.Address { return distAddr }

func (d *fakeDistributor) GetPropertyInfo(_ context.Context, code string) (contracts.PropertyInfo, error) {
	d.rec.record("getPropertyInfo")
	return d.info[code], nil
}

func (d *fakeDistributor) GetAvailable(_ context.Context, code string) (*big.Int, error) {
	return d.info[code].Available, nil
}

func (d *fakeDistributor) GetPropertyStatus(_ context.Context, code string) (bool, error) {
	return d.active[code], nil
}

func (d *fakeDistributor) GetPaymentTokens(context.Context) ([]common.Address, error) {
	return d.tokens, nil
}

func (d *fakeDistributor) GetPrice(_ context.Context, code string, amount *big.Int) (*big.Int, error) {
	if err := d.priceErrs[code]; err != nil {
		return nil, err
	}
	unit, ok := d.prices[code]
	if !ok {
		return nil, errBoom
	}
	v := new(big.Int).Mul(unit, amount)
	return v.Quo(v, big.NewInt(100)), nil
}

func (d *fakeDistributor) BuySQMU(ctx context.Context, code string, amount *big.Int, token common.Address, agent string) (*types.Transaction, error) {
	// a cancelled ctx fails the nonce lookup of a real send
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.buyErr != nil {
		return nil, d.buyErr
	}
	d.lastBuy = []any{code, amount, token, agent}
	return d.rec.tx("buySQMU"), nil
}

type fakeERC20 struct {
	rec        *recorder
	decimals   uint8
	allowance  *big.Int
	approvedTo common.Address
	approved   *big.Int
}

func (e *fakeERC20) Address() common.Address { return usdcAddr }
func (e *fakeERC20) Decimals(context.Context) (uint8, error) { return e.decimals, nil }
func (e *fakeERC20) Symbol(context.Context) (string, error) { return "USDC", nil }
func (e *fakeERC20) Allowance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	e.rec.record("allowance")
	return e.allowance, nil
}

func (e *fakeERC20) Approve(_ context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	e.approvedTo = spender
	e.approved = amount
	return e.rec.tx("approve"), nil
}

type fakeSQMU struct {
	rec       *recorder
	balances  map[int64]*big.Int
	operator  bool
	batchRead int
	extra     int
}

func (s *fakeSQMU) Address() common.Address { return sqmuAddr }

func (s *fakeSQMU) BalanceOfBatch(_ context.Context, accounts []common.Address, ids []*big.Int) ([]*big.Int, error) {
	s.batchRead++
	out := make([]*big.Int, len(ids), len(ids)+s.extra)
	for i, id := range ids {
		if b, ok := s.balances[id.Int64()]; ok {
			out[i] = b
		} else {
			out[i] = new(big.Int)
		}
	}
	for range s.extra {
		out = append(out, big.NewInt(1))
	}
	return out, nil
}

func (s *fakeSQMU) IsApprovedForAll(context.Context, common.Address, common.Address) (bool, error) {
	return s.operator, nil
}

func (s *fakeSQMU) SetApprovalForAll(_ context.Context, _ common.Address, approved bool) (*types.Transaction, error) {
	s.operator = approved
	return s.rec.tx("setApprovalForAll"), nil
}

type fakeTrade struct {
	rec          *recorder
	listings     []contracts.Listing
	listingReads int
	lastList     []any
	lastBuy      []any
}

func (t *fakeTrade) Address() common.Address { return tradeAddr }

func (t *fakeTrade) GetActiveListings(context.Context) ([]contracts.Listing, error) {
	t.listingReads++
	return t.listings, nil
}

func (t *fakeTrade) ListToken(ctx context.Context, code string, token common.Address, id, amount *big.Int) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.lastList = []any{code, token, id, amount}
	return t.rec.tx("listToken"), nil
}

func (t *fakeTrade) Buy(ctx context.Context, listingID, amount *big.Int, pay common.Address) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.lastBuy = []any{listingID, amount, pay}
	return t.rec.tx("buy"), nil
}

type fakeWaiter struct {
	rec    *recorder
	onWait func() // runs while the transaction is being mined
}

func (w *fakeWaiter) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if w.onWait != nil {
		w.onWait()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	w.rec.record("wait")
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), BlockNumber: big.NewInt(42)}, nil
}

type fakeContracts struct {
	rec    *recorder
	dist   *fakeDistributor
	erc    *fakeERC20
	sqmu   *fakeSQMU
	trade  *fakeTrade
	waiter *fakeWaiter
	reads  int
}

func newFakeContracts() *fakeContracts {
	rec := &recorder{}
	return &fakeContracts{
		rec: rec,
		dist: &fakeDistributor{
			rec:    rec,
			info:   map[string]contracts.PropertyInfo{},
			active: map[string]bool{},
			prices: map[string]*big.Int{},
		},
		erc:    &fakeERC20{rec: rec, decimals: 6, allowance: new(big.Int)},
		sqmu:   &fakeSQMU{rec: rec, balances: map[int64]*big.Int{}},
		trade:  &fakeTrade{rec: rec},
		waiter: &fakeWaiter{rec: rec},
	}
}

func (c *fakeContracts) Distributor(context.Context) (Distributor, error) {
	c.reads++
	return c.dist, nil
}

func (c *fakeContracts) ERC20(context.Context, common.Address) (ERC20, error) {
	c.reads++
	return c.erc, nil
}

func (c *fakeContracts) SQMU(context.Context) (SQMU, error) {
	c.reads++
	return c.sqmu, nil
}

func (c *fakeContracts) Trade(context.Context) (Trade, error) {
	c.reads++
	return c.trade, nil
}

func (c *fakeContracts) Waiter(context.Context) (Waiter, error) { return c.waiter, nil }

func (c *fakeContracts) TokenMetadata(context.Context) (paymenttokens.MetadataFetcher, error) {
	return nil, errBoom
}

type sentReceipt struct {
	kind   receipt.Kind
	fields url.Values
}

type fakeReceipts struct {
	sent []sentReceipt
}

func (f *fakeReceipts) Send(kind receipt.Kind, fields url.Values) {
	f.sent = append(f.sent, sentReceipt{kind, fields})
}

type fakeReporter struct {
	mu        sync.Mutex
	statuses  []string
	submitted []string
	refreshed []Refresh
}

func (r *fakeReporter) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *fakeReporter) Submitted(kind string, _ common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, kind)
}

func (r *fakeReporter) Refreshed(data Refresh) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = append(r.refreshed, data)
}
