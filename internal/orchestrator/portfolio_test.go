package orchestrator

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
)

func newPortfolioFixture(t *testing.T, cfg PortfolioConfig) (*Portfolio, *fakeContracts, *fakeSession, *fakeReceipts) {
	t.Helper()
	fc := newFakeContracts()
	sess := &fakeSession{connected: true, rec: fc.rec}
	rcpts := &fakeReceipts{}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain = scrollChain
	}
	p := NewPortfolio(cfg, PortfolioDeps{Session: sess, Contracts: fc, Receipts: rcpts})
	return p, fc, sess, rcpts
}

func TestLoadPortfolioSkipsUnpricedIDs(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{MaxTokenID: 10})
	fc.sqmu.balances[2] = big.NewInt(150)  // 1.50
	fc.sqmu.balances[5] = big.NewInt(1000) // 10.00, not registered with the distributor
	fc.sqmu.balances[9] = big.NewInt(25)   // 0.25
	fc.dist.prices["SQMU2"] = big.NewInt(10000)
	fc.dist.prices["SQMU9"] = big.NewInt(400000)

	view, err := p.LoadPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Holdings, 2)

	assert.Equal(t, "SQMU2", view.Holdings[0].Code)
	assert.Equal(t, "1.50", view.Holdings[0].Amount)
	assert.Equal(t, "USD 150.00", view.Holdings[0].Value)
	assert.Equal(t, "SQMU9", view.Holdings[1].Code)
	assert.Equal(t, "USD 1,000.00", view.Holdings[1].Value)

	assert.Equal(t, "1.75", view.Total)
	assert.Equal(t, "USD 1,150.00", view.USD)
	assert.Equal(t, testOwner.Hex(), view.Account)
}

func TestLoadPortfolioRequiresConnection(t *testing.T) {
	p, fc, sess, _ := newPortfolioFixture(t, PortfolioConfig{})
	sess.connected = false

	_, err := p.LoadPortfolio(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNotConnected)
	assert.Zero(t, fc.reads)
}

func TestLoadListingsSkipsPlaceholder(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{})
	fc.trade.listings = []contracts.Listing{
		{ListingId: big.NewInt(0), PropertyCode: "", TokenId: big.NewInt(0), AmountListed: new(big.Int), Active: true},
		{ListingId: big.NewInt(1), Seller: testOwner, PropertyCode: "SQMU3", TokenId: big.NewInt(3), AmountListed: big.NewInt(500), Active: true},
		{ListingId: big.NewInt(2), PropertyCode: "SQMU4", TokenId: big.NewInt(4), AmountListed: big.NewInt(100), Active: true},
	}
	fc.dist.prices["SQMU3"] = big.NewInt(12345)

	out, err := p.LoadListings(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "5.00", out[0].Amount)
	assert.Equal(t, "USD 123.45", out[0].UnitPrice)
	assert.Equal(t, "-", out[1].UnitPrice)
}

func TestSellApprovesOperatorOnce(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{EnableSell: true})
	fc.sqmu.balances[7] = big.NewInt(300)

	res, err := p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "2"})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, []string{"ensureChain", "setApprovalForAll", "wait", "listToken", "wait"}, fc.rec.list())
	assert.Equal(t, []any{"SQMU7", sqmuAddr, big.NewInt(7), big.NewInt(200)}, fc.trade.lastList)

	res, err = p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "1"})
	require.NoError(t, err)
	assert.False(t, res.Approved)
}

func TestSellRefreshesAfterConfirmation(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{EnableSell: true, MaxTokenID: 10})
	rep := &fakeReporter{}
	p.deps.Reporter = rep
	fc.sqmu.operator = true
	fc.sqmu.balances[7] = big.NewInt(300)
	fc.dist.prices["SQMU7"] = big.NewInt(10000)
	fc.trade.listings = []contracts.Listing{
		{ListingId: big.NewInt(1), PropertyCode: "SQMU7", TokenId: big.NewInt(7), AmountListed: big.NewInt(200), Active: true},
	}

	res, err := p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "2"})
	require.NoError(t, err)

	// one balance read for the pre-check, one after listToken confirmed
	assert.Equal(t, 2, fc.sqmu.batchRead)
	assert.Equal(t, 1, fc.trade.listingReads)
	require.NotNil(t, res.Refresh)
	require.NotNil(t, res.Refresh.Portfolio)
	assert.Equal(t, "3.00", res.Refresh.Portfolio.Total)
	require.Len(t, res.Refresh.Listings, 1)
	assert.Equal(t, "2.00", res.Refresh.Listings[0].Amount)
	assert.Len(t, rep.refreshed, 1)
}

func TestSellRejectsMismatchedBalances(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{EnableSell: true})
	fc.sqmu.balances[7] = big.NewInt(300)
	fc.sqmu.extra = 1

	_, err := p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "1"})
	assert.ErrorIs(t, err, apperr.ErrContractCall)
	assert.Equal(t, []string{"ensureChain"}, fc.rec.list())

	_, err = p.LoadPortfolio(context.Background())
	assert.ErrorIs(t, err, apperr.ErrContractCall)
}

func TestSellValidation(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{})
	_, err := p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "disabled")

	p, fc, _, _ = newPortfolioFixture(t, PortfolioConfig{EnableSell: true})
	for _, req := range []SellRequest{
		{PropertyCode: "PROP7", Amount: "1"},
		{PropertyCode: "SQMU0", Amount: "1"},
		{PropertyCode: "SQMUx", Amount: "1"},
		{PropertyCode: "SQMU7", Amount: "-1"},
	} {
		_, err := p.Sell(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", req)
	}
	assert.Zero(t, fc.reads)

	fc.sqmu.balances[7] = big.NewInt(50)
	_, err = p.Sell(context.Background(), SellRequest{PropertyCode: "SQMU7", Amount: "1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "balance is 0.50")
}

func TestBuyListingConvertsUSDTotal(t *testing.T) {
	p, fc, _, rcpts := newPortfolioFixture(t, PortfolioConfig{EnableBuy: true, AgentCode: "AG9"})
	fc.trade.listings = []contracts.Listing{
		{ListingId: big.NewInt(4), PropertyCode: "SQMU7", TokenId: big.NewInt(7), AmountListed: big.NewInt(1000), Active: true},
	}
	fc.dist.prices["SQMU7"] = big.NewInt(10000) // USD 100.00 per SQMU

	res, err := p.BuyListing(context.Background(), BuyListingRequest{ListingID: "4", Amount: "2.50", Token: usdcAddr.Hex(), Email: "x@y.io"})
	require.NoError(t, err)

	// getPrice -> 250.00 USD -> 250_000000 in a 6-decimal token
	assert.Equal(t, big.NewInt(250_000000), res.Required)
	assert.Equal(t, tradeAddr, fc.erc.approvedTo)
	assert.Equal(t, []any{big.NewInt(4), big.NewInt(250), usdcAddr}, fc.trade.lastBuy)
	assert.Equal(t, []string{"ensureChain", "allowance", "approve", "wait", "buy", "wait"}, fc.rec.list())

	require.Len(t, rcpts.sent, 1)
	assert.Equal(t, "250.00", rcpts.sent[0].fields.Get("usd"))
	assert.Equal(t, "AG9", rcpts.sent[0].fields.Get("agent"))
}

func TestBuyListingSurvivesCancelAndRefreshes(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{EnableBuy: true})
	fc.trade.listings = []contracts.Listing{
		{ListingId: big.NewInt(4), PropertyCode: "SQMU7", TokenId: big.NewInt(7), AmountListed: big.NewInt(1000), Active: true},
	}
	fc.dist.prices["SQMU7"] = big.NewInt(10000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fc.waiter.onWait = cancel

	res, err := p.BuyListing(ctx, BuyListingRequest{ListingID: "4", Amount: "1", Token: usdcAddr.Hex()})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.True(t, res.Approved)
	assert.Equal(t, []any{big.NewInt(4), big.NewInt(100), usdcAddr}, fc.trade.lastBuy)

	// one listing read to find the listing, one after buy confirmed
	assert.Equal(t, 2, fc.trade.listingReads)
	assert.Equal(t, 1, fc.sqmu.batchRead)
	require.NotNil(t, res.Refresh)
	assert.NotNil(t, res.Refresh.Portfolio)
	assert.Len(t, res.Refresh.Listings, 1)
}

func TestBuyListingRejects(t *testing.T) {
	p, fc, _, _ := newPortfolioFixture(t, PortfolioConfig{EnableBuy: true})
	fc.trade.listings = []contracts.Listing{
		{ListingId: big.NewInt(4), PropertyCode: "SQMU7", TokenId: big.NewInt(7), AmountListed: big.NewInt(100), Active: true},
	}
	fc.dist.prices["SQMU7"] = big.NewInt(10000)

	_, err := p.BuyListing(context.Background(), BuyListingRequest{ListingID: "5", Amount: "1", Token: usdcAddr.Hex()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = p.BuyListing(context.Background(), BuyListingRequest{ListingID: "4", Amount: "1.01", Token: usdcAddr.Hex()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "only 1.00 SQMU listed")

	_, err = p.BuyListing(context.Background(), BuyListingRequest{ListingID: "four", Amount: "1", Token: usdcAddr.Hex()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p, _, _, _ = newPortfolioFixture(t, PortfolioConfig{})
	_, err = p.BuyListing(context.Background(), BuyListingRequest{ListingID: "4", Amount: "1", Token: usdcAddr.Hex()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "buy: disabled", err.Error())
}

func TestTokenIDFromCode(t *testing.T) {
	id, ok := tokenIDFromCode("SQMU12")
	require.True(t, ok)
	assert.Equal(t, int64(12), id.Int64())
	assert.Equal(t, "SQMU12", propertyCodeFor(12))

	_, ok = tokenIDFromCode("sqmu12")
	assert.False(t, ok)
}

func TestSessionContractsReadsFromConfiguredChain(t *testing.T) {
	sess := &boundSession{}
	reads := &countingSource{}
	sc := &SessionContracts{Session: sess, Reader: reads, Addresses: testAddrs}

	d, err := sc.Distributor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, distAddr, d.Address())
	assert.Equal(t, 1, reads.n)
	assert.Zero(t, sess.n)

	// connected handles still read through the chain client, the session
	// only carries the writes
	sess.connected = true
	_, err = sc.Trade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reads.n)
	assert.Equal(t, 1, sess.n)

	_, err = sc.TokenMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sess.n)
}

func TestLoadPortfolioIgnoresWalletChain(t *testing.T) {
	var hits []uint64
	// the wallet sits on mainnet, the widget is configured for scroll
	sess := &boundSession{connected: true}
	sess.backend = chainBackend{chainID: 1, hits: &hits}
	reads := &countingSource{backend: chainBackend{chainID: scrollChain.ChainID, hits: &hits}}
	sc := &SessionContracts{Session: sess, Reader: reads, Addresses: testAddrs}

	fc := newFakeContracts()
	p := NewPortfolio(PortfolioConfig{MaxTokenID: 3, Chain: scrollChain}, PortfolioDeps{
		Session:   &fakeSession{connected: true, rec: fc.rec},
		Contracts: sc,
	})

	_, err := p.LoadPortfolio(context.Background())
	assert.ErrorIs(t, err, apperr.ErrContractCall)
	assert.Equal(t, []uint64{scrollChain.ChainID}, hits)

	_, err = p.LoadListings(context.Background())
	assert.ErrorIs(t, err, apperr.ErrContractCall)
	assert.Equal(t, []uint64{scrollChain.ChainID, scrollChain.ChainID}, hits)
}

type countingSource struct {
	n       int
	backend contracts.Backend
}

func (c *countingSource) Backend(context.Context) (contracts.Backend, error) {
	c.n++
	return c.backend, nil
}

type boundSession struct {
	countingSource
	connected bool
}

func (b *boundSession) RequireConnected() error {
	if !b.connected {
		return apperr.ErrNotConnected
	}
	return nil
}

func (b *boundSession) TransactOpts(context.Context) (*bind.TransactOpts, error) { return nil, nil }

// chainBackend fails every call and notes which chain was asked.
type chainBackend struct {
	contracts.Backend
	chainID uint64
	hits    *[]uint64
}

func (b chainBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	*b.hits = append(*b.hits, b.chainID)
	return nil, errBoom
}

func (b chainBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	*b.hits = append(*b.hits, b.chainID)
	return nil, errBoom
}
