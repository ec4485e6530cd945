package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/receipt"
	"github.com/sqmu-io/sqmu-dapp/internal/units"
)

type PortfolioConfig struct {
	MaxTokenID int
	EnableSell bool
	EnableBuy  bool
	AgentCode  string
	Chain      chains.Params
}

type PortfolioDeps = ListingDeps

// Portfolio shows holdings and drives the secondary market.
type Portfolio struct {
	cfg  PortfolioConfig
	deps PortfolioDeps
}

func NewPortfolio(cfg PortfolioConfig, deps PortfolioDeps) *Portfolio {
	if cfg.MaxTokenID <= 0 {
		cfg.MaxTokenID = constants.DefaultMaxTokenID
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Guard == nil {
		deps.Guard = &Guard{}
	}
	if deps.Tokens == nil {
		deps.Tokens = paymenttokens.NewRegistry()
	}
	return &Portfolio{cfg: cfg, deps: deps}
}

type Holding struct {
	TokenID  int64    `json:"tokenId"`
	Code     string   `json:"propertyCode"`
	Balance  *big.Int `json:"balanceRaw"`
	Amount   string   `json:"balance"`
	ValueUSD *big.Int `json:"valueRaw"`
	Value    string   `json:"value"`
}

type PortfolioView struct {
	Account  string    `json:"account"`
	Holdings []Holding `json:"holdings"`
	TotalRaw *big.Int  `json:"totalSqmuRaw"`
	Total    string    `json:"totalSqmu"`
	USDRaw   *big.Int  `json:"totalUsdRaw"`
	USD      string    `json:"totalUsd"`
}

func propertyCodeFor(id int64) string {
	return constants.PropertyCodePrefix + strconv.FormatInt(id, 10)
}

// tokenIDFromCode parses "SQMU<n>".
func tokenIDFromCode(code string) (*big.Int, bool) {
	if !strings.HasPrefix(code, constants.PropertyCodePrefix) {
		return nil, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(code, constants.PropertyCodePrefix), 10, 64)
	if err != nil || n <= 0 {
		return nil, false
	}
	return big.NewInt(n), true
}

// LoadPortfolio reads the connected account's balances for ids
// 1..MaxTokenID and prices the non-zero ones. Ids the distributor cannot
// price are skipped.
func (p *Portfolio) LoadPortfolio(ctx context.Context) (PortfolioView, error) {
	if err := p.deps.Session.RequireConnected(); err != nil {
		return PortfolioView{}, err
	}
	owner := p.deps.Session.Snapshot().Account

	token, err := p.deps.Contracts.SQMU(ctx)
	if err != nil {
		return PortfolioView{}, err
	}
	dist, err := p.deps.Contracts.Distributor(ctx)
	if err != nil {
		return PortfolioView{}, err
	}

	n := p.cfg.MaxTokenID
	accounts := make([]common.Address, n)
	ids := make([]*big.Int, n)
	for i := range n {
		accounts[i] = owner
		ids[i] = big.NewInt(int64(i + 1))
	}
	balances, err := token.BalanceOfBatch(ctx, accounts, ids)
	if err != nil {
		return PortfolioView{}, apperr.Contract(err, "balanceOfBatch")
	}
	if len(balances) != len(ids) {
		return PortfolioView{}, apperr.Contract(errors.Newf("balanceOfBatch returned %d balances for %d ids", len(balances), len(ids)), "balanceOfBatch")
	}

	var held []Holding
	for i, bal := range balances {
		if bal == nil || bal.Sign() == 0 {
			continue
		}
		id := ids[i].Int64()
		held = append(held, Holding{TokenID: id, Code: propertyCodeFor(id), Balance: bal, Amount: units.FormatSQMU(bal)})
	}

	var wg sync.WaitGroup
	priced := make([]bool, len(held))
	for i := range held {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := dist.GetPrice(ctx, held[i].Code, held[i].Balance)
			if err != nil {
				log.Warn("skipping unpriced token", "property", held[i].Code, "error", err)
				return
			}
			held[i].ValueUSD = v
			held[i].Value = units.FormatUSD(v, constants.USDTotalDecimals)
			priced[i] = true
		}(i)
	}
	wg.Wait()

	view := PortfolioView{Account: owner.Hex(), Holdings: []Holding{}, TotalRaw: new(big.Int), USDRaw: new(big.Int)}
	for i, h := range held {
		if !priced[i] {
			continue
		}
		view.Holdings = append(view.Holdings, h)
		view.TotalRaw.Add(view.TotalRaw, h.Balance)
		view.USDRaw.Add(view.USDRaw, h.ValueUSD)
	}
	view.Total = units.FormatSQMU(view.TotalRaw)
	view.USD = units.FormatUSD(view.USDRaw, constants.USDTotalDecimals)
	return view, nil
}

type ListingView struct {
	ListingID    *big.Int `json:"listingId"`
	Seller       string   `json:"seller"`
	PropertyCode string   `json:"propertyCode"`
	TokenID      *big.Int `json:"tokenId"`
	AmountRaw    *big.Int `json:"amountRaw"`
	Amount       string   `json:"amount"`
	UnitPriceRaw *big.Int `json:"unitPriceRaw,omitempty"`
	UnitPrice    string   `json:"unitPrice"`
}

// LoadListings returns the trade contract's active listings with a per-unit
// price. Listings with token id 0 are placeholders and are skipped.
func (p *Portfolio) LoadListings(ctx context.Context) ([]ListingView, error) {
	trade, err := p.deps.Contracts.Trade(ctx)
	if err != nil {
		return nil, err
	}
	dist, err := p.deps.Contracts.Distributor(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := trade.GetActiveListings(ctx)
	if err != nil {
		return nil, apperr.Contract(err, "getActiveListings")
	}

	out := make([]ListingView, 0, len(raw))
	for _, l := range raw {
		if l.TokenId == nil || l.TokenId.Sign() == 0 {
			continue
		}
		out = append(out, ListingView{
			ListingID:    l.ListingId,
			Seller:       l.Seller.Hex(),
			PropertyCode: l.PropertyCode,
			TokenID:      l.TokenId,
			AmountRaw:    l.AmountListed,
			Amount:       units.FormatSQMU(l.AmountListed),
		})
	}

	one := units.Pow10(constants.SQMUDecimals)
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := dist.GetPrice(ctx, out[i].PropertyCode, one)
			if err != nil {
				log.Warn("listing price unavailable", "property", out[i].PropertyCode, "error", err)
				out[i].UnitPrice = "-"
				return
			}
			out[i].UnitPriceRaw = v
			out[i].UnitPrice = units.FormatUSD(v, constants.USDTotalDecimals)
		}(i)
	}
	wg.Wait()
	return out, nil
}

type SellRequest struct {
	PropertyCode string `json:"propertyCode"`
	Amount       string `json:"amount"`
}

// Sell lists SQMU on the trade contract, granting it operator rights first
// when needed.
func (p *Portfolio) Sell(ctx context.Context, req SellRequest) (Result, error) {
	if !p.cfg.EnableSell {
		return Result{}, apperr.Invalid("sell", "disabled")
	}
	done, err := p.deps.Guard.begin()
	if err != nil {
		return Result{}, err
	}
	defer done()

	code := strings.TrimSpace(req.PropertyCode)
	tokenID, ok := tokenIDFromCode(code)
	if !ok {
		return Result{}, apperr.Invalid("propertyCode", "expected SQMU<id>")
	}
	amount, err := units.ParseSQMU(req.Amount)
	if err != nil {
		return Result{}, apperr.Invalid("amount", err.Error())
	}
	if err := p.deps.Session.RequireConnected(); err != nil {
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.ensureChain(ctx); err != nil {
		return Result{}, err
	}
	owner := p.deps.Session.Snapshot().Account
	rep := p.deps.Reporter

	token, err := p.deps.Contracts.SQMU(ctx)
	if err != nil {
		return Result{}, err
	}
	trade, err := p.deps.Contracts.Trade(ctx)
	if err != nil {
		return Result{}, err
	}
	waiter, err := p.deps.Contracts.Waiter(ctx)
	if err != nil {
		return Result{}, err
	}

	bals, err := token.BalanceOfBatch(ctx, []common.Address{owner}, []*big.Int{tokenID})
	if err != nil {
		return Result{}, apperr.Contract(err, "balanceOfBatch")
	}
	if len(bals) != 1 {
		return Result{}, apperr.Contract(errors.Newf("balanceOfBatch returned %d balances for 1 id", len(bals)), "balanceOfBatch")
	}
	if bals[0] == nil || bals[0].Cmp(amount) < 0 {
		return Result{}, apperr.Invalid("amount", fmt.Sprintf("balance is %s SQMU", units.FormatSQMU(bals[0])))
	}

	var res Result
	approved, err := token.IsApprovedForAll(ctx, owner, trade.Address())
	if err != nil {
		return Result{}, apperr.Contract(err, "isApprovedForAll")
	}
	if !approved {
		rep.Status("Approving trade contract…")
		hash, _, err := submit(ctx, waiter, rep, "setApprovalForAll", func() (*types.Transaction, error) {
			return token.SetApprovalForAll(ctx, trade.Address(), true)
		})
		if err != nil {
			return Result{}, err
		}
		res.Approved = true
		res.ApprovalTx = hash
	}

	rep.Status("Listing…")
	hash, rcpt, err := submit(ctx, waiter, rep, "listToken", func() (*types.Transaction, error) {
		return trade.ListToken(ctx, code, token.Address(), tokenID, amount)
	})
	if err != nil {
		return Result{}, err
	}
	res.TxHash = hash
	res.BlockNumber = blockOf(rcpt)
	rep.Status(fmt.Sprintf("Listed %s SQMU of %s", units.FormatSQMU(amount), code))
	res.Refresh = p.refresh(ctx)
	return res, nil
}

type BuyListingRequest struct {
	ListingID string `json:"listingId"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Email     string `json:"email"`
}

// BuyListing buys part or all of an active listing, paying getPrice's USD
// total converted into the payment token.
func (p *Portfolio) BuyListing(ctx context.Context, req BuyListingRequest) (Result, error) {
	if !p.cfg.EnableBuy {
		return Result{}, apperr.Invalid("buy", "disabled")
	}
	done, err := p.deps.Guard.begin()
	if err != nil {
		return Result{}, err
	}
	defer done()

	listingID, ok := new(big.Int).SetString(strings.TrimSpace(req.ListingID), 10)
	if !ok || listingID.Sign() < 0 {
		return Result{}, apperr.Invalid("listingId", "not a number")
	}
	amount, err := units.ParseSQMU(req.Amount)
	if err != nil {
		return Result{}, apperr.Invalid("amount", err.Error())
	}
	pay, ok := p.deps.Tokens.LookupHex(req.Token)
	if !ok {
		return Result{}, apperr.Invalid("token", "unsupported payment token")
	}
	if err := validateEmail(req.Email); err != nil {
		return Result{}, err
	}
	if err := p.deps.Session.RequireConnected(); err != nil {
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.ensureChain(ctx); err != nil {
		return Result{}, err
	}
	owner := p.deps.Session.Snapshot().Account
	rep := p.deps.Reporter

	trade, err := p.deps.Contracts.Trade(ctx)
	if err != nil {
		return Result{}, err
	}
	dist, err := p.deps.Contracts.Distributor(ctx)
	if err != nil {
		return Result{}, err
	}
	erc, err := p.deps.Contracts.ERC20(ctx, pay.Address)
	if err != nil {
		return Result{}, err
	}
	waiter, err := p.deps.Contracts.Waiter(ctx)
	if err != nil {
		return Result{}, err
	}

	listings, err := trade.GetActiveListings(ctx)
	if err != nil {
		return Result{}, apperr.Contract(err, "getActiveListings")
	}
	var code string
	found := false
	for _, l := range listings {
		if l.ListingId != nil && l.ListingId.Cmp(listingID) == 0 && l.Active {
			if l.AmountListed == nil || l.AmountListed.Cmp(amount) < 0 {
				return Result{}, apperr.Invalid("amount", fmt.Sprintf("only %s SQMU listed", units.FormatSQMU(l.AmountListed)))
			}
			code = l.PropertyCode
			found = true
			break
		}
	}
	if !found {
		return Result{}, apperr.Invalid("listingId", "listing not active")
	}

	usd, err := dist.GetPrice(ctx, code, amount)
	if err != nil {
		return Result{}, apperr.Contract(err, "getPrice")
	}
	decimals, err := erc.Decimals(ctx)
	if err != nil {
		return Result{}, apperr.Contract(err, "decimals")
	}
	required := units.USDTotalToToken(usd, decimals)
	res := Result{Required: required}

	allowance, err := erc.Allowance(ctx, owner, trade.Address())
	if err != nil {
		return Result{}, apperr.Contract(err, "allowance")
	}
	if allowance.Cmp(required) < 0 {
		rep.Status(fmt.Sprintf("Approving %s %s…", units.FormatUnitsTrim(required, decimals, int(decimals)), pay.Symbol))
		hash, _, err := submit(ctx, waiter, rep, "approve", func() (*types.Transaction, error) {
			return erc.Approve(ctx, trade.Address(), required)
		})
		if err != nil {
			return Result{}, err
		}
		res.Approved = true
		res.ApprovalTx = hash
	}

	rep.Status("Buying listing…")
	hash, rcpt, err := submit(ctx, waiter, rep, "buy", func() (*types.Transaction, error) {
		return trade.Buy(ctx, listingID, amount, pay.Address)
	})
	if err != nil {
		return Result{}, err
	}
	res.TxHash = hash
	res.BlockNumber = blockOf(rcpt)
	rep.Status(fmt.Sprintf("Bought %s SQMU of %s", units.FormatSQMU(amount), code))
	res.Refresh = p.refresh(ctx)

	if email := strings.TrimSpace(req.Email); email != "" && p.deps.Receipts != nil {
		p.deps.Receipts.Send(receipt.Listing, receipt.ListingReceipt{
			Email:      email,
			TxLink:     receipt.TxLink(p.cfg.Chain.ExplorerURL(), hash.Hex()),
			USD:        units.FromFixedUnits(usd, constants.USDTotalDecimals),
			Token:      pay.Symbol,
			Chain:      chainName(p.cfg.Chain),
			Property:   code,
			SQMUAmount: units.FormatSQMU(amount),
			Agent:      p.cfg.AgentCode,
		}.Fields())
	}
	return res, nil
}

// refresh re-reads holdings and listings after a confirmed trade. Failures
// are only logged.
func (p *Portfolio) refresh(ctx context.Context) *Refresh {
	var r Refresh
	view, err := p.LoadPortfolio(ctx)
	if err != nil {
		log.Warn("portfolio refresh failed", "error", err)
	} else {
		r.Portfolio = &view
	}
	listings, err := p.LoadListings(ctx)
	if err != nil {
		log.Warn("listings refresh failed", "error", err)
	} else {
		r.Listings = listings
	}
	if r.Portfolio == nil && r.Listings == nil {
		return nil
	}
	p.deps.Reporter.Refreshed(r)
	return &r
}

func (p *Portfolio) ensureChain(ctx context.Context) error {
	if p.cfg.Chain.ChainID == 0 {
		return nil
	}
	return p.deps.Session.EnsureChain(ctx, p.cfg.Chain)
}
