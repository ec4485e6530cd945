package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/contracts"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
	"github.com/sqmu-io/sqmu-dapp/internal/receipt"
	"github.com/sqmu-io/sqmu-dapp/internal/units"
)

type ListingConfig struct {
	PropertyCode string
	AgentCode    string
	Chain        chains.Params
}

type ListingDeps struct {
	Session   Session
	Contracts Contracts
	Tokens    *paymenttokens.Registry
	Receipts  ReceiptSender
	Reporter  Reporter
	Guard     *Guard
}

// Listing is the primary-sale purchase flow for one property widget.
type Listing struct {
	cfg  ListingConfig
	deps ListingDeps
}

func NewListing(cfg ListingConfig, deps ListingDeps) *Listing {
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Guard == nil {
		deps.Guard = &Guard{}
	}
	if deps.Tokens == nil {
		deps.Tokens = paymenttokens.NewRegistry()
	}
	return &Listing{cfg: cfg, deps: deps}
}

// PropertyView is what the listing widget shows for a property.
type PropertyView struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	TokenAddress string   `json:"tokenAddress"`
	TokenID      *big.Int `json:"tokenId"`
	Treasury     string   `json:"treasury"`
	PriceUSD     *big.Int `json:"priceUsd"`
	Price        string   `json:"price"`
	Available    *big.Int `json:"availableRaw"`
	AvailableFmt string   `json:"available"`
	Active       bool     `json:"active"`
}

func (l *Listing) propertyCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = strings.TrimSpace(l.cfg.PropertyCode)
	}
	if code == "" {
		return "", apperr.Invalid("propertyCode", "required")
	}
	return code, nil
}

// LoadProperty reads info, availability and status concurrently.
func (l *Listing) LoadProperty(ctx context.Context, code string) (PropertyView, error) {
	code, err := l.propertyCode(code)
	if err != nil {
		return PropertyView{}, err
	}
	dist, err := l.deps.Contracts.Distributor(ctx)
	if err != nil {
		return PropertyView{}, err
	}

	var (
		wg                           sync.WaitGroup
		info                         contracts.PropertyInfo
		available                    *big.Int
		active                       bool
		infoErr, availErr, statusErr error
	)
	wg.Add(3)
	go func() { defer wg.Done(); info, infoErr = dist.GetPropertyInfo(ctx, code) }()
	go func() { defer wg.Done(); available, availErr = dist.GetAvailable(ctx, code) }()
	go func() { defer wg.Done(); active, statusErr = dist.GetPropertyStatus(ctx, code) }()
	wg.Wait()

	if infoErr != nil {
		return PropertyView{}, apperr.Contract(infoErr, "getPropertyInfo")
	}
	if !info.Exists() {
		return PropertyView{}, apperr.Invalid("propertyCode", fmt.Sprintf("property %s not found", code))
	}
	if availErr != nil {
		return PropertyView{}, apperr.Contract(availErr, "getAvailable")
	}
	if statusErr != nil {
		return PropertyView{}, apperr.Contract(statusErr, "getPropertyStatus")
	}

	return PropertyView{
		Code:         code,
		Name:         info.Name,
		TokenAddress: info.TokenAddress.Hex(),
		TokenID:      info.TokenId,
		Treasury:     info.Treasury.Hex(),
		PriceUSD:     info.PriceUSD,
		Price:        units.FormatUSD(info.PriceUSD, constants.USDPriceDecimals),
		Available:    available,
		AvailableFmt: units.FormatSQMU(available),
		Active:       active,
	}, nil
}

// LoadPaymentTokens lists the distributor's accepted tokens that can be
// resolved to metadata.
func (l *Listing) LoadPaymentTokens(ctx context.Context) ([]paymenttokens.PaymentToken, error) {
	dist, err := l.deps.Contracts.Distributor(ctx)
	if err != nil {
		return nil, err
	}
	addrs, err := dist.GetPaymentTokens(ctx)
	if err != nil {
		return nil, apperr.Contract(err, "getPaymentTokens")
	}

	fetcher, err := l.deps.Contracts.TokenMetadata(ctx)
	if err != nil {
		log.Warn("token metadata unavailable, using registry only", "error", err)
		fetcher = nil
	}
	return l.deps.Tokens.Resolve(ctx, fetcher, addrs), nil
}

type BuyRequest struct {
	PropertyCode string `json:"propertyCode"`
	Amount       string `json:"amount"`
	Token        string `json:"token"`
	AgentCode    string `json:"agentCode"`
	Email        string `json:"email"`
}

type buyInput struct {
	code   string
	amount *big.Int
	token  paymenttokens.PaymentToken
	agent  string
	email  string
}

func (l *Listing) validateBuy(req BuyRequest) (buyInput, error) {
	code, err := l.propertyCode(req.PropertyCode)
	if err != nil {
		return buyInput{}, err
	}
	amount, err := units.ParseSQMU(req.Amount)
	if err != nil {
		return buyInput{}, apperr.Invalid("amount", err.Error())
	}
	if strings.TrimSpace(req.Token) == "" {
		return buyInput{}, apperr.Invalid("token", "required")
	}
	token, ok := l.deps.Tokens.LookupHex(req.Token)
	if !ok {
		return buyInput{}, apperr.Invalid("token", "unsupported payment token")
	}
	if err := validateEmail(req.Email); err != nil {
		return buyInput{}, err
	}
	agent := strings.TrimSpace(req.AgentCode)
	if agent == "" {
		agent = l.cfg.AgentCode
	}
	return buyInput{code: code, amount: amount, token: token, agent: agent, email: strings.TrimSpace(req.Email)}, nil
}

// Buy purchases SQMU from the distributor: approve the payment token if the
// allowance is short, then buySQMU.
func (l *Listing) Buy(ctx context.Context, req BuyRequest) (Result, error) {
	done, err := l.deps.Guard.begin()
	if err != nil {
		return Result{}, err
	}
	defer done()

	in, err := l.validateBuy(req)
	if err != nil {
		return Result{}, err
	}
	if err := l.deps.Session.RequireConnected(); err != nil {
		return Result{}, err
	}
	// Past this point the flow runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	rep := l.deps.Reporter

	if l.cfg.Chain.ChainID != 0 {
		if err := l.deps.Session.EnsureChain(ctx, l.cfg.Chain); err != nil {
			return Result{}, err
		}
	}
	owner := l.deps.Session.Snapshot().Account

	rep.Status("Checking property…")
	dist, err := l.deps.Contracts.Distributor(ctx)
	if err != nil {
		return Result{}, err
	}
	info, err := dist.GetPropertyInfo(ctx, in.code)
	if err != nil {
		return Result{}, apperr.Contract(err, "getPropertyInfo")
	}
	if !info.Exists() {
		return Result{}, apperr.Invalid("propertyCode", fmt.Sprintf("property %s not found", in.code))
	}
	active, err := dist.GetPropertyStatus(ctx, in.code)
	if err != nil {
		return Result{}, apperr.Contract(err, "getPropertyStatus")
	}
	if !active {
		return Result{}, apperr.Invalid("propertyCode", fmt.Sprintf("property %s is not active", in.code))
	}
	if info.Available != nil && in.amount.Cmp(info.Available) > 0 {
		return Result{}, apperr.Invalid("amount", fmt.Sprintf("only %s SQMU available", units.FormatSQMU(info.Available)))
	}

	erc, err := l.deps.Contracts.ERC20(ctx, in.token.Address)
	if err != nil {
		return Result{}, err
	}
	decimals, err := erc.Decimals(ctx)
	if err != nil {
		return Result{}, apperr.Contract(err, "decimals")
	}
	required := units.RequiredPayment(info.PriceUSD, in.amount, decimals)

	waiter, err := l.deps.Contracts.Waiter(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Required: required}

	allowance, err := erc.Allowance(ctx, owner, dist.Address())
	if err != nil {
		return Result{}, apperr.Contract(err, "allowance")
	}
	if allowance.Cmp(required) < 0 {
		rep.Status(fmt.Sprintf("Approving %s %s…", units.FormatUnitsTrim(required, decimals, int(decimals)), in.token.Symbol))
		hash, _, err := submit(ctx, waiter, rep, "approve", func() (*types.Transaction, error) {
			return erc.Approve(ctx, dist.Address(), required)
		})
		if err != nil {
			return Result{}, err
		}
		res.Approved = true
		res.ApprovalTx = hash
	}

	rep.Status("Purchasing…")
	buyHash, rcpt, err := submit(ctx, waiter, rep, "buySQMU", func() (*types.Transaction, error) {
		return dist.BuySQMU(ctx, in.code, in.amount, in.token.Address, in.agent)
	})
	if err != nil {
		return Result{}, err
	}
	res.TxHash = buyHash
	res.BlockNumber = blockOf(rcpt)

	rep.Status(fmt.Sprintf("Purchase confirmed: %s SQMU of %s", units.FormatSQMU(in.amount), in.code))
	log.Info("sqmu purchased", "property", in.code, "amount", units.FormatSQMU(in.amount), "tx", buyHash.Hex())

	res.Refresh = l.refresh(ctx, in.code)

	if in.email != "" && l.deps.Receipts != nil {
		l.deps.Receipts.Send(receipt.Listing, receipt.ListingReceipt{
			Email:      in.email,
			TxLink:     receipt.TxLink(l.cfg.Chain.ExplorerURL(), buyHash.Hex()),
			USD:        units.FromFixedUnits(units.RequiredPayment(info.PriceUSD, in.amount, constants.USDTotalDecimals), constants.USDTotalDecimals),
			Token:      in.token.Symbol,
			Chain:      chainName(l.cfg.Chain),
			Property:   in.code,
			SQMUAmount: units.FormatSQMU(in.amount),
			Agent:      in.agent,
		}.Fields())
	}
	return res, nil
}

// refresh re-reads the property after a purchase. Failures are only logged.
func (l *Listing) refresh(ctx context.Context, code string) *Refresh {
	view, err := l.LoadProperty(ctx, code)
	if err != nil {
		log.Warn("property refresh failed", "property", code, "error", err)
		return nil
	}
	r := Refresh{Property: &view}
	l.deps.Reporter.Refreshed(r)
	return &r
}

func chainName(p chains.Params) string {
	if p.ChainName != "" {
		return p.ChainName
	}
	return constants.DefaultChainName
}
