package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers eth_call by method id with pre-packed outputs.
type fakeCaller struct {
	parsed  abi.ABI
	results map[string][]interface{}
	calls   []string
}

func newFakeCaller(parsed abi.ABI) *fakeCaller {
	return &fakeCaller{parsed: parsed, results: map[string][]interface{}{}}
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := f.parsed.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method.Name)
	return method.Outputs.Pack(f.results[method.Name]...)
}

// fakeBackend is never reached when opts carry nonce, gas and NoSend.
type fakeBackend struct {
	*fakeCaller
	bind.ContractTransactor
	bind.ContractFilterer
}

type staticSigner struct{ from common.Address }

func (s staticSigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:     s.from,
		Nonce:    big.NewInt(7),
		GasLimit: 100_000,
		GasPrice: big.NewInt(1),
		NoSend:   true,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, nil
}

var (
	distAddr  = common.HexToAddress("0x19d8D25DD4C85264B2AC502D66aEE113955b8A07")
	tokenAddr = common.HexToAddress("0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4")
	holder    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestGetPropertyInfo(t *testing.T) {
	fc := newFakeCaller(distributorABI)
	price, _ := new(big.Int).SetString("100000000000000000000", 10)
	fc.results["getPropertyInfo"] = []interface{}{struct {
		Name         string
		TokenAddress common.Address
		TokenId      *big.Int
		Treasury     common.Address
		PriceUSD     *big.Int
		Active       bool
		Available    *big.Int
	}{"Seven", tokenAddr, big.NewInt(7), holder, price, true, big.NewInt(5000)}}

	d := NewDistributorCaller(fc, distAddr)
	info, err := d.GetPropertyInfo(context.Background(), "SQMU7")
	require.NoError(t, err)

	assert.Equal(t, "Seven", info.Name)
	assert.True(t, info.Exists())
	assert.True(t, info.Active)
	assert.Equal(t, "7", info.TokenId.String())
	assert.Equal(t, price.String(), info.PriceUSD.String())
	assert.Equal(t, "5000", info.Available.String())
	assert.Equal(t, []string{"getPropertyInfo"}, fc.calls)
}

func TestPropertyInfoExists(t *testing.T) {
	assert.False(t, PropertyInfo{}.Exists())
}

func TestDistributorScalarReads(t *testing.T) {
	fc := newFakeCaller(distributorABI)
	fc.results["getAvailable"] = []interface{}{big.NewInt(1250)}
	fc.results["getPropertyStatus"] = []interface{}{true}
	fc.results["getPaymentTokens"] = []interface{}{[]common.Address{tokenAddr}}
	fc.results["getPrice"] = []interface{}{big.NewInt(25000)}

	d := NewDistributorCaller(fc, distAddr)
	ctx := context.Background()

	avail, err := d.GetAvailable(ctx, "SQMU7")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), avail.Int64())

	active, err := d.GetPropertyStatus(ctx, "SQMU7")
	require.NoError(t, err)
	assert.True(t, active)

	tokens, err := d.GetPaymentTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenAddr}, tokens)

	usd, err := d.GetPrice(ctx, "SQMU7", big.NewInt(250))
	require.NoError(t, err)
	assert.Equal(t, int64(25000), usd.Int64())
}

func TestERC20Reads(t *testing.T) {
	fc := newFakeCaller(erc20ABI)
	fc.results["decimals"] = []interface{}{uint8(6)}
	fc.results["symbol"] = []interface{}{"USDC"}
	fc.results["allowance"] = []interface{}{big.NewInt(42)}

	e := NewERC20Caller(fc, tokenAddr)
	ctx := context.Background()

	dec, err := e.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	sym, err := e.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	allowance, err := e.Allowance(ctx, holder, distAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(42), allowance.Int64())
}

func TestSQMUReads(t *testing.T) {
	fc := newFakeCaller(sqmuABI)
	fc.results["balanceOfBatch"] = []interface{}{[]*big.Int{big.NewInt(0), big.NewInt(250)}}
	fc.results["isApprovedForAll"] = []interface{}{false}

	s := NewSQMUCaller(fc, tokenAddr)
	ctx := context.Background()

	balances, err := s.BalanceOfBatch(ctx, []common.Address{holder, holder}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, int64(250), balances[1].Int64())

	_, err = s.BalanceOfBatch(ctx, []common.Address{holder}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.Error(t, err)

	// a node answering with more balances than ids asked for
	fc.results["balanceOfBatch"] = []interface{}{[]*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}}
	_, err = s.BalanceOfBatch(ctx, []common.Address{holder, holder}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.ErrorContains(t, err, "3 balances for 2 ids")

	ok, err := s.IsApprovedForAll(ctx, holder, distAddr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetActiveListings(t *testing.T) {
	type tuple struct {
		ListingId    *big.Int
		Seller       common.Address
		PropertyCode string
		TokenAddress common.Address
		TokenId      *big.Int
		AmountListed *big.Int
		Active       bool
	}
	fc := newFakeCaller(tradeABI)
	fc.results["getActiveListings"] = []interface{}{[]tuple{
		{big.NewInt(1), holder, "SQMU7", tokenAddr, big.NewInt(7), big.NewInt(300), true},
	}}

	listings, err := NewTradeCaller(fc, distAddr).GetActiveListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "SQMU7", listings[0].PropertyCode)
	assert.Equal(t, int64(300), listings[0].AmountListed.Int64())
	assert.Equal(t, holder, listings[0].Seller)
}

func TestBuySQMUPacksArguments(t *testing.T) {
	backend := &fakeBackend{fakeCaller: newFakeCaller(distributorABI)}
	d := NewDistributor(backend, distAddr, staticSigner{from: holder})

	tx, err := d.BuySQMU(context.Background(), "SQMU7", big.NewInt(250), tokenAddr, "AGENT1")
	require.NoError(t, err)
	require.NotNil(t, tx.To())
	assert.Equal(t, distAddr, *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())

	method, err := distributorABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "buySQMU", method.Name)

	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "SQMU7", args[0])
	assert.Equal(t, int64(250), args[1].(*big.Int).Int64())
	assert.Equal(t, tokenAddr, args[2])
	assert.Equal(t, "AGENT1", args[3])
}

func TestWriteWithoutSigner(t *testing.T) {
	backend := &fakeBackend{fakeCaller: newFakeCaller(erc20ABI)}
	_, err := NewERC20(backend, tokenAddr, nil).Approve(context.Background(), distAddr, big.NewInt(1))
	assert.Error(t, err)
}

// receiptBackend completes fakeBackend into a Backend.
type receiptBackend struct {
	*fakeBackend
	bind.DeployBackend
}

func TestReadThroughSplitsCallsFromWrites(t *testing.T) {
	reader := newFakeCaller(distributorABI)
	reader.results["getPropertyStatus"] = []interface{}{true}
	writer := &fakeBackend{fakeCaller: newFakeCaller(distributorABI)}

	d := NewDistributor(ReadThrough(receiptBackend{fakeBackend: writer}, reader), distAddr, staticSigner{from: holder})

	active, err := d.GetPropertyStatus(context.Background(), "SQMU7")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []string{"getPropertyStatus"}, reader.calls)
	assert.Empty(t, writer.calls)

	tx, err := d.BuySQMU(context.Background(), "SQMU7", big.NewInt(100), tokenAddr, "")
	require.NoError(t, err)
	assert.Equal(t, distAddr, *tx.To())
	assert.Len(t, reader.calls, 1)
}
