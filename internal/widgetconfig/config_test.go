package widgetconfig

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

func sp(s string) *string { return &s }

func TestMergePrecedence(t *testing.T) {
	global := Partial{PropertyCode: sp("SQMU1"), AgentCode: sp("G"), Email: sp("g@x.io"), RPCURL: sp("https://global")}
	mount := Partial{PropertyCode: sp("SQMU2"), AgentCode: sp("M")}
	dataset := Partial{PropertyCode: sp("SQMU3")}

	got := Merge(global, mount, dataset)
	assert.Equal(t, "SQMU3", *got.PropertyCode)
	assert.Equal(t, "M", *got.AgentCode)
	assert.Equal(t, "g@x.io", *got.Email)
	assert.Equal(t, "https://global", *got.RPCURL)
	assert.Nil(t, got.TradeAddress)

	// merging never aliases the inputs
	*got.Email = "changed"
	assert.Equal(t, "g@x.io", *global.Email)
}

func TestMergeLists(t *testing.T) {
	global := Partial{Transports: StringList{"websocket"}, PaymentTokens: TokenList{{Address: "0x1"}}}
	mount := Partial{Transports: StringList{"polling"}}

	got := Merge(global, mount, Partial{})
	assert.Equal(t, StringList{"polling"}, got.Transports)
	assert.Equal(t, TokenList{{Address: "0x1"}}, got.PaymentTokens)
}

func TestParseDataset(t *testing.T) {
	p, err := ParseDataset(map[string]string{
		"data-mmwp-widget":         "sqmu-listing",
		"data-mmwp-property-code":  "SQMU7",
		"data-mmwp-chain-id":       "534352",
		"data-mmwp-max-token-id":   "20",
		"data-mmwp-enable-sell":    "true",
		"data-mmwp-email":          "",
		"data-mmwp-payment-tokens": "0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4, 0xf55BEC9cafDbE8730f096Aa55dad6D22d44099Df",
		"data-other":               "ignored",
		"class":                    "widget",
	})
	require.NoError(t, err)

	assert.Equal(t, "SQMU7", *p.PropertyCode)
	assert.Equal(t, Uint(534352), *p.ChainID)
	assert.Equal(t, Int(20), *p.MaxTokenID)
	assert.True(t, bool(*p.EnableSell))
	assert.Nil(t, p.Email)
	assert.Len(t, p.PaymentTokens, 2)
}

func TestParseDatasetHexChain(t *testing.T) {
	p, err := ParseDataset(map[string]string{"data-mmwp-chain-id": "0x82750"})
	require.NoError(t, err)
	assert.Equal(t, Uint(534352), *p.ChainID)

	_, err = ParseDataset(map[string]string{"data-mmwp-chain-id": "scroll"})
	assert.Error(t, err)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "chainId", camelCase("chain-id"))
	assert.Equal(t, "communicationLayerPreference", camelCase("communication-layer-preference"))
	assert.Equal(t, "email", camelCase("email"))
}

func TestParseInjectedShapes(t *testing.T) {
	in, err := ParseInjected([]byte(`{
		"global": {"chainId": "0x82750", "enableBuy": true, "unknownKey": 1},
		"mounts": {"buy-box": {"propertyCode": "SQMU4", "maxTokenId": "12"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, Uint(534352), *in.Global.ChainID)
	assert.True(t, bool(*in.Global.EnableBuy))
	assert.Equal(t, "SQMU4", *in.Mount("buy-box").PropertyCode)
	assert.Equal(t, Int(12), *in.Mount("buy-box").MaxTokenID)
	assert.Equal(t, Partial{}, in.Mount("missing"))
	assert.Equal(t, Partial{}, in.Mount(""))

	flat, err := ParseInjected([]byte(`{"chainId": 534352, "agentCode": "AG"}`))
	require.NoError(t, err)
	assert.Equal(t, "AG", *flat.Global.AgentCode)
	assert.Nil(t, flat.Mounts)

	empty, err := ParseInjected(nil)
	require.NoError(t, err)
	assert.Equal(t, Injected{}, empty)

	_, err = ParseInjected([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestTokenListShapes(t *testing.T) {
	var l TokenList
	require.NoError(t, json.Unmarshal([]byte(`["0xaa", {"address": "0xbb", "symbol": "DAI", "decimals": 18}]`), &l))
	require.Len(t, l, 2)
	assert.Equal(t, "0xaa", l[0].Address)
	assert.Equal(t, "DAI", l[1].Symbol)
	assert.Equal(t, Int(18), *l[1].Decimals)
}

func TestResolveDefaults(t *testing.T) {
	r, err := Resolve("", "", Partial{}, chains.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, VariantDapp, r.Variant)
	assert.Equal(t, constants.DefaultChainID, r.Chain.ChainID)
	assert.Equal(t, constants.DefaultRPCURL, r.Chain.RPCURL())
	assert.Equal(t, common.HexToAddress(constants.DistributorAddress), r.Distributor)
	assert.Equal(t, common.HexToAddress(constants.TradeAddress), r.Trade)
	assert.Equal(t, constants.DefaultMaxTokenID, r.MaxTokenID)
	assert.False(t, r.EnableSell)
	assert.Zero(t, r.ChainSwitchTimeout)
}

func TestResolveOverrides(t *testing.T) {
	ten := Int(10)
	timeout := Int(1500)
	yes := Bool(true)
	dec := Int(18)
	p := Partial{
		ContractAddress:    sp("0x00000000000000000000000000000000000000c1"),
		RPCURL:             sp("https://my.rpc"),
		InfuraAPIKey:       sp("key"),
		BlockExplorerURL:   sp("https://explorer.example/"),
		MaxTokenID:         &ten,
		EnableBuy:          &yes,
		Transport:          sp("websocket"),
		ChainSwitchTimeout: &timeout,
		PaymentTokens: TokenList{
			{Address: "0x00000000000000000000000000000000000000dd", Symbol: "DAI", Decimals: &dec},
			{Address: "0x00000000000000000000000000000000000000ee"},
		},
	}
	r, err := Resolve(VariantPortfolio, "pf", p, chains.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0xc1"), r.Distributor)
	assert.Equal(t, []string{"https://my.rpc", "https://scroll-mainnet.infura.io/v3/key", constants.DefaultRPCURL}, r.Chain.RPCURLs)
	assert.Equal(t, "https://explorer.example", r.Chain.ExplorerURL())
	assert.Equal(t, 10, r.MaxTokenID)
	assert.True(t, r.EnableBuy)
	assert.Equal(t, []string{"websocket"}, r.Transports)
	assert.Equal(t, 1500*time.Millisecond, r.ChainSwitchTimeout)
	require.Len(t, r.ExtraTokens, 1)
	assert.Equal(t, "DAI", r.ExtraTokens[0].Symbol)

	// distributorAddress beats the older contractAddress key
	p.DistributorAddress = sp("0x00000000000000000000000000000000000000c2")
	r, err = Resolve(VariantListing, "", p, chains.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xc2"), r.Distributor)
}

func TestResolveRejects(t *testing.T) {
	polygon := Uint(137)
	zero := Int(0)
	three := Int(3)

	cases := map[string]Partial{
		"unknown chain without rpc": {ChainID: &polygon},
		"bad address":               {TradeAddress: sp("0x123")},
		"zero max token id":         {MaxTokenID: &zero},
		"sqmu decimals":             {SQMUDecimals: &three},
		"bad token address":         {TokenAddress: sp("USDC")},
	}
	for name, p := range cases {
		_, err := Resolve(VariantDapp, "", p, chains.DefaultConfig())
		assert.ErrorIs(t, err, apperr.ErrValidation, name)
	}

	_, err := Resolve("sqmu-governance", "", Partial{}, chains.DefaultConfig())
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// an unknown chain is fine once it is described
	r, err := Resolve(VariantDapp, "", Partial{ChainID: &polygon, RPCURL: sp("https://polygon-rpc.com"), ChainName: sp("Polygon")}, chains.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint64(137), r.Chain.ChainID)
}

func TestInitGuard(t *testing.T) {
	g := NewInitGuard()
	require.NoError(t, g.Claim("a"))
	assert.Error(t, g.Claim("a"))
	require.NoError(t, g.Claim("b"))

	g.Release("a")
	assert.NoError(t, g.Claim("a"))

	assert.True(t, g.Boot())
	assert.False(t, g.Boot())
}
