package widgetconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/paymenttokens"
)

// Resolved is the complete configuration of one widget instance.
type Resolved struct {
	Variant Variant       `json:"variant"`
	MountID string        `json:"mountId,omitempty"`
	Chain   chains.Params `json:"chain"`

	Distributor common.Address `json:"distributorAddress"`
	SQMU        common.Address `json:"sqmuAddress"`
	Trade       common.Address `json:"tradeAddress"`

	DappName     string                       `json:"dappName"`
	DappURL      string                       `json:"dappUrl,omitempty"`
	PropertyCode string                       `json:"propertyCode,omitempty"`
	TokenAddress string                       `json:"tokenAddress,omitempty"`
	AgentCode    string                       `json:"agentCode,omitempty"`
	Email        string                       `json:"email,omitempty"`
	MaxTokenID   int                          `json:"maxTokenId"`
	EnableSell   bool                         `json:"enableSell"`
	EnableBuy    bool                         `json:"enableBuy"`
	ExtraTokens  []paymenttokens.PaymentToken `json:"paymentTokens,omitempty"`

	// Connection hints for the host page's wallet SDK. Stored and echoed,
	// not interpreted here.
	CommunicationLayerPreference string   `json:"communicationLayerPreference,omitempty"`
	PreferDesktop                bool     `json:"preferDesktop"`
	Transports                   []string `json:"transports,omitempty"`

	ChainSwitchTimeout time.Duration `json:"chainSwitchTimeout"`
}

// Resolve fills every unset field from net and the fixed deployments and
// validates the result. net supplies the chain table; an unknown chainId
// needs rpcUrl and chainName in the layers.
func Resolve(variant Variant, mountID string, p Partial, net chains.Config) (Resolved, error) {
	if variant == "" {
		variant = VariantDapp
	}
	if !variant.Valid() {
		return Resolved{}, apperr.Invalid("widget", fmt.Sprintf("unknown widget %q", variant))
	}

	r := Resolved{
		Variant:    variant,
		MountID:    mountID,
		DappName:   constants.AppName,
		MaxTokenID: constants.DefaultMaxTokenID,
	}

	chain, err := resolveChain(p, net)
	if err != nil {
		return Resolved{}, err
	}
	r.Chain = chain

	distributor := constants.DistributorAddress
	if p.ContractAddress != nil {
		distributor = *p.ContractAddress
	}
	if p.DistributorAddress != nil {
		distributor = *p.DistributorAddress
	}
	if r.Distributor, err = address("distributorAddress", distributor); err != nil {
		return Resolved{}, err
	}
	if r.SQMU, err = address("sqmuAddress", str(p.SQMUAddress, constants.SQMUAddress)); err != nil {
		return Resolved{}, err
	}
	if r.Trade, err = address("tradeAddress", str(p.TradeAddress, constants.TradeAddress)); err != nil {
		return Resolved{}, err
	}

	r.DappName = str(p.DappName, r.DappName)
	r.DappURL = str(p.DappURL, "")
	r.PropertyCode = str(p.PropertyCode, "")
	r.AgentCode = str(p.AgentCode, "")
	r.Email = str(p.Email, "")
	if t := str(p.TokenAddress, ""); t != "" {
		if _, err := address("tokenAddress", t); err != nil {
			return Resolved{}, err
		}
		r.TokenAddress = t
	}

	if p.MaxTokenID != nil {
		if *p.MaxTokenID <= 0 || *p.MaxTokenID > 10_000 {
			return Resolved{}, apperr.Invalid("maxTokenId", "must be between 1 and 10000")
		}
		r.MaxTokenID = int(*p.MaxTokenID)
	}
	if p.SQMUDecimals != nil && int(*p.SQMUDecimals) != int(constants.SQMUDecimals) {
		return Resolved{}, apperr.Invalid("sqmuDecimals", fmt.Sprintf("the SQMU token has %d decimals", constants.SQMUDecimals))
	}
	r.EnableSell = p.EnableSell != nil && bool(*p.EnableSell)
	r.EnableBuy = p.EnableBuy != nil && bool(*p.EnableBuy)

	for _, ts := range p.PaymentTokens {
		if ts.Decimals == nil || ts.Symbol == "" {
			// address-only entries resolve through the registry or chain
			continue
		}
		a, err := address("paymentTokens", ts.Address)
		if err != nil {
			return Resolved{}, err
		}
		if *ts.Decimals < 0 || *ts.Decimals > 36 {
			return Resolved{}, apperr.Invalid("paymentTokens", "decimals out of range")
		}
		r.ExtraTokens = append(r.ExtraTokens, paymenttokens.PaymentToken{Address: a, Symbol: ts.Symbol, Decimals: uint8(*ts.Decimals)})
	}

	r.CommunicationLayerPreference = str(p.CommunicationLayerPreference, "")
	r.PreferDesktop = p.PreferDesktop != nil && bool(*p.PreferDesktop)
	switch {
	case len(p.Transports) > 0:
		r.Transports = append([]string(nil), p.Transports...)
	case p.Transport != nil && strings.TrimSpace(*p.Transport) != "":
		r.Transports = []string{strings.TrimSpace(*p.Transport)}
	}

	if p.ChainSwitchTimeout != nil {
		if *p.ChainSwitchTimeout < 0 {
			return Resolved{}, apperr.Invalid("chainSwitchTimeout", "must not be negative")
		}
		r.ChainSwitchTimeout = time.Duration(*p.ChainSwitchTimeout) * time.Millisecond
	}
	return r, nil
}

func resolveChain(p Partial, net chains.Config) (chains.Params, error) {
	n := net.Default()
	if p.ChainID != nil {
		id := uint64(*p.ChainID)
		if known, ok := net.ByChainID(id); ok {
			n = known
		} else {
			n = chains.NetworkConfig{ChainID: id, Native: n.Native}
		}
	}
	if p.InfuraAPIKey != nil {
		n = n.WithInfuraKey(*p.InfuraAPIKey)
	}

	params := n.Params()
	if p.RPCURL != nil && strings.TrimSpace(*p.RPCURL) != "" {
		params.RPCURLs = append([]string{strings.TrimSpace(*p.RPCURL)}, params.RPCURLs...)
	}
	if p.BlockExplorerURL != nil && strings.TrimSpace(*p.BlockExplorerURL) != "" {
		params.BlockExplorerURLs = []string{strings.TrimSpace(*p.BlockExplorerURL)}
	}
	if p.ChainName != nil && strings.TrimSpace(*p.ChainName) != "" {
		params.ChainName = strings.TrimSpace(*p.ChainName)
	}
	if p.NativeCurrency != nil {
		params.NativeCurrency = *p.NativeCurrency
	}

	if err := params.Validate(); err != nil {
		return chains.Params{}, apperr.Invalid("chainId", err.Error())
	}
	return params, nil
}

func address(field, s string) (common.Address, error) {
	a, err := paymenttokens.ParseAddress(s)
	if err != nil {
		return common.Address{}, apperr.Invalid(field, fmt.Sprintf("%q is not an address", s))
	}
	return a, nil
}

func str(p *string, def string) string {
	if p == nil {
		return def
	}
	if v := strings.TrimSpace(*p); v != "" {
		return v
	}
	return def
}
