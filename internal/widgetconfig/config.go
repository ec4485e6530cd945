// Package widgetconfig merges the three configuration layers a widget sees:
// injected global defaults, per-mount overrides and the mount's own data
// attributes, in that order of increasing precedence.
package widgetconfig

import (
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
)

// Variant names the widget a mount point asks for.
type Variant string

const (
	VariantDapp      Variant = "metamask-dapp"
	VariantListing   Variant = "sqmu-listing"
	VariantPortfolio Variant = "sqmu-portfolio"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantDapp, VariantListing, VariantPortfolio:
		return true
	}
	return false
}

// Partial is one configuration layer. Nil fields are unset and do not
// override lower layers.
type Partial struct {
	ChainID            *Uint                  `json:"chainId,omitempty"`
	ContractAddress    *string                `json:"contractAddress,omitempty"`
	DistributorAddress *string                `json:"distributorAddress,omitempty"`
	TradeAddress       *string                `json:"tradeAddress,omitempty"`
	SQMUAddress        *string                `json:"sqmuAddress,omitempty"`
	RPCURL             *string                `json:"rpcUrl,omitempty"`
	BlockExplorerURL   *string                `json:"blockExplorerUrl,omitempty"`
	InfuraAPIKey       *string                `json:"infuraApiKey,omitempty"`
	DappName           *string                `json:"dappName,omitempty"`
	DappURL            *string                `json:"dappUrl,omitempty"`
	ChainName          *string                `json:"chainName,omitempty"`
	NativeCurrency     *chains.NativeCurrency `json:"nativeCurrency,omitempty"`
	PropertyCode       *string                `json:"propertyCode,omitempty"`
	TokenAddress       *string                `json:"tokenAddress,omitempty"`
	AgentCode          *string                `json:"agentCode,omitempty"`
	Email              *string                `json:"email,omitempty"`
	MaxTokenID         *Int                   `json:"maxTokenId,omitempty"`
	SQMUDecimals       *Int                   `json:"sqmuDecimals,omitempty"`
	EnableSell         *Bool                  `json:"enableSell,omitempty"`
	EnableBuy          *Bool                  `json:"enableBuy,omitempty"`
	PaymentTokens      TokenList              `json:"paymentTokens,omitempty"`

	CommunicationLayerPreference *string    `json:"communicationLayerPreference,omitempty"`
	PreferDesktop                *Bool      `json:"preferDesktop,omitempty"`
	Transport                    *string    `json:"transport,omitempty"`
	Transports                   StringList `json:"transports,omitempty"`
	// ChainSwitchTimeout is in milliseconds.
	ChainSwitchTimeout *Int `json:"chainSwitchTimeout,omitempty"`
}

// Merge folds layers left to right; a set field in a later layer wins.
func Merge(layers ...Partial) Partial {
	var out Partial
	for _, l := range layers {
		out.overlay(l)
	}
	return out
}

func (p *Partial) overlay(o Partial) {
	setPtr(&p.ChainID, o.ChainID)
	setPtr(&p.ContractAddress, o.ContractAddress)
	setPtr(&p.DistributorAddress, o.DistributorAddress)
	setPtr(&p.TradeAddress, o.TradeAddress)
	setPtr(&p.SQMUAddress, o.SQMUAddress)
	setPtr(&p.RPCURL, o.RPCURL)
	setPtr(&p.BlockExplorerURL, o.BlockExplorerURL)
	setPtr(&p.InfuraAPIKey, o.InfuraAPIKey)
	setPtr(&p.DappName, o.DappName)
	setPtr(&p.DappURL, o.DappURL)
	setPtr(&p.ChainName, o.ChainName)
	setPtr(&p.NativeCurrency, o.NativeCurrency)
	setPtr(&p.PropertyCode, o.PropertyCode)
	setPtr(&p.TokenAddress, o.TokenAddress)
	setPtr(&p.AgentCode, o.AgentCode)
	setPtr(&p.Email, o.Email)
	setPtr(&p.MaxTokenID, o.MaxTokenID)
	setPtr(&p.SQMUDecimals, o.SQMUDecimals)
	setPtr(&p.EnableSell, o.EnableSell)
	setPtr(&p.EnableBuy, o.EnableBuy)
	setPtr(&p.CommunicationLayerPreference, o.CommunicationLayerPreference)
	setPtr(&p.PreferDesktop, o.PreferDesktop)
	setPtr(&p.Transport, o.Transport)
	setPtr(&p.ChainSwitchTimeout, o.ChainSwitchTimeout)
	if o.PaymentTokens != nil {
		p.PaymentTokens = append(TokenList(nil), o.PaymentTokens...)
	}
	if o.Transports != nil {
		p.Transports = append(StringList(nil), o.Transports...)
	}
}

func setPtr[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}
