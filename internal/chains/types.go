package chains

import (
	"fmt"
	"strings"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	Symbol   string `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals" mapstructure:"decimals"`
}

// Params is everything a wallet needs to add a chain it does not know.
type Params struct {
	ChainID           uint64         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
}

// ChainIDHex is the 0x-prefixed form wallets exchange.
func (p Params) ChainIDHex() string {
	return fmt.Sprintf("0x%x", p.ChainID)
}

func (p Params) RPCURL() string {
	for _, u := range p.RPCURLs {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

func (p Params) ExplorerURL() string {
	if len(p.BlockExplorerURLs) == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(p.BlockExplorerURLs[0]), "/")
}

func (p Params) Validate() error {
	if p.ChainID == 0 {
		return fmt.Errorf("chainId is 0")
	}
	if strings.TrimSpace(p.ChainName) == "" {
		return fmt.Errorf("chain %d has no name", p.ChainID)
	}
	if p.RPCURL() == "" {
		return fmt.Errorf("chain %d has no rpc url", p.ChainID)
	}
	return nil
}

// NetworkConfig describes a network in the config file.
type NetworkConfig struct {
	Name     string         `json:"name" yaml:"name" mapstructure:"name"`
	ChainID  uint64         `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	RPCs     []RPC          `json:"rpcs" yaml:"rpcs" mapstructure:"rpcs"`
	Explorer string         `json:"explorer" yaml:"explorer" mapstructure:"explorer"`
	Native   NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency" mapstructure:"nativeCurrency"`
	// Infura is the Infura subdomain for this network, e.g. "scroll-mainnet".
	Infura string `json:"infura" yaml:"infura" mapstructure:"infura"`
}

type RPC struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url" yaml:"url" mapstructure:"url"`
}

type Config struct {
	Networks       map[string]NetworkConfig `json:"networks" yaml:"networks" mapstructure:"networks"`
	DefaultNetwork string                   `json:"defaultNetwork" yaml:"defaultNetwork" mapstructure:"defaultNetwork"`
}

// DefaultConfig knows only Scroll mainnet.
func DefaultConfig() Config {
	return Config{
		DefaultNetwork: "scroll",
		Networks: map[string]NetworkConfig{
			"scroll": {
				Name:     constants.DefaultChainName,
				ChainID:  constants.DefaultChainID,
				RPCs:     []RPC{{Name: "public", URL: constants.DefaultRPCURL}},
				Explorer: constants.DefaultExplorerURL,
				Native: NativeCurrency{
					Name:     constants.DefaultNativeName,
					Symbol:   constants.DefaultNativeSymbol,
					Decimals: constants.DefaultNativeDecimals,
				},
				Infura: "scroll-mainnet",
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for name, n := range c.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = name
		}
		c.Networks[name] = n
	}
}

func infuraRPC(subdomain, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", subdomain, key)
}

// InjectInfuraKey puts an Infura endpoint first for every network that names
// its Infura subdomain.
func (c *Config) InjectInfuraKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("infura api key is empty")
	}

	for name, n := range c.Networks {
		c.Networks[name] = n.WithInfuraKey(key)
	}
	return nil
}

// WithInfuraKey returns n with the Infura endpoint for key as its first RPC.
// Networks without an Infura subdomain are returned unchanged.
func (n NetworkConfig) WithInfuraKey(key string) NetworkConfig {
	key = strings.TrimSpace(key)
	if key == "" || strings.TrimSpace(n.Infura) == "" {
		return n
	}
	url := infuraRPC(n.Infura, key)
	rpcs := make([]RPC, 0, len(n.RPCs)+1)
	rpcs = append(rpcs, RPC{Name: "Infura", URL: url})
	for _, r := range n.RPCs {
		if r.URL != url {
			rpcs = append(rpcs, r)
		}
	}
	n.RPCs = rpcs
	return n
}

// ByChainID finds the configured network for id.
func (c Config) ByChainID(id uint64) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.ChainID == id {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// Default is the DefaultNetwork entry, or Scroll when it is missing.
func (c Config) Default() NetworkConfig {
	if n, ok := c.Networks[c.DefaultNetwork]; ok {
		return n
	}
	return DefaultConfig().Networks["scroll"]
}

func (n NetworkConfig) Params() Params {
	p := Params{
		ChainID:        n.ChainID,
		ChainName:      n.Name,
		NativeCurrency: n.Native,
	}
	for _, r := range n.RPCs {
		if u := strings.TrimSpace(r.URL); u != "" {
			p.RPCURLs = append(p.RPCURLs, u)
		}
	}
	if e := strings.TrimSpace(n.Explorer); e != "" {
		p.BlockExplorerURLs = []string{e}
	}
	return p
}
