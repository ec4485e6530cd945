package constants

const (
	AppName         = "sqmu-dapp"
	WalletFile      = "wallet.json"
	ConfigFileName  = "config"
	EnvPrefix       = "SQMU"
	PassphraseEnv   = "SQMU_WALLET_PASSPHRASE"
	FilePerm        = 0o600
	DirectoryPerm   = 0o700
	DatasetPrefix   = "mmwp"
	WidgetAttribute = "data-mmwp-widget"

	// AAD for the encrypted wallet key file (must match on decrypt).
	WalletAAD = "sqmu-dapp:wallet:v1"

	NativeAddr = "0x0000000000000000000000000000000000000000"
)

// Fixed contract deployments on Scroll.
const (
	SQMUAddress        = "0xd0b895e975f24045e43d788d42BD938b78666EC8"
	DistributorAddress = "0x19d8D25DD4C85264B2AC502D66aEE113955b8A07"
	TradeAddress       = "0x4F1BFDC7EBba77e7ec76C6AEbE81C0e84d28470B"
)

// Scales used by the SQMU contracts.
const (
	SQMUDecimals     uint8 = 2
	USDPriceDecimals uint8 = 18
	USDTotalDecimals uint8 = 2

	DefaultMaxTokenID  = 100
	PropertyCodePrefix = "SQMU"
)

// Default chain (Scroll mainnet).
const (
	DefaultChainID        uint64 = 534352
	DefaultChainName             = "Scroll"
	DefaultRPCURL                = "https://rpc.scroll.io"
	DefaultExplorerURL           = "https://scrollscan.com"
	DefaultNativeSymbol          = "ETH"
	DefaultNativeName            = "Ether"
	DefaultNativeDecimals uint8  = 18
)

// Receipt endpoints, keyed by transaction type.
const (
	ListingMailURL    = "https://script.google.com/macros/s/AKfycbyCj5NqiESfekawV1MOG3yzCIFR7YNr38XRabKEqCaWXCYlBXo2a7tfzFQUEDzG33YQ/exec"
	GovernanceMailURL = "https://script.google.com/macros/s/AKfycbxWVlc3PO3JF4gUNeW7oVIvmyVr6pVqiLmOKAQwtpCpulcE-akg_Pm8gSUpmTLrkt7l/exec"
	RentMailURL       = "https://script.google.com/macros/s/AKfycbwH7uyxUKHd33cvNH46fxX1ZdFX9ER8eJmMCpvOrnmfHofvyuxpAXwNnJtIMUMMpp_DsA/exec"
	EscrowMailURL     = "https://script.google.com/macros/s/AKfycby3Gbl9V3HDw4TXTUnGIG62yg_lj7S-OAqaJPDNXO9L6tmeeAXcyNuQFartdPzqqOi1hg/exec"
	PaymentMailURL    = "https://script.google.com/macros/s/AKfycbyU-IFkSvD-7qjUA9gunxsldkkRvD0kf5pYjAFCGSu6y3DiabjokpnsCEpIFwOGWfLe/exec"
)
