package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs: only the methods the widgets call.

// DistributorABI is the AtomicSQMUDistributor surface.
const DistributorABI = `[
	{
		"type": "function", "name": "getPropertyInfo", "stateMutability": "view",
		"inputs": [{"name": "propertyCode", "type": "string"}],
		"outputs": [{
			"name": "", "type": "tuple",
			"components": [
				{"name": "name", "type": "string"},
				{"name": "tokenAddress", "type": "address"},
				{"name": "tokenId", "type": "uint256"},
				{"name": "treasury", "type": "address"},
				{"name": "priceUSD", "type": "uint256"},
				{"name": "active", "type": "bool"},
				{"name": "available", "type": "uint256"}
			]
		}]
	},
	{
		"type": "function", "name": "getAvailable", "stateMutability": "view",
		"inputs": [{"name": "propertyCode", "type": "string"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function", "name": "getPropertyStatus", "stateMutability": "view",
		"inputs": [{"name": "propertyCode", "type": "string"}],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function", "name": "getPaymentTokens", "stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "address[]"}]
	},
	{
		"type": "function", "name": "getPrice", "stateMutability": "view",
		"inputs": [{"name": "propertyCode", "type": "string"}, {"name": "amount", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function", "name": "buySQMU", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "propertyCode", "type": "string"},
			{"name": "sqmuAmount", "type": "uint256"},
			{"name": "paymentToken", "type": "address"},
			{"name": "agentCode", "type": "string"}
		],
		"outputs": []
	}
]`

// SQMUABI is the ERC-1155 style SQMU token surface.
const SQMUABI = `[
	{
		"type": "function", "name": "balanceOfBatch", "stateMutability": "view",
		"inputs": [{"name": "accounts", "type": "address[]"}, {"name": "ids", "type": "uint256[]"}],
		"outputs": [{"name": "", "type": "uint256[]"}]
	},
	{
		"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
		"inputs": [{"name": "account", "type": "address"}, {"name": "operator", "type": "address"}],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function", "name": "setApprovalForAll", "stateMutability": "nonpayable",
		"inputs": [{"name": "operator", "type": "address"}, {"name": "approved", "type": "bool"}],
		"outputs": []
	}
]`

// ERC20ABI covers what payment tokens need to expose.
const ERC20ABI = `[
	{
		"type": "function", "name": "decimals", "stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"type": "function", "name": "symbol", "stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}]
	},
	{
		"type": "function", "name": "allowance", "stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function", "name": "approve", "stateMutability": "nonpayable",
		"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

// TradeABI is the SQMUTrade secondary market surface.
const TradeABI = `[
	{
		"type": "function", "name": "getActiveListings", "stateMutability": "view",
		"inputs": [],
		"outputs": [{
			"name": "", "type": "tuple[]",
			"components": [
				{"name": "listingId", "type": "uint256"},
				{"name": "seller", "type": "address"},
				{"name": "propertyCode", "type": "string"},
				{"name": "tokenAddress", "type": "address"},
				{"name": "tokenId", "type": "uint256"},
				{"name": "amountListed", "type": "uint256"},
				{"name": "active", "type": "bool"}
			]
		}]
	},
	{
		"type": "function", "name": "listToken", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "propertyCode", "type": "string"},
			{"name": "tokenAddress", "type": "address"},
			{"name": "tokenId", "type": "uint256"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "buy", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "listingId", "type": "uint256"},
			{"name": "amount", "type": "uint256"},
			{"name": "paymentToken", "type": "address"}
		],
		"outputs": []
	}
]`

var (
	distributorABI = mustParseABI("distributor", DistributorABI)
	sqmuABI        = mustParseABI("sqmu", SQMUABI)
	erc20ABI       = mustParseABI("erc20", ERC20ABI)
	tradeABI       = mustParseABI("trade", TradeABI)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: parse %s abi: %v", name, err))
	}
	return parsed
}
