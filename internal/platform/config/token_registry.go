package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is a well-known token that can be named by symbol on the CLI
type TokenInfo struct {
	Symbol   string
	Address  string
	Decimals uint8
}

// TokenRegistry maps chain id → symbol → token. Anything not listed must be
// given by address and resolved on chain.
var TokenRegistry = map[uint64]map[string]TokenInfo{
	1: {
		"WETH": {Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
		"WBTC": {Symbol: "WBTC", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
		"USDC": {Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		"USDT": {Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		"DAI":  {Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
		"UNI":  {Symbol: "UNI", Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Decimals: 18},
		"LINK": {Symbol: "LINK", Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Decimals: 18},
	},
	42161: {
		"WETH": {Symbol: "WETH", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
		"USDC": {Symbol: "USDC", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
		"ARB":  {Symbol: "ARB", Address: "0x912CE59144191C1204E64559FE8253a0e49E6548", Decimals: 18},
	},
	10: {
		"WETH": {Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
		"USDC": {Symbol: "USDC", Address: "0x0b2C639c533813f4Aa9D7837cAf62653d097Ff85", Decimals: 6},
		"OP":   {Symbol: "OP", Address: "0x4200000000000000000000000000000000000042", Decimals: 18},
	},
	137: {
		"WMATIC": {Symbol: "WMATIC", Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Decimals: 18},
		"USDC":   {Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
		"WETH":   {Symbol: "WETH", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
	},
	8453: {
		"WETH": {Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
		"USDC": {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	},
}

// LookupToken resolves a symbol (case-insensitive) on chainID. ETH is an
// alias for the wrapped native token where one is listed.
func LookupToken(chainID uint64, symbol string) (pricing.Token, error) {
	tokens, ok := TokenRegistry[chainID]
	if !ok {
		return pricing.Token{}, fmt.Errorf("no known tokens for chain %d", chainID)
	}

	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "ETH" {
		sym = "WETH"
	}

	info, ok := tokens[sym]
	if !ok {
		return pricing.Token{}, fmt.Errorf("unknown token %q on chain %d", symbol, chainID)
	}

	return pricing.Token{
		Address:  common.HexToAddress(info.Address),
		Decimals: info.Decimals,
		Symbol:   info.Symbol,
		ChainID:  chainID,
	}, nil
}

// ParsePair parses "BASE-QUOTE" (e.g. "WETH-USDC") into two known tokens
func ParsePair(chainID uint64, pairName string) (base, quote pricing.Token, err error) {
	parts := strings.Split(pairName, "-")
	if len(parts) != 2 {
		return pricing.Token{}, pricing.Token{}, fmt.Errorf("invalid pair format: %s (expected BASE-QUOTE like WETH-USDC)", pairName)
	}

	if base, err = LookupToken(chainID, parts[0]); err != nil {
		return pricing.Token{}, pricing.Token{}, err
	}
	if quote, err = LookupToken(chainID, parts[1]); err != nil {
		return pricing.Token{}, pricing.Token{}, err
	}
	if base.Equal(quote) {
		return pricing.Token{}, pricing.Token{}, fmt.Errorf("base and quote tokens must be different: %s", pairName)
	}

	return base, quote, nil
}

// RegistryTokens lists the known tokens of chainID sorted by symbol
func RegistryTokens(chainID uint64) []pricing.Token {
	infos := TokenRegistry[chainID]
	out := make([]pricing.Token, 0, len(infos))
	for _, info := range infos {
		out = append(out, pricing.Token{
			Address:  common.HexToAddress(info.Address),
			Decimals: info.Decimals,
			Symbol:   info.Symbol,
			ChainID:  chainID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
