package liquidity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownChain is returned for chain IDs without deployed periphery contracts
var ErrUnknownChain = errors.New("unknown chain")

// Chain holds the Uniswap V3 periphery deployment of one network.
type Chain struct {
	ID              uint64
	Name            string
	Factory         common.Address
	PositionManager common.Address // NonfungiblePositionManager
	SwapRouter      common.Address // SwapRouter02
	Quoter          common.Address // QuoterV2
	WrappedNative   common.Address
}

// Chain IDs
const (
	ChainEthereum uint64 = 1
	ChainOptimism uint64 = 10
	ChainPolygon  uint64 = 137
	ChainBase     uint64 = 8453
	ChainArbitrum uint64 = 42161
)

var (
	canonicalFactory         = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	canonicalPositionManager = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	canonicalSwapRouter      = common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	canonicalQuoter          = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
)

var chains = map[uint64]Chain{
	ChainEthereum: {
		ID:              ChainEthereum,
		Name:            "ethereum",
		Factory:         canonicalFactory,
		PositionManager: canonicalPositionManager,
		SwapRouter:      canonicalSwapRouter,
		Quoter:          canonicalQuoter,
		WrappedNative:   common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	},
	ChainOptimism: {
		ID:              ChainOptimism,
		Name:            "optimism",
		Factory:         canonicalFactory,
		PositionManager: canonicalPositionManager,
		SwapRouter:      canonicalSwapRouter,
		Quoter:          canonicalQuoter,
		WrappedNative:   common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
	ChainPolygon: {
		ID:              ChainPolygon,
		Name:            "polygon",
		Factory:         canonicalFactory,
		PositionManager: canonicalPositionManager,
		SwapRouter:      canonicalSwapRouter,
		Quoter:          canonicalQuoter,
		WrappedNative:   common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
	},
	ChainBase: {
		ID:              ChainBase,
		Name:            "base",
		Factory:         common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
		PositionManager: common.HexToAddress("0x03a520b32C04BF3bEEf7BEb72E919cf822Ed34f1"),
		SwapRouter:      common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481"),
		Quoter:          common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"),
		WrappedNative:   common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
	ChainArbitrum: {
		ID:              ChainArbitrum,
		Name:            "arbitrum",
		Factory:         canonicalFactory,
		PositionManager: canonicalPositionManager,
		SwapRouter:      canonicalSwapRouter,
		Quoter:          canonicalQuoter,
		WrappedNative:   common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
	},
}

// ChainByID returns the deployment for a chain ID.
func ChainByID(id uint64) (Chain, error) {
	c, ok := chains[id]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %d", ErrUnknownChain, id)
	}
	return c, nil
}

// ChainByName returns the deployment for a lower-case network name.
func ChainByName(name string) (Chain, error) {
	for _, c := range chains {
		if c.Name == name {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: %q", ErrUnknownChain, name)
}

// SupportedChains lists all known deployments ordered by chain ID.
func SupportedChains() []Chain {
	out := make([]Chain, 0, len(chains))
	for _, c := range chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
