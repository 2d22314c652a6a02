package txbuilder

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// NonfungiblePositionManager methods used for position management
const positionManagerABIJSON = `[
  {
    "inputs": [{
      "components": [
        {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
        {"internalType": "uint128", "name": "liquidity", "type": "uint128"},
        {"internalType": "uint256", "name": "amount0Min", "type": "uint256"},
        {"internalType": "uint256", "name": "amount1Min", "type": "uint256"},
        {"internalType": "uint256", "name": "deadline", "type": "uint256"}
      ],
      "internalType": "struct INonfungiblePositionManager.DecreaseLiquidityParams",
      "name": "params",
      "type": "tuple"
    }],
    "name": "decreaseLiquidity",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{
      "components": [
        {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
        {"internalType": "address", "name": "recipient", "type": "address"},
        {"internalType": "uint128", "name": "amount0Max", "type": "uint128"},
        {"internalType": "uint128", "name": "amount1Max", "type": "uint128"}
      ],
      "internalType": "struct INonfungiblePositionManager.CollectParams",
      "name": "params",
      "type": "tuple"
    }],
    "name": "collect",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{
      "components": [
        {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
        {"internalType": "uint256", "name": "amount0Desired", "type": "uint256"},
        {"internalType": "uint256", "name": "amount1Desired", "type": "uint256"},
        {"internalType": "uint256", "name": "amount0Min", "type": "uint256"},
        {"internalType": "uint256", "name": "amount1Min", "type": "uint256"},
        {"internalType": "uint256", "name": "deadline", "type": "uint256"}
      ],
      "internalType": "struct INonfungiblePositionManager.IncreaseLiquidityParams",
      "name": "params",
      "type": "tuple"
    }],
    "name": "increaseLiquidity",
    "outputs": [
      {"internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes[]", "name": "data", "type": "bytes[]"}],
    "name": "multicall",
    "outputs": [{"internalType": "bytes[]", "name": "results", "type": "bytes[]"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

// SwapRouter02 exactInput
const swapRouterABIJSON = `[
  {
    "inputs": [{
      "components": [
        {"internalType": "bytes", "name": "path", "type": "bytes"},
        {"internalType": "address", "name": "recipient", "type": "address"},
        {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
        {"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"}
      ],
      "internalType": "struct IV3SwapRouter.ExactInputParams",
      "name": "params",
      "type": "tuple"
    }],
    "name": "exactInput",
    "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	positionManagerOnce sync.Once
	positionManagerABI  abi.ABI
	positionManagerErr  error

	swapRouterOnce sync.Once
	swapRouterABI  abi.ABI
	swapRouterErr  error
)

// PositionManagerABI returns the parsed NonfungiblePositionManager ABI subset.
func PositionManagerABI() (abi.ABI, error) {
	positionManagerOnce.Do(func() {
		positionManagerABI, positionManagerErr = abi.JSON(strings.NewReader(positionManagerABIJSON))
	})
	return positionManagerABI, positionManagerErr
}

// SwapRouterABI returns the parsed SwapRouter02 ABI subset.
func SwapRouterABI() (abi.ABI, error) {
	swapRouterOnce.Do(func() {
		swapRouterABI, swapRouterErr = abi.JSON(strings.NewReader(swapRouterABIJSON))
	})
	return swapRouterABI, swapRouterErr
}
