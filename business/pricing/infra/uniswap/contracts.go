package uniswap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool fee tiers, in hundredths of a basis point.
const (
	FeeTier001 = 100
	FeeTier005 = 500
	FeeTier030 = 3000
	FeeTier100 = 10000
)

// Minimal ABI fragments for the three calls the source makes.
const (
	QuoterV2ABI = `[{"type":"function","name":"quoteExactInputSingle","stateMutability":"nonpayable",` +
		`"inputs":[{"name":"params","type":"tuple","components":[` +
		`{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},` +
		`{"name":"amountIn","type":"uint256"},{"name":"fee","type":"uint24"},` +
		`{"name":"sqrtPriceLimitX96","type":"uint160"}]}],` +
		`"outputs":[{"name":"amountOut","type":"uint256"},{"name":"sqrtPriceX96After","type":"uint160"},` +
		`{"name":"initializedTicksCrossed","type":"uint32"},{"name":"gasEstimate","type":"uint256"}]}]`

	FactoryABI = `[{"type":"function","name":"getPool","stateMutability":"view",` +
		`"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],` +
		`"outputs":[{"name":"pool","type":"address"}]}]`

	ERC20ABI = `[{"type":"function","name":"balanceOf","stateMutability":"view",` +
		`"inputs":[{"name":"account","type":"address"}],` +
		`"outputs":[{"name":"","type":"uint256"}]}]`
)

const (
	methodQuote     = "quoteExactInputSingle"
	methodGetPool   = "getPool"
	methodBalanceOf = "balanceOf"
)

// QuoteExactInputSingleParams is packed as the quoter's params tuple; field
// names must match the ABI component names.
type QuoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}
