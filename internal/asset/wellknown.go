package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDOptimism = 10
	ChainIDBSC      = 56
	ChainIDPolygon  = 137
	ChainIDBase     = 8453
	ChainIDArbitrum = 42161
)

// CoinGecko coin ids.
const (
	PriceIDEthereum = "ethereum"
	PriceIDBitcoin  = "bitcoin"
	PriceIDWBTC     = "wrapped-bitcoin"
	PriceIDMatic    = "matic-network"
	PriceIDUSDC     = "usd-coin"
	PriceIDUSDT     = "tether"
	PriceIDDAI      = "dai"
	PriceIDLink     = "chainlink"
	PriceIDAave     = "aave"
	PriceIDUniswap  = "uniswap"
)

// Polygon PoS tokens
var (
	AddrUSDCPolygon   = common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
	AddrUSDTPolygon   = common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F")
	AddrDAIPolygon    = common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063")
	AddrWETHPolygon   = common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
	AddrWBTCPolygon   = common.HexToAddress("0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6")
	AddrWMATICPolygon = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	AddrLINKPolygon   = common.HexToAddress("0x53E0bca35eC356BD5ddDFebbD1Fc0fD03FaBad39")
	AddrAAVEPolygon   = common.HexToAddress("0xD6DF932A45C0f255f85145f286eA0b292B21C90B")
	AddrUNIPolygon    = common.HexToAddress("0xb33EaAd8d922B1083446DC23f610c2567fB5180f")
)

// Ethereum mainnet tokens
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAIEthereum  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	AddrLINKEthereum = common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")
)

func polygonAssets() []*Asset {
	return []*Asset{
		NewAsset(NewNativeAssetID(ChainIDPolygon), "MATIC", 18, WithName("Polygon"), WithPriceID(PriceIDMatic)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrWMATICPolygon), "WMATIC", 18, WithName("Wrapped Matic"), WithPriceID(PriceIDMatic)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrUSDCPolygon), "USDC", 6, WithName("USD Coin"), Stable(), WithPriceID(PriceIDUSDC)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrUSDTPolygon), "USDT", 6, WithName("Tether USD"), Stable(), WithPriceID(PriceIDUSDT)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrDAIPolygon), "DAI", 18, WithName("Dai"), Stable(), WithPriceID(PriceIDDAI)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrWETHPolygon), "WETH", 18, WithName("Wrapped Ether"), WithPriceID(PriceIDEthereum)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrWBTCPolygon), "WBTC", 8, WithName("Wrapped Bitcoin"), WithPriceID(PriceIDWBTC)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrLINKPolygon), "LINK", 18, WithName("Chainlink"), WithPriceID(PriceIDLink)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrAAVEPolygon), "AAVE", 18, WithName("Aave"), WithPriceID(PriceIDAave)),
		NewAsset(NewTokenAssetID(ChainIDPolygon, AddrUNIPolygon), "UNI", 18, WithName("Uniswap"), WithPriceID(PriceIDUniswap)),
	}
}

func ethereumAssets() []*Asset {
	return []*Asset{
		NewAsset(NewNativeAssetID(ChainIDEthereum), "ETH", 18, WithName("Ethereum"), WithPriceID(PriceIDEthereum)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWETHEthereum), "WETH", 18, WithName("Wrapped Ether"), WithPriceID(PriceIDEthereum)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDCEthereum), "USDC", 6, WithName("USD Coin"), Stable(), WithPriceID(PriceIDUSDC)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDTEthereum), "USDT", 6, WithName("Tether USD"), Stable(), WithPriceID(PriceIDUSDT)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrDAIEthereum), "DAI", 18, WithName("Dai"), Stable(), WithPriceID(PriceIDDAI)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWBTCEthereum), "WBTC", 8, WithName("Wrapped Bitcoin"), WithPriceID(PriceIDWBTC)),
		NewAsset(NewTokenAssetID(ChainIDEthereum, AddrLINKEthereum), "LINK", 18, WithName("Chainlink"), WithPriceID(PriceIDLink)),
	}
}

// DefaultRegistry returns a registry with Polygon and Ethereum tokens whose
// symbol lookups target chainID.
func DefaultRegistry(chainID uint64) *Registry {
	r := NewRegistry(chainID)
	for _, a := range polygonAssets() {
		r.Register(a)
	}
	for _, a := range ethereumAssets() {
		r.Register(a)
	}
	return r
}
