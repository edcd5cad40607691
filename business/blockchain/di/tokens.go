// Package di names the services the blockchain module puts in the container.
package di

import (
	"github.com/fd1az/arbitrage-engine/business/blockchain/app"
	"github.com/fd1az/arbitrage-engine/business/blockchain/infra/ethereum"
	"github.com/fd1az/arbitrage-engine/internal/di"
)

// Resolved by pricing (contract reads) and arbitrage (fees, broadcast).
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	ContractCaller    = di.NewToken[app.ContractCaller]("blockchain.ContractCaller")
)

var (
	RPCClient = di.NewToken[*ethereum.Client]("blockchain:rpcClient")
)

func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetContractCaller(c di.ServiceRegistry) app.ContractCaller {
	return di.GetToken(c, ContractCaller)
}

func GetRPCClient(c di.ServiceRegistry) *ethereum.Client {
	return di.GetToken(c, RPCClient)
}
