// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbitrage-engine/business/blockchain/domain"
)

// RPCClient is the node access the rest of the system depends on.
type RPCClient interface {
	GetBalance(ctx context.Context, account common.Address) (*big.Int, error)
	EstimateFee(ctx context.Context, req domain.CallRequest) (domain.FeeEstimate, error)
	// Broadcast submits a signed transaction and returns its hash.
	Broadcast(ctx context.Context, signedTx []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (domain.Receipt, error)
	LatestBlock(ctx context.Context) (uint64, error)
}

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
