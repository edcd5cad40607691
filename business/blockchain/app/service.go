package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbitrage-engine/business/blockchain/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

// BlockchainService wraps the RPC client with the retry policy.
type BlockchainService struct {
	rpc    RPCClient
	policy *retry.Policy
	wallet common.Address
}

func NewBlockchainService(rpc RPCClient, policy *retry.Policy, wallet common.Address) *BlockchainService {
	return &BlockchainService{
		rpc:    rpc,
		policy: policy,
		wallet: wallet,
	}
}

func (s *BlockchainService) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return retry.Do(ctx, s.policy, func(ctx context.Context) (*big.Int, error) {
		return s.rpc.GetBalance(ctx, account)
	})
}

// WalletBalance returns the configured wallet's native balance.
func (s *BlockchainService) WalletBalance(ctx context.Context) (*big.Int, error) {
	if s.wallet == (common.Address{}) {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("wallet address not configured"))
	}
	return s.GetBalance(ctx, s.wallet)
}

func (s *BlockchainService) EstimateFee(ctx context.Context, req domain.CallRequest) (domain.FeeEstimate, error) {
	if req.From == (common.Address{}) {
		req.From = s.wallet
	}
	return retry.Do(ctx, s.policy, func(ctx context.Context) (domain.FeeEstimate, error) {
		return s.rpc.EstimateFee(ctx, req)
	})
}

// Broadcast is safe to retry: resubmitting a known transaction succeeds. A
// resend rejected with "nonce too low" is reported as ErrNonceConsumed, since
// an earlier attempt may have been mined.
func (s *BlockchainService) Broadcast(ctx context.Context, signedTx []byte) (common.Hash, error) {
	attempts := 0
	return retry.Do(ctx, s.policy, func(ctx context.Context) (common.Hash, error) {
		attempts++
		hash, err := s.rpc.Broadcast(ctx, signedTx)
		if err != nil && attempts > 1 && strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
			return hash, fmt.Errorf("%w: %w", domain.ErrNonceConsumed, err)
		}
		return hash, err
	})
}

// TransactionReceipt reports whether hash has been mined and how it ended.
func (s *BlockchainService) TransactionReceipt(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	return retry.Do(ctx, s.policy, func(ctx context.Context) (domain.Receipt, error) {
		return s.rpc.TransactionReceipt(ctx, hash)
	})
}

// Ping checks that some endpoint answers.
func (s *BlockchainService) Ping(ctx context.Context) error {
	_, err := s.rpc.LatestBlock(ctx)
	return err
}
