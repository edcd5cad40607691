package domain

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNonceConsumed marks a resend rejected because its nonce is already used,
// most likely by an earlier attempt of the same broadcast.
var ErrNonceConsumed = errors.New("nonce consumed by an earlier attempt")

// TxStatus is what the chain knows about a broadcast transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxReverted  TxStatus = "reverted"
)

// Receipt is the settled outcome of a transaction. Pending receipts carry
// only the hash.
type Receipt struct {
	Hash        common.Hash
	Status      TxStatus
	BlockNumber uint64
	GasUsed     uint64
}

func (r Receipt) Settled() bool {
	return r.Status != TxPending
}
