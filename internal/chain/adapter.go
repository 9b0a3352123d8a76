// Package chain defines the per-network Adapter capability interface and
// its EVM/Solana implementations — the single point of contact between
// edgecore and a live blockchain node.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/duskrelay/edgecore/internal/core"
)

// PendingTx is a raw observation from a chain's mempool feed, before the
// Transaction Decoder has made any sense of its calldata.
type PendingTx struct {
	Chain      core.ChainId
	Hash       string
	From       string
	To         string
	Data       []byte
	Value      *big.Int
	GasPrice   *big.Int
	Nonce      uint64
	ObservedAt time.Time
}

// BlockHead is a new chain head observation. ReorgDepth is non-zero when
// Number is not strictly greater than the previous observation on this
// subscription, i.e. the chain reorged back by that many blocks before
// resuming at Number — spec.md §4.1's "Reorg surfaced to subscribers with
// the affected height range."
type BlockHead struct {
	Chain      core.ChainId
	Number     uint64
	Hash       string
	Time       time.Time
	ReorgDepth uint64
}

// FeeData is the adapter's current view of network fee conditions.
type FeeData struct {
	BaseFee       *big.Int // EVM only; nil on Solana
	PriorityFee   *big.Int
	LegacyGasPrice *big.Int
}

// SimResult is the outcome of simulating a signed transaction/bundle without
// broadcasting it.
type SimResult struct {
	Success      bool
	GasUsed      uint64
	RevertReason string
}

// Adapter is the capability surface every chain family (EVM, Solana) must
// provide. A strategy or component never talks to ethclient/solana-go
// directly — only through this interface, so adding a chain family means
// implementing Adapter once, not touching every consumer.
type Adapter interface {
	Chain() core.ChainId

	SubmitSignedTx(ctx context.Context, raw []byte) (string, error)
	GetFeeData(ctx context.Context) (FeeData, error)
	SubscribePendingTxs(ctx context.Context) (<-chan PendingTx, error)
	SubscribeBlocks(ctx context.Context) (<-chan BlockHead, error)
	SimulateTx(ctx context.Context, raw []byte) (SimResult, error)
	QueryAccount(ctx context.Context, address string) (*big.Int, error) // native balance

	HeadBlock(ctx context.Context) (uint64, error)
}

// ErrorClass distinguishes whether a failed chain operation is worth
// retrying.
type ErrorClass int

const (
	// ClassPermanent means retrying will not help (bad request, invalid
	// signature, contract revert on deterministic input).
	ClassPermanent ErrorClass = iota
	// ClassTransient means the node/network hiccuped; backoff-and-retry is
	// the right response.
	ClassTransient
	// ClassReorg means the chain head moved out from under an in-flight
	// operation; the caller should re-evaluate against the new head rather
	// than blindly retry the old one.
	ClassReorg
)

// AdapterError wraps a chain-adapter failure with its retry classification.
type AdapterError struct {
	Class ErrorClass
	Chain core.ChainId
	Op    string
	Err   error
}

func (e *AdapterError) Error() string {
	return e.Chain.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *AdapterError) Unwrap() error { return e.Err }
