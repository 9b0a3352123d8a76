// Package types holds small cross-package value types shared between
// pkg/contractclient and the internal chain-adapter layer.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SendMode controls how a ContractClient.Send call is broadcast.
type SendMode string

const (
	// Standard submits through the node's normal public mempool.
	Standard SendMode = "standard"
	// Private marks a private-relay submission. ContractClient.Send rejects
	// it with an error; private submission goes through internal/relay.
	Private SendMode = "private"
)

// TxReceipt is the subset of a chain receipt edgecore's components need,
// decoupled from go-ethereum's receipt type so a confirmation path can
// support both EVM chains and a future Solana one without a second receipt
// shape.
type TxReceipt struct {
	TxHash            common.Hash
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Status            string // "success" | "failed"
	Logs              []Log
}

// Log is a minimal EVM log entry, enough for ParseReceipt-style event
// extraction without pulling the full go-ethereum Log type through every
// caller.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Succeeded reports whether the receipt represents an on-chain success.
func (r TxReceipt) Succeeded() bool {
	return r.Status == "success"
}
