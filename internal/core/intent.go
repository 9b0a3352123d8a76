package core

import (
	"math/big"
	"time"
)

// Method is the closed set of decoded router/program call shapes the
// Transaction Decoder produces. Unknown calldata never reaches a TradeIntent
// at all — it is reported as a wrapped ErrUndecodable (see
// internal/decoder); there is no separate Ignored outcome.
type Method string

const (
	MethodExactIn       Method = "exact_in"
	MethodExactOut      Method = "exact_out"
	MethodExactInSingle Method = "exact_in_single" // v3 single-hop
	MethodExactInPath   Method = "exact_in_path"   // v3 multi-hop path
	MethodStableSwap    Method = "stable_swap"
	MethodSolanaSwap    Method = "solana_swap"
)

// TradeIntent is the canonical, immutable-once-emitted decoding of a pending
// transaction's trade. Path holds the ordered token hops the trade walks;
// for AMM-v2 style swaps this is the router's path array, for v3
// exact-input-single it is the two endpoints.
type TradeIntent struct {
	SourceTxHash        string
	Chain               ChainId
	Protocol            Protocol
	Router              string
	Method              Method
	Path                []TokenRef
	AmountIn            *big.Int
	AmountOutMin        *big.Int
	Deadline            time.Time
	Sender              string
	ObservedTimestamp   time.Time
	MempoolPriorityFee  *big.Int // wei (EVM) or lamports (Solana), priority fee offered
}

// PathValid reports whether Path has at least two hops and every hop shares
// the intent's chain — a decoder bug producing a cross-chain path is a
// programming error, not a runtime condition to silently tolerate.
func (t TradeIntent) PathValid() bool {
	if len(t.Path) < 2 {
		return false
	}
	for _, tok := range t.Path {
		if tok.Chain != t.Chain {
			return false
		}
	}
	return true
}

// Expired reports whether the intent's deadline has passed as of now.
func (t TradeIntent) Expired(now time.Time) bool {
	return !t.Deadline.IsZero() && now.After(t.Deadline)
}
