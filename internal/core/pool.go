package core

import (
	"math/big"
)

// Protocol is the closed set of AMM protocol variants edgecore understands.
// New protocols are added by extending this set and the matching decoder/
// validator branch, never by an inheritance hierarchy (spec.md §9).
type Protocol string

const (
	ProtocolAMMv2       Protocol = "amm_v2"
	ProtocolAMMv3       Protocol = "amm_v3"
	ProtocolStable      Protocol = "stable"
	ProtocolSolanaAMM   Protocol = "solana_raydium"
	ProtocolSolanaRoute Protocol = "solana_jupiter"
)

// Pool is the authoritative record of one liquidity pool's on-chain state
// as last observed. Reserves are unbounded nonnegative integers; sqrtPrice
// (v3-style pools) is carried in the same field pair as (ReserveA=sqrtPriceX96,
// ReserveB=liquidity) to avoid a second struct shape — protocol determines
// interpretation.
type Pool struct {
	PoolID           string // protocol-specific identity key, not (tokenA,tokenB) — two pools may share a pair
	Protocol         Protocol
	Chain            ChainId
	TokenA           TokenRef
	TokenB           TokenRef
	FeeBps           uint32
	ReserveA         *big.Int // constant-product reserves, or sqrtPriceX96 for v3-style
	ReserveB         *big.Int // constant-product reserves, or active liquidity for v3-style
	LastObservedTick int32    // v3-style only; zero for constant-product pools
	LastObservedBlock uint64
	Reliability      float64 // [0,1], decays with decode/refresh failures
}

// StaleFlag is a derived predicate, not a stored field: a Pool is stale
// relative to a given chain head and freshness threshold. Computing it at
// read time (rather than writing a boolean on every block) keeps the Pool
// Registry's single writer invariant simple — there is exactly one thing
// that can make a Pool's data wrong (an unrefreshed LastObservedBlock), so
// there is exactly one place that checks for it.
func (p Pool) StaleFlag(chainHead uint64, staleThreshold uint64) bool {
	if chainHead < p.LastObservedBlock {
		return false
	}
	return chainHead-p.LastObservedBlock > staleThreshold
}

// MidPriceAToB returns the pool's instantaneous mid price of TokenA
// denominated in TokenB, for constant-product pools. Returns nil if
// reserves are not both positive (pool has no meaningful price yet).
func (p Pool) MidPriceAToB() *big.Float {
	if p.ReserveA == nil || p.ReserveB == nil || p.ReserveA.Sign() <= 0 || p.ReserveB.Sign() <= 0 {
		return nil
	}
	a := new(big.Float).SetInt(p.ReserveA)
	b := new(big.Float).SetInt(p.ReserveB)
	return new(big.Float).Quo(b, a)
}

// Key identifies a pool uniquely for Pool Registry storage: the
// protocol-specific PoolID is the identity, chain-scoped to avoid collision
// across chains that happen to reuse an address/program convention.
func (p Pool) Key() string {
	return string(p.Chain) + ":" + string(p.Protocol) + ":" + p.PoolID
}
