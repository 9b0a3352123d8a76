package core

import (
	"math/big"
	"time"
)

// ExecutionRecord is the durable, append-only account of what actually
// happened when a Bundle was pursued — the Durable Store's primary audit
// artifact (spec.md §4.12) and the source of truth Risk Governor reads to
// evaluate loss-limit policies.
type ExecutionRecord struct {
	ExecutionID       string
	OpportunityID     string
	BundleID          string
	Chain             ChainId
	StrategyKind      StrategyKind

	PricesObserved    map[string]*big.Float // TokenRef.Key() -> price in quote currency at decision time
	GasNativeSpent    *big.Int
	RealizedProfitNative *big.Int // signed: negative on a loss
	RealizedProfitUSD    *big.Float

	SubmittedAt       time.Time
	IncludedAt        time.Time // zero if never included
	FailedAt          time.Time // zero if not failed
	FailureReason     string
}

// Landed reports whether this record represents an on-chain-included
// outcome, as opposed to a failed/expired/replaced attempt.
func (e ExecutionRecord) Landed() bool {
	return !e.IncludedAt.IsZero()
}

// PnLNative returns the realized native-asset profit or loss, treating a nil
// RealizedProfitNative (not yet settled) as zero rather than panicking — the
// Risk Governor sums these across a rolling window and an unsettled record
// must not skew that sum.
func (e ExecutionRecord) PnLNative() *big.Int {
	if e.RealizedProfitNative == nil {
		return big.NewInt(0)
	}
	return e.RealizedProfitNative
}
