package core

import (
	"fmt"
	"math/big"
	"time"
)

// StrategyKind is the closed set of trading personalities sharing this core.
type StrategyKind string

const (
	StrategyArbitrage StrategyKind = "arbitrage"
	StrategySandwich  StrategyKind = "sandwich"
	StrategyCopy      StrategyKind = "copy"
)

// OpportunityStatus is the lifecycle state of an Opportunity. Transitions
// are enforced forward-only by Opportunity Core (see internal/opportunity);
// this type only knows how to describe terminal-ness, not enforce order.
type OpportunityStatus string

const (
	OppPending    OpportunityStatus = "pending"
	OppValidated  OpportunityStatus = "validated"
	OppExecuting  OpportunityStatus = "executing"
	OppLanded     OpportunityStatus = "landed"
	OppExpired    OpportunityStatus = "expired"
	OppRejected   OpportunityStatus = "rejected"
)

func (s OpportunityStatus) Terminal() bool {
	switch s {
	case OppLanded, OppExpired, OppRejected:
		return true
	default:
		return false
	}
}

// rank gives each status a monotonic order so forward-only transitions can
// be checked structurally. Rejected/Expired are terminal but can be reached
// from any non-terminal rank, so they are not simply "highest rank" — see
// CanTransitionTo.
var statusRank = map[OpportunityStatus]int{
	OppPending:   0,
	OppValidated: 1,
	OppExecuting: 2,
	OppLanded:    3,
}

// CanTransitionTo enforces spec.md §3's "may only transition forward or to
// a terminal state" invariant (testable property #4, lifecycle monotonicity).
func (s OpportunityStatus) CanTransitionTo(next OpportunityStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OppRejected || next == OppExpired {
		return true
	}
	curRank, curOK := statusRank[s]
	nextRank, nextOK := statusRank[next]
	if !curOK || !nextOK {
		return false
	}
	return nextRank == curRank+1
}

// Opportunity is a candidate trade surfaced by Opportunity Core, owned by
// Opportunity Core for its lifetime; once committed to a Bundle it is
// jointly referenced via the Bundle's OpportunityID back-reference (an id,
// not a pointer — spec.md §9 "arena-plus-index" resolution of the
// Opportunity<->Bundle cycle).
type Opportunity struct {
	OpportunityID        string // UUID
	StrategyKind         StrategyKind
	Status               OpportunityStatus
	CreatedAt            time.Time
	Fingerprint          string
	ExpectedProfitNative *big.Int
	ExpectedProfitUSD    *big.Float
	Confidence           float64 // [0,1]
	RequiredCapital      *big.Int
	Chain                ChainId
	RouteSnapshot        Route
	LinkedIntentTxHash   string // optional: source_tx_hash of the TradeIntent this opportunity reacts to
	TTL                  time.Duration
	RejectReason         string // populated only when Status == OppRejected
}

func (o Opportunity) Expired(now time.Time) bool {
	return now.After(o.CreatedAt.Add(o.TTL))
}

// Validate checks the invariants spec.md §3 lists beyond lifecycle: a
// confidence out of [0,1] or a zero fingerprint is a construction bug.
func (o Opportunity) Validate() error {
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("core: opportunity confidence %f out of [0,1]", o.Confidence)
	}
	if o.Fingerprint == "" {
		return fmt.Errorf("core: opportunity missing fingerprint")
	}
	if err := o.Chain.AssertValid(); err != nil {
		return err
	}
	return nil
}
