package core

// MaxHops is the spec-mandated hard cap on route length (spec.md §4.6).
const MaxHops = 4

// AmountScaleBand bounds the input-amount range over which a precomputed
// Route's profitability estimate remains valid; scaling the trade size
// outside this band invalidates the route (spec.md §4.6 "Staleness").
type AmountScaleBand struct {
	MinWei, MaxWei string // decimal big.Int strings; kept as strings to stay comparable/hashable in map keys
}

// Route is a candidate multi-hop path through the Pool Registry graph,
// either precomputed (fast path) or materialized on demand.
type Route struct {
	Hops               []TokenRef
	Protocols          []Protocol
	PoolIDs            []string
	EstimatedGasUnits  uint64
	EstimatedProfitBps int64 // signed: a materialized-but-unprofitable route can still be returned for diagnostics
	Reliability        float64
	AmountScaleBand    AmountScaleBand
}

// HopCount is the number of edges (swaps) in the route, i.e. len(Hops)-1.
func (r Route) HopCount() int {
	if len(r.Hops) == 0 {
		return 0
	}
	return len(r.Hops) - 1
}

// Valid enforces the hard hop cap and basic structural consistency between
// Hops/Protocols/PoolIDs (one protocol and one pool per edge).
func (r Route) Valid() bool {
	hops := r.HopCount()
	if hops == 0 || hops > MaxHops {
		return false
	}
	return len(r.Protocols) == hops && len(r.PoolIDs) == hops
}

// Score implements spec.md §4.6's on-demand scoring formula:
// profit_bps − gas_in_bps − reliability_penalty. gasInBps converts
// EstimatedGasUnits into a basis-point cost at the caller's current gas
// price and trade notional, since gas cost only makes sense relative to a
// trade size the Route Engine does not itself track.
func (r Route) Score(gasInBps int64) int64 {
	reliabilityPenaltyBps := int64((1 - r.Reliability) * 100)
	return r.EstimatedProfitBps - gasInBps - reliabilityPenaltyBps
}
