// Package opportunity turns decoded TradeIntents and Route Engine output
// into scored, deduplicated Opportunity records and owns their lifecycle
// (spec.md §4.8). It is the one place that decides strategy-specific
// expected profit; every strategy's formula lives here, not scattered
// across the decoder or route engine.
package opportunity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskrelay/edgecore/internal/core"
)

// Thresholds are the per-strategy minimum bars an opportunity must clear to
// be emitted (spec.md §4.8: "above a strategy-specific minimum profit
// threshold and minimum confidence").
type Thresholds struct {
	MinProfitNative *big.Int
	MinConfidence   float64
}

// dedupeWindow bounds how long a fingerprint is remembered; a repeat
// fingerprint within the window is treated as the same opportunity rather
// than emitted twice.
const dedupeWindow = 30 * time.Second

// Core owns Opportunity lifecycle and dedupe state.
type Core struct {
	thresholds map[core.StrategyKind]Thresholds

	mu   sync.Mutex
	seen map[string]time.Time // fingerprint -> first-seen
	live map[string]*core.Opportunity
}

// New builds a Core with per-strategy thresholds.
func New(thresholds map[core.StrategyKind]Thresholds) *Core {
	return &Core{
		thresholds: thresholds,
		seen:       make(map[string]time.Time),
		live:       make(map[string]*core.Opportunity),
	}
}

// ArbitrageInput is what Evaluate needs to score a closed-cycle arbitrage
// candidate.
type ArbitrageInput struct {
	Chain        core.ChainId
	Route        core.Route
	AmountIn     *big.Int
	AmountOut    *big.Int
	GasCostNative *big.Int
	BridgeCostNative *big.Int // zero for single-chain cycles
	PriceUSDPerNative *big.Float
	Confidence   float64
	TTL          time.Duration
}

// EvaluateArbitrage computes spec.md §4.8's arbitrage formula: close-cycle
// profit minus gas minus bridge cost.
func (c *Core) EvaluateArbitrage(in ArbitrageInput) (core.Opportunity, bool) {
	profit := new(big.Int).Sub(in.AmountOut, in.AmountIn)
	profit.Sub(profit, in.GasCostNative)
	if in.BridgeCostNative != nil {
		profit.Sub(profit, in.BridgeCostNative)
	}

	fp := fingerprint(core.StrategyArbitrage, in.Chain, in.Route.PoolIDs, "", in.AmountIn)
	opp := core.Opportunity{
		OpportunityID:        uuid.NewString(),
		StrategyKind:         core.StrategyArbitrage,
		Status:               core.OppPending,
		CreatedAt:            time.Now(),
		Fingerprint:          fp,
		ExpectedProfitNative: profit,
		ExpectedProfitUSD:    toUSD(profit, in.PriceUSDPerNative),
		Confidence:           in.Confidence,
		RequiredCapital:      in.AmountIn,
		Chain:                in.Chain,
		RouteSnapshot:        in.Route,
		TTL:                  in.TTL,
	}
	return c.admit(opp, in.Chain)
}

// SandwichInput is what Evaluate needs to score a sandwich candidate.
type SandwichInput struct {
	Chain              core.ChainId
	Route              core.Route
	VictimTxHash        string
	VictimAmountIn      *big.Int
	VictimSlippageBps   int64
	FrontRunAmountIn    *big.Int
	SimulatedBackRunOut *big.Int
	GasCostNative       *big.Int
	RelayTipNative      *big.Int
	PriceUSDPerNative   *big.Float
	Confidence          float64
	TTL                 time.Duration
}

// EvaluateSandwich computes spec.md §4.8's sandwich formula: simulated
// back-run exit minus front-run entry minus gas minus relay tip.
func (c *Core) EvaluateSandwich(in SandwichInput) (core.Opportunity, bool) {
	profit := new(big.Int).Sub(in.SimulatedBackRunOut, in.FrontRunAmountIn)
	profit.Sub(profit, in.GasCostNative)
	if in.RelayTipNative != nil {
		profit.Sub(profit, in.RelayTipNative)
	}

	fp := fingerprint(core.StrategySandwich, in.Chain, in.Route.PoolIDs, in.VictimTxHash, in.FrontRunAmountIn)
	opp := core.Opportunity{
		OpportunityID:        uuid.NewString(),
		StrategyKind:         core.StrategySandwich,
		Status:               core.OppPending,
		CreatedAt:            time.Now(),
		Fingerprint:          fp,
		ExpectedProfitNative: profit,
		ExpectedProfitUSD:    toUSD(profit, in.PriceUSDPerNative),
		Confidence:           in.Confidence,
		RequiredCapital:      in.FrontRunAmountIn,
		Chain:                in.Chain,
		RouteSnapshot:        in.Route,
		LinkedIntentTxHash:   in.VictimTxHash,
		TTL:                  in.TTL,
	}
	return c.admit(opp, in.Chain)
}

// CopyInput is what Evaluate needs to score a copy-trade candidate.
type CopyInput struct {
	Chain             core.ChainId
	Route             core.Route
	TargetTxHash      string
	TargetAmountIn    *big.Int
	MirrorPct         int64 // basis points of target's amount, e.g. 5000 = 50%
	PositionCapNative *big.Int
	ExpectedAmountOut *big.Int
	GasCostNative     *big.Int
	PriceUSDPerNative *big.Float
	Confidence        float64
	TTL               time.Duration
}

// EvaluateCopy mirrors the target trade at a configured percentage, capped
// by the per-position limit. Expected profit is advisory only (spec.md
// §4.8: "not gating") — Copy opportunities are admitted regardless of
// whether expected profit clears a threshold, since the strategy's premise
// is following a signal, not an independent profitability estimate.
func (c *Core) EvaluateCopy(in CopyInput) (core.Opportunity, bool) {
	mirrorAmount := new(big.Int).Mul(in.TargetAmountIn, big.NewInt(in.MirrorPct))
	mirrorAmount.Div(mirrorAmount, big.NewInt(10_000))
	if in.PositionCapNative != nil && mirrorAmount.Cmp(in.PositionCapNative) > 0 {
		mirrorAmount = in.PositionCapNative
	}

	profit := new(big.Int).Sub(in.ExpectedAmountOut, mirrorAmount)
	profit.Sub(profit, in.GasCostNative)

	fp := fingerprint(core.StrategyCopy, in.Chain, in.Route.PoolIDs, in.TargetTxHash, mirrorAmount)
	opp := core.Opportunity{
		OpportunityID:        uuid.NewString(),
		StrategyKind:         core.StrategyCopy,
		Status:               core.OppPending,
		CreatedAt:            time.Now(),
		Fingerprint:          fp,
		ExpectedProfitNative: profit,
		ExpectedProfitUSD:    toUSD(profit, in.PriceUSDPerNative),
		Confidence:           in.Confidence,
		RequiredCapital:      mirrorAmount,
		Chain:                in.Chain,
		RouteSnapshot:        in.Route,
		LinkedIntentTxHash:   in.TargetTxHash,
		TTL:                  in.TTL,
	}
	return c.admitIgnoringProfitThreshold(opp, in.Chain)
}

// admit applies dedupe and the strategy's minimum profit/confidence
// thresholds.
func (c *Core) admit(opp core.Opportunity, chain core.ChainId) (core.Opportunity, bool) {
	th := c.thresholds[opp.StrategyKind]
	if th.MinProfitNative != nil && opp.ExpectedProfitNative.Cmp(th.MinProfitNative) < 0 {
		return core.Opportunity{}, false
	}
	return c.admitIgnoringProfitThreshold(opp, chain)
}

func (c *Core) admitIgnoringProfitThreshold(opp core.Opportunity, chain core.ChainId) (core.Opportunity, bool) {
	th := c.thresholds[opp.StrategyKind]
	if opp.Confidence < th.MinConfidence {
		return core.Opportunity{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	if _, dup := c.seen[opp.Fingerprint]; dup {
		return core.Opportunity{}, false
	}
	c.seen[opp.Fingerprint] = time.Now()
	c.live[opp.OpportunityID] = &opp
	return opp, true
}

// Transition advances opportunityID's status, rejecting the call if the
// transition violates the forward-only invariant.
func (c *Core) Transition(opportunityID string, next core.OpportunityStatus, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	opp, ok := c.live[opportunityID]
	if !ok {
		return fmt.Errorf("opportunity: unknown id %s", opportunityID)
	}
	if !opp.Status.CanTransitionTo(next) {
		return fmt.Errorf("opportunity: illegal transition %s -> %s", opp.Status, next)
	}
	opp.Status = next
	if next == core.OppRejected {
		opp.RejectReason = reason
	}
	return nil
}

// Get returns a live Opportunity by id.
func (c *Core) Get(opportunityID string) (core.Opportunity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	opp, ok := c.live[opportunityID]
	if !ok {
		return core.Opportunity{}, false
	}
	return *opp, true
}

func (c *Core) evictExpiredLocked() {
	cutoff := time.Now().Add(-dedupeWindow)
	for fp, t := range c.seen {
		if t.Before(cutoff) {
			delete(c.seen, fp)
		}
	}
}

// toUSD converts a native-denominated amount to USD using a price-per-unit
// figure; nil inputs yield a nil result rather than a synthetic zero, since
// "no price available" and "priced at zero" are different facts.
func toUSD(amountNative *big.Int, priceUSDPerNative *big.Float) *big.Float {
	if amountNative == nil || priceUSDPerNative == nil {
		return nil
	}
	return new(big.Float).Mul(new(big.Float).SetInt(amountNative), priceUSDPerNative)
}

// fingerprint implements spec.md §4.8's
// hash(strategy, chain, identifying_pools, victim_tx?, amount_band).
// amount_band buckets amountIn into powers of 10 so near-identical amounts
// (e.g. a victim tx re-broadcast with 1 wei more gas) collapse to the same
// fingerprint rather than evading dedupe by a rounding difference.
func fingerprint(strategy core.StrategyKind, chain core.ChainId, poolIDs []string, victimTx string, amountIn *big.Int) string {
	h := sha256.New()
	h.Write([]byte(strategy))
	h.Write([]byte(chain))
	for _, id := range poolIDs {
		h.Write([]byte(id))
	}
	h.Write([]byte(victimTx))
	h.Write([]byte(amountBand(amountIn)))
	return hex.EncodeToString(h.Sum(nil))
}

// amountBand buckets amountIn by its decimal digit count, a coarse enough
// band that small amount differences within the same order of magnitude
// dedupe together.
func amountBand(amountIn *big.Int) string {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return "0"
	}
	return fmt.Sprintf("10^%d", len(amountIn.String())-1)
}
