// Package bundle constructs the per-chain, per-strategy ordered transaction
// sets the Relay Submitter signs and submits (spec.md §4.9). Strategy
// ordering is fixed by the leg-kind sequence each Build* function emits:
// sandwich front->victim-placeholder->back, arbitrage buy->sell(->...),
// copy approval->swap.
package bundle

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/gas"
)

// TipBounds sets the relay tip derived from expected profit: never below
// MinNative, and at least MaxPctOfProfit percent of a positive expected
// profit. No upper bound is applied: the tip exceeds that percentage
// whenever MinNative or the Gas Tracker's optimize() price is larger.
type TipBounds struct {
	MinNative     *big.Int
	MaxPctOfProfit int64 // e.g. 20 = 20%
}

// Builder assembles Bundles from an Opportunity plus a caller-supplied set
// of already-constructed (but unsigned/unnonced) legs, assigning gas price
// and tip, then strictly increasing nonces starting from a caller-supplied
// base.
type Builder struct {
	gasTracker *gas.Tracker
	tipBounds  TipBounds
}

// New builds a Builder over a shared Gas Tracker.
func New(gasTracker *gas.Tracker, tipBounds TipBounds) *Builder {
	return &Builder{gasTracker: gasTracker, tipBounds: tipBounds}
}

// LegTemplate is a caller-constructed leg missing only its nonce and gas
// price, which Build fills in.
type LegTemplate struct {
	Kind     core.LegKind
	To       string
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// Build assembles a Bundle: assigns strictly increasing nonces starting at
// baseNonce, sizes the tip via the Gas Tracker's optimize() for speed,
// bounded by tipBounds against the opportunity's expected profit, and
// leaves every leg unsigned (the Relay Submitter signs).
func (b *Builder) Build(opp core.Opportunity, relay core.Relay, signer string, baseNonce uint64, speed gas.SpeedTarget, legs []LegTemplate) (core.Bundle, error) {
	if len(legs) == 0 {
		return core.Bundle{}, fmt.Errorf("bundle: opportunity %s produced no legs", opp.OpportunityID)
	}

	tip, err := b.sizeTip(opp, speed)
	if err != nil {
		return core.Bundle{}, err
	}

	built := make([]core.BundleLeg, len(legs))
	for i, t := range legs {
		built[i] = core.BundleLeg{
			Kind:     t.Kind,
			Nonce:    baseNonce + uint64(i),
			To:       t.To,
			Data:     t.Data,
			Value:    t.Value,
			GasLimit: t.GasLimit,
		}
	}

	bundleChain := opp.Chain
	bdl := core.Bundle{
		BundleID:      uuid.NewString(),
		Chain:         bundleChain,
		Relay:         relay,
		Signer:        signer,
		Legs:          built,
		TipNative:     tip,
		Status:        core.BundleBuilt,
		OpportunityID: opp.OpportunityID,
	}
	if err := bdl.Validate(); err != nil {
		return core.Bundle{}, err
	}
	return bdl, nil
}

// sizeTip returns the largest of tipBounds.MinNative, the Gas Tracker's
// optimize() price for the strategy's speed target (when the chain has
// samples), and MaxPctOfProfit percent of the opportunity's expected
// profit. The result is not capped above.
func (b *Builder) sizeTip(opp core.Opportunity, speed gas.SpeedTarget) (*big.Int, error) {
	floor := new(big.Int)
	if b.tipBounds.MinNative != nil {
		floor.Set(b.tipBounds.MinNative)
	}

	optimized, err := b.gasTracker.Optimize(opp.Chain, speed)
	if err == nil && optimized.Cmp(floor) > 0 {
		floor = optimized
	}

	tip := new(big.Int).Set(floor)
	if opp.ExpectedProfitNative != nil && opp.ExpectedProfitNative.Sign() > 0 && b.tipBounds.MaxPctOfProfit > 0 {
		fromProfit := new(big.Int).Mul(opp.ExpectedProfitNative, big.NewInt(b.tipBounds.MaxPctOfProfit))
		fromProfit.Div(fromProfit, big.NewInt(100))
		if fromProfit.Cmp(tip) > 0 {
			tip = fromProfit
		}
	}
	if tip.Cmp(floor) < 0 {
		tip = floor
	}
	return tip, nil
}

// BuildSandwichLegs orders a sandwich bundle's three legs: front-run entry,
// a placeholder marking where the victim's own transaction lands (the
// Relay Submitter never constructs or signs this leg — it exists only so
// Bundle.Legs carries the victim's intended position in sequence), and the
// back-run exit.
func BuildSandwichLegs(front, back LegTemplate) []LegTemplate {
	return []LegTemplate{
		front,
		{Kind: core.LegVictimPlaceholder},
		back,
	}
}

// BuildArbitrageLegs orders an N-hop arbitrage cycle's legs: the first hop
// is tagged buy, every subsequent hop sell (an arbitrage cycle has exactly
// one entry and one-or-more exit/intermediate legs back to the start
// token).
func BuildArbitrageLegs(hops []LegTemplate) []LegTemplate {
	legs := make([]LegTemplate, len(hops))
	for i, h := range hops {
		h.Kind = core.LegBuy
		if i > 0 {
			h.Kind = core.LegSell
		}
		legs[i] = h
	}
	return legs
}

// BuildCopyLegs orders a copy-trade bundle: an ERC20 approval (omitted if
// approval already empty-valued by the caller) followed by the mirrored
// swap.
func BuildCopyLegs(approval, swap LegTemplate) []LegTemplate {
	approval.Kind = core.LegApproval
	swap.Kind = core.LegSwap
	if approval.To == "" {
		return []LegTemplate{swap}
	}
	return []LegTemplate{approval, swap}
}
