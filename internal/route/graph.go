// Package route models the Pool Registry as a weighted directed multigraph
// (nodes are tokens, edges are pools) and answers two kinds of question
// over it: a precomputed fast path over a configured set of priority pairs,
// refreshed on a timer, and an on-demand bounded-depth search for anything
// outside that set.
package route

import (
	"math/big"

	"github.com/duskrelay/edgecore/internal/core"
)

// edge is one directed hop of the graph: trading tokenIn for tokenOut
// through pool.
type edge struct {
	tokenOut core.TokenRef
	pool     core.Pool
}

// graph is an adjacency-list view of the currently known pools. It is
// rebuilt wholesale rather than mutated in place — see Engine.UpdatePools
// in engine.go, which swaps in a fresh graph instead of editing a live one.
type graph struct {
	adjacency map[string][]edge // keyed by TokenRef.Key()
}

func newGraph() *graph {
	return &graph{adjacency: make(map[string][]edge)}
}

// addPool inserts both directions of a pool's edge (every supported AMM is
// bidirectionally tradeable).
func (g *graph) addPool(p core.Pool) {
	g.adjacency[p.TokenA.Key()] = append(g.adjacency[p.TokenA.Key()], edge{tokenOut: p.TokenB, pool: p})
	g.adjacency[p.TokenB.Key()] = append(g.adjacency[p.TokenB.Key()], edge{tokenOut: p.TokenA, pool: p})
}

func buildGraph(pools []core.Pool) *graph {
	g := newGraph()
	for _, p := range pools {
		g.addPool(p)
	}
	return g
}

// candidatePath is an in-progress walk during search.
type candidatePath struct {
	hops      []core.TokenRef
	protocols []core.Protocol
	poolIDs   []string
	gasUnits  uint64
	minReliability float64
}

func startPath(tokenIn core.TokenRef) candidatePath {
	return candidatePath{hops: []core.TokenRef{tokenIn}, minReliability: 1}
}

func (c candidatePath) extend(e edge) candidatePath {
	next := candidatePath{
		hops:      append(append([]core.TokenRef(nil), c.hops...), e.tokenOut),
		protocols: append(append([]core.Protocol(nil), c.protocols...), e.pool.Protocol),
		poolIDs:   append(append([]string(nil), c.poolIDs...), e.pool.PoolID),
		gasUnits:  c.gasUnits + gasEstimateForProtocol(e.pool.Protocol),
	}
	if e.pool.Reliability < c.minReliability {
		next.minReliability = e.pool.Reliability
	} else {
		next.minReliability = c.minReliability
	}
	return next
}

// visitedPool reports whether poolID already appears in the path, which
// prevents a search from reusing the same pool twice in one route (a
// degenerate "arbitrage" against yourself).
func (c candidatePath) visitedPool(poolID string) bool {
	for _, id := range c.poolIDs {
		if id == poolID {
			return true
		}
	}
	return false
}

func (c candidatePath) toRoute(band core.AmountScaleBand, profitBps int64, reliability float64) core.Route {
	return core.Route{
		Hops:               c.hops,
		Protocols:          c.protocols,
		PoolIDs:            c.poolIDs,
		EstimatedGasUnits:  c.gasUnits,
		EstimatedProfitBps: profitBps,
		Reliability:        reliability,
		AmountScaleBand:    band,
	}
}

// gasEstimateForProtocol is a rough per-hop gas-units figure used only to
// rank candidate routes against each other during search, not as a
// submission-time gas limit (the Bundle Builder computes that separately).
func gasEstimateForProtocol(p core.Protocol) uint64 {
	switch p {
	case core.ProtocolAMMv3:
		return 140_000
	case core.ProtocolStable:
		return 160_000
	case core.ProtocolSolanaAMM, core.ProtocolSolanaRoute:
		return 30_000 // compute units, not EVM gas, but ranked against same-family protocols only
	default:
		return 110_000
	}
}

// amountOutEstimate gives a crude constant-product estimate of the amount
// out of trading amountIn of tokenIn through e, used only to rank routes
// during search — the Slippage Validator performs the authoritative AMM
// math before anything is acted on.
func amountOutEstimate(e edge, tokenIn core.TokenRef, amountIn *big.Int) *big.Int {
	var reserveIn, reserveOut *big.Int
	if e.pool.TokenA.Key() == tokenIn.Key() {
		reserveIn, reserveOut = e.pool.ReserveA, e.pool.ReserveB
	} else {
		reserveIn, reserveOut = e.pool.ReserveB, e.pool.ReserveA
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}

	feeBps := big.NewInt(int64(e.pool.FeeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(big.NewInt(10_000), feeBps))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(10_000)), amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}
