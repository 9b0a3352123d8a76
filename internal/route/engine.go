// Package route (continued) — the Engine type glues the graph, the
// precompute timer, and the on-demand search together.
package route

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"

	"github.com/duskrelay/edgecore/internal/core"
)

// PriorityPair names a (tokenIn, tokenOut) the precompute pass keeps warm.
type PriorityPair struct {
	TokenIn, TokenOut core.TokenRef
	ProbeAmount       *big.Int // representative trade size used to rank cycles during precompute
}

// staleBlocksByChain bounds how many blocks behind chain head a
// constituent pool's LastObservedBlock may lag before a Route built from it
// is rejected as stale (spec.md §4.6 "Staleness").
var staleBlocksByChain = map[core.ChainId]uint64{
	core.ChainEthereum: 3,
	core.ChainBSC:      5,
	core.ChainSolana:   50, // ~20s at Solana's block rate, matching its faster cadence
}

// reserveDeltaThreshold triggers an out-of-band precompute refresh when a
// pool update changes a reserve by more than this fraction of its prior
// value, independent of the timer.
const reserveDeltaThreshold = 0.02

// maxPrecomputedPerPair caps how many candidate routes the fast path keeps
// per priority pair, most-profitable first.
const maxPrecomputedPerPair = 5

// onDemandResultLimit bounds how many routes FindRoutes' on-demand search
// returns.
const onDemandResultLimit = 10

// Engine maintains the routing graph and answers both the precomputed
// fast-path and on-demand search queries spec.md §4.6 describes.
type Engine struct {
	current  atomic.Pointer[graph] // current read-only graph snapshot
	snapshot *badger.DB            // precomputed-matrix store, read by FindRoutes' fast path
	pairs    []PriorityPair
	pools    atomic.Pointer[map[string]core.Pool] // by Key(), last reserves seen per pool (for delta detection)

	cron *cron.Cron
}

// New builds an Engine. snapshot is the badger handle the precompute job
// writes to and the fast path reads from; it may be a dedicated database or
// shared with internal/oracle's cache under a disjoint key namespace.
func New(snapshot *badger.DB, pairs []PriorityPair) *Engine {
	e := &Engine{snapshot: snapshot, pairs: pairs}
	e.current.Store(newGraph())
	empty := make(map[string]core.Pool)
	e.pools.Store(&empty)
	return e
}

// UpdatePools rebuilds the graph snapshot from the full current Pool
// Registry contents. The Route Engine never mutates a live graph in place:
// every update builds a fresh graph and swaps the pointer, so a reader
// mid-search never observes a half-updated adjacency list.
func (e *Engine) UpdatePools(pools []core.Pool) {
	e.current.Store(buildGraph(pools))

	byKey := make(map[string]core.Pool, len(pools))
	for _, p := range pools {
		byKey[p.Key()] = p
	}
	prior := *e.pools.Load()
	e.pools.Store(&byKey)

	if e.exceedsReserveDelta(prior, byKey) {
		_ = e.Precompute(context.Background())
	}
}

// Pool returns the last-observed state of one route hop's pool, for callers
// (the validator's per-trade check) that need the authoritative reserves
// behind a hop rather than the route's precomputed profitability estimate.
func (e *Engine) Pool(chain core.ChainId, protocol core.Protocol, poolID string) (core.Pool, bool) {
	key := string(chain) + ":" + string(protocol) + ":" + poolID
	p, ok := (*e.pools.Load())[key]
	return p, ok
}

func (e *Engine) exceedsReserveDelta(prior, next map[string]core.Pool) bool {
	for key, np := range next {
		op, ok := prior[key]
		if !ok || op.ReserveA == nil || np.ReserveA == nil || op.ReserveA.Sign() == 0 {
			continue
		}
		delta := new(big.Float).SetInt(new(big.Int).Sub(np.ReserveA, op.ReserveA))
		delta.Abs(delta)
		base := new(big.Float).SetInt(op.ReserveA)
		frac, _ := new(big.Float).Quo(delta, base).Float64()
		if frac > reserveDeltaThreshold {
			return true
		}
	}
	return false
}

// StartPrecompute launches the timer-driven recompute job (spec.md §4.6:
// "recompute on a timer, e.g. every 500ms"). Stop via ctx cancellation.
func (e *Engine) StartPrecompute(ctx context.Context, interval time.Duration) error {
	e.cron = cron.New()
	_, err := e.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		_ = e.Precompute(ctx)
	})
	if err != nil {
		return fmt.Errorf("route: schedule precompute: %w", err)
	}
	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.cron.Stop()
	}()
	return nil
}

// Precompute re-derives the best 2-/3-hop routes for every configured
// priority pair and writes them to the badger snapshot store, which
// FindRoutes' fast path reads from. Badger's own MVCC read transactions
// give callers a consistent point-in-time view without the Engine having
// to coordinate locking itself.
func (e *Engine) Precompute(ctx context.Context) error {
	if e.snapshot == nil {
		return nil
	}
	g := e.current.Load()

	return e.snapshot.Update(func(txn *badger.Txn) error {
		for _, pair := range e.pairs {
			routes := searchPaths(g, pair.TokenIn, pair.TokenOut, pair.ProbeAmount, core.MaxHops)
			// gasInBps is left at 0 here: precompute ranks candidates against
			// each other at a fixed probe amount, not a live trade size, so
			// the Gas Tracker-derived conversion is applied later by the
			// caller (Opportunity Core) against the real trade amount.
			sort.Slice(routes, func(i, j int) bool { return routes[i].Score(0) > routes[j].Score(0) })
			if len(routes) > maxPrecomputedPerPair {
				routes = routes[:maxPrecomputedPerPair]
			}
			encoded, err := encodeRoutes(routes)
			if err != nil {
				return err
			}
			if err := txn.Set(pairKey(pair.TokenIn, pair.TokenOut), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindRoutes answers spec.md §4.6's find_routes operation: the precomputed
// fast path is tried first (sub-millisecond), falling back to a bounded
// on-demand search when the pair was never a priority pair or the
// precomputed entry has gone stale.
func (e *Engine) FindRoutes(ctx context.Context, chainHead uint64, tokenIn, tokenOut core.TokenRef, amountIn *big.Int, deadline time.Time) ([]core.Route, error) {
	if routes, ok := e.fastPath(tokenIn, tokenOut, chainHead); ok {
		return routes, nil
	}

	g := e.current.Load()
	routes := searchPaths(g, tokenIn, tokenOut, amountIn, core.MaxHops)
	routes = filterStale(routes, *e.pools.Load(), chainHead)
	sort.Slice(routes, func(i, j int) bool {
		si, sj := routes[i].Score(0), routes[j].Score(0)
		if si != sj {
			return si > sj
		}
		if routes[i].HopCount() != routes[j].HopCount() {
			return routes[i].HopCount() < routes[j].HopCount()
		}
		return routes[i].Reliability > routes[j].Reliability
	})
	if len(routes) > onDemandResultLimit {
		routes = routes[:onDemandResultLimit]
	}
	if time.Now().After(deadline) {
		return routes, fmt.Errorf("route: on-demand search exceeded deadline")
	}
	return routes, nil
}

func (e *Engine) fastPath(tokenIn, tokenOut core.TokenRef, chainHead uint64) ([]core.Route, bool) {
	if e.snapshot == nil {
		return nil, false
	}
	var routes []core.Route
	err := e.snapshot.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(tokenIn, tokenOut))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeRoutes(val)
			if err != nil {
				return err
			}
			routes = decoded
			return nil
		})
	})
	if err != nil || len(routes) == 0 {
		return nil, false
	}

	routes = filterStale(routes, *e.pools.Load(), chainHead)
	if len(routes) == 0 {
		return nil, false
	}
	return routes, true
}

// filterStale drops routes with any constituent pool past its per-chain
// staleness bound (spec.md §4.6 "Staleness").
func filterStale(routes []core.Route, pools map[string]core.Pool, chainHead uint64) []core.Route {
	kept := routes[:0:0]
	for _, r := range routes {
		stale := false
		for i, poolID := range r.PoolIDs {
			chain := r.Hops[i].Chain
			threshold := staleBlocksByChain[chain]
			key := string(chain) + ":" + string(r.Protocols[i]) + ":" + poolID
			p, ok := pools[key]
			if !ok || p.StaleFlag(chainHead, threshold) {
				stale = true
				break
			}
		}
		if !stale {
			kept = append(kept, r)
		}
	}
	return kept
}

// searchPaths runs a bounded-depth depth-first walk from tokenIn back to
// tokenOut (cycle detection: tokenOut == tokenIn is the arbitrage case),
// scoring each completed path as it is discovered.
func searchPaths(g *graph, tokenIn, tokenOut core.TokenRef, amountIn *big.Int, maxHops int) []core.Route {
	var results []core.Route
	start := startPath(tokenIn)
	var walk func(current core.TokenRef, amount *big.Int, path candidatePath, depth int)
	walk = func(current core.TokenRef, amount *big.Int, path candidatePath, depth int) {
		if depth > 0 && current.Key() == tokenOut.Key() {
			profitBps := profitBpsOf(amountIn, amount)
			results = append(results, path.toRoute(core.AmountScaleBand{}, profitBps, path.minReliability))
			if depth == maxHops {
				return
			}
		}
		if depth >= maxHops {
			return
		}
		for _, e := range g.adjacency[current.Key()] {
			if path.visitedPool(e.pool.PoolID) {
				continue
			}
			outAmount := amountOutEstimate(e, current, amount)
			if outAmount.Sign() <= 0 {
				continue
			}
			walk(e.tokenOut, outAmount, path.extend(e), depth+1)
		}
	}
	walk(tokenIn, amountIn, start, 0)
	return results
}

// profitBpsOf expresses the amount-out relative to amount-in as signed
// basis points: positive means the cycle returned more than it started
// with.
func profitBpsOf(amountIn, amountOut *big.Int) int64 {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return 0
	}
	delta := new(big.Int).Sub(amountOut, amountIn)
	bps := new(big.Int).Mul(delta, big.NewInt(10_000))
	bps.Div(bps, amountIn)
	return bps.Int64()
}
