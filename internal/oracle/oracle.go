// Package oracle aggregates multiple upstream price feeds into a single
// confidence-scored quote per token pair, caching results so downstream
// components are insulated from per-call provider round trips.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/duskrelay/edgecore/internal/core"
)

// Quote is a priced token pair with an attached confidence score.
type Quote struct {
	Token      core.TokenRef
	PriceUSD   *big.Float
	Confidence float64  // [0,1]: fraction of providers that agreed within tolerance
	Sources    []string // names of the providers whose samples survived into PriceUSD
	AsOf       time.Time
	Stale      bool // true when every provider failed and this is the last cached quote
}

// Provider is a single upstream price source (an on-chain DEX TWAP reader,
// an off-chain aggregator API, etc).
type Provider interface {
	Name() string
	GetPrice(ctx context.Context, token core.TokenRef) (*big.Float, error)
}

// deviationTolerance is how far (as a fraction of the median) a provider's
// quote may sit before it is treated as an outlier and excluded from the
// weighted median.
const deviationTolerance = 0.03

const cacheTTL = 5 * time.Second

// staleCacheRetention is how long a cached quote survives in badger past
// cacheTTL, purely as a last-resort fallback for the case every provider
// fails on a fresh lookup. It must outlive cacheTTL by enough margin that
// readCache's own freshness check, not badger's entry TTL, is what decides
// "stale" — otherwise badger would evict the entry at the exact moment it
// turns stale and the fallback path could never be taken.
const staleCacheRetention = 10 * time.Minute

// Oracle fans a price request out to every configured Provider, rejects
// samples far from their median, averages the rest (every provider counts
// equally; there are no per-provider weights), and write-through caches the
// result in badger so repeat lookups within cacheTTL never touch the network.
type Oracle struct {
	providers []Provider
	cache     *badger.DB
	limiter   map[string]*rate.Limiter
}

// New builds an Oracle over providers, using db as its TTL cache and
// limiting each provider to ratePerSecond calls/second to stay within free
// or metered API tiers.
func New(providers []Provider, db *badger.DB, ratePerSecond float64) *Oracle {
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Oracle{providers: providers, cache: db, limiter: limiters}
}

// GetPrice returns a cached quote if fresh, otherwise fans out to every
// provider, rejects outliers, and caches the mean of the surviving samples. If every
// provider fails, the most recent cached quote is returned with Stale set
// rather than an error, so a momentary total-provider outage degrades
// gracefully instead of stalling every strategy that calls GetPrice.
func (o *Oracle) GetPrice(ctx context.Context, token core.TokenRef) (Quote, error) {
	cached, stale, ok := o.readCache(token)
	if ok && !stale {
		return cached, nil
	}

	samples, err := o.collect(ctx, token)
	if err != nil {
		return Quote{}, err
	}
	if len(samples) == 0 {
		if ok {
			cached.Stale = true
			return cached, nil
		}
		return Quote{}, fmt.Errorf("oracle: no provider returned a price for %s", token.Key())
	}

	quote := weightedMedian(token, samples)
	o.writeCache(token, quote)
	return quote, nil
}

// GetBatch resolves many tokens concurrently, at most 8 at a time
// (errgroup.SetLimit below); each token's lookup fans out to every provider,
// so overall concurrency is up to 8 x providers.
func (o *Oracle) GetBatch(ctx context.Context, tokens []core.TokenRef) (map[string]Quote, error) {
	results := make(map[string]Quote, len(tokens))
	resultsCh := make(chan struct {
		key   string
		quote Quote
	}, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, tok := range tokens {
		tok := tok
		g.Go(func() error {
			q, err := o.GetPrice(gctx, tok)
			if err != nil {
				// A single token's pricing failure must not fail the whole
				// batch for strategies scanning many candidate pairs.
				return nil
			}
			resultsCh <- struct {
				key   string
				quote Quote
			}{tok.Key(), q}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(resultsCh)
	for r := range resultsCh {
		results[r.key] = r.quote
	}
	return results, nil
}

// sample pairs one provider's quote with the name it came from, so a
// surviving sample can be attributed back to its source after outlier
// rejection.
type sample struct {
	source string
	price  *big.Float
}

func (o *Oracle) collect(ctx context.Context, token core.TokenRef) ([]sample, error) {
	samples := make([]sample, 0, len(o.providers))
	samplesCh := make(chan sample, len(o.providers))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range o.providers {
		p := p
		g.Go(func() error {
			if limiter, ok := o.limiter[p.Name()]; ok {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			price, err := p.GetPrice(gctx, token)
			if err != nil || price == nil {
				return nil // graceful N-1-of-N degradation: one provider failing is not fatal
			}
			samplesCh <- sample{source: p.Name(), price: price}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(samplesCh)
	for s := range samplesCh {
		samples = append(samples, s)
	}
	return samples, nil
}

// weightedMedian sorts samples, takes the median as the reference point,
// discards anything more than deviationTolerance away from it, and reports
// confidence as the surviving fraction along with the surviving providers'
// names. The returned price is the plain mean of the surviving samples;
// samples carry no weights.
func weightedMedian(token core.TokenRef, samples []sample) Quote {
	sorted := make([]sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].price.Cmp(sorted[j].price) < 0 })

	median := sorted[len(sorted)/2].price

	var kept []sample
	for _, s := range sorted {
		dev := new(big.Float).Sub(s.price, median)
		dev.Abs(dev)
		threshold := new(big.Float).Mul(median, big.NewFloat(deviationTolerance))
		if dev.Cmp(threshold) <= 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		kept = []sample{{source: "median", price: median}}
	}

	sum := new(big.Float)
	sources := make([]string, 0, len(kept))
	for _, s := range kept {
		sum.Add(sum, s.price)
		sources = append(sources, s.source)
	}
	avg := new(big.Float).Quo(sum, big.NewFloat(float64(len(kept))))

	return Quote{
		Token:      token,
		PriceUSD:   avg,
		Confidence: float64(len(kept)) / float64(len(samples)),
		Sources:    sources,
		AsOf:       time.Now(),
	}
}

// readCache returns the cached quote for token, if any survives in badger,
// along with whether it is stale (older than cacheTTL). It never suppresses
// a merely-stale entry: GetPrice decides what to do with staleness, since a
// fresh entry and a total-outage fallback entry need different handling.
func (o *Oracle) readCache(token core.TokenRef) (quote Quote, stale bool, ok bool) {
	if o.cache == nil {
		return Quote{}, false, false
	}
	err := o.cache.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(token.Key()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeQuote(val, &quote)
		})
	})
	if err != nil {
		return Quote{}, false, false
	}
	return quote, time.Since(quote.AsOf) > cacheTTL, true
}

// writeCache stores quote under badger's entry TTL, set to
// staleCacheRetention rather than cacheTTL, so a quote survives long enough
// past cacheTTL for readCache's own staleness check to be the thing that
// decides freshness, not badger evicting the entry out from under it.
func (o *Oracle) writeCache(token core.TokenRef, quote Quote) {
	if o.cache == nil {
		return
	}
	encoded, err := encodeQuote(quote)
	if err != nil {
		return
	}
	_ = o.cache.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(token.Key()), encoded).WithTTL(staleCacheRetention)
		return txn.SetEntry(entry)
	})
}
