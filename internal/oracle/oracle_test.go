package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/core"
)

func mustToken(t *testing.T) core.TokenRef {
	t.Helper()
	tok, err := core.NewTokenRef(core.ChainEthereum, "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", 6, "USDC")
	require.NoError(t, err)
	return tok
}

func samplesOf(prices ...float64) []sample {
	out := make([]sample, len(prices))
	for i, p := range prices {
		out[i] = sample{source: "provider", price: big.NewFloat(p)}
	}
	return out
}

func TestWeightedMedian_RejectsOutlier(t *testing.T) {
	token := mustToken(t)
	samples := samplesOf(100.0, 100.5, 99.7, 500.0) // 500.0: outlier, a stale/misbehaving provider

	q := weightedMedian(token, samples)
	assert.InDelta(t, 100.0, mustFloat64(q.PriceUSD), 1.0)
	assert.Less(t, q.Confidence, 1.0)
	assert.Greater(t, q.Confidence, 0.5)
	assert.Len(t, q.Sources, 3)
}

func TestWeightedMedian_AllAgree(t *testing.T) {
	token := mustToken(t)
	samples := samplesOf(10, 10.01, 9.99)

	q := weightedMedian(token, samples)
	assert.Equal(t, 1.0, q.Confidence)
	assert.Len(t, q.Sources, 3)
}

func TestQuoteCodec_RoundTrip(t *testing.T) {
	token := mustToken(t)
	original := Quote{
		Token:      token,
		PriceUSD:   big.NewFloat(1.2345),
		Confidence: 0.75,
		Sources:    []string{"coingecko", "chainlink"},
	}

	encoded, err := encodeQuote(original)
	require.NoError(t, err)

	var decoded Quote
	require.NoError(t, decodeQuote(encoded, &decoded))
	assert.Equal(t, token.Key(), decoded.Token.Key())
	assert.InDelta(t, 1.2345, mustFloat64(decoded.PriceUSD), 1e-6)
	assert.Equal(t, 0.75, decoded.Confidence)
	assert.Equal(t, []string{"coingecko", "chainlink"}, decoded.Sources)
}

func mustFloat64(f *big.Float) float64 {
	v, _ := f.Float64()
	return v
}

// fakeProvider always returns price, or err if set (simulating a failed
// upstream call).
type fakeProvider struct {
	name  string
	price float64
	err   error
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) GetPrice(ctx context.Context, token core.TokenRef) (*big.Float, error) {
	if p.err != nil {
		return nil, p.err
	}
	return big.NewFloat(p.price), nil
}

func inMemoryBadger(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetPrice_PartialProviderFailureDegradesGracefully(t *testing.T) {
	token := mustToken(t)
	providers := []Provider{
		fakeProvider{name: "a", price: 100.0},
		fakeProvider{name: "b", price: 100.2},
		fakeProvider{name: "c", err: assert.AnError}, // one of three fails
	}
	o := New(providers, inMemoryBadger(t), 100)

	q, err := o.GetPrice(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, q.Stale)
	assert.Len(t, q.Sources, 2)
	assert.Greater(t, q.Confidence, 0.0)
	assert.ElementsMatch(t, []string{"a", "b"}, q.Sources)
}

func TestGetPrice_AllProvidersFailFallsBackToStaleCache(t *testing.T) {
	token := mustToken(t)
	good := fakeProvider{name: "a", price: 100.0}
	o := New([]Provider{good}, inMemoryBadger(t), 100)

	first, err := o.GetPrice(context.Background(), token)
	require.NoError(t, err)
	require.False(t, first.Stale)

	// Force the cached entry to read as stale without waiting out cacheTTL.
	first.AsOf = first.AsOf.Add(-2 * cacheTTL)
	encoded, err := encodeQuote(first)
	require.NoError(t, err)
	require.NoError(t, o.cache.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(token.Key()), encoded).WithTTL(staleCacheRetention))
	}))

	o.providers = []Provider{fakeProvider{name: "a", err: assert.AnError}}

	stale, err := o.GetPrice(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.InDelta(t, 100.0, mustFloat64(stale.PriceUSD), 1e-6)
}

func TestGetPrice_AllProvidersFailNoCacheErrors(t *testing.T) {
	token := mustToken(t)
	o := New([]Provider{fakeProvider{name: "a", err: assert.AnError}}, inMemoryBadger(t), 100)

	_, err := o.GetPrice(context.Background(), token)
	require.Error(t, err)
}
