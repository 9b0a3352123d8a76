package route

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/core"
)

func mustToken(t *testing.T, addr string) core.TokenRef {
	t.Helper()
	tok, err := core.NewTokenRef(core.ChainEthereum, addr, 18, "")
	require.NoError(t, err)
	return tok
}

func testBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func trianglePools(t *testing.T) (core.TokenRef, core.TokenRef, core.TokenRef, []core.Pool) {
	t.Helper()
	weth := mustToken(t, "0x1111111111111111111111111111111111111111")
	usdc := mustToken(t, "0x2222222222222222222222222222222222222222")
	dai := mustToken(t, "0x3333333333333333333333333333333333333333")

	pools := []core.Pool{
		{
			PoolID: "weth-usdc", Protocol: core.ProtocolAMMv2, Chain: core.ChainEthereum,
			TokenA: weth, TokenB: usdc, FeeBps: 30,
			ReserveA: big.NewInt(1_000_000), ReserveB: big.NewInt(3_000_000_000),
			LastObservedBlock: 100, Reliability: 0.99,
		},
		{
			PoolID: "usdc-dai", Protocol: core.ProtocolAMMv2, Chain: core.ChainEthereum,
			TokenA: usdc, TokenB: dai, FeeBps: 4,
			ReserveA: big.NewInt(5_000_000_000), ReserveB: big.NewInt(5_000_000_000),
			LastObservedBlock: 100, Reliability: 0.99,
		},
		{
			PoolID: "dai-weth", Protocol: core.ProtocolAMMv2, Chain: core.ChainEthereum,
			TokenA: dai, TokenB: weth, FeeBps: 30,
			ReserveA: big.NewInt(3_050_000_000), ReserveB: big.NewInt(1_000_000),
			LastObservedBlock: 100, Reliability: 0.99,
		},
	}
	return weth, usdc, dai, pools
}

func TestFindRoutes_OnDemandFindsTriangleCycle(t *testing.T) {
	weth, _, _, pools := trianglePools(t)
	e := New(testBadger(t), nil)
	e.UpdatePools(pools)

	routes, err := e.FindRoutes(context.Background(), 100, weth, weth, big.NewInt(1000), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotEmpty(t, routes)
	for _, r := range routes {
		assert.True(t, r.Valid())
		assert.Equal(t, weth.Key(), r.Hops[0].Key())
		assert.Equal(t, weth.Key(), r.Hops[len(r.Hops)-1].Key())
	}
}

func TestFindRoutes_RejectsStalePools(t *testing.T) {
	weth, _, _, pools := trianglePools(t)
	e := New(testBadger(t), nil)
	e.UpdatePools(pools)

	// chain head far beyond every pool's LastObservedBlock(100) + threshold(3)
	routes, err := e.FindRoutes(context.Background(), 1_000, weth, weth, big.NewInt(1000), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestPrecompute_PopulatesFastPath(t *testing.T) {
	weth, _, dai, pools := trianglePools(t)
	db := testBadger(t)
	e := New(db, []PriorityPair{{TokenIn: weth, TokenOut: dai, ProbeAmount: big.NewInt(1000)}})
	e.UpdatePools(pools)

	require.NoError(t, e.Precompute(context.Background()))

	routes, ok := e.fastPath(weth, dai, 100)
	assert.True(t, ok)
	assert.NotEmpty(t, routes)
}

func TestSearchPaths_RespectsMaxHops(t *testing.T) {
	weth, _, _, pools := trianglePools(t)
	g := buildGraph(pools)
	routes := searchPaths(g, weth, weth, big.NewInt(1000), 2)
	for _, r := range routes {
		assert.LessOrEqual(t, r.HopCount(), 2)
	}
}

func TestRouteCodec_RoundTrip(t *testing.T) {
	_, _, _, pools := trianglePools(t)
	g := buildGraph(pools)
	weth := pools[0].TokenA
	routes := searchPaths(g, weth, weth, big.NewInt(1000), core.MaxHops)
	require.NotEmpty(t, routes)

	encoded, err := encodeRoutes(routes)
	require.NoError(t, err)
	decoded, err := decodeRoutes(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(routes))
	assert.Equal(t, routes[0].PoolIDs, decoded[0].PoolIDs)
}
