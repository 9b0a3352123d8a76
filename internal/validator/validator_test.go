package validator

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/oracle"
)

func mustToken(t *testing.T, addr string) core.TokenRef {
	t.Helper()
	tok, err := core.NewTokenRef(core.ChainEthereum, addr, 18, "")
	require.NoError(t, err)
	return tok
}

func balancedPool(t *testing.T) core.Pool {
	t.Helper()
	return core.Pool{
		PoolID: "weth-usdc", Protocol: core.ProtocolAMMv2, Chain: core.ChainEthereum,
		TokenA: mustToken(t, "0x1111111111111111111111111111111111111111"),
		TokenB: mustToken(t, "0x2222222222222222222222222222222222222222"),
		FeeBps: 30,
		ReserveA: big.NewInt(1_000_000),
		ReserveB: big.NewInt(3_000_000_000),
		Reliability: 0.99,
	}
}

func TestValidate_AcceptsSmallTradeWithinLimits(t *testing.T) {
	pool := balancedPool(t)
	quote := oracle.Quote{PriceUSD: big.NewFloat(3000), Confidence: 1, AsOf: time.Now()}

	result, err := Validate(pool, big.NewInt(1000), big.NewInt(1), quote, Limits{
		MaxPriceImpactBps:     500,
		MaxOracleDeviationBps: 1000,
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.AmountOut.Sign() > 0)
}

func TestValidate_RejectsPriceImpactBeyondCap(t *testing.T) {
	pool := balancedPool(t)
	quote := oracle.Quote{PriceUSD: big.NewFloat(3000), Confidence: 1, AsOf: time.Now()}

	result, err := Validate(pool, big.NewInt(500_000), big.NewInt(1), quote, Limits{MaxPriceImpactBps: 10})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.RejectReason, "price impact")
}

func TestValidate_RejectsBelowAmountOutMin(t *testing.T) {
	pool := balancedPool(t)
	quote := oracle.Quote{PriceUSD: big.NewFloat(3000), Confidence: 1, AsOf: time.Now()}

	hugeMin := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1_000_000_000))
	result, err := Validate(pool, big.NewInt(1000), hugeMin, quote, Limits{})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.RejectReason, "below minimum")
}

func TestValidate_RejectsLiquidityBelowFloor(t *testing.T) {
	pool := balancedPool(t)
	quote := oracle.Quote{PriceUSD: big.NewFloat(3000), Confidence: 1, AsOf: time.Now()}

	result, err := Validate(pool, big.NewInt(1000), big.NewInt(1), quote, Limits{
		MinLiquidityNative: big.NewInt(10_000_000),
	})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, "pool liquidity below floor", result.RejectReason)
}

func TestValidate_RejectsOracleDeviation(t *testing.T) {
	pool := balancedPool(t)
	// Pool mid price is ~3000 USDC/WETH; push the oracle far away.
	quote := oracle.Quote{PriceUSD: big.NewFloat(100), Confidence: 1, AsOf: time.Now()}

	result, err := Validate(pool, big.NewInt(1000), big.NewInt(1), quote, Limits{MaxOracleDeviationBps: 100})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.RejectReason, "oracle deviation")
}

func TestValidate_StableSwapNearParity(t *testing.T) {
	pool := core.Pool{
		PoolID: "usdc-dai", Protocol: core.ProtocolStable, Chain: core.ChainEthereum,
		TokenA: mustToken(t, "0x2222222222222222222222222222222222222222"),
		TokenB: mustToken(t, "0x3333333333333333333333333333333333333333"),
		FeeBps: 4,
		ReserveA: big.NewInt(5_000_000_000),
		ReserveB: big.NewInt(5_000_000_000),
	}
	quote := oracle.Quote{PriceUSD: big.NewFloat(1), Confidence: 1, AsOf: time.Now()}

	result, err := Validate(pool, big.NewInt(1_000_000), big.NewInt(1), quote, Limits{})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	// within 1% of 1:1 after fee
	ratio := new(big.Float).Quo(new(big.Float).SetInt(result.AmountOut), big.NewFloat(1_000_000))
	f, _ := ratio.Float64()
	assert.InDelta(t, 1.0, f, 0.01)
}

func TestValidate_RejectsUnsupportedProtocol(t *testing.T) {
	pool := balancedPool(t)
	pool.Protocol = core.Protocol("unknown")
	quote := oracle.Quote{PriceUSD: big.NewFloat(3000), Confidence: 1}

	_, err := Validate(pool, big.NewInt(1000), big.NewInt(1), quote, Limits{})
	assert.Error(t, err)
}

func TestConfidence_DecaysWithAgeAndUtilization(t *testing.T) {
	quote := oracle.Quote{Confidence: 1}
	fresh := Confidence(0, 10, ValidationResult{LiquidityUtilBps: 0}, quote)
	aged := Confidence(9, 10, ValidationResult{LiquidityUtilBps: 0}, quote)
	assert.Greater(t, fresh, aged)

	highUtil := Confidence(0, 10, ValidationResult{LiquidityUtilBps: 9000}, quote)
	assert.Less(t, highUtil, fresh)
}
