package opportunity

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/core"
)

func defaultThresholds() map[core.StrategyKind]Thresholds {
	return map[core.StrategyKind]Thresholds{
		core.StrategyArbitrage: {MinProfitNative: big.NewInt(100), MinConfidence: 0.5},
		core.StrategySandwich:  {MinProfitNative: big.NewInt(100), MinConfidence: 0.5},
		core.StrategyCopy:      {MinConfidence: 0.0},
	}
}

func TestEvaluateArbitrage_AdmitsProfitableCycle(t *testing.T) {
	c := New(defaultThresholds())
	opp, ok := c.EvaluateArbitrage(ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(1500),
		GasCostNative: big.NewInt(50),
		Confidence:    0.9,
		TTL:           time.Second,
	})
	require.True(t, ok)
	assert.Equal(t, big.NewInt(450), opp.ExpectedProfitNative)
	assert.Equal(t, core.OppPending, opp.Status)
}

func TestEvaluateArbitrage_RejectsBelowProfitThreshold(t *testing.T) {
	c := New(defaultThresholds())
	_, ok := c.EvaluateArbitrage(ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(1010),
		GasCostNative: big.NewInt(50),
		Confidence:    0.9,
	})
	assert.False(t, ok)
}

func TestEvaluateArbitrage_RejectsBelowConfidenceThreshold(t *testing.T) {
	c := New(defaultThresholds())
	_, ok := c.EvaluateArbitrage(ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(2000),
		GasCostNative: big.NewInt(50),
		Confidence:    0.1,
	})
	assert.False(t, ok)
}

func TestEvaluateArbitrage_DedupesRepeatedFingerprint(t *testing.T) {
	c := New(defaultThresholds())
	input := ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(1500),
		GasCostNative: big.NewInt(50),
		Confidence:    0.9,
	}
	_, ok1 := c.EvaluateArbitrage(input)
	_, ok2 := c.EvaluateArbitrage(input)
	assert.True(t, ok1)
	assert.False(t, ok2)
}

func TestEvaluateCopy_CapsAtPositionLimit(t *testing.T) {
	c := New(defaultThresholds())
	opp, ok := c.EvaluateCopy(CopyInput{
		Chain:             core.ChainEthereum,
		Route:             core.Route{PoolIDs: []string{"a"}},
		TargetTxHash:      "0xvictim",
		TargetAmountIn:    big.NewInt(1_000_000),
		MirrorPct:         5000, // 50%
		PositionCapNative: big.NewInt(100_000),
		ExpectedAmountOut: big.NewInt(150_000),
		GasCostNative:     big.NewInt(10),
		Confidence:        0.8,
	})
	require.True(t, ok)
	assert.Equal(t, big.NewInt(100_000), opp.RequiredCapital)
}

func TestEvaluateCopy_IgnoresProfitThreshold(t *testing.T) {
	c := New(defaultThresholds())
	// Negative expected profit must still be admitted for copy-trading.
	opp, ok := c.EvaluateCopy(CopyInput{
		Chain:             core.ChainEthereum,
		Route:             core.Route{PoolIDs: []string{"a"}},
		TargetTxHash:      "0xvictim",
		TargetAmountIn:    big.NewInt(1_000_000),
		MirrorPct:         5000,
		ExpectedAmountOut: big.NewInt(100_000),
		GasCostNative:     big.NewInt(50_000),
		Confidence:        0.9,
	})
	require.True(t, ok)
	assert.True(t, opp.ExpectedProfitNative.Sign() < 0)
}

func TestTransition_EnforcesForwardOnly(t *testing.T) {
	c := New(defaultThresholds())
	opp, ok := c.EvaluateArbitrage(ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(1500),
		GasCostNative: big.NewInt(50),
		Confidence:    0.9,
	})
	require.True(t, ok)

	require.NoError(t, c.Transition(opp.OpportunityID, core.OppValidated, ""))
	require.NoError(t, c.Transition(opp.OpportunityID, core.OppExecuting, ""))
	require.NoError(t, c.Transition(opp.OpportunityID, core.OppLanded, ""))

	err := c.Transition(opp.OpportunityID, core.OppValidated, "")
	assert.Error(t, err)
}

func TestTransition_RecordsRejectReason(t *testing.T) {
	c := New(defaultThresholds())
	opp, ok := c.EvaluateArbitrage(ArbitrageInput{
		Chain:         core.ChainEthereum,
		Route:         core.Route{PoolIDs: []string{"a", "b"}},
		AmountIn:      big.NewInt(1000),
		AmountOut:     big.NewInt(1500),
		GasCostNative: big.NewInt(50),
		Confidence:    0.9,
	})
	require.True(t, ok)

	require.NoError(t, c.Transition(opp.OpportunityID, core.OppRejected, "stale route"))
	got, ok := c.Get(opp.OpportunityID)
	require.True(t, ok)
	assert.Equal(t, core.OppRejected, got.Status)
	assert.Equal(t, "stale route", got.RejectReason)
}
