package bundle

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/gas"
)

func sampleOpportunity(profit int64) core.Opportunity {
	return core.Opportunity{
		OpportunityID:        "opp-1",
		StrategyKind:         core.StrategyArbitrage,
		Status:               core.OppValidated,
		Chain:                core.ChainEthereum,
		ExpectedProfitNative: big.NewInt(profit),
	}
}

func TestBuild_ArbitrageAssignsIncreasingNonces(t *testing.T) {
	tracker := gas.New()
	tracker.Record(gas.Sample{Chain: core.ChainEthereum, GasPrice: big.NewInt(10), Timestamp: time.Now()})

	b := New(tracker, TipBounds{MinNative: big.NewInt(1), MaxPctOfProfit: 20})
	legs := BuildArbitrageLegs([]LegTemplate{
		{To: "0xpoolA", GasLimit: 150_000},
		{To: "0xpoolB", GasLimit: 150_000},
	})

	bdl, err := b.Build(sampleOpportunity(1000), core.RelayFlashbots, "0xsigner", 5, gas.SpeedFast, legs)
	require.NoError(t, err)
	require.NoError(t, bdl.Validate())
	assert.Equal(t, core.LegBuy, bdl.Legs[0].Kind)
	assert.Equal(t, core.LegSell, bdl.Legs[1].Kind)
	assert.Equal(t, uint64(5), bdl.Legs[0].Nonce)
	assert.Equal(t, uint64(6), bdl.Legs[1].Nonce)
	assert.Equal(t, core.BundleBuilt, bdl.Status)
}

func TestBuild_TipNeverBelowMinimum(t *testing.T) {
	tracker := gas.New()
	b := New(tracker, TipBounds{MinNative: big.NewInt(500), MaxPctOfProfit: 10})

	bdl, err := b.Build(sampleOpportunity(1), core.RelayJito, "0xsigner", 0, gas.SpeedSlow,
		BuildArbitrageLegs([]LegTemplate{{To: "0xa"}, {To: "0xb"}}))
	require.NoError(t, err)
	assert.True(t, bdl.TipNative.Cmp(big.NewInt(500)) >= 0)
}

func TestBuild_TipScalesWithProfitUpToCap(t *testing.T) {
	tracker := gas.New()
	b := New(tracker, TipBounds{MinNative: big.NewInt(1), MaxPctOfProfit: 20})

	bdl, err := b.Build(sampleOpportunity(1_000_000), core.RelayFlashbots, "0xsigner", 0, gas.SpeedNormal,
		BuildArbitrageLegs([]LegTemplate{{To: "0xa"}, {To: "0xb"}}))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200_000), bdl.TipNative)
}

func TestBuild_RejectsEmptyLegs(t *testing.T) {
	tracker := gas.New()
	b := New(tracker, TipBounds{MinNative: big.NewInt(1)})
	_, err := b.Build(sampleOpportunity(100), core.RelayFlashbots, "0xsigner", 0, gas.SpeedNormal, nil)
	assert.Error(t, err)
}

func TestBuildSandwichLegs_OrdersFrontPlaceholderBack(t *testing.T) {
	legs := BuildSandwichLegs(LegTemplate{To: "0xfront"}, LegTemplate{To: "0xback"})
	require.Len(t, legs, 3)
	assert.Equal(t, core.LegVictimPlaceholder, legs[1].Kind)
}

func TestBuildCopyLegs_OmitsApprovalWhenEmpty(t *testing.T) {
	legs := BuildCopyLegs(LegTemplate{}, LegTemplate{To: "0xswap"})
	require.Len(t, legs, 1)
	assert.Equal(t, core.LegSwap, legs[0].Kind)
}
