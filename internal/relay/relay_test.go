package relay

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
)

// stubAdapter implements chain.Adapter with only HeadBlock wired, which is
// all MonitorInclusion's non-checker path uses.
type stubAdapter struct {
	head uint64
}

func (s stubAdapter) Chain() core.ChainId { return core.ChainEthereum }
func (s stubAdapter) SubmitSignedTx(ctx context.Context, raw []byte) (string, error) {
	return "", nil
}
func (s stubAdapter) GetFeeData(ctx context.Context) (chain.FeeData, error) { return chain.FeeData{}, nil }
func (s stubAdapter) SubscribePendingTxs(ctx context.Context) (<-chan chain.PendingTx, error) {
	return nil, nil
}
func (s stubAdapter) SubscribeBlocks(ctx context.Context) (<-chan chain.BlockHead, error) {
	return nil, nil
}
func (s stubAdapter) SimulateTx(ctx context.Context, raw []byte) (chain.SimResult, error) {
	return chain.SimResult{}, nil
}
func (s stubAdapter) QueryAccount(ctx context.Context, address string) (*big.Int, error) {
	return nil, nil
}
func (s stubAdapter) HeadBlock(ctx context.Context) (uint64, error) { return s.head, nil }

// advancingAdapter's HeadBlock increments by one block on every call,
// simulating a live chain progressing while MonitorInclusion waits out its
// confirmation depth.
type advancingAdapter struct {
	stubAdapter
	head *uint64
}

func (a advancingAdapter) HeadBlock(ctx context.Context) (uint64, error) {
	*a.head++
	return *a.head, nil
}

type fakeEndpoint struct {
	relay    core.Relay
	submitted []core.Bundle
	err      error
}

func (f *fakeEndpoint) Relay() core.Relay { return f.relay }
func (f *fakeEndpoint) SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, bdl)
	return nil
}

func testBundle() *core.Bundle {
	return &core.Bundle{
		BundleID: "b1",
		Chain:    core.ChainEthereum,
		Relay:    core.RelayFlashbots,
		Signer:   "0xsigner",
		Status:   core.BundleBuilt,
		Legs: []core.BundleLeg{
			{Kind: core.LegBuy, Nonce: 0, To: "0x1111111111111111111111111111111111111111", GasLimit: 100_000},
			{Kind: core.LegSell, Nonce: 1, To: "0x2222222222222222222222222222222222222222", GasLimit: 100_000},
		},
	}
}

func TestSign_AttachesSignaturesAndAdvancesStatus(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := New(nil, nil, key, nil)

	bdl := testBundle()
	require.NoError(t, s.Sign(bdl, big.NewInt(10_000_000_000)))

	assert.Equal(t, core.BundleSigned, bdl.Status)
	for _, leg := range bdl.Legs {
		assert.NotEmpty(t, leg.SignedTxHex)
	}
}

func TestSign_SkipsVictimPlaceholder(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := New(nil, nil, key, nil)

	bdl := testBundle()
	bdl.Legs = append(bdl.Legs, core.BundleLeg{Kind: core.LegVictimPlaceholder, Nonce: 2})

	require.NoError(t, s.Sign(bdl, big.NewInt(10_000_000_000)))
	assert.Empty(t, bdl.Legs[2].SignedTxHex)
}

func TestSubmit_TransitionsToSubmittedOnSuccess(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	endpoint := &fakeEndpoint{relay: core.RelayFlashbots}
	s := New(map[core.Relay]Endpoint{core.RelayFlashbots: endpoint}, nil, key, nil)

	bdl := testBundle()
	require.NoError(t, s.Sign(bdl, big.NewInt(1)))
	require.NoError(t, s.Submit(context.Background(), bdl, 100))

	assert.Equal(t, core.BundleSubmitted, bdl.Status)
	assert.Len(t, endpoint.submitted, 1)
}

func TestSubmit_LeavesStatusSignedOnTransientError(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	endpoint := &fakeEndpoint{relay: core.RelayFlashbots, err: assert.AnError}
	s := New(map[core.Relay]Endpoint{core.RelayFlashbots: endpoint}, nil, key, nil)

	bdl := testBundle()
	require.NoError(t, s.Sign(bdl, big.NewInt(1)))
	err = s.Submit(context.Background(), bdl, 100)

	assert.Error(t, err)
	assert.Equal(t, core.BundleSigned, bdl.Status)
}

func TestMonitorInclusion_ExpiresAfterWindow(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	bdl := testBundle()
	bdl.Status = core.BundleSubmitted
	bdl.TargetBlockOrSlot = 100

	sub := New(nil, map[core.ChainId]chain.Adapter{core.ChainEthereum: stubAdapter{head: 200}}, key, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = sub.MonitorInclusion(ctx, bdl, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, core.BundleExpired, bdl.Status)
}

func TestMonitorInclusion_IncludedViaCheckerAfterConfirmations(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	checker := func(ctx context.Context, bdl core.Bundle) (bool, []string, error) {
		return true, []string{"0xlanded"}, nil
	}
	head := uint64(49)
	adapter := advancingAdapter{head: &head}
	sub := New(nil, map[core.ChainId]chain.Adapter{core.ChainEthereum: adapter}, key, checker)

	bdl := testBundle()
	bdl.Status = core.BundleSubmitted
	bdl.TargetBlockOrSlot = 100

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.MonitorInclusion(ctx, bdl, 10*time.Millisecond))
	assert.Equal(t, core.BundleIncluded, bdl.Status)
	assert.Equal(t, []string{"0xlanded"}, bdl.LandingTxHashes)
}

func TestMonitorInclusion_ReorgEvictsLandedBundle(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var seenOnce bool
	checker := func(ctx context.Context, bdl core.Bundle) (bool, []string, error) {
		if !seenOnce {
			seenOnce = true
			return true, []string{"0xlanded"}, nil
		}
		return false, nil, nil // reorg evicted it on the next poll
	}
	sub := New(nil, map[core.ChainId]chain.Adapter{core.ChainEthereum: stubAdapter{head: 50}}, key, checker)

	bdl := testBundle()
	bdl.Status = core.BundleSubmitted
	bdl.TargetBlockOrSlot = 100

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = sub.MonitorInclusion(ctx, bdl, 10*time.Millisecond)

	require.Error(t, err)
	var adapterErr *chain.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, chain.ClassReorg, adapterErr.Class)
}

func TestRebid_RejectsWhenOnlyOneAttemptAllowed(t *testing.T) {
	bdl := testBundle()
	bdl.SubmissionAttempts = 2
	assert.False(t, Rebid(bdl, big.NewInt(1000), big.NewInt(10)))
}

func TestRebid_AcceptsWhenProfitRemainsPositive(t *testing.T) {
	bdl := testBundle()
	bdl.SubmissionAttempts = 1
	assert.True(t, Rebid(bdl, big.NewInt(1000), big.NewInt(10)))
	assert.False(t, Rebid(bdl, big.NewInt(10), big.NewInt(1000)))
}

func TestKill_TransitionsFromAnyNonTerminalState(t *testing.T) {
	bdl := testBundle()
	bdl.Status = core.BundleSubmitted
	Kill(bdl)
	assert.Equal(t, core.BundleFailed, bdl.Status)
}

func TestKill_NoopOnTerminalState(t *testing.T) {
	bdl := testBundle()
	bdl.Status = core.BundleIncluded
	Kill(bdl)
	assert.Equal(t, core.BundleIncluded, bdl.Status)
}
