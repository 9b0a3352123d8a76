package edgecore

import (
	"context"
	"math/big"
	"time"

	"github.com/duskrelay/edgecore/internal/bundle"
	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/gas"
	"github.com/duskrelay/edgecore/internal/opportunity"
)

// copyMirrorBps is the fraction of a watched wallet's trade size this
// strategy mirrors; configurable in a later revision, fixed here at 50%
// (spec.md §4.8 names the parameter but leaves the default to the
// implementation).
const copyMirrorBps = 5_000

// RunCopy drains every chain's admitted pending-tx stream, already
// restricted by the mempool monitor's Filter.TargetWallets to the
// configured watch-list senders, and mirrors each qualifying trade.
func (e *Engine) RunCopy(ctx context.Context) error {
	done := make(chan error, len(e.monitors))
	for chainID, mon := range e.monitors {
		chainID, mon := chainID, mon
		go func() {
			done <- e.drainCopy(ctx, chainID, mon.Out)
		}()
	}
	for range e.monitors {
		if err := <-done; err != nil && ctx.Err() == nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (e *Engine) drainCopy(ctx context.Context, chainID core.ChainId, pending <-chan chain.PendingTx) error {
	adapter := e.adapters[chainID]
	for {
		select {
		case <-ctx.Done():
			return nil
		case tx, ok := <-pending:
			if !ok {
				return nil
			}
			intent, err := e.decoder.Decode(tx)
			if err != nil {
				continue
			}
			head, err := adapter.HeadBlock(ctx)
			if err != nil {
				continue
			}
			if err := e.evaluateCopy(ctx, intent, head); err != nil {
				e.log.Warn().Err(err).Str("tx", tx.Hash).Msg("copy evaluation failed")
			}
		}
	}
}

// evaluateCopy mirrors a watched wallet's decoded trade at copyMirrorBps of
// its size, capped by the Risk Governor's per-trade notional limit.
func (e *Engine) evaluateCopy(ctx context.Context, intent core.TradeIntent, chainHead uint64) error {
	if !intent.PathValid() {
		return nil
	}
	tokenIn := intent.Path[0]
	tokenOut := intent.Path[len(intent.Path)-1]

	routes, err := e.routeEngine.FindRoutes(ctx, chainHead, tokenIn, tokenOut, intent.AmountIn, intent.Deadline)
	if err != nil || len(routes) == 0 {
		return nil
	}
	bestRoute := routes[0]

	quote, err := e.oracle.GetPrice(ctx, tokenIn)
	if err != nil {
		return nil
	}

	gasPrice, err := e.gasTracker.Optimize(intent.Chain, gas.SpeedNormal)
	if err != nil {
		return nil
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(int64(bestRoute.EstimatedGasUnits)))

	mirrorAmount := new(big.Int).Mul(intent.AmountIn, big.NewInt(copyMirrorBps))
	mirrorAmount.Div(mirrorAmount, big.NewInt(10_000))
	expectedOut := new(big.Int).Mul(intent.AmountOutMin, big.NewInt(copyMirrorBps))
	expectedOut.Div(expectedOut, big.NewInt(10_000))

	opp, ok := e.oppCore.EvaluateCopy(opportunity.CopyInput{
		Chain:             intent.Chain,
		Route:             bestRoute,
		TargetTxHash:      intent.SourceTxHash,
		TargetAmountIn:    intent.AmountIn,
		MirrorPct:         copyMirrorBps,
		PositionCapNative: e.riskGovernor.Limits().MaxPositionSizeNative,
		ExpectedAmountOut: expectedOut,
		GasCostNative:     gasCost,
		PriceUSDPerNative: quote.PriceUSD,
		Confidence:        quote.Confidence,
		TTL:               10 * time.Second,
	})
	if !ok {
		return nil
	}

	if e.riskGovernor.Halted(core.ScopeStrategy, string(core.StrategyCopy)) {
		return nil
	}
	if err := e.riskGovernor.CheckBundle(core.StrategyCopy, intent.Chain, opp.RequiredCapital); err != nil {
		_ = e.oppCore.Transition(opp.OpportunityID, core.OppRejected, err.Error())
		return nil
	}
	if err := e.oppCore.Transition(opp.OpportunityID, core.OppValidated, ""); err != nil {
		return nil
	}
	if err := e.oppCore.Transition(opp.OpportunityID, core.OppExecuting, ""); err != nil {
		return nil
	}

	legs := []bundle.LegTemplate{
		{Kind: core.LegApproval, To: intent.Router, Value: big.NewInt(0), GasLimit: 60_000},
		{Kind: core.LegSwap, To: bestRoute.PoolIDs[0], Value: big.NewInt(0), GasLimit: 250_000},
	}

	// Copy-trading submits via the public mempool, not a private relay: it
	// has no victim ordering to protect and spec.md §4.10 reserves private
	// relay submission for strategies that need front-running protection.
	bdl, err := e.bundleBuilder.Build(opp, core.RelayPublicMempool, e.signerAddress(), 0, gas.SpeedNormal, legs)
	if err != nil {
		return nil
	}

	if err := e.relaySubmitter.Sign(&bdl, gasPrice); err != nil {
		return nil
	}
	if err := e.relaySubmitter.Submit(ctx, &bdl, chainHead+1); err != nil {
		e.recordExecutionOutcome(opp, bdl, nil, err.Error())
		return nil
	}

	e.recordExecutionOutcome(opp, bdl, opp.ExpectedProfitNative, "")
	return nil
}
