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
	"github.com/duskrelay/edgecore/internal/validator"
)

// RunSandwich drains every chain's admitted pending-tx stream looking for a
// decodable victim swap whose implied slippage tolerance leaves room for a
// front-run, mirroring RunArbitrage's per-chain fan-in.
func (e *Engine) RunSandwich(ctx context.Context) error {
	done := make(chan error, len(e.monitors))
	for chainID, mon := range e.monitors {
		chainID, mon := chainID, mon
		go func() {
			done <- e.drainSandwich(ctx, chainID, mon.Out)
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

func (e *Engine) drainSandwich(ctx context.Context, chainID core.ChainId, pending <-chan chain.PendingTx) error {
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
			if err := e.evaluateSandwich(ctx, intent, head); err != nil {
				e.log.Warn().Err(err).Str("tx", tx.Hash).Msg("sandwich evaluation failed")
			}
		}
	}
}

// evaluateSandwich turns one decoded victim TradeIntent into a sandwich
// Opportunity: it front-runs ahead of the victim, lets the victim fill at a
// worse price, then back-runs to exit, pocketing the difference.
func (e *Engine) evaluateSandwich(ctx context.Context, intent core.TradeIntent, chainHead uint64) error {
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

	pool, ok := e.routeEngine.Pool(intent.Chain, bestRoute.Protocols[0], bestRoute.PoolIDs[0])
	if !ok {
		return nil
	}

	quote, err := e.oracle.GetPrice(ctx, tokenIn)
	if err != nil {
		return nil
	}

	limits := validator.Limits{
		MaxPriceImpactBps:     e.validatorLimits.MaxPriceImpactBps,
		MaxOracleDeviationBps: e.validatorLimits.MaxOracleDeviationBps,
	}

	frontRunAmount := new(big.Int).Div(intent.AmountIn, big.NewInt(4)) // conservative: 25% of victim's size
	frontResult, err := validator.Validate(pool, frontRunAmount, big.NewInt(0), quote, limits)
	if err != nil || !frontResult.Accepted {
		return nil
	}
	postFrontPool := applyFill(pool, frontRunAmount, frontResult.AmountOut)

	// The victim fills against the pool as the front-run left it; its own
	// AmountOutMin bounds how far price can move before its transaction
	// reverts, so a front-run that pushed the price past that bound means
	// the victim's trade (and the sandwich riding on it) never lands.
	victimResult, err := validator.Validate(postFrontPool, intent.AmountIn, intent.AmountOutMin, quote, limits)
	if err != nil || !victimResult.Accepted {
		return nil
	}
	postVictimPool := applyFill(postFrontPool, intent.AmountIn, victimResult.AmountOut)

	// The back-run sells the tokens the front-run bought back into the
	// input token, against the pool as the victim's own fill left it, so it
	// runs on the inverted pool (A/B swapped) taking the front-run's output
	// as its input.
	backRunResult, err := validator.Validate(invertPool(postVictimPool), frontResult.AmountOut, big.NewInt(0), quote, limits)
	if err != nil || !backRunResult.Accepted {
		return nil
	}

	gasPrice, err := e.gasTracker.Optimize(intent.Chain, gas.SpeedFast)
	if err != nil {
		return nil
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(int64(bestRoute.EstimatedGasUnits*2))) // front + back legs

	opp, ok := e.oppCore.EvaluateSandwich(opportunity.SandwichInput{
		Chain:               intent.Chain,
		Route:               bestRoute,
		VictimTxHash:        intent.SourceTxHash,
		VictimAmountIn:      intent.AmountIn,
		FrontRunAmountIn:    frontRunAmount,
		SimulatedBackRunOut: backRunResult.AmountOut,
		GasCostNative:       gasCost,
		PriceUSDPerNative:   quote.PriceUSD,
		Confidence:          quote.Confidence,
		TTL:                 2 * time.Second,
	})
	if !ok {
		return nil
	}

	if e.riskGovernor.Halted(core.ScopeStrategy, string(core.StrategySandwich)) {
		return nil
	}
	if err := e.riskGovernor.CheckBundle(core.StrategySandwich, intent.Chain, opp.RequiredCapital); err != nil {
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
		{Kind: core.LegFront, To: bestRoute.PoolIDs[0], Value: big.NewInt(0), GasLimit: 250_000},
		{Kind: core.LegVictimPlaceholder, To: intent.Router, Value: big.NewInt(0), GasLimit: 0},
		{Kind: core.LegBack, To: bestRoute.PoolIDs[0], Value: big.NewInt(0), GasLimit: 250_000},
	}

	bdl, err := e.bundleBuilder.Build(opp, core.RelayFlashbots, e.signerAddress(), 0, gas.SpeedFast, legs)
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

// invertPool swaps the A/B sides of pool's token pair and reserves, giving
// the pool state as seen selling back into the side the trade originally
// came from. Protocol-specific amount-out math always treats ReserveA as
// the input-side reserve, so simulating the reverse leg of a sandwich's
// front-run requires the inverted view, not the original one.
func invertPool(pool core.Pool) core.Pool {
	inverted := pool
	inverted.TokenA, inverted.TokenB = pool.TokenB, pool.TokenA
	inverted.ReserveA, inverted.ReserveB = pool.ReserveB, pool.ReserveA
	return inverted
}

// applyFill returns pool's state after a trade of amountIn of TokenA for
// amountOut of TokenB has settled, so a subsequent Validate call against the
// result sees the price impact of the trades that came before it instead of
// pricing every leg of a multi-trade sequence off the same stale snapshot.
func applyFill(pool core.Pool, amountIn, amountOut *big.Int) core.Pool {
	filled := pool
	filled.ReserveA = new(big.Int).Add(pool.ReserveA, amountIn)
	filled.ReserveB = new(big.Int).Sub(pool.ReserveB, amountOut)
	return filled
}
