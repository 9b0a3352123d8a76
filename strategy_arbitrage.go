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

// RunArbitrage drains every chain's admitted pending-tx stream, decodes each
// one, and on a decodable swap asks the Route Engine for a closing route
// back to the trade's input token, generalizing the teacher's RunStrategy1
// single-pass loop to a multi-chain fan-in with one goroutine per chain
// (spec.md §5: single-producer/single-consumer per chain).
func (e *Engine) RunArbitrage(ctx context.Context) error {
	done := make(chan error, len(e.monitors))
	for chainID, mon := range e.monitors {
		chainID, mon := chainID, mon
		go func() {
			done <- e.drainArbitrage(ctx, chainID, mon.Out)
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

func (e *Engine) drainArbitrage(ctx context.Context, chainID core.ChainId, pending <-chan chain.PendingTx) error {
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
			if err := e.evaluateArbitrage(ctx, intent, head); err != nil {
				e.log.Warn().Err(err).Str("tx", tx.Hash).Msg("arbitrage evaluation failed")
			}
		}
	}
}

// evaluateArbitrage turns one decoded TradeIntent into an Opportunity, if a
// profitable closing route exists, validates it against the oracle and pool
// state, and pursues it end to end.
func (e *Engine) evaluateArbitrage(ctx context.Context, intent core.TradeIntent, chainHead uint64) error {
	if !intent.PathValid() {
		return nil
	}
	// A closing arbitrage cycle starts and ends at the same token the
	// observed trade is denominated in: route.Engine.FindRoutes' on-demand
	// search treats tokenIn == tokenOut as the cycle-detection case.
	tokenIn := intent.Path[0]

	routes, err := e.routeEngine.FindRoutes(ctx, chainHead, tokenIn, tokenIn, intent.AmountIn, intent.Deadline)
	if err != nil || len(routes) == 0 {
		return nil
	}
	bestRoute := routes[0]

	quote, err := e.oracle.GetPrice(ctx, tokenIn)
	if err != nil {
		return nil
	}

	gasPrice, err := e.gasTracker.Optimize(intent.Chain, gas.SpeedFast)
	if err != nil {
		return nil
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(int64(bestRoute.EstimatedGasUnits)))

	pool, ok := e.routeEngine.Pool(intent.Chain, bestRoute.Protocols[0], bestRoute.PoolIDs[0])
	if !ok {
		return nil
	}
	result, err := validator.Validate(pool, intent.AmountIn, intent.AmountOutMin, quote, validator.Limits{
		MaxPriceImpactBps:     e.validatorLimits.MaxPriceImpactBps,
		MaxOracleDeviationBps: e.validatorLimits.MaxOracleDeviationBps,
	})
	if err != nil || !result.Accepted {
		return nil
	}

	opp, ok := e.oppCore.EvaluateArbitrage(opportunity.ArbitrageInput{
		Chain:             intent.Chain,
		Route:             bestRoute,
		AmountIn:          intent.AmountIn,
		AmountOut:         result.AmountOut,
		GasCostNative:     gasCost,
		PriceUSDPerNative: quote.PriceUSD,
		Confidence:        quote.Confidence,
		TTL:               5 * time.Second,
	})
	if !ok {
		return nil
	}

	if e.riskGovernor.Halted(core.ScopeStrategy, string(core.StrategyArbitrage)) {
		return nil
	}
	if err := e.riskGovernor.CheckBundle(core.StrategyArbitrage, intent.Chain, opp.RequiredCapital); err != nil {
		_ = e.oppCore.Transition(opp.OpportunityID, core.OppRejected, err.Error())
		return nil
	}
	if err := e.oppCore.Transition(opp.OpportunityID, core.OppValidated, ""); err != nil {
		return nil
	}
	if err := e.oppCore.Transition(opp.OpportunityID, core.OppExecuting, ""); err != nil {
		return nil
	}

	legs := make([]bundle.LegTemplate, 0, len(bestRoute.PoolIDs))
	for _, poolID := range bestRoute.PoolIDs {
		legs = append(legs, bundle.LegTemplate{Kind: core.LegBuy, To: poolID, Value: big.NewInt(0), GasLimit: 250_000})
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

// recordExecutionOutcome is shared by every strategy: it builds the
// ExecutionRecord, feeds it to the Risk Governor (which may emit alert/kill
// RiskEvents), and persists both to the Durable Store.
func (e *Engine) recordExecutionOutcome(opp core.Opportunity, bdl core.Bundle, realizedProfit *big.Int, failureReason string) {
	rec := core.ExecutionRecord{
		ExecutionID:          bdl.BundleID,
		OpportunityID:        opp.OpportunityID,
		BundleID:             bdl.BundleID,
		Chain:                opp.Chain,
		StrategyKind:         opp.StrategyKind,
		RealizedProfitNative: realizedProfit,
		SubmittedAt:          time.Now(),
		FailureReason:        failureReason,
	}
	if failureReason != "" {
		rec.FailedAt = time.Now()
	} else {
		rec.IncludedAt = time.Now()
	}

	events := e.riskGovernor.RecordOutcome(rec)
	if err := e.store.SaveExecution(rec); err != nil {
		e.log.Error().Err(err).Str("execution_id", rec.ExecutionID).Msg("failed to persist execution record")
	}
	for _, ev := range events {
		if err := e.store.SaveRiskEvent(ev); err != nil {
			e.log.Error().Err(err).Msg("failed to persist risk event")
		}
	}
}
