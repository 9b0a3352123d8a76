// Package risk implements the Risk Governor: a single-threaded actor that
// rejects bundles exceeding per-trade/daily-loss/consecutive-failure
// policies and holds the authoritative kill-switch for trade submission
// (spec.md §4.11). Its reject-before-submission shape generalizes the
// teacher's validateBalances gate (checked immediately before a staking
// transaction is sent) to position size and loss limits checked immediately
// before a bundle is submitted.
package risk

import (
	"fmt"
	"sync"
	"time"

	"math/big"

	"github.com/duskrelay/edgecore/internal/core"
)

// Limits configures the Governor's policy thresholds (spec.md §4.11 and
// §6's risk.* config keys).
type Limits struct {
	MaxPositionSizeNative *big.Int // per-trade notional cap
	MaxDailyLossNative    *big.Int // cumulative realized-loss cap per rolling day
	AlertAfterConsecutive int      // emit RiskAlert at this many consecutive failures
	KillAfterConsecutive  int      // emit RiskKill (strategy scope) at this many
}

// Governor tracks realized PnL and failure streaks per strategy and
// globally, and is the sole authority on whether a bundle may be submitted.
// All state is owned by this struct's mutex; there is no lock-free path,
// matching spec.md §5's "single-threaded actor, authoritative for all
// kill-switch decisions."
type Governor struct {
	mu sync.Mutex

	limits Limits

	dailyLossNative   *big.Int
	dailyWindowStart  time.Time
	consecutiveFail   map[core.StrategyKind]int
	halted            map[core.RiskScope]map[string]bool // scope -> scopeKey -> halted; ScopeGlobal uses key ""
	events            []core.RiskEvent
}

// New builds a Governor with zeroed counters and an open (non-halted) state.
func New(limits Limits) *Governor {
	return &Governor{
		limits:          limits,
		dailyLossNative: big.NewInt(0),
		dailyWindowStart: time.Now(),
		consecutiveFail: make(map[core.StrategyKind]int),
		halted: map[core.RiskScope]map[string]bool{
			core.ScopeGlobal:   {},
			core.ScopeStrategy: {},
			core.ScopeChain:    {},
			core.ScopeToken:    {},
		},
	}
}

// CheckBundle rejects bdl before submission if it exceeds the per-trade
// notional cap or if any halt covering its strategy/chain is active
// (spec.md §4.11: "reject bundles whose notional exceeds max_position_size").
// notionalNative is the bundle's total committed size in the chain's native
// asset, supplied by the caller (Bundle Builder already knows every leg's
// Value).
func (g *Governor) CheckBundle(strategy core.StrategyKind, chain core.ChainId, notionalNative *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.haltedLocked(core.ScopeGlobal, "") {
		return fmt.Errorf("risk: trading halted globally")
	}
	if g.haltedLocked(core.ScopeStrategy, string(strategy)) {
		return fmt.Errorf("risk: trading halted for strategy %s", strategy)
	}
	if g.haltedLocked(core.ScopeChain, string(chain)) {
		return fmt.Errorf("risk: trading halted for chain %s", chain)
	}
	if g.limits.MaxPositionSizeNative != nil && notionalNative != nil &&
		notionalNative.Cmp(g.limits.MaxPositionSizeNative) > 0 {
		return fmt.Errorf("risk: notional %s exceeds max position size %s",
			notionalNative.String(), g.limits.MaxPositionSizeNative.String())
	}
	return nil
}

// RecordOutcome folds a settled ExecutionRecord into the daily-loss and
// consecutive-failure counters, emitting RiskEvents (and flipping halts) as
// thresholds cross. A record with a non-negative PnL resets that strategy's
// failure streak; a negative PnL both accumulates loss and extends it.
func (g *Governor) RecordOutcome(rec core.ExecutionRecord) []core.RiskEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDailyWindowLocked(rec.SubmittedAt)

	var emitted []core.RiskEvent
	pnl := rec.PnLNative()

	if pnl.Sign() < 0 {
		g.dailyLossNative.Add(g.dailyLossNative, new(big.Int).Neg(pnl))
		g.consecutiveFail[rec.StrategyKind]++
	} else {
		g.consecutiveFail[rec.StrategyKind] = 0
	}

	if g.limits.MaxDailyLossNative != nil && g.dailyLossNative.Cmp(g.limits.MaxDailyLossNative) >= 0 {
		if !g.haltedLocked(core.ScopeGlobal, "") {
			ev := g.haltLocked(core.RiskKill, core.ScopeGlobal, "", fmt.Sprintf(
				"daily loss %s reached cap %s", g.dailyLossNative.String(), g.limits.MaxDailyLossNative.String()))
			emitted = append(emitted, ev)
		}
	}

	streak := g.consecutiveFail[rec.StrategyKind]
	if g.limits.KillAfterConsecutive > 0 && streak >= g.limits.KillAfterConsecutive {
		if !g.haltedLocked(core.ScopeStrategy, string(rec.StrategyKind)) {
			ev := g.haltLocked(core.RiskKill, core.ScopeStrategy, string(rec.StrategyKind), fmt.Sprintf(
				"%d consecutive failed executions", streak))
			emitted = append(emitted, ev)
		}
	} else if g.limits.AlertAfterConsecutive > 0 && streak >= g.limits.AlertAfterConsecutive {
		ev := g.recordLocked(core.RiskAlert, core.ScopeStrategy, string(rec.StrategyKind), fmt.Sprintf(
			"%d consecutive failed executions", streak))
		emitted = append(emitted, ev)
	}

	return emitted
}

// Reset clears a halt for scope/scopeKey, recording the recovery as an
// explicit operator action per spec.md §4.11's "recovery requires an
// explicit operator action recorded as a RiskEvent." Reset never clears
// failure/loss counters by itself — callers that want a clean slate must
// also roll the daily window or let consecutive-failure counters decay via
// a subsequent successful RecordOutcome.
func (g *Governor) Reset(scope core.RiskScope, scopeKey, operator string) core.RiskEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.halted[scope]; ok {
		delete(m, scopeKey)
	}
	return g.recordLocked(core.RiskInfo, scope, scopeKey, fmt.Sprintf("operator %s reset halt", operator))
}

// Halted reports whether scope/scopeKey is currently under an active halt.
func (g *Governor) Halted(scope core.RiskScope, scopeKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.haltedLocked(scope, scopeKey)
}

// Limits returns the Governor's configured policy thresholds, for callers
// that need to size a trade against the position cap before it ever reaches
// CheckBundle (e.g. Copy mirroring capping its notional rather than just
// being rejected by it).
func (g *Governor) Limits() Limits {
	return g.limits
}

// Events returns a copy of every RiskEvent emitted so far, oldest first, for
// the Durable Store to persist (spec.md §4.12's risk_events table).
func (g *Governor) Events() []core.RiskEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.RiskEvent, len(g.events))
	copy(out, g.events)
	return out
}

func (g *Governor) haltedLocked(scope core.RiskScope, scopeKey string) bool {
	m, ok := g.halted[scope]
	return ok && m[scopeKey]
}

func (g *Governor) haltLocked(severity core.RiskSeverity, scope core.RiskScope, scopeKey, reason string) core.RiskEvent {
	if m, ok := g.halted[scope]; ok {
		m[scopeKey] = true
	}
	return g.recordLocked(severity, scope, scopeKey, reason)
}

func (g *Governor) recordLocked(severity core.RiskSeverity, scope core.RiskScope, scopeKey, reason string) core.RiskEvent {
	ev := core.RiskEvent{
		RiskEventID: fmt.Sprintf("risk-%d-%d", time.Now().UnixNano(), len(g.events)),
		Severity:    severity,
		Scope:       scope,
		ScopeKey:    scopeKey,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	g.events = append(g.events, ev)
	return ev
}

// rollDailyWindowLocked resets the daily-loss accumulator once 24h have
// elapsed since the window started. It does not clear an active global
// halt — that still requires an explicit Reset, per spec.md §4.11.
func (g *Governor) rollDailyWindowLocked(observedAt time.Time) {
	if observedAt.IsZero() {
		return
	}
	if observedAt.Sub(g.dailyWindowStart) >= 24*time.Hour {
		g.dailyWindowStart = observedAt
		g.dailyLossNative = big.NewInt(0)
	}
}
