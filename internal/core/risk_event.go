package core

import "time"

// RiskSeverity ranks a RiskEvent from purely informational up to a trading
// kill-switch trip (spec.md §4.11).
type RiskSeverity string

const (
	RiskInfo  RiskSeverity = "info"
	RiskWarn  RiskSeverity = "warn"
	RiskAlert RiskSeverity = "alert"
	RiskKill  RiskSeverity = "kill"
)

// RiskScope narrows what a RiskEvent's kill/alert applies to. A Global event
// halts every strategy on every chain; a Token-scoped event only removes one
// token from consideration.
type RiskScope string

const (
	ScopeGlobal   RiskScope = "global"
	ScopeStrategy RiskScope = "strategy"
	ScopeChain    RiskScope = "chain"
	ScopeToken    RiskScope = "token"
)

// RiskEvent is an immutable record emitted by the Risk Governor whenever a
// policy threshold fires, whether or not it actually blocked a trade.
type RiskEvent struct {
	RiskEventID string
	Severity    RiskSeverity
	Scope       RiskScope
	ScopeKey    string // StrategyKind, ChainId, or TokenRef.Key() depending on Scope; empty for ScopeGlobal
	Reason      string
	CreatedAt   time.Time
}

// TriggersHalt reports whether this event, by itself, must stop new trade
// submissions within its scope. Warn/Info events are advisory only.
func (e RiskEvent) TriggersHalt() bool {
	return e.Severity == RiskAlert || e.Severity == RiskKill
}
