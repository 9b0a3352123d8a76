package core

import (
	"fmt"
	"math/big"
)

// Relay is the closed set of privileged submission endpoints spec.md §4.10
// names.
type Relay string

const (
	RelayFlashbots      Relay = "flashbots"
	RelayJito           Relay = "jito"
	RelayBloxRoute      Relay = "bloxroute"
	RelayNodeReal       Relay = "nodereal"
	RelayPublicMempool  Relay = "public"
)

// BundleStatus is the relay submission state machine's state (spec.md §4.10).
type BundleStatus string

const (
	BundleBuilt     BundleStatus = "built"
	BundleSigned    BundleStatus = "signed"
	BundleSubmitted BundleStatus = "submitted"
	BundleIncluded  BundleStatus = "included"
	BundleReplaced  BundleStatus = "replaced"
	BundleExpired   BundleStatus = "expired"
	BundleFailed    BundleStatus = "failed"
)

func (s BundleStatus) Terminal() bool {
	switch s {
	case BundleIncluded, BundleReplaced, BundleExpired, BundleFailed:
		return true
	default:
		return false
	}
}

var bundleRank = map[BundleStatus]int{
	BundleBuilt:     0,
	BundleSigned:    1,
	BundleSubmitted: 2,
	BundleIncluded:  3,
}

// CanTransitionTo mirrors OpportunityStatus's monotonicity rule: a bundle's
// recorded status never moves backward (testable property #4).
func (s BundleStatus) CanTransitionTo(next BundleStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case BundleReplaced, BundleExpired, BundleFailed:
		return true
	}
	curRank, curOK := bundleRank[s]
	nextRank, nextOK := bundleRank[next]
	if !curOK || !nextOK {
		return false
	}
	return nextRank == curRank+1
}

// LegKind tags one transaction's role within a bundle. Ordering within
// Bundle.Legs is strategy-defined: sandwich is
// [LegFront, LegVictimPlaceholder, LegBack]; arbitrage is
// [LegBuy, LegSell, ...] for 2+ hop cycles; copy is [LegApproval, LegSwap].
//
// LegFlashLoan is a reserved, currently-unused variant: flash-loan-funded
// parallel arbitrage legs were an explicit Open Question in spec.md §9,
// decided as an optional plugin rather than core (see SPEC_FULL.md §9.1).
// No strategy in this repo emits it; it exists so a future flash-loan
// plugin can extend the closed set without changing BundleLeg's shape.
type LegKind string

const (
	LegFront              LegKind = "front"
	LegVictimPlaceholder  LegKind = "victim_placeholder"
	LegBack               LegKind = "back"
	LegBuy                LegKind = "buy"
	LegSell               LegKind = "sell"
	LegApproval           LegKind = "approval"
	LegSwap               LegKind = "swap"
	LegTip                LegKind = "tip" // Jito tip-account transfer
	LegFlashLoan          LegKind = "flash_loan"
)

// BundleLeg is one transaction within a Bundle.
type BundleLeg struct {
	Kind          LegKind
	SignedTxHex   string // empty until Signed
	Nonce         uint64
	To            string
	Data          []byte
	Value         *big.Int
	GasLimit      uint64
}

// Bundle is an ordered, atomically-submitted set of transactions. Integrity:
// every leg shares Signer on Chain, with strictly increasing Nonce — see
// Validate.
type Bundle struct {
	BundleID           string
	Chain              ChainId
	Relay              Relay
	Signer             string
	Legs               []BundleLeg
	TargetBlockOrSlot  uint64
	TipNative          *big.Int
	Status             BundleStatus
	SimulatedProfit    *big.Int
	ActualProfit       *big.Int
	SubmissionAttempts int
	LandingTxHashes    []string
	OpportunityID      string // weak back-reference; Opportunity Core remains the owner
}

// Validate enforces the Bundle integrity invariant from spec.md §3: shared
// signer, same chain, strictly monotonic nonces.
func (b Bundle) Validate() error {
	if err := b.Chain.AssertValid(); err != nil {
		return err
	}
	if len(b.Legs) == 0 {
		return fmt.Errorf("core: bundle %s has no legs", b.BundleID)
	}
	var lastNonce uint64
	for i, leg := range b.Legs {
		if i > 0 && leg.Nonce <= lastNonce {
			return fmt.Errorf("core: bundle %s leg %d nonce %d does not exceed previous nonce %d",
				b.BundleID, i, leg.Nonce, lastNonce)
		}
		lastNonce = leg.Nonce
	}
	return nil
}
