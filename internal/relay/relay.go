// Package relay drives one Bundle through the per-relay submission state
// machine spec.md §4.10 defines: sign, submit, monitor inclusion, and
// optionally re-bid once before conceding the target block/slot.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
)

// inclusionWindowByChain bounds how many subsequent blocks/slots the
// Submitter watches for a bundle's transactions before declaring it
// Expired (spec.md §4.10: "N subsequent blocks, N per chain").
var inclusionWindowByChain = map[core.ChainId]uint64{
	core.ChainEthereum: 3,
	core.ChainBSC:      5,
	core.ChainSolana:   20,
}

// InclusionChecker reports whether bdl's legs have landed, and with which
// transaction hashes, by comparing against canonical chain contents
// (spec.md §4.10). It is supplied by the caller rather than implemented in
// this package, since confirming inclusion requires reading full block
// bodies — a capability that belongs to chain.Adapter/internal/store, not
// to the relay state machine itself.
type InclusionChecker func(ctx context.Context, bdl core.Bundle) (included bool, landingHashes []string, err error)

// Endpoint is the per-relay HTTP surface: submit a signed bundle. Flashbots/
// Jito/BloxRoute/public-mempool each get a concrete Endpoint implementation
// in this package; they share this interface so Submitter's state machine
// is written once.
type Endpoint interface {
	Relay() core.Relay
	SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error
}

// Submitter drives Bundles through Built->Signed->Submitted->terminal,
// against one Endpoint per core.Relay and one Adapter per chain for
// inclusion monitoring.
type Submitter struct {
	endpoints map[core.Relay]Endpoint
	adapters  map[core.ChainId]chain.Adapter
	signer    *ecdsa.PrivateKey
	checker   InclusionChecker
}

// New builds a Submitter over the given relay endpoints, chain adapters,
// signing key, and inclusion checker.
func New(endpoints map[core.Relay]Endpoint, adapters map[core.ChainId]chain.Adapter, signer *ecdsa.PrivateKey, checker InclusionChecker) *Submitter {
	return &Submitter{endpoints: endpoints, adapters: adapters, signer: signer, checker: checker}
}

// Sign attaches signatures to every leg lacking one, transitioning
// Built->Signed. Legs already carrying SignedTxHex (e.g. LegVictimPlaceholder,
// which the Submitter never constructs a transaction for) are left alone.
// gasPrice is the Gas Tracker-derived price every EVM leg in the bundle
// shares (bundles are submitted as a unit, so every leg lands in the same
// block at the same effective price).
func (s *Submitter) Sign(bdl *core.Bundle, gasPrice *big.Int) error {
	if !bdl.Status.CanTransitionTo(core.BundleSigned) {
		return fmt.Errorf("relay: bundle %s cannot sign from status %s", bdl.BundleID, bdl.Status)
	}
	for i, leg := range bdl.Legs {
		if leg.Kind == core.LegVictimPlaceholder || leg.SignedTxHex != "" {
			continue
		}
		signedHex, err := signLeg(bdl.Chain, leg, gasPrice, s.signer)
		if err != nil {
			return fmt.Errorf("relay: sign leg %d of bundle %s: %w", i, bdl.BundleID, err)
		}
		bdl.Legs[i].SignedTxHex = signedHex
	}
	bdl.Status = core.BundleSigned
	return nil
}

// Submit sends the signed bundle to its target relay, transitioning
// Signed->Submitted on success. A transient submission error leaves status
// at Signed (per spec.md §4.10's "Signed | submit err (transient) |
// Signed") so the caller can retry with backoff until deadline.
func (s *Submitter) Submit(ctx context.Context, bdl *core.Bundle, targetBlockOrSlot uint64) error {
	if !bdl.Status.CanTransitionTo(core.BundleSubmitted) {
		return fmt.Errorf("relay: bundle %s cannot submit from status %s", bdl.BundleID, bdl.Status)
	}
	endpoint, ok := s.endpoints[bdl.Relay]
	if !ok {
		return fmt.Errorf("relay: no endpoint configured for %s", bdl.Relay)
	}

	signed := make([][]byte, 0, len(bdl.Legs))
	for _, leg := range bdl.Legs {
		if leg.Kind == core.LegVictimPlaceholder {
			continue
		}
		signed = append(signed, []byte(leg.SignedTxHex))
	}

	bdl.SubmissionAttempts++
	if err := endpoint.SubmitBundle(ctx, *bdl, signed); err != nil {
		return err // transient: status stays Signed, caller retries
	}
	bdl.TargetBlockOrSlot = targetBlockOrSlot
	bdl.Status = core.BundleSubmitted
	return nil
}

// confirmationsByChain is how many blocks/slots past first sighting a
// landed bundle must survive before MonitorInclusion treats inclusion as
// final: a per-chain reorg-safety margin for every chain this package
// submits to.
var confirmationsByChain = map[core.ChainId]uint64{
	core.ChainEthereum: 2,
	core.ChainBSC:      2,
	core.ChainSolana:   1,
}

// MonitorInclusion polls the chain adapter's head for up to the per-chain
// inclusion window after target, declaring Included (and recording landing
// hashes via the configured InclusionChecker) or Expired. A bundle the
// checker reports as included must first survive confirmationsByChain
// additional blocks; if the checker later reports the same bundle as no
// longer included after it was already sighted, the chain reorged the
// landing out from under it and MonitorInclusion returns a chain.ClassReorg
// error instead of silently declaring Expired, so the caller can
// re-evaluate and resubmit against the post-reorg head.
func (s *Submitter) MonitorInclusion(ctx context.Context, bdl *core.Bundle, pollInterval time.Duration) error {
	if bdl.Status != core.BundleSubmitted {
		return fmt.Errorf("relay: bundle %s not awaiting inclusion (status %s)", bdl.BundleID, bdl.Status)
	}
	adapter, ok := s.adapters[bdl.Chain]
	if !ok {
		return fmt.Errorf("relay: no adapter configured for chain %s", bdl.Chain)
	}
	window := inclusionWindowByChain[bdl.Chain]
	deadlineHeight := bdl.TargetBlockOrSlot + window
	confirmations := confirmationsByChain[bdl.Chain]

	var landedAt uint64
	var landedHashes []string

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			head, err := adapter.HeadBlock(ctx)
			if err != nil {
				continue // transient read failure, keep polling until deadline
			}

			if s.checker != nil {
				included, hashes, err := s.checker(ctx, *bdl)
				if err == nil {
					switch {
					case included && landedAt == 0:
						landedAt, landedHashes = head, hashes
					case !included && landedAt != 0:
						return &chain.AdapterError{
							Class: chain.ClassReorg,
							Chain: bdl.Chain,
							Op:    "MonitorInclusion",
							Err:   fmt.Errorf("bundle %s evicted from the chain after landing at block %d", bdl.BundleID, landedAt),
						}
					}
				}
			}
			if landedAt != 0 && head >= landedAt+confirmations {
				bdl.LandingTxHashes = landedHashes
				bdl.Status = core.BundleIncluded
				return nil
			}

			if head > deadlineHeight {
				bdl.Status = core.BundleExpired
				return nil
			}
		}
	}
}

// Rebid reports whether re-pricing bdl's tip to newTip and resubmitting
// would still leave the opportunity's expected profit positive, per
// spec.md §4.10's "optional one re-bid... if expected profit after new tip
// remains positive." It does not itself resubmit — callers that get true
// back call Submit again with bdl.TipNative updated to newTip.
func Rebid(bdl *core.Bundle, expectedProfitNative, newTip *big.Int) bool {
	if bdl.SubmissionAttempts > 1 {
		return false // only one re-bid permitted
	}
	remaining := new(big.Int).Sub(expectedProfitNative, newTip)
	return remaining.Sign() > 0
}

// Kill transitions bdl to Failed unconditionally, from any non-terminal
// state, per spec.md §4.10's "any | Risk Governor kill | Failed".
func Kill(bdl *core.Bundle) {
	if bdl.Status.Terminal() {
		return
	}
	bdl.Status = core.BundleFailed
}

func postJSON(ctx context.Context, url string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relay: endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
