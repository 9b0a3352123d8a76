package relay

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"strconv"

	"github.com/duskrelay/edgecore/internal/core"
)

// flashbotsBundleRequest mirrors the eth_sendBundle JSON-RPC payload every
// Flashbots-compatible EVM block builder accepts.
type flashbotsBundleRequest struct {
	JSONRPC string                   `json:"jsonrpc"`
	ID      int                      `json:"id"`
	Method  string                   `json:"method"`
	Params  []flashbotsBundleParams `json:"params"`
}

type flashbotsBundleParams struct {
	Txs         []string `json:"txs"` // 0x-prefixed raw signed tx hex
	BlockNumber string   `json:"blockNumber"`
}

// FlashbotsEndpoint submits bundles to an EVM Flashbots-style bundle
// relay, signing the request body with the searcher's reputation key
// (spec.md §4.10: "Flashbots-style bundle endpoint (EVM)").
type FlashbotsEndpoint struct {
	URL           string
	ReputationKey *ecdsa.PrivateKey
}

func (f *FlashbotsEndpoint) Relay() core.Relay { return core.RelayFlashbots }

func (f *FlashbotsEndpoint) SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error {
	txs := make([]string, len(signed))
	for i, s := range signed {
		txs[i] = string(s)
	}
	req := flashbotsBundleRequest{
		JSONRPC: "2.0", ID: 1, Method: "eth_sendBundle",
		Params: []flashbotsBundleParams{{Txs: txs, BlockNumber: hexBlock(bdl.TargetBlockOrSlot)}},
	}

	body, err := marshalForSigning(req)
	if err != nil {
		return err
	}
	sig, err := flashbotsSignatureHeader(body, f.ReputationKey)
	if err != nil {
		return err
	}
	return postJSON(ctx, f.URL, map[string]string{"X-Flashbots-Signature": sig}, req)
}

// jitoBundleRequest mirrors Jito's sendBundle JSON-RPC payload. Tip
// delivery on Jito is a transfer to a known tip account rather than a
// priority-fee field (spec.md §4.10: "includes tip transfer to a tip
// account"). No component here appends a LegTip leg carrying that transfer
// (the Bundle Builder does not), and this endpoint only forwards whatever
// signed transactions it is given.
type jitoBundleRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

// JitoEndpoint submits bundles to a Solana Jito block-engine.
type JitoEndpoint struct {
	URL string
}

func (j *JitoEndpoint) Relay() core.Relay { return core.RelayJito }

func (j *JitoEndpoint) SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error {
	txs := make([]string, len(signed))
	for i, s := range signed {
		txs[i] = string(s)
	}
	req := jitoBundleRequest{JSONRPC: "2.0", ID: 1, Method: "sendBundle", Params: [][]string{txs}}
	return postJSON(ctx, j.URL, nil, req)
}

// bloxRouteRequest mirrors BloxRoute/NodeReal's MEV bundle submission
// payload used on BSC.
type bloxRouteRequest struct {
	Transaction []string `json:"transaction"`
	BlockNumber string   `json:"block_number"`
}

// BloxRouteEndpoint submits bundles to a BloxRoute or NodeReal MEV endpoint
// (spec.md §4.10: "BloxRoute/NodeReal MEV endpoints (BSC)").
type BloxRouteEndpoint struct {
	URL    string
	APIKey string
}

func (b *BloxRouteEndpoint) Relay() core.Relay { return core.RelayBloxRoute }

func (b *BloxRouteEndpoint) SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error {
	txs := make([]string, len(signed))
	for i, s := range signed {
		txs[i] = string(s)
	}
	req := bloxRouteRequest{Transaction: txs, BlockNumber: hexBlock(bdl.TargetBlockOrSlot)}
	headers := map[string]string{}
	if b.APIKey != "" {
		headers["Authorization"] = b.APIKey
	}
	return postJSON(ctx, b.URL, headers, req)
}

// PublicMempoolEndpoint broadcasts each leg individually to a public node
// via eth_sendRawTransaction, forgoing any relay's atomicity/privacy
// guarantee (spec.md §4.10: "public mempool fallback — only for
// copy-trading or when MEV protection is disabled"). Because the legs land
// independently, callers using this endpoint for anything but Copy must
// have already fail-closed on atomicity elsewhere (spec.md §4.9).
type PublicMempoolEndpoint struct {
	URL string
}

func (p *PublicMempoolEndpoint) Relay() core.Relay { return core.RelayPublicMempool }

func (p *PublicMempoolEndpoint) SubmitBundle(ctx context.Context, bdl core.Bundle, signed [][]byte) error {
	for _, raw := range signed {
		req := map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": "eth_sendRawTransaction",
			"params": []string{string(raw)},
		}
		if err := postJSON(ctx, p.URL, nil, req); err != nil {
			return err
		}
	}
	return nil
}

func hexBlock(n uint64) string {
	if n == 0 {
		return ""
	}
	return "0x" + strconv.FormatUint(n, 16)
}

func marshalForSigning(v any) ([]byte, error) {
	return json.Marshal(v)
}
