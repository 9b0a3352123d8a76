package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/duskrelay/edgecore/internal/core"
)

// EVMAdapter implements Adapter over a single ethclient connection. It owns
// exactly one outbound RPC connection per chain, matching the teacher's
// one-ethclient-per-instance pattern.
type EVMAdapter struct {
	chain  core.ChainId
	client *ethclient.Client
	backoff Backoff
}

// NewEVMAdapter builds an EVMAdapter for chain over an already-dialed
// ethclient connection.
func NewEVMAdapter(chainID core.ChainId, client *ethclient.Client) *EVMAdapter {
	return &EVMAdapter{chain: chainID, client: client, backoff: Backoff{}}
}

func (a *EVMAdapter) Chain() core.ChainId { return a.chain }

func (a *EVMAdapter) SubmitSignedTx(ctx context.Context, raw []byte) (string, error) {
	var tx gethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", &AdapterError{Class: ClassPermanent, Chain: a.chain, Op: "SubmitSignedTx", Err: fmt.Errorf("decode signed tx: %w", err)}
	}
	if err := a.client.SendTransaction(ctx, &tx); err != nil {
		return "", &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "SubmitSignedTx", Err: err}
	}
	return tx.Hash().Hex(), nil
}

func (a *EVMAdapter) GetFeeData(ctx context.Context) (FeeData, error) {
	tipCap, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeData{}, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "GetFeeData", Err: err}
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return FeeData{}, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "GetFeeData", Err: err}
	}
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeData{}, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "GetFeeData", Err: err}
	}
	return FeeData{
		BaseFee:        head.BaseFee,
		PriorityFee:    tipCap,
		LegacyGasPrice: gasPrice,
	}, nil
}

// SubscribePendingTxs is not supported by this adapter. go-ethereum's public
// client does not expose a typed pending-tx subscription for arbitrary nodes
// (that is a provider-specific websocket extension — see SubscribeBlocks for
// the supported subscription path), so it always returns a nil channel and a
// ClassPermanent AdapterError rather than silently yielding nothing.
func (a *EVMAdapter) SubscribePendingTxs(ctx context.Context) (<-chan PendingTx, error) {
	return nil, &AdapterError{Class: ClassPermanent, Chain: a.chain, Op: "SubscribePendingTxs",
		Err: fmt.Errorf("pending-tx subscription requires a provider-specific websocket adapter")}
}

func (a *EVMAdapter) SubscribeBlocks(ctx context.Context) (<-chan BlockHead, error) {
	headers := make(chan *gethtypes.Header)
	sub, err := a.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "SubscribeBlocks", Err: err}
	}

	out := make(chan BlockHead, 16)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		var lastNumber uint64
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				_ = err // surfaced via channel close; caller resubscribes
				return
			case h := <-headers:
				number := h.Number.Uint64()
				var reorgDepth uint64
				if lastNumber != 0 && number <= lastNumber {
					reorgDepth = lastNumber - number + 1
				}
				lastNumber = number
				out <- BlockHead{
					Chain:      a.chain,
					Number:     number,
					Hash:       h.Hash().Hex(),
					Time:       time.Unix(int64(h.Time), 0),
					ReorgDepth: reorgDepth,
				}
			}
		}
	}()
	return out, nil
}

func (a *EVMAdapter) SimulateTx(ctx context.Context, raw []byte) (SimResult, error) {
	var tx gethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return SimResult{}, &AdapterError{Class: ClassPermanent, Chain: a.chain, Op: "SimulateTx", Err: fmt.Errorf("decode signed tx: %w", err)}
	}
	// go-ethereum's public client has no generic eth_call-on-raw-tx helper;
	// a production relay-specific simulation (e.g. Flashbots eth_callBundle)
	// is implemented in internal/relay against the chosen relay's RPC
	// extension. This adapter-level simulation covers the common case of a
	// plain eth_estimateGas dry run against the tx's own fields.
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), &tx)
	if err != nil {
		return SimResult{}, &AdapterError{Class: ClassPermanent, Chain: a.chain, Op: "SimulateTx", Err: err}
	}
	gasUsed, err := a.client.EstimateGas(ctx, callMsgFromTx(from, &tx))
	if err != nil {
		return SimResult{Success: false, RevertReason: err.Error()}, nil
	}
	return SimResult{Success: true, GasUsed: gasUsed}, nil
}

func (a *EVMAdapter) QueryAccount(ctx context.Context, address string) (*big.Int, error) {
	bal, err := a.client.BalanceAt(ctx, parseAddress(address), nil)
	if err != nil {
		return nil, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "QueryAccount", Err: err}
	}
	return bal, nil
}

func (a *EVMAdapter) HeadBlock(ctx context.Context) (uint64, error) {
	n, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, &AdapterError{Class: classifyEVMError(err), Chain: a.chain, Op: "HeadBlock", Err: err}
	}
	return n, nil
}

// permanentEVMErrorSubstrings are go-ethereum/node JSON-RPC error messages
// that mean retrying the exact same request will never succeed: the
// transaction itself is invalid, not the connection to the node.
var permanentEVMErrorSubstrings = []string{
	"revert",
	"execution reverted",
	"nonce too low",
	"nonce too high",
	"insufficient funds",
	"already known",
	"replacement transaction underpriced",
	"intrinsic gas too low",
	"invalid sender",
	"gas required exceeds allowance",
}

// classifyEVMError makes a best-effort transient/permanent call for
// go-ethereum RPC errors. Context deadline/cancel and anything not
// recognized as a deterministic rejection default to transient (dial
// hiccups, node overload, rate limiting); reverts, nonce errors, and
// insufficient-funds rejections are permanent since retrying with the same
// inputs will not change the outcome.
func classifyEVMError(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}
	switch err {
	case context.DeadlineExceeded, context.Canceled:
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range permanentEVMErrorSubstrings {
		if strings.Contains(msg, substr) {
			return ClassPermanent
		}
	}
	return ClassTransient // default optimistic: most RPC-layer failures here are dial/timeout related
}
