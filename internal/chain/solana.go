package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"github.com/duskrelay/edgecore/internal/core"
)

// SolanaAdapter implements Adapter over a Solana JSON-RPC HTTP endpoint plus
// a raw websocket for block/slot subscriptions — Solana's RPC surface has no
// ethclient-equivalent typed client in this stack, so requests are built by
// hand the way the teacher's EVM path leans on ethclient's ready-made one.
type SolanaAdapter struct {
	rpcURL string
	wsURL  string
	http   *http.Client
}

// NewSolanaAdapter builds a SolanaAdapter against an HTTP RPC endpoint and
// its companion websocket endpoint.
func NewSolanaAdapter(rpcURL, wsURL string) *SolanaAdapter {
	return &SolanaAdapter{rpcURL: rpcURL, wsURL: wsURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *SolanaAdapter) Chain() core.ChainId { return core.ChainSolana }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *SolanaAdapter) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.rpcURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return &AdapterError{Class: ClassTransient, Chain: core.ChainSolana, Op: method, Err: err}
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &AdapterError{Class: ClassTransient, Chain: core.ChainSolana, Op: method, Err: err}
	}
	if rpcResp.Error != nil {
		return &AdapterError{Class: ClassPermanent, Chain: core.ChainSolana, Op: method, Err: fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal rpc result: %w", err)
		}
	}
	return nil
}

func (a *SolanaAdapter) SubmitSignedTx(ctx context.Context, raw []byte) (string, error) {
	encoded := base58.Encode(raw)
	var sig string
	if err := a.call(ctx, "sendTransaction", []any{encoded, map[string]string{"encoding": "base58"}}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

func (a *SolanaAdapter) GetFeeData(ctx context.Context) (FeeData, error) {
	var result struct {
		Value struct {
			FeeCalculator struct {
				LamportsPerSignature uint64 `json:"lamportsPerSignature"`
			} `json:"feeCalculator"`
		} `json:"value"`
	}
	if err := a.call(ctx, "getRecentBlockhash", nil, &result); err != nil {
		return FeeData{}, err
	}
	return FeeData{PriorityFee: big.NewInt(int64(result.Value.FeeCalculator.LamportsPerSignature))}, nil
}

// SubscribePendingTxs has no Solana equivalent: Solana has no public mempool
// the way EVM chains do (transactions go straight to the current/next
// leader). It always returns a ClassPermanent error. SubscribeBlocks reports
// slot numbers only, so no Solana transactions reach the Transaction Decoder
// through this adapter.
func (a *SolanaAdapter) SubscribePendingTxs(ctx context.Context) (<-chan PendingTx, error) {
	return nil, &AdapterError{Class: ClassPermanent, Chain: core.ChainSolana, Op: "SubscribePendingTxs",
		Err: fmt.Errorf("solana has no public mempool; subscribe to processed-commitment slots instead")}
}

func (a *SolanaAdapter) SubscribeBlocks(ctx context.Context) (<-chan BlockHead, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return nil, &AdapterError{Class: ClassTransient, Chain: core.ChainSolana, Op: "SubscribeBlocks", Err: err}
	}

	sub := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "slotSubscribe"}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, &AdapterError{Class: ClassTransient, Chain: core.ChainSolana, Op: "SubscribeBlocks", Err: err}
	}

	out := make(chan BlockHead, 16)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var msg struct {
				Params struct {
					Result struct {
						Slot uint64 `json:"slot"`
					} `json:"result"`
				} `json:"params"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Params.Result.Slot == 0 {
				continue // subscription ack or unrelated notification
			}
			out <- BlockHead{Chain: core.ChainSolana, Number: msg.Params.Result.Slot, Time: time.Now()}
		}
	}()
	return out, nil
}

func (a *SolanaAdapter) SimulateTx(ctx context.Context, raw []byte) (SimResult, error) {
	encoded := base58.Encode(raw)
	var result struct {
		Value struct {
			Err  any      `json:"err"`
			Logs []string `json:"logs"`
		} `json:"value"`
	}
	if err := a.call(ctx, "simulateTransaction", []any{encoded, map[string]string{"encoding": "base58"}}, &result); err != nil {
		return SimResult{}, err
	}
	if result.Value.Err != nil {
		return SimResult{Success: false, RevertReason: fmt.Sprintf("%v", result.Value.Err)}, nil
	}
	return SimResult{Success: true}, nil
}

func (a *SolanaAdapter) QueryAccount(ctx context.Context, address string) (*big.Int, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := a.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(result.Value), nil
}

func (a *SolanaAdapter) HeadBlock(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := a.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}
