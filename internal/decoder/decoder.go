// Package decoder turns raw pending-transaction calldata into a TradeIntent
// the Opportunity Core can reason about. Unrecognized calldata is reported
// as Undecodable rather than causing a panic or a dropped transaction the
// caller can't account for.
package decoder

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/pkg/contractclient"
)

// ErrUndecodable is returned (wrapped with context) when a transaction's
// calldata does not match any registered decoder for its target address.
var ErrUndecodable = fmt.Errorf("decoder: calldata not recognized by any registered decoder")

// RouterSpec binds a router/program address to the Protocol it implements
// and the ContractClient carrying its ABI (EVM) — Solana programs are
// matched by program ID instead of ABI, see decodeSolana.
type RouterSpec struct {
	Address  string
	Protocol core.Protocol
	Client   contractclient.ContractClient // nil for Solana specs
}

// Decoder maps pending transactions to TradeIntents using a registry of
// known routers/programs per chain.
type Decoder struct {
	routers map[string]RouterSpec // key: router/program address
}

// New builds a Decoder over the given router/program registry.
func New(routers []RouterSpec) *Decoder {
	m := make(map[string]RouterSpec, len(routers))
	for _, r := range routers {
		m[r.Address] = r
	}
	return &Decoder{routers: m}
}

// Decode attempts to turn tx into a TradeIntent. It never panics: a decode
// failure anywhere in the call chain is folded into a wrapped
// ErrUndecodable rather than propagated as a crash.
func (d *Decoder) Decode(tx chain.PendingTx) (intent core.TradeIntent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered panic decoding %s: %v", ErrUndecodable, tx.Hash, r)
		}
	}()

	spec, ok := d.routers[tx.To]
	if !ok {
		return core.TradeIntent{}, fmt.Errorf("%w: no router registered for %s", ErrUndecodable, tx.To)
	}

	if tx.Chain.Family() == core.FamilySolana {
		return d.decodeSolana(tx, spec)
	}
	return d.decodeEVM(tx, spec)
}

func (d *Decoder) decodeEVM(tx chain.PendingTx, spec RouterSpec) (core.TradeIntent, error) {
	if spec.Client == nil {
		return core.TradeIntent{}, fmt.Errorf("%w: no ABI client registered for %s", ErrUndecodable, tx.To)
	}

	decoded, err := spec.Client.DecodeTransaction(tx.Data)
	if err != nil {
		return core.TradeIntent{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	method, path, amountIn, amountOutMin, deadline, err := mapEVMMethod(decoded)
	if err != nil {
		return core.TradeIntent{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	tokens := make([]core.TokenRef, 0, len(path))
	for _, addr := range path {
		tok, err := core.NewTokenRef(tx.Chain, addr, 18, "")
		if err != nil {
			return core.TradeIntent{}, fmt.Errorf("%w: invalid path token %s: %v", ErrUndecodable, addr, err)
		}
		tokens = append(tokens, tok)
	}

	return core.TradeIntent{
		SourceTxHash:       tx.Hash,
		Chain:              tx.Chain,
		Protocol:           spec.Protocol,
		Router:             spec.Address,
		Method:             method,
		Path:               tokens,
		AmountIn:           amountIn,
		AmountOutMin:       amountOutMin,
		Deadline:           deadline,
		Sender:             tx.From,
		ObservedTimestamp:  tx.ObservedAt,
		MempoolPriorityFee: tx.GasPrice,
	}, nil
}

// mapEVMMethod extracts the fields a v2/v3/stable router ABI's swap methods
// share (amountIn, amountOutMin, path, deadline), tolerating that different
// router families name these arguments slightly differently.
func mapEVMMethod(decoded *contractclient.DecodedCall) (core.Method, []string, *big.Int, *big.Int, time.Time, error) {
	var method core.Method
	switch decoded.MethodName {
	case "swapExactTokensForTokens", "swapExactETHForTokens":
		method = core.MethodExactIn
	case "exactInputSingle":
		method = core.MethodExactInSingle
	case "exactInput":
		method = core.MethodExactInPath
	case "swapExactTokensForTokensStable":
		method = core.MethodStableSwap
	default:
		return "", nil, nil, nil, time.Time{}, fmt.Errorf("unmapped method %s", decoded.MethodName)
	}

	amountIn, _ := decoded.Inputs["amountIn"].(*big.Int)
	amountOutMin, _ := decoded.Inputs["amountOutMin"].(*big.Int)

	var path []string
	if raw, ok := decoded.Inputs["path"]; ok {
		path = addressesToStrings(raw)
	} else {
		// v3 single-hop ABIs carry tokenIn/tokenOut instead of a path array.
		tokenIn, inOK := decoded.Inputs["tokenIn"].(common.Address)
		tokenOut, outOK := decoded.Inputs["tokenOut"].(common.Address)
		if inOK && outOK {
			path = []string{tokenIn.Hex(), tokenOut.Hex()}
		}
	}

	var deadline time.Time
	if dl, ok := decoded.Inputs["deadline"].(*big.Int); ok && dl != nil {
		deadline = time.Unix(dl.Int64(), 0)
	}

	return method, path, amountIn, amountOutMin, deadline, nil
}

// addressesToStrings converts an ABI-decoded []common.Address (the shape
// go-ethereum's abi.Unpack produces for an `address[]` parameter) into hex
// strings. Any other underlying type yields an empty path rather than a
// panic — callers treat an empty path as Undecodable via PathValid.
func addressesToStrings(raw any) []string {
	addrs, ok := raw.([]common.Address)
	if !ok {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

// decodeSolana parses Raydium/Jupiter-style swap instructions: a 1-byte
// discriminator followed by an 8-byte little-endian amountIn. Account
// references (which token mints are involved) live in the transaction's
// account table, which is resolved by the caller before this decoder runs;
// this layer only extracts what is self-contained within the instruction
// data itself.
func (d *Decoder) decodeSolana(tx chain.PendingTx, spec RouterSpec) (core.TradeIntent, error) {
	if len(tx.Data) < 9 {
		return core.TradeIntent{}, fmt.Errorf("%w: solana instruction too short", ErrUndecodable)
	}

	amountIn := new(big.Int).SetUint64(binary.LittleEndian.Uint64(tx.Data[1:9]))

	var method core.Method
	switch spec.Protocol {
	case core.ProtocolSolanaAMM, core.ProtocolSolanaRoute:
		method = core.MethodSolanaSwap
	default:
		return core.TradeIntent{}, fmt.Errorf("%w: unsupported solana protocol %s", ErrUndecodable, spec.Protocol)
	}

	if _, err := base58.Decode(spec.Address); err != nil {
		return core.TradeIntent{}, fmt.Errorf("%w: invalid program address %s", ErrUndecodable, spec.Address)
	}

	return core.TradeIntent{
		SourceTxHash:       tx.Hash,
		Chain:              tx.Chain,
		Protocol:           spec.Protocol,
		Router:             spec.Address,
		Method:             method,
		AmountIn:           amountIn,
		Sender:             tx.From,
		ObservedTimestamp:  tx.ObservedAt,
		MempoolPriorityFee: tx.GasPrice,
	}, nil
}
