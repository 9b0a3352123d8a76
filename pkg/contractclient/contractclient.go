// Package contractclient wraps a single deployed EVM contract (address +
// ABI) behind a small read/write/decode surface, generalized from a
// single-DEX-router client into the common shape every chain adapter
// variant (router, pool, NFT position manager, ERC20) needs.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	edgetypes "github.com/duskrelay/edgecore/pkg/types"
)

// DecodedCall is the result of decoding a transaction's calldata against a
// ContractClient's ABI.
type DecodedCall struct {
	MethodName string         `json:"method"`
	Inputs     map[string]any `json:"inputs"`
}

// ContractClient is the capability surface every chain-adapter variant
// needs against one deployed contract: read (Call), write (Send), and
// decode calldata originating elsewhere (DecodeTransaction) — the last of
// which the Transaction Decoder leans on heavily for mempool transactions
// that were never built through this client.
type ContractClient interface {
	Call(from *common.Address, method string, args ...any) ([]any, error)
	Send(mode edgetypes.SendMode, gasLimit *uint64, from *common.Address, key *ecdsa.PrivateKey, method string, args ...any) (common.Hash, error)
	Abi() abi.ABI
	ContractAddress() common.Address
	TransactionData(txHash common.Hash) ([]byte, error)
	DecodeTransaction(data []byte) (*DecodedCall, error)
	ParseReceipt(receipt *edgetypes.TxReceipt) ([]types.Log, error)
}

type client struct {
	eth     *ethclient.Client
	address common.Address
	abi     abi.ABI
	chainID *big.Int
}

// NewContractClient binds an ABI to a contract address over an ethclient
// connection. eth may be nil for offline-only use (e.g. decoding calldata
// captured from the mempool without ever dialing a node).
func NewContractClient(eth *ethclient.Client, address common.Address, contractABI abi.ABI) ContractClient {
	return &client{eth: eth, address: address, abi: contractABI}
}

func (c *client) Abi() abi.ABI                        { return c.abi }
func (c *client) ContractAddress() common.Address     { return c.address }

func (c *client) Call(from *common.Address, method string, args ...any) ([]any, error) {
	if c.eth == nil {
		return nil, fmt.Errorf("contractclient: Call requires a live ethclient connection")
	}
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if from != nil {
		msg.From = *from
	}

	out, err := c.eth.CallContract(context.Background(), msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}

	unpacked, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s: %w", method, err)
	}
	return unpacked, nil
}

func (c *client) Send(mode edgetypes.SendMode, gasLimit *uint64, from *common.Address, key *ecdsa.PrivateKey, method string, args ...any) (common.Hash, error) {
	if c.eth == nil {
		return common.Hash{}, fmt.Errorf("contractclient: Send requires a live ethclient connection")
	}
	if key == nil {
		return common.Hash{}, fmt.Errorf("contractclient: Send requires a signing key")
	}

	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	sender := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.eth.PendingNonceAt(context.Background(), sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: nonce for %s: %w", sender, err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(context.Background())
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: suggest gas price: %w", err)
	}

	limit := uint64(300_000)
	if gasLimit != nil {
		limit = *gasLimit
	} else {
		estimated, err := c.eth.EstimateGas(context.Background(), ethereum.CallMsg{
			From: sender,
			To:   &c.address,
			Data: input,
		})
		if err == nil && estimated > 0 {
			limit = estimated
		}
	}

	if c.chainID == nil {
		chainID, err := c.eth.ChainID(context.Background())
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: chain id: %w", err)
		}
		c.chainID = chainID
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      limit,
		GasPrice: gasPrice,
		Data:     input,
	})

	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: sign tx for %s: %w", method, err)
	}

	if mode == edgetypes.Private {
		// Private relay submission is handled by internal/relay, which owns
		// the Flashbots/Jito/BloxRoute endpoints; a bare ContractClient only
		// ever broadcasts through the node's standard path.
		return common.Hash{}, fmt.Errorf("contractclient: private send mode requires internal/relay, not a bare ContractClient")
	}

	if err := c.eth.SendTransaction(context.Background(), signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: broadcast %s: %w", method, err)
	}
	return signedTx.Hash(), nil
}

func (c *client) TransactionData(txHash common.Hash) ([]byte, error) {
	if c.eth == nil {
		return nil, fmt.Errorf("contractclient: TransactionData requires a live ethclient connection")
	}
	tx, _, err := c.eth.TransactionByHash(context.Background(), txHash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch tx %s: %w", txHash.Hex(), err)
	}
	return tx.Data(), nil
}

// DecodeTransaction maps raw calldata back to a method name and named
// arguments using this client's ABI. The leading 4-byte selector picks the
// method; remaining bytes are unpacked positionally and paired with the
// ABI's declared argument names.
func (c *client) DecodeTransaction(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractclient: calldata shorter than a method selector")
	}

	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("contractclient: unknown selector %x: %w", data[:4], err)
	}

	args := map[string]any{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("contractclient: unpack inputs for %s: %w", method.Name, err)
	}

	return &DecodedCall{MethodName: method.Name, Inputs: args}, nil
}

// ParseReceipt filters a mined receipt's logs down to the ones emitted by
// this contract's address; topics are not checked against this ABI's
// events. Callers that need a specific event (e.g. the Mint position's
// Transfer log) do the event match themselves via
// bind.NewBoundContract-style unpacking.
func (c *client) ParseReceipt(receipt *edgetypes.TxReceipt) ([]types.Log, error) {
	if receipt == nil {
		return nil, fmt.Errorf("contractclient: nil receipt")
	}
	var matched []types.Log
	for _, l := range receipt.Logs {
		if l.Address != c.address {
			continue
		}
		matched = append(matched, types.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
		})
	}
	return matched, nil
}

// boundContract is retained as a convenience for callers that want
// go-ethereum's higher-level bind.BoundContract event-unpacking instead of
// raw ParseReceipt filtering.
func (c *client) boundContract() *bind.BoundContract {
	return bind.NewBoundContract(c.address, c.abi, c.eth, c.eth, c.eth)
}
