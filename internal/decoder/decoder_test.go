package decoder

import (
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/pkg/contractclient"
)

// stubClient implements contractclient.ContractClient with only
// DecodeTransaction wired, which is all this package's decodeEVM path uses.
type stubClient struct {
	contractclient.ContractClient
	decoded *contractclient.DecodedCall
	err     error
}

func (s *stubClient) DecodeTransaction(data []byte) (*contractclient.DecodedCall, error) {
	return s.decoded, s.err
}

func TestDecode_UnregisteredRouterIsUndecodable(t *testing.T) {
	d := New(nil)
	_, err := d.Decode(chain.PendingTx{Chain: core.ChainEthereum, To: "0xnotregistered"})
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestDecode_EVMExactInPath(t *testing.T) {
	client := &stubClient{decoded: &contractclient.DecodedCall{
		MethodName: "swapExactTokensForTokens",
		Inputs: map[string]any{
			"amountIn":     big.NewInt(1_000_000),
			"amountOutMin": big.NewInt(990_000),
			"path": []common.Address{
				common.HexToAddress("0x1111111111111111111111111111111111111111"),
				common.HexToAddress("0x2222222222222222222222222222222222222222"),
			},
			"deadline": big.NewInt(time.Now().Add(time.Minute).Unix()),
		},
	}}
	d := New([]RouterSpec{{Address: "0xrouter", Protocol: core.ProtocolAMMv2, Client: client}})

	intent, err := d.Decode(chain.PendingTx{
		Chain:    core.ChainEthereum,
		To:       "0xrouter",
		Hash:     "0xabc",
		From:     "0xsender",
		GasPrice: big.NewInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, core.MethodExactIn, intent.Method)
	assert.True(t, intent.PathValid())
	assert.Equal(t, big.NewInt(1_000_000), intent.AmountIn)
}

func TestDecode_EVMUnmappedMethodIsUndecodable(t *testing.T) {
	client := &stubClient{decoded: &contractclient.DecodedCall{MethodName: "addLiquidity"}}
	d := New([]RouterSpec{{Address: "0xrouter", Protocol: core.ProtocolAMMv2, Client: client}})

	_, err := d.Decode(chain.PendingTx{Chain: core.ChainEthereum, To: "0xrouter"})
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestDecode_EVMDecodeFailureIsUndecodable(t *testing.T) {
	client := &stubClient{err: assert.AnError}
	d := New([]RouterSpec{{Address: "0xrouter", Protocol: core.ProtocolAMMv2, Client: client}})

	_, err := d.Decode(chain.PendingTx{Chain: core.ChainEthereum, To: "0xrouter"})
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestDecode_Solana(t *testing.T) {
	d := New([]RouterSpec{{Address: "11111111111111111111111111111111", Protocol: core.ProtocolSolanaAMM}})

	data := make([]byte, 9)
	data[0] = 0x09
	binary.LittleEndian.PutUint64(data[1:9], 42_000)

	intent, err := d.Decode(chain.PendingTx{
		Chain: core.ChainSolana,
		To:    "11111111111111111111111111111111",
		Hash:  "sig123",
		Data:  data,
	})
	require.NoError(t, err)
	assert.Equal(t, core.MethodSolanaSwap, intent.Method)
	assert.Equal(t, big.NewInt(42_000), intent.AmountIn)
}

func TestDecode_SolanaShortInstructionIsUndecodable(t *testing.T) {
	d := New([]RouterSpec{{Address: "11111111111111111111111111111111", Protocol: core.ProtocolSolanaAMM}})
	_, err := d.Decode(chain.PendingTx{Chain: core.ChainSolana, To: "11111111111111111111111111111111", Data: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrUndecodable)
}
