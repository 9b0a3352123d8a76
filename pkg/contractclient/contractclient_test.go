package contractclient

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

func mustParseABI(t *testing.T, raw string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	require.NoError(t, err)
	return parsed
}

func TestDecodeTransaction_TransferCall(t *testing.T) {
	contractABI := mustParseABI(t, erc20TransferABI)
	to := common.HexToAddress("0x6e4141d33021b52c91c28608403db4a0ffb50ec6")
	value := big.NewInt(1_000_000)

	cc := NewContractClient(nil, common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"), contractABI)
	packed, err := contractABI.Pack("transfer", to, value)
	require.NoError(t, err)

	decoded, err := cc.DecodeTransaction(packed)
	require.NoError(t, err)
	assert.Equal(t, "transfer", decoded.MethodName)
	assert.Equal(t, value, decoded.Inputs["value"])
}

func TestDecodeTransaction_RejectsShortCalldata(t *testing.T) {
	contractABI := mustParseABI(t, erc20TransferABI)
	cc := NewContractClient(nil, common.Address{}, contractABI)

	_, err := cc.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestDecodeTransaction_RejectsUnknownSelector(t *testing.T) {
	contractABI := mustParseABI(t, erc20TransferABI)
	cc := NewContractClient(nil, common.Address{}, contractABI)

	_, err := cc.DecodeTransaction([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.Error(t, err)
}

func TestCall_RequiresLiveConnection(t *testing.T) {
	contractABI := mustParseABI(t, erc20TransferABI)
	cc := NewContractClient(nil, common.Address{}, contractABI)

	_, err := cc.Call(nil, "transfer", common.Address{}, big.NewInt(1))
	assert.Error(t, err)
}
