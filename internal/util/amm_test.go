package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickToSqrtPriceX96_ZeroTick(t *testing.T) {
	// tick 0 must yield sqrtPriceX96 == 2^96 exactly: price ratio 1.0001^0 == 1.
	got := TickToSqrtPriceX96(0)
	assert.Equal(t, q96, got)
}

func TestTickToSqrtPriceX96_Symmetry(t *testing.T) {
	// 1.0001^tick and 1.0001^-tick are reciprocal, so their sqrtPriceX96
	// product should sit close to 2^192 (Q96*Q96) modulo rounding.
	positive := TickToSqrtPriceX96(1000)
	negative := TickToSqrtPriceX96(-1000)
	product := new(big.Int).Mul(positive, negative)
	q192 := new(big.Int).Mul(q96, q96)

	diff := new(big.Int).Sub(product, q192)
	diff.Abs(diff)
	tolerance := new(big.Int).Rsh(q192, 40) // generous relative tolerance for rounding drift
	assert.True(t, diff.Cmp(tolerance) <= 0, "product %s should be within tolerance of %s", product, q192)
}

func TestCalculateTickBounds(t *testing.T) {
	lower, upper, err := CalculateTickBounds(-251400, 6, 200)
	require.NoError(t, err)
	assert.True(t, lower < -251400)
	assert.True(t, upper > -251400)
	assert.Equal(t, int32(0), lower%200)
	assert.Equal(t, int32(0), upper%200)
}

func TestCalculateTickBounds_RejectsNonPositiveSpacing(t *testing.T) {
	_, _, err := CalculateTickBounds(-251400, 6, 0)
	assert.Error(t, err)
}

func TestComputeAmounts_InRangeSplitsBothTokens(t *testing.T) {
	sqrtPriceX96, _ := new(big.Int).SetString("275467826341246019486853", 10)
	tick, tickLower, tickUpper := -251400, -252000, -250800
	amount0Max, _ := new(big.Int).SetString("99999309985252461722", 10)
	amount1Max, _ := new(big.Int).SetString("1208870000", 10)

	amount0, amount1, liquidity := ComputeAmounts(sqrtPriceX96, tick, tickLower, tickUpper, amount0Max, amount1Max)

	assert.True(t, liquidity.Sign() > 0)
	assert.True(t, amount0.Cmp(amount0Max) <= 0)
	assert.True(t, amount1.Cmp(amount1Max) <= 0)
	assert.True(t, amount0.Sign() >= 0)
	assert.True(t, amount1.Sign() >= 0)
}

func TestCalculateTokenAmountsFromLiquidity_RoundTrip(t *testing.T) {
	liquidity := big.NewInt(845179049218237)
	sqrtPriceX96, _ := new(big.Int).SetString("275467826341246019486853", 10)
	tickLower, tickUpper := int32(-252000), int32(-240800)

	amount0, amount1, err := CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96, tickLower, tickUpper)
	require.NoError(t, err)
	assert.True(t, amount0.Sign() >= 0)
	assert.True(t, amount1.Sign() >= 0)
}

func TestCalculateTokenAmountsFromLiquidity_RejectsNegative(t *testing.T) {
	_, _, err := CalculateTokenAmountsFromLiquidity(big.NewInt(-1), q96, -100, 100)
	assert.Error(t, err)
}

func TestCalculateRebalanceAmounts(t *testing.T) {
	sqrtPrice, _ := new(big.Int).SetString("280057970020625981233062", 10)

	t.Run("token0_overweight", func(t *testing.T) {
		token0 := big.NewInt(5 * 1e18)
		token1 := big.NewInt(50_000_000)
		side, amount, err := CalculateRebalanceAmounts(token0, token1, sqrtPrice)
		require.NoError(t, err)
		assert.Equal(t, 0, side)
		assert.True(t, amount.Sign() > 0)
	})

	t.Run("token1_overweight", func(t *testing.T) {
		token0 := big.NewInt(2 * 1e18)
		token1 := big.NewInt(50_000_000)
		side, amount, err := CalculateRebalanceAmounts(token0, token1, sqrtPrice)
		require.NoError(t, err)
		assert.Equal(t, 1, side)
		assert.True(t, amount.Sign() >= 0)
	})
}

func TestHex2Bytes(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, Hex2Bytes("0xdeadbeef"))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, Hex2Bytes("deadbeef"))
	assert.Nil(t, Hex2Bytes("not-hex"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	plaintext := []byte("signer-private-key-material")

	ciphertext, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_RejectsShortCiphertext(t *testing.T) {
	key := make([]byte, 32)
	_, err := Decrypt(key, []byte("short"))
	assert.Error(t, err)
}
