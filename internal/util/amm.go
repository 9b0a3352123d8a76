// Package util holds the arbitrary-precision AMM math and ABI/crypto helpers
// shared by the chain adapters, the decoder and the slippage validator. All
// on-chain-amount arithmetic here uses math/big exclusively — floats are
// used only where the caller has already said the result is for display or
// scoring (see SqrtPriceToPrice).
package util

import "math/big"

// q96 is 2^96, the fixed-point denominator Uniswap-v3-style pools encode
// sqrtPriceX96 and liquidity math in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// q128 is 2^128, used by the bit-by-bit tick-to-ratio expansion below.
var q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// maxUint256 backs the tick>0 reciprocal step of TickToSqrtPriceX96.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// tickRatioConstants are the Q128.128 magic multipliers for bits 0..19 of
// |tick| (0x1 through 0x80000), the standard bit-decomposition used to
// compute 1.0001^tick without a transcendental function. Constant i is
// 2^128 / sqrt(1.0001)^(2^i): the Q128.128 sqrt-price of tick -(2^i).
var tickRatioConstants = []string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
}

// TickToSqrtPriceX96 converts a tick index to its Q64.96 sqrt-price, the
// same representation AMM-v3-style pool state reports. Mirrors the
// Uniswap-v3 TickMath.getSqrtRatioAtTick bit-decomposition: 1.0001^tick is
// built as a product of precomputed Q128.128 constants selected by the bits
// of |tick|, then reciprocated for positive ticks (the constants are
// negative-tick factors) and rounded up into Q64.96.
func TickToSqrtPriceX96(tick int) *big.Int {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&0x1 != 0 {
		ratio.SetString(tickRatioConstants[0], 16)
	} else {
		ratio.Set(q128)
	}

	for i := 1; i < len(tickRatioConstants); i++ {
		bit := 1 << uint(i)
		if absTick&bit != 0 {
			c := new(big.Int)
			c.SetString(tickRatioConstants[i], 16)
			ratio.Mul(ratio, c)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96: shift right 32, rounding up if there is a remainder.
	sqrtPriceX96 := new(big.Int).Rsh(ratio, 32)
	remainder := new(big.Int).And(ratio, big.NewInt(0xffffffff))
	if remainder.Sign() != 0 {
		sqrtPriceX96.Add(sqrtPriceX96, big.NewInt(1))
	}
	return sqrtPriceX96
}

// SqrtPriceToPrice converts a Q64.96 sqrt price into the pool's raw token1-
// per-token0 price as a big.Float. This is the one place AMM math
// deliberately drops precision. The Slippage Validator's v3 amount-out
// approximation (validator.v3ApproxAmountOut) multiplies by this price, so
// that amount is float-derived; ComputeAmounts and
// CalculateTokenAmountsFromLiquidity are big.Int throughout.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	sp := new(big.Float).SetInt(sqrtPriceX96)
	q96f := new(big.Float).SetInt(q96)
	ratio := new(big.Float).Quo(sp, q96f)
	return new(big.Float).Mul(ratio, ratio)
}

// CalculateTickBounds derives a symmetric [lower, upper] tick range around
// currentTick spanning rangeWidth*tickSpacing ticks on each side, both ends
// snapped to the pool's tick spacing as AMM-v3-style pools require.
func CalculateTickBounds(currentTick int32, rangeWidth, tickSpacing int) (int32, int32, error) {
	if tickSpacing <= 0 {
		return 0, 0, errTickSpacing
	}
	if rangeWidth < 0 {
		return 0, 0, errRangeWidth
	}
	span := int32(rangeWidth * tickSpacing)
	lower := (currentTick - span) / int32(tickSpacing) * int32(tickSpacing)
	upper := (currentTick + span) / int32(tickSpacing) * int32(tickSpacing)
	return lower, upper, nil
}

// ComputeAmounts derives the liquidity a deposit of at most (amount0Max,
// amount1Max) can provide for [tickLower, tickUpper] given the pool is
// currently at (sqrtPriceX96, tick), and the actual (amount0, amount1) that
// liquidity consumes. Three regimes, matching Uniswap-v3-style concentrated
// liquidity: price below range (single-sided token0), above range
// (single-sided token1), or in range (both sides, bounded by whichever
// token runs out first).
func ComputeAmounts(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int, amount0Max, amount1Max *big.Int) (*big.Int, *big.Int, *big.Int) {
	sqrtLower := TickToSqrtPriceX96(tickLower)
	sqrtUpper := TickToSqrtPriceX96(tickUpper)

	switch {
	case tick < tickLower:
		l := liquidityForAmount0(sqrtLower, sqrtUpper, amount0Max)
		amount0, amount1 := amountsForLiquidity(sqrtLower, sqrtLower, sqrtUpper, l)
		return amount0, amount1, l
	case tick >= tickUpper:
		l := liquidityForAmount1(sqrtLower, sqrtUpper, amount1Max)
		amount0, amount1 := amountsForLiquidity(sqrtUpper, sqrtLower, sqrtUpper, l)
		return amount0, amount1, l
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtUpper, amount0Max)
		l1 := liquidityForAmount1(sqrtLower, sqrtPriceX96, amount1Max)
		l := l0
		if l1.Cmp(l0) < 0 {
			l = l1
		}
		amount0, amount1 := amountsForLiquidity(sqrtPriceX96, sqrtLower, sqrtUpper, l)
		return amount0, amount1, l
	}
}

// CalculateTokenAmountsFromLiquidity returns the (amount0, amount1) a given
// liquidity amount redeems to at sqrtPriceX96, for a position with range
// [tickLower, tickUpper]. Used by route/validator code to value an existing
// LP-shaped position at a hypothetical price, not to build new deposits.
func CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (*big.Int, *big.Int, error) {
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, errNegativeLiquidity
	}
	sqrtLower := TickToSqrtPriceX96(int(tickLower))
	sqrtUpper := TickToSqrtPriceX96(int(tickUpper))
	amount0, amount1 := amountsForLiquidity(sqrtPriceX96, sqrtLower, sqrtUpper, liquidity)
	return amount0, amount1, nil
}

// CalculateRebalanceAmounts decides which side of a two-asset balance is
// overweight relative to the pool's current price and returns how much of
// that side to swap to restore a 50/50 split. tokenToSwap is 0 for the
// token0 side, 1 for the token1 side, matching the teacher's integer tag.
func CalculateRebalanceAmounts(token0Balance, token1Balance, sqrtPriceX96 *big.Int) (int, *big.Int, error) {
	if token0Balance == nil || token1Balance == nil || sqrtPriceX96 == nil {
		return 0, nil, errNilBalance
	}
	price := SqrtPriceToPrice(sqrtPriceX96) // token1 per token0
	token0Float := new(big.Float).SetInt(token0Balance)
	token1Float := new(big.Float).SetInt(token1Balance)

	value0 := new(big.Float).Mul(token0Float, price) // token0 balance, denominated in token1
	value1 := token1Float

	diff := new(big.Float).Sub(value0, value1)
	half := new(big.Float).Quo(new(big.Float).Abs(diff), big.NewFloat(2))

	if diff.Sign() > 0 {
		// token0 side overweight: convert the excess (in token1 terms) back to token0 units.
		swapAmount := new(big.Float).Quo(half, price)
		amt, _ := swapAmount.Int(nil)
		return 0, amt, nil
	}
	amt, _ := half.Int(nil)
	return 1, amt, nil
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	if hi.Cmp(lo) == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(amount0, lo)
	numerator.Mul(numerator, hi)
	denominator := new(big.Int).Sub(hi, lo)
	denominator.Mul(denominator, q96)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	denom := new(big.Int).Sub(hi, lo)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(amount1, q96)
	return new(big.Int).Div(numerator, denom)
}

// amountsForLiquidity returns the (amount0, amount1) liquidity L provides
// for a position spanning [sqrtLower, sqrtUpper] when the pool's current
// sqrt price is sqrtCurrent (which may be outside the range).
func amountsForLiquidity(sqrtCurrent, sqrtLower, sqrtUpper, l *big.Int) (*big.Int, *big.Int) {
	lo, hi := orderSqrt(sqrtLower, sqrtUpper)
	cur := sqrtCurrent
	switch {
	case cur.Cmp(lo) <= 0:
		return amount0Delta(lo, hi, l), big.NewInt(0)
	case cur.Cmp(hi) >= 0:
		return big.NewInt(0), amount1Delta(lo, hi, l)
	default:
		return amount0Delta(cur, hi, l), amount1Delta(lo, cur, l)
	}
}

func amount0Delta(sqrtA, sqrtB, l *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	if l.Sign() == 0 || hi.Cmp(lo) == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(l, q96)
	numerator.Mul(numerator, new(big.Int).Sub(hi, lo))
	denominator := new(big.Int).Mul(hi, lo)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}

func amount1Delta(sqrtA, sqrtB, l *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	numerator := new(big.Int).Mul(l, new(big.Int).Sub(hi, lo))
	return new(big.Int).Div(numerator, q96)
}

// CalculateMinAmount applies a basis-of-percent slippage tolerance to a
// desired amount, rounding down, as the Slippage Validator and Bundle
// Builder both need when deriving amountOutMin/amount{0,1}Min fields.
func CalculateMinAmount(desired *big.Int, slippagePct int) *big.Int {
	if desired == nil || desired.Sign() <= 0 || slippagePct <= 0 {
		return new(big.Int).Set(desired)
	}
	numerator := new(big.Int).Mul(desired, big.NewInt(int64(100-slippagePct)))
	return numerator.Div(numerator, big.NewInt(100))
}

func orderSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) <= 0 {
		return a, b
	}
	return b, a
}
