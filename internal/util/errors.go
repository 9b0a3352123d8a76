package util

import "errors"

var (
	errTickSpacing       = errors.New("util: tickSpacing must be positive")
	errRangeWidth        = errors.New("util: rangeWidth must be non-negative")
	errNegativeLiquidity = errors.New("util: liquidity must be non-negative")
	errNilBalance        = errors.New("util: token balance or sqrtPriceX96 is nil")
)
