/*

Time-weighted price oracle in UQ64.64 fixed point. Each pair carries two
cumulative price sums: every state transition first adds spot_price *
elapsed_seconds to both accumulators, then overwrites the reserves. A
consumer records two snapshots and divides the cumulative delta by the
elapsed time to obtain a manipulation-resistant average price.

Accumulation never fails. When the pool is empty, time has not advanced, or
an increment would push an accumulator past 256 bits, the call records
nothing and leaves both sums untouched.

*/

package oracle

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// Consumer-side snapshot errors.
var (
	ErrZeroElapsed  = errorsmod.Register("oracle", 2, "zero elapsed time between snapshots")
	ErrNonMonotonic = errorsmod.Register("oracle", 3, "snapshots out of order")
)

// priceOne is 2^64, the UQ64.64 representation of 1.0.
var priceOne = sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64))

// Snapshot is one observation of a pair's cumulative prices.
type Snapshot struct {
	PriceACumulative sdkmath.Int `json:"price_a_cumulative"`
	PriceBCumulative sdkmath.Int `json:"price_b_cumulative"`
	Timestamp        uint64      `json:"timestamp"`
}

// SpotPrice returns reserveQuote/reserveBase as a UQ64.64 price. Both the
// accumulator and the dynamic fee controller price trades through this.
func SpotPrice(reserveQuote, reserveBase sdkmath.Int) (sdkmath.Int, error) {
	if reserveQuote.IsNil() || reserveBase.IsNil() || !reserveQuote.IsPositive() || !reserveBase.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrap("spot price requires positive reserves on both sides")
	}
	return safemath.MulDiv(reserveQuote, priceOne, reserveBase)
}

// Accumulate returns the cumulative prices advanced from last to now at the
// given reserves, and whether anything was recorded. Inputs come back
// unchanged when time has not advanced, a reserve is empty, or either
// incremented sum would exceed 256 bits.
func Accumulate(priceACum, priceBCum, reserveA, reserveB sdkmath.Int, last, now uint64) (sdkmath.Int, sdkmath.Int, bool) {
	if now <= last {
		return priceACum, priceBCum, false
	}
	priceA, err := SpotPrice(reserveB, reserveA)
	if err != nil {
		return priceACum, priceBCum, false
	}
	priceB, err := SpotPrice(reserveA, reserveB)
	if err != nil {
		return priceACum, priceBCum, false
	}

	elapsed := sdkmath.NewIntFromUint64(now - last)
	incA, err := safemath.Mul(priceA, elapsed)
	if err != nil {
		return priceACum, priceBCum, false
	}
	incB, err := safemath.Mul(priceB, elapsed)
	if err != nil {
		return priceACum, priceBCum, false
	}
	nextA, err := safemath.Add(priceACum, incA)
	if err != nil {
		return priceACum, priceBCum, false
	}
	nextB, err := safemath.Add(priceBCum, incB)
	if err != nil {
		return priceACum, priceBCum, false
	}
	return nextA, nextB, true
}

// TWAP diffs two snapshots into time-weighted average UQ64.64 prices:
// (c1 - c0) / (t1 - t0) for each side.
func TWAP(first, second Snapshot) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if second.Timestamp < first.Timestamp {
		return zero, zero, ErrNonMonotonic.Wrapf("snapshot at %d precedes snapshot at %d", second.Timestamp, first.Timestamp)
	}
	if second.Timestamp == first.Timestamp {
		return zero, zero, ErrZeroElapsed.Wrapf("both snapshots taken at %d", first.Timestamp)
	}

	deltaA, err := safemath.Sub(second.PriceACumulative, first.PriceACumulative)
	if err != nil {
		return zero, zero, ErrNonMonotonic.Wrap("cumulative price for side A decreased")
	}
	deltaB, err := safemath.Sub(second.PriceBCumulative, first.PriceBCumulative)
	if err != nil {
		return zero, zero, ErrNonMonotonic.Wrap("cumulative price for side B decreased")
	}

	elapsed := sdkmath.NewIntFromUint64(second.Timestamp - first.Timestamp)
	avgA, err := safemath.Quo(deltaA, elapsed)
	if err != nil {
		return zero, zero, err
	}
	avgB, err := safemath.Quo(deltaB, elapsed)
	if err != nil {
		return zero, zero, err
	}
	return avgA, avgB, nil
}
