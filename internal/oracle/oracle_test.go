package oracle

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/paircore/internal/types"
)

func q64(whole int64) sdkmath.Int {
	shifted := new(big.Int).Lsh(big.NewInt(whole), 64)
	return sdkmath.NewIntFromBigInt(shifted)
}

func TestSpotPrice(t *testing.T) {
	// Two quote units per base unit: price = 2.0 in UQ64.64.
	price, err := SpotPrice(sdkmath.NewInt(2), sdkmath.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, q64(2).String(), price.String())

	// Balanced reserves price at exactly 1.0.
	price, err = SpotPrice(sdkmath.NewInt(5_000), sdkmath.NewInt(5_000))
	require.NoError(t, err)
	require.Equal(t, q64(1).String(), price.String())

	// 1/3 floors in the last fractional bit.
	price, err = SpotPrice(sdkmath.NewInt(1), sdkmath.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "6148914691236517205", price.String())

	_, err = SpotPrice(sdkmath.NewInt(1), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
	_, err = SpotPrice(sdkmath.ZeroInt(), sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
	_, err = SpotPrice(sdkmath.Int{}, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestAccumulateSkipsWithoutElapsedTime(t *testing.T) {
	cumA, cumB := sdkmath.NewInt(77), sdkmath.NewInt(88)

	gotA, gotB, ok := Accumulate(cumA, cumB, sdkmath.NewInt(10), sdkmath.NewInt(10), 500, 500)
	require.False(t, ok)
	require.Equal(t, "77", gotA.String())
	require.Equal(t, "88", gotB.String())

	gotA, gotB, ok = Accumulate(cumA, cumB, sdkmath.NewInt(10), sdkmath.NewInt(10), 500, 400)
	require.False(t, ok)
	require.Equal(t, "77", gotA.String())
	require.Equal(t, "88", gotB.String())
}

func TestAccumulateSkipsEmptyPool(t *testing.T) {
	zero := sdkmath.ZeroInt()

	gotA, gotB, ok := Accumulate(zero, zero, zero, zero, 0, 100)
	require.False(t, ok)
	require.True(t, gotA.IsZero())
	require.True(t, gotB.IsZero())

	_, _, ok = Accumulate(zero, zero, sdkmath.NewInt(10), zero, 0, 100)
	require.False(t, ok)
}

func TestAccumulateBasicIncrement(t *testing.T) {
	// Reserves 10 A / 40 B for 5 seconds: price of A is 4.0, of B is 0.25.
	gotA, gotB, ok := Accumulate(sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		sdkmath.NewInt(10), sdkmath.NewInt(40), 100, 105)
	require.True(t, ok)
	require.Equal(t, q64(20).String(), gotA.String(), "4.0 * 5s")
	require.Equal(t, q64(5).Quo(sdkmath.NewInt(4)).String(), gotB.String(), "0.25 * 5s")
}

func TestAccumulateSumsAcrossIntervals(t *testing.T) {
	// 5 seconds at price 4.0, then 3 seconds at price 1.0: cumA = 23 * 2^64.
	cumA, cumB, ok := Accumulate(sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		sdkmath.NewInt(10), sdkmath.NewInt(40), 0, 5)
	require.True(t, ok)

	cumA, cumB, ok = Accumulate(cumA, cumB, sdkmath.NewInt(20), sdkmath.NewInt(20), 5, 8)
	require.True(t, ok)
	require.Equal(t, q64(23).String(), cumA.String())
}

func TestAccumulateSkipsOnOverflow(t *testing.T) {
	// An accumulator 10 below the 256-bit ceiling cannot absorb a 2^64
	// increment; both sums must come back untouched.
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	nearMax := sdkmath.NewIntFromBigInt(new(big.Int).Sub(ceiling, big.NewInt(10)))

	gotA, gotB, ok := Accumulate(nearMax, sdkmath.ZeroInt(),
		sdkmath.NewInt(7), sdkmath.NewInt(7), 0, 1)
	require.False(t, ok)
	require.Equal(t, nearMax.String(), gotA.String())
	require.True(t, gotB.IsZero())
}

func TestTWAP(t *testing.T) {
	first := Snapshot{
		PriceACumulative: sdkmath.ZeroInt(),
		PriceBCumulative: sdkmath.ZeroInt(),
		Timestamp:        100,
	}
	second := Snapshot{
		PriceACumulative: q64(20),
		PriceBCumulative: q64(5),
		Timestamp:        105,
	}

	avgA, avgB, err := TWAP(first, second)
	require.NoError(t, err)
	require.Equal(t, q64(4).String(), avgA.String())
	require.Equal(t, q64(1).String(), avgB.String())
}

func TestTWAPRejectsBadSnapshots(t *testing.T) {
	base := Snapshot{
		PriceACumulative: q64(1),
		PriceBCumulative: q64(1),
		Timestamp:        100,
	}

	_, _, err := TWAP(base, base)
	require.ErrorIs(t, err, ErrZeroElapsed)

	earlier := base
	earlier.Timestamp = 50
	_, _, err = TWAP(base, earlier)
	require.ErrorIs(t, err, ErrNonMonotonic)

	regressed := Snapshot{
		PriceACumulative: sdkmath.ZeroInt(),
		PriceBCumulative: q64(2),
		Timestamp:        200,
	}
	_, _, err = TWAP(base, regressed)
	require.ErrorIs(t, err, ErrNonMonotonic)
}
