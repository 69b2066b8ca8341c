package safemath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/paircore/internal/types"
)

func intFromString(t *testing.T, s string) sdkmath.Int {
	t.Helper()
	v, ok := sdkmath.NewIntFromString(s)
	require.True(t, ok, "bad test literal %q", s)
	return v
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{4, 2},
		{8, 2},
		{9, 3},
		{10, 3},
		{100, 10},
		{999_999, 999},
		{1_000_000, 1_000},
	}
	for _, tc := range tests {
		got := Sqrt(sdkmath.NewInt(tc.in))
		assert.Equal(t, tc.want, got.Int64(), "sqrt(%d)", tc.in)
	}

	// Negative inputs collapse to zero rather than erroring.
	assert.True(t, Sqrt(sdkmath.NewInt(-5)).IsZero())

	// Exact at the 128-bit extreme: sqrt(MaxAmount^2) == MaxAmount.
	sq, err := Mul(MaxAmount, MaxAmount)
	require.NoError(t, err)
	assert.True(t, Sqrt(sq).Equal(MaxAmount))
}

func TestCheckAmount(t *testing.T) {
	require.NoError(t, CheckAmount(sdkmath.ZeroInt()))
	require.NoError(t, CheckAmount(MaxAmount))

	overMax, err := Add(MaxAmount, sdkmath.OneInt())
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAmount(overMax), types.ErrOverflow)
	assert.ErrorIs(t, CheckAmount(sdkmath.NewInt(-1)), types.ErrOverflow)
	assert.ErrorIs(t, CheckAmount(sdkmath.Int{}), types.ErrOverflow)
}

func TestSubUnderflow(t *testing.T) {
	got, err := Sub(sdkmath.NewInt(10), sdkmath.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Int64())

	_, err = Sub(sdkmath.NewInt(4), sdkmath.NewInt(10))
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestQuoByZero(t *testing.T) {
	_, err := Quo(sdkmath.NewInt(5), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrOverflow)

	got, err := Quo(sdkmath.NewInt(7), sdkmath.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int64(), "floor division")
}

func TestMulDivRounding(t *testing.T) {
	tests := []struct {
		name      string
		a, b, den int64
		floor     int64
		ceil      int64
	}{
		{"exact", 10, 6, 3, 20, 20},
		{"truncating", 10, 10, 3, 33, 34},
		{"sub-unit", 1, 1, 3, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fl, err := MulDiv(sdkmath.NewInt(tc.a), sdkmath.NewInt(tc.b), sdkmath.NewInt(tc.den))
			require.NoError(t, err)
			assert.Equal(t, tc.floor, fl.Int64())

			ce, err := MulDivCeil(sdkmath.NewInt(tc.a), sdkmath.NewInt(tc.b), sdkmath.NewInt(tc.den))
			require.NoError(t, err)
			assert.Equal(t, tc.ceil, ce.Int64())
		})
	}
}

func TestMulOverflowAt256Bits(t *testing.T) {
	// (2^128)^2 == 2^256 overflows the scratch width; one bit less is fine.
	big128 := intFromString(t, "340282366920938463463374607431768211456") // 2^128
	_, err := Mul(big128, big128)
	assert.ErrorIs(t, err, types.ErrOverflow)

	_, err = Mul(MaxAmount, MaxAmount) // (2^128-1)^2 < 2^256
	assert.NoError(t, err)
}
