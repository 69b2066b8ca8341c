package curve

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

func TestQuoteOutput(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  int64
		reserveOut int64
		amountIn   int64
		feeBps     uint32
		want       int64
		wantErr    error
	}{
		{
			name:      "balanced pool 30bps",
			reserveIn: 10_000, reserveOut: 10_000,
			amountIn: 1_000, feeBps: 30,
			want: 906,
		},
		{
			name:      "balanced pool no fee",
			reserveIn: 10_000, reserveOut: 10_000,
			amountIn: 1_000, feeBps: 0,
			want: 909,
		},
		{
			name:      "small trade 30bps",
			reserveIn: 1_000, reserveOut: 1_000,
			amountIn: 10, feeBps: 30,
			want: 9,
		},
		{
			name:      "asymmetric reserves",
			reserveIn: 1_000, reserveOut: 4_000_000,
			amountIn: 100, feeBps: 30,
			want: 362_644,
		},
		{
			name:      "dust input rounds to zero",
			reserveIn: 1_000_000_000_000, reserveOut: 1_000_000_000_000,
			amountIn: 1, feeBps: 30,
			wantErr: types.ErrInsufficientLiquidity,
		},
		{
			name:      "zero input",
			reserveIn: 1_000, reserveOut: 1_000,
			amountIn: 0, feeBps: 30,
			wantErr: types.ErrInsufficientInput,
		},
		{
			name:      "empty pool",
			reserveIn: 0, reserveOut: 1_000,
			amountIn: 10, feeBps: 30,
			wantErr: types.ErrInsufficientLiquidity,
		},
		{
			name:      "fee rate out of range",
			reserveIn: 1_000, reserveOut: 1_000,
			amountIn: 10, feeBps: 10_000,
			wantErr: types.ErrInsufficientInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QuoteOutput(
				sdkmath.NewInt(tc.reserveIn), sdkmath.NewInt(tc.reserveOut),
				sdkmath.NewInt(tc.amountIn), tc.feeBps)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Int64())
		})
	}
}

func TestQuoteOutputOverflow(t *testing.T) {
	// Scaling a 128-bit input by a 128-bit reserve exceeds the 256-bit
	// scratch width; the quote reports it instead of wrapping.
	_, err := QuoteOutput(safemath.MaxAmount, safemath.MaxAmount, safemath.MaxAmount, 30)
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestQuoteOutputGrowsK(t *testing.T) {
	reserveIn, reserveOut := sdkmath.NewInt(1_000), sdkmath.NewInt(1_000)
	amountIn := sdkmath.NewInt(10)

	out, err := QuoteOutput(reserveIn, reserveOut, amountIn, 30)
	require.NoError(t, err)

	before, err := K(reserveIn, reserveOut)
	require.NoError(t, err)
	after, err := K(reserveIn.Add(amountIn), reserveOut.Sub(out))
	require.NoError(t, err)
	assert.True(t, after.GT(before), "K must strictly grow with a nonzero fee: %s -> %s", before, after)
}

func TestQuoteInput(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  int64
		reserveOut int64
		amountOut  int64
		feeBps     uint32
		want       int64
		wantErr    error
	}{
		{
			name:      "balanced pool 30bps",
			reserveIn: 1_000, reserveOut: 1_000,
			amountOut: 100, feeBps: 30,
			want: 112,
		},
		{
			name:      "balanced pool no fee",
			reserveIn: 1_000, reserveOut: 1_000,
			amountOut: 100, feeBps: 0,
			want: 112, // floor(1000*100/900)+1
		},
		{
			name:      "output drains reserve",
			reserveIn: 1_000, reserveOut: 1_000,
			amountOut: 1_000, feeBps: 30,
			wantErr: types.ErrInsufficientLiquidity,
		},
		{
			name:      "zero output requested",
			reserveIn: 1_000, reserveOut: 1_000,
			amountOut: 0, feeBps: 30,
			wantErr: types.ErrInsufficientInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QuoteInput(
				sdkmath.NewInt(tc.reserveIn), sdkmath.NewInt(tc.reserveOut),
				sdkmath.NewInt(tc.amountOut), tc.feeBps)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Int64())
		})
	}
}

// Paying the quoted input must always buy at least the requested output, and
// one unit less must not.
func TestQuoteRoundTrip(t *testing.T) {
	cases := []struct {
		reserveIn, reserveOut, amountOut int64
		feeBps                           uint32
	}{
		{1_000, 1_000, 100, 30},
		{10_000, 10_000, 1, 30},
		{5_000_000, 3_333, 500, 100},
		{777, 999_999, 12_345, 0},
	}
	for _, tc := range cases {
		rIn, rOut := sdkmath.NewInt(tc.reserveIn), sdkmath.NewInt(tc.reserveOut)
		want := sdkmath.NewInt(tc.amountOut)

		in, err := QuoteInput(rIn, rOut, want, tc.feeBps)
		require.NoError(t, err)

		out, err := QuoteOutput(rIn, rOut, in, tc.feeBps)
		require.NoError(t, err)
		assert.True(t, out.GTE(want), "quoted input %s bought only %s of %s", in, out, want)

		if in.GT(sdkmath.OneInt()) {
			short, err := QuoteOutput(rIn, rOut, in.SubRaw(1), tc.feeBps)
			if err == nil {
				assert.True(t, short.LT(want), "input %s should be the minimum for %s", in, want)
			}
		}
	}
}
