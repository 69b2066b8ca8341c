package pair

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/paircore/internal/types"
)

func TestFirstDepositBoundary(t *testing.T) {
	cases := []struct {
		name        string
		atom, usdc  int64
		wantShares  string // minted to the provider
		wantTotal   string
		wantAtFloor bool
	}{
		{"well above the minimum", 10_000, 10_000, "9000", "10000", false},
		{"exactly at the minimum", 1_000, 1_000, "0", "1000", true},
		{"asymmetric but large enough", 20_000, 500, "2162", "3162", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, types.DefaultFeeParameters())
			receipt := f.seedPool(t, tc.atom, tc.usdc)

			require.Equal(t, tc.wantShares, receipt.Shares.String())
			require.Equal(t, tc.wantTotal, receipt.TotalShares.String())
			require.Equal(t, types.LiquidityAdd, receipt.Action)

			// The locked minimum always sits in the pool's own account.
			require.Equal(t, "1000", f.balance("PAIR-ATOM-USDC", "pair:ATOM-USDC"))
			require.Equal(t, tc.wantShares, f.balance("PAIR-ATOM-USDC", "lp"))
			if tc.wantAtFloor {
				require.True(t, f.pair.TotalShares().Equal(sdkmath.NewInt(1_000)))
			}
		})
	}
}

func TestFirstDepositBelowMinimumFails(t *testing.T) {
	cases := []struct {
		name       string
		atom, usdc int64
	}{
		{"tiny deposit", 100, 100},
		{"one below the boundary", 1_000, 999},
		{"one side empty", 0, 5_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, types.DefaultFeeParameters())
			f.fund(t, "lp", tc.atom, tc.usdc)

			_, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
				Provider:       "lp",
				AmountADesired: sdkmath.NewInt(tc.atom),
				AmountBDesired: sdkmath.NewInt(tc.usdc),
			})
			require.ErrorIs(t, err, types.ErrInsufficientInitialLiquidity)

			// Failed seeding leaves no trace.
			require.False(t, f.pair.State().Seeded())
			require.True(t, f.ledger.TotalSupply("PAIR-ATOM-USDC").IsZero())
			require.Equal(t, sdkmath.NewInt(tc.atom).String(), f.balance("ATOM", "lp"))
		})
	}
}

func TestSubsequentDepositClipsToRatio(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "lp2", 2_000, 1_000)

	receipt, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp2",
		AmountADesired: sdkmath.NewInt(2_000),
		AmountBDesired: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)

	// The balanced pool only accepts 1000/1000 of the lopsided offer.
	require.Equal(t, "1000", receipt.AmountA.String())
	require.Equal(t, "1000", receipt.AmountB.String())
	require.Equal(t, "1000", receipt.Shares.String())
	require.Equal(t, "11000", receipt.TotalShares.String())

	// The unused ATOM never left the provider.
	require.Equal(t, "1000", f.balance("ATOM", "lp2"))
	require.Equal(t, "0", f.balance("USDC", "lp2"))

	state := f.pair.State()
	require.Equal(t, "11000", state.ReserveA.String())
	require.Equal(t, "11000", state.ReserveB.String())
}

func TestDepositSlippageGuard(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "lp2", 2_000, 1_000)

	_, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp2",
		AmountADesired: sdkmath.NewInt(2_000),
		AmountBDesired: sdkmath.NewInt(1_000),
		MinA:           sdkmath.NewInt(1_500), // ratio clipping will use only 1000
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	require.Equal(t, "2000", f.balance("ATOM", "lp2"))
	require.Equal(t, "10000", f.pair.State().ReserveA.String())
}

func TestDepositTooSmallToMint(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "lp2", 1, 0)

	_, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp2",
		AmountADesired: sdkmath.OneInt(),
		AmountBDesired: sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestDepositInsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "lp2", 1_000, 400) // cannot cover the 1000 USDC side

	_, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp2",
		AmountADesired: sdkmath.NewInt(1_000),
		AmountBDesired: sdkmath.NewInt(1_000),
	})
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	require.Equal(t, "1000", f.balance("ATOM", "lp2"))
	require.Equal(t, "400", f.balance("USDC", "lp2"))
	require.Equal(t, "10000", f.ledger.TotalSupply("PAIR-ATOM-USDC").String())
	require.Equal(t, "10000", f.pair.State().ReserveA.String())
}

func TestRemoveLiquidityProRata(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000) // lp holds 9000 of 10000 shares

	receipt, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "lp",
		Shares:   sdkmath.NewInt(500),
	})
	require.NoError(t, err)

	require.Equal(t, types.LiquidityRemove, receipt.Action)
	require.Equal(t, "500", receipt.AmountA.String())
	require.Equal(t, "500", receipt.AmountB.String())
	require.Equal(t, "500", receipt.Shares.String())
	require.Equal(t, "9500", receipt.TotalShares.String())

	require.Equal(t, "500", f.balance("ATOM", "lp"))
	require.Equal(t, "500", f.balance("USDC", "lp"))
	require.Equal(t, "8500", f.balance("PAIR-ATOM-USDC", "lp"))

	state := f.pair.State()
	require.Equal(t, "9500", state.ReserveA.String())
	require.Equal(t, "9500", state.ReserveB.String())
}

func TestRemoveMoreThanHeld(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)

	_, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "lp",
		Shares:   sdkmath.NewInt(9_001), // lp holds 9000
	})
	require.ErrorIs(t, err, types.ErrInsufficientShares)
	require.Equal(t, "10000", f.pair.State().ReserveA.String())
}

func TestRemoveAllProviderShares(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)

	_, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "lp",
		Shares:   sdkmath.NewInt(9_000),
	})
	require.NoError(t, err)

	// Only the locked minimum remains; the pool keeps trading on it.
	state := f.pair.State()
	require.Equal(t, "1000", state.TotalShares.String())
	require.Equal(t, "1000", state.ReserveA.String())
	require.Equal(t, "1000", state.ReserveB.String())

	f.fund(t, "trader", 10, 0)
	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(10),
	})
	require.NoError(t, err)
	require.Equal(t, "9", receipt.AmountOut.String())
}

func TestLockedMinimumCannotBeWithdrawn(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)

	_, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "pair:ATOM-USDC",
		Shares:   sdkmath.NewInt(1_000),
	})
	require.ErrorIs(t, err, types.ErrInsufficientShares)
}

func TestRemoveRoundsToZero(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 2_000_000, 1_000) // sqrt(2e9) = 44721 shares

	_, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "lp",
		Shares:   sdkmath.NewInt(10), // 1000*10/44721 rounds to zero USDC
	})
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestRemoveSlippageGuard(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)

	_, err := f.pair.RemoveLiquidity(context.Background(), RemoveLiquidityParams{
		Provider: "lp",
		Shares:   sdkmath.NewInt(500),
		MinA:     sdkmath.NewInt(501),
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	require.Equal(t, "9000", f.balance("PAIR-ATOM-USDC", "lp"))
}

func TestRemoveValidation(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	ctx := context.Background()

	_, err := f.pair.RemoveLiquidity(ctx, RemoveLiquidityParams{Provider: "", Shares: sdkmath.OneInt()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.RemoveLiquidity(ctx, RemoveLiquidityParams{Provider: "lp", Shares: sdkmath.ZeroInt()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.RemoveLiquidity(ctx, RemoveLiquidityParams{Provider: "lp", Shares: sdkmath.NewInt(-3)})
	require.ErrorIs(t, err, types.ErrInsufficientInput)
}

func TestLiquidityRoundTripKeepsOracleOrdering(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)

	// Five seconds at price 1.0, observed before the deposit moves reserves.
	f.now += 5
	f.fund(t, "lp2", 1_000, 1_000)
	_, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp2",
		AmountADesired: sdkmath.NewInt(1_000),
		AmountBDesired: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)

	state := f.pair.State()
	require.Equal(t, q64Test(1).MulRaw(5).String(), state.PriceACumulative.String())
	require.Equal(t, f.now, state.LastUpdateTimestamp)
}
