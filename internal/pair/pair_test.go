package pair

import (
	"context"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/paircore/internal/assets"
	"github.com/meridian-dex/paircore/internal/oracle"
	"github.com/meridian-dex/paircore/internal/types"
)

// ledgerAdapter bridges the concrete in-memory ledger to the interface the
// engine consumes.
type ledgerAdapter struct{ ledger *assets.Ledger }

func (a ledgerAdapter) Begin(ctx context.Context) (LedgerTx, error) {
	return a.ledger.Begin(ctx)
}

// fixture wires a pair to a real ledger with a hand-cranked clock.
type fixture struct {
	ledger *assets.Ledger
	pair   *Pair
	now    uint64
}

func newFixture(t *testing.T, params types.FeeParameters) *fixture {
	t.Helper()
	f := &fixture{ledger: assets.NewLedger(), now: 1_700_000_000}
	p, err := New(Config{
		TokenA:    "ATOM",
		TokenB:    "USDC",
		FeeParams: params,
		Ledger:    ledgerAdapter{f.ledger},
		Now:       func() uint64 { return f.now },
	})
	require.NoError(t, err)
	f.pair = p
	return f
}

func (f *fixture) fund(t *testing.T, account string, atom, usdc int64) {
	t.Helper()
	require.NoError(t, f.ledger.Seed("ATOM", account, sdkmath.NewInt(atom)))
	require.NoError(t, f.ledger.Seed("USDC", account, sdkmath.NewInt(usdc)))
}

// seedPool funds "lp" and performs the first deposit.
func (f *fixture) seedPool(t *testing.T, atom, usdc int64) types.LiquidityReceipt {
	t.Helper()
	f.fund(t, "lp", atom, usdc)
	receipt, err := f.pair.AddLiquidity(context.Background(), AddLiquidityParams{
		Provider:       "lp",
		AmountADesired: sdkmath.NewInt(atom),
		AmountBDesired: sdkmath.NewInt(usdc),
	})
	require.NoError(t, err)
	return receipt
}

func (f *fixture) balance(asset, account string) string {
	return f.ledger.BalanceOf(asset, account).String()
}

func q64Test(whole int64) sdkmath.Int {
	price, _ := oracle.SpotPrice(sdkmath.NewInt(whole), sdkmath.OneInt())
	return price
}

func TestNewPairValidation(t *testing.T) {
	ledger := ledgerAdapter{assets.NewLedger()}

	_, err := New(Config{TokenA: "", TokenB: "USDC", FeeParams: types.DefaultFeeParameters(), Ledger: ledger})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = New(Config{TokenA: "ATOM", TokenB: "ATOM", FeeParams: types.DefaultFeeParameters(), Ledger: ledger})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = New(Config{TokenA: "ATOM", TokenB: "USDC", FeeParams: types.DefaultFeeParameters()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	p, err := New(Config{TokenA: "ATOM", TokenB: "USDC", FeeParams: types.DefaultFeeParameters(), Ledger: ledger})
	require.NoError(t, err)
	require.Equal(t, types.PairID("ATOM-USDC"), p.ID())
	require.Equal(t, "pair:ATOM-USDC", p.Account())
	require.Equal(t, "PAIR-ATOM-USDC", p.ShareSymbol())
}

func TestSwapReferenceVector(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)

	// 30 bps on 10000/10000 reserves: 1000 in buys 906 out.
	require.Equal(t, "906", receipt.AmountOut.String())
	require.Equal(t, types.Token("USDC"), receipt.AssetOut)
	require.Equal(t, uint32(30), receipt.FeeRateBps)
	require.Equal(t, "11000", receipt.ReserveA.String())
	require.Equal(t, "9094", receipt.ReserveB.String())

	require.Equal(t, "0", f.balance("ATOM", "trader"))
	require.Equal(t, "906", f.balance("USDC", "trader"))
	require.Equal(t, "11000", f.balance("ATOM", "pair:ATOM-USDC"))
	require.Equal(t, "9094", f.balance("USDC", "pair:ATOM-USDC"))

	state := f.pair.State()
	require.Equal(t, "11000", state.ReserveA.String())
	require.Equal(t, "9094", state.ReserveB.String())
}

func TestSwapOppositeDirection(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 0, 1_000)

	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "USDC",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)
	require.Equal(t, "906", receipt.AmountOut.String())
	require.Equal(t, types.Token("ATOM"), receipt.AssetOut)
	require.Equal(t, "9094", receipt.ReserveA.String())
	require.Equal(t, "11000", receipt.ReserveB.String())
}

func TestSwapGrowsInvariant(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	before := f.pair.State()
	kBefore := before.ReserveA.Mul(before.ReserveB)

	_, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)

	after := f.pair.State()
	kAfter := after.ReserveA.Mul(after.ReserveB)
	require.True(t, kAfter.GT(kBefore), "a fee-charging swap must strictly grow K: %s -> %s", kBefore, kAfter)
}

func TestSwapSlippageRollsBack(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	_, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:       "trader",
		AssetIn:      "ATOM",
		AmountIn:     sdkmath.NewInt(1_000),
		MinAmountOut: sdkmath.NewInt(907),
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	// Nothing moved: not the trader's funds, not the reserves.
	require.Equal(t, "1000", f.balance("ATOM", "trader"))
	require.Equal(t, "0", f.balance("USDC", "trader"))
	require.Equal(t, "10000", f.balance("ATOM", "pair:ATOM-USDC"))
	state := f.pair.State()
	require.Equal(t, "10000", state.ReserveA.String())
	require.Equal(t, "10000", state.ReserveB.String())
}

func TestSwapInsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 500, 0)

	_, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	require.Equal(t, "500", f.balance("ATOM", "trader"))
	require.Equal(t, "10000", f.pair.State().ReserveA.String())
}

func TestSwapValidation(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	ctx := context.Background()

	_, err := f.pair.Swap(ctx, SwapParams{Trader: "", AssetIn: "ATOM", AmountIn: sdkmath.OneInt()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.Swap(ctx, SwapParams{Trader: "t", AssetIn: "DOGE", AmountIn: sdkmath.OneInt()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.Swap(ctx, SwapParams{Trader: "t", AssetIn: "ATOM", AmountIn: sdkmath.ZeroInt()})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.Swap(ctx, SwapParams{Trader: "t", AssetIn: "ATOM", AmountIn: sdkmath.NewInt(-5)})
	require.ErrorIs(t, err, types.ErrInsufficientInput)

	_, err = f.pair.Swap(ctx, SwapParams{Trader: "t", AssetIn: "ATOM"})
	require.ErrorIs(t, err, types.ErrInsufficientInput)
}

func TestSwapUnseededPool(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.fund(t, "trader", 1_000, 0)

	_, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(100),
	})
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestSwapToRecipient(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:    "trader",
		AssetIn:   "ATOM",
		AmountIn:  sdkmath.NewInt(1_000),
		Recipient: "carol",
	})
	require.NoError(t, err)
	require.Equal(t, "carol", receipt.Recipient)
	require.Equal(t, "906", f.balance("USDC", "carol"))
	require.Equal(t, "0", f.balance("USDC", "trader"))
}

func TestSwapAdvancesOracle(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	f.now += 10
	_, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)

	// Ten seconds at the balanced pre-trade price of 1.0 on both sides.
	state := f.pair.State()
	require.Equal(t, q64Test(1).MulRaw(10).String(), state.PriceACumulative.String())
	require.Equal(t, q64Test(1).MulRaw(10).String(), state.PriceBCumulative.String())
	require.Equal(t, f.now, state.LastUpdateTimestamp)

	// The TWAP-facing snapshot reads the same committed accumulators.
	snap := f.pair.Snapshot()
	require.Equal(t, state.PriceACumulative.String(), snap.PriceACumulative.String())
	require.Equal(t, state.PriceBCumulative.String(), snap.PriceBCumulative.String())
	require.Equal(t, f.now, snap.Timestamp)
}

func TestSwapFeedsVolatilityAccumulator(t *testing.T) {
	params := types.DefaultFeeParameters()
	params.DynamicEnabled = true
	f := newFixture(t, params)
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 1_000, 0)

	// A calm pool trades at the band floor.
	require.Equal(t, params.MinFeeBps, f.pair.CurrentFeeBps(f.now))
	require.True(t, f.pair.FeeState().VolAccumulator.IsZero())

	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(1_000),
	})
	require.NoError(t, err)
	require.Equal(t, params.MinFeeBps, receipt.FeeRateBps)
	require.Equal(t, "908", receipt.AmountOut.String())

	// The committed trade moved the price, so the EMA picked up volatility.
	feeState := f.pair.FeeState()
	require.True(t, feeState.VolAccumulator.IsPositive())
	require.Equal(t, f.now, feeState.LastUpdate)
}

func TestSimulateMatchesSwap(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "trader", 777, 0)

	quoted, feeBps, err := f.pair.SimulateSwap("ATOM", sdkmath.NewInt(777))
	require.NoError(t, err)
	require.Equal(t, uint32(30), feeBps)

	receipt, err := f.pair.Swap(context.Background(), SwapParams{
		Trader:   "trader",
		AssetIn:  "ATOM",
		AmountIn: sdkmath.NewInt(777),
	})
	require.NoError(t, err)
	require.Equal(t, quoted.String(), receipt.AmountOut.String())

	// The simulation itself must not have moved anything.
	require.Equal(t, "10777", f.pair.State().ReserveA.String())
}

func TestSyncFoldsDonationsIntoReserves(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	f.fund(t, "whale", 500, 0)

	// Donate straight to the pool account, outside any pair operation.
	tx, err := f.ledger.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Transfer("ATOM", "whale", "pair:ATOM-USDC", sdkmath.NewInt(500)))
	require.NoError(t, tx.Commit())

	// Reserves lag the balance until a sync.
	require.Equal(t, "10000", f.pair.State().ReserveA.String())

	f.now += 7
	require.NoError(t, f.pair.Sync(context.Background()))

	state := f.pair.State()
	require.Equal(t, "10500", state.ReserveA.String())
	require.Equal(t, "10000", state.ReserveB.String())
	require.Equal(t, f.now, state.LastUpdateTimestamp)

	// The observation integrated the pre-sync reserves.
	require.Equal(t, q64Test(1).MulRaw(7).String(), state.PriceACumulative.String())
}

func TestViewsOnUnseededPair(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())

	reserveA, reserveB, last := f.pair.GetReserves()
	require.True(t, reserveA.IsZero())
	require.True(t, reserveB.IsZero())
	require.Zero(t, last)

	cumA, cumB, _ := f.pair.GetCumulativePrices()
	require.True(t, cumA.IsZero())
	require.True(t, cumB.IsZero())

	require.True(t, f.pair.TotalShares().IsZero())
	require.Equal(t, uint32(30), f.pair.CurrentFeeBps(f.now))

	_, _, err := f.pair.SimulateSwap("ATOM", sdkmath.OneInt())
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)

	tokenA, tokenB := f.pair.Tokens()
	require.Equal(t, types.Token("ATOM"), tokenA)
	require.Equal(t, types.Token("USDC"), tokenB)
}

func TestConcurrentSwapsStayConsistent(t *testing.T) {
	f := newFixture(t, types.DefaultFeeParameters())
	f.seedPool(t, 10_000, 10_000)
	for i := 0; i < 8; i++ {
		account := string(rune('a'+i)) + "-trader"
		f.fund(t, account, 100, 0)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.pair.Swap(context.Background(), SwapParams{
				Trader:   string(rune('a'+n)) + "-trader",
				AssetIn:  "ATOM",
				AmountIn: sdkmath.NewInt(100),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// All eight inputs landed and the ledger agrees with the engine.
	state := f.pair.State()
	require.Equal(t, "10800", state.ReserveA.String())
	require.Equal(t, state.ReserveA.String(), f.balance("ATOM", "pair:ATOM-USDC"))
	require.Equal(t, state.ReserveB.String(), f.balance("USDC", "pair:ATOM-USDC"))

	kAfter := state.ReserveA.Mul(state.ReserveB)
	require.True(t, kAfter.GT(sdkmath.NewInt(100_000_000)))
}
