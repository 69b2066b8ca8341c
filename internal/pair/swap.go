/*

Swap: trade one pair asset for the other along the constant-product curve.
Rounding always favors the pool, so the invariant K never decreases; with a
nonzero fee it strictly grows.

*/

package pair

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/curve"
	"github.com/meridian-dex/paircore/internal/oracle"
	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// SwapParams describes one trade. MinAmountOut of zero (or unset) disables
// the slippage bound; Recipient defaults to Trader.
type SwapParams struct {
	Trader       string
	AssetIn      types.Token
	AmountIn     sdkmath.Int
	MinAmountOut sdkmath.Int
	Recipient    string
}

// Swap executes a trade atomically: the trader's input lands in the pool
// account, the quoted output leaves it, reserves and oracle move together,
// and any failure rolls the whole thing back.
func (p *Pair) Swap(ctx context.Context, params SwapParams) (types.SwapReceipt, error) {
	var receipt types.SwapReceipt

	if params.Trader == "" {
		return receipt, types.ErrInsufficientInput.Wrap("trader account required")
	}
	if params.Recipient == "" {
		params.Recipient = params.Trader
	}
	amountIn, err := normalizeAmount(params.AmountIn)
	if err != nil {
		return receipt, err
	}
	if !amountIn.IsPositive() {
		return receipt, types.ErrInsufficientInput.Wrap("swap amount must be positive")
	}
	minOut, err := normalizeAmount(params.MinAmountOut)
	if err != nil {
		return receipt, err
	}

	guardCtx, release, err := p.enter(ctx)
	if err != nil {
		return receipt, err
	}
	defer release()

	now := p.now()
	scratch := p.snapshot()

	if !scratch.Seeded() {
		return receipt, types.ErrInsufficientLiquidity.Wrapf("pool %s is not seeded", p.id)
	}

	var (
		assetOut              types.Token
		reserveIn, reserveOut sdkmath.Int
	)
	switch params.AssetIn {
	case scratch.TokenA:
		assetOut = scratch.TokenB
		reserveIn, reserveOut = scratch.ReserveA, scratch.ReserveB
	case scratch.TokenB:
		assetOut = scratch.TokenA
		reserveIn, reserveOut = scratch.ReserveB, scratch.ReserveA
	default:
		return receipt, types.ErrInsufficientInput.Wrapf("asset %s is not part of pair %s", params.AssetIn, p.id)
	}

	tx, err := p.ledger.Begin(guardCtx)
	if err != nil {
		return receipt, err
	}
	defer tx.Abort()

	// Pull the input first: a trader who cannot cover the trade must fail
	// before any quote or state math.
	if err := tx.Transfer(string(params.AssetIn), params.Trader, p.account, amountIn); err != nil {
		return receipt, err
	}

	feeBps := p.fees.CurrentFeeBps(now)
	amountOut, err := curve.QuoteOutput(reserveIn, reserveOut, amountIn, feeBps)
	if err != nil {
		return receipt, err
	}
	if amountOut.LT(minOut) {
		return receipt, types.ErrSlippageExceeded.Wrapf("quoted %s %s, trader requires at least %s", amountOut, assetOut, minOut)
	}

	kBefore, err := curve.K(scratch.ReserveA, scratch.ReserveB)
	if err != nil {
		return receipt, err
	}

	// The volatility observation compares the A-in-B spot price across the
	// trade, whichever direction the trade runs.
	dynamicFees := p.fees.Params().DynamicEnabled
	var priceBefore sdkmath.Int
	if dynamicFees {
		priceBefore, _ = oracle.SpotPrice(scratch.ReserveB, scratch.ReserveA)
	}

	// Cumulative prices integrate the pre-trade reserves over the elapsed
	// window, then the reserves move.
	observe(&scratch, now)

	newReserveIn, err := safemath.Add(reserveIn, amountIn)
	if err != nil {
		return receipt, err
	}
	if err := safemath.CheckAmount(newReserveIn); err != nil {
		return receipt, err
	}
	newReserveOut, err := safemath.Sub(reserveOut, amountOut)
	if err != nil {
		return receipt, err
	}
	if !newReserveOut.IsPositive() {
		return receipt, types.ErrInsufficientLiquidity.Wrap("trade would drain the output reserve")
	}

	if params.AssetIn == scratch.TokenA {
		scratch.ReserveA, scratch.ReserveB = newReserveIn, newReserveOut
	} else {
		scratch.ReserveA, scratch.ReserveB = newReserveOut, newReserveIn
	}

	kAfter, err := curve.K(scratch.ReserveA, scratch.ReserveB)
	if err != nil {
		return receipt, err
	}
	if kAfter.LT(kBefore) {
		return receipt, types.ErrInvalidK.Wrapf("reserve product regressed from %s to %s", kBefore, kAfter)
	}

	if err := tx.Transfer(string(assetOut), p.account, params.Recipient, amountOut); err != nil {
		return receipt, err
	}

	// Feed the dynamic fee controller from the same trade. A dropped
	// observation never fails a committed swap.
	if dynamicFees && !priceBefore.IsNil() {
		priceAfter, priceErr := oracle.SpotPrice(scratch.ReserveB, scratch.ReserveA)
		if priceErr == nil {
			if err := p.fees.ObserveTrade(priceBefore, priceAfter, amountIn, reserveIn, now); err != nil {
				p.log.Warn().Err(err).Msg("Volatility observation dropped")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return receipt, err
	}
	p.commit(scratch)

	receipt = types.SwapReceipt{
		PairID:     p.id,
		Trader:     params.Trader,
		Recipient:  params.Recipient,
		AssetIn:    params.AssetIn,
		AssetOut:   assetOut,
		AmountIn:   amountIn,
		AmountOut:  amountOut,
		FeeRateBps: feeBps,
		ReserveA:   scratch.ReserveA,
		ReserveB:   scratch.ReserveB,
		Timestamp:  time.Unix(int64(now), 0).UTC(),
	}

	p.log.Info().
		Str("trader", params.Trader).
		Str("asset_in", string(params.AssetIn)).
		Str("amount_in", amountIn.String()).
		Str("amount_out", amountOut.String()).
		Uint32("fee_bps", feeBps).
		Msg("Swap committed")

	p.recordSwap(receipt)
	return receipt, nil
}

// SimulateSwap quotes a trade against committed state without moving
// anything. Returns the quoted output and the fee rate the trade would pay.
func (p *Pair) SimulateSwap(assetIn types.Token, amountIn sdkmath.Int) (sdkmath.Int, uint32, error) {
	zero := sdkmath.ZeroInt()
	amountIn, err := normalizeAmount(amountIn)
	if err != nil {
		return zero, 0, err
	}
	if !amountIn.IsPositive() {
		return zero, 0, types.ErrInsufficientInput.Wrap("swap amount must be positive")
	}

	s := p.snapshot()
	if !s.Seeded() {
		return zero, 0, types.ErrInsufficientLiquidity.Wrapf("pool %s is not seeded", p.id)
	}

	var reserveIn, reserveOut sdkmath.Int
	switch assetIn {
	case s.TokenA:
		reserveIn, reserveOut = s.ReserveA, s.ReserveB
	case s.TokenB:
		reserveIn, reserveOut = s.ReserveB, s.ReserveA
	default:
		return zero, 0, types.ErrInsufficientInput.Wrapf("asset %s is not part of pair %s", assetIn, p.id)
	}

	feeBps := p.fees.CurrentFeeBps(p.now())
	amountOut, err := curve.QuoteOutput(reserveIn, reserveOut, amountIn, feeBps)
	if err != nil {
		return zero, 0, err
	}
	return amountOut, feeBps, nil
}
