/*

Constant-product quoting. Pure functions over reserves and a fee rate; no
state lives here. The fee is taken from the input side before the curve is
applied, and both quotes keep the input term in basis-point scale until the
final division so no precision is lost ahead of the floor.

Rounding always favors the pool: outputs floor, required inputs floor plus
one.

*/

package curve

import (
	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

var bpsDen = sdkmath.NewInt(safemath.BpsDenominator)

// QuoteOutput returns the output amount for amountIn against the given
// reserves at feeRateBps:
//
//	out = floor(in*(10000-fee)*reserveOut / (reserveIn*10000 + in*(10000-fee)))
//
// A quote that would round to zero or reach the full output reserve fails
// with ErrInsufficientLiquidity; arithmetic that would exceed the 256-bit
// scratch width fails with ErrOverflow.
func QuoteOutput(reserveIn, reserveOut, amountIn sdkmath.Int, feeRateBps uint32) (sdkmath.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrInsufficientInput.Wrap("swap input must be positive")
	}
	if reserveIn.IsNil() || reserveOut.IsNil() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrap("pool reserves must be positive")
	}
	if int64(feeRateBps) >= safemath.BpsDenominator {
		return sdkmath.ZeroInt(), types.ErrInsufficientInput.Wrapf("fee rate %d bps out of range", feeRateBps)
	}

	feeMul := sdkmath.NewInt(safemath.BpsDenominator - int64(feeRateBps))
	scaledIn, err := safemath.Mul(amountIn, feeMul)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	numerator, err := safemath.Mul(scaledIn, reserveOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	scaledReserveIn, err := safemath.Mul(reserveIn, bpsDen)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	denominator, err := safemath.Add(scaledReserveIn, scaledIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amountOut, err := safemath.Quo(numerator, denominator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if amountOut.IsZero() {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrap("output amount rounds to zero")
	}
	if amountOut.GTE(reserveOut) {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrapf("output %s would drain reserve %s", amountOut, reserveOut)
	}
	return amountOut, nil
}

// QuoteInput returns the input amount required to receive amountOut:
//
//	in = floor(reserveIn*out*10000 / ((reserveOut-out)*(10000-fee))) + 1
//
// The +1 covers the truncation so that paying the quoted input always
// satisfies the curve.
func QuoteInput(reserveIn, reserveOut, amountOut sdkmath.Int, feeRateBps uint32) (sdkmath.Int, error) {
	if amountOut.IsNil() || !amountOut.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrInsufficientInput.Wrap("requested output must be positive")
	}
	if reserveIn.IsNil() || reserveOut.IsNil() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrap("pool reserves must be positive")
	}
	if int64(feeRateBps) >= safemath.BpsDenominator {
		return sdkmath.ZeroInt(), types.ErrInsufficientInput.Wrapf("fee rate %d bps out of range", feeRateBps)
	}
	if amountOut.GTE(reserveOut) {
		return sdkmath.ZeroInt(), types.ErrInsufficientLiquidity.Wrapf("requested output %s would drain reserve %s", amountOut, reserveOut)
	}

	remaining, err := safemath.Sub(reserveOut, amountOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	numerator, err := safemath.Mul(reserveIn, amountOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	numerator, err = safemath.Mul(numerator, bpsDen)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	feeMul := sdkmath.NewInt(safemath.BpsDenominator - int64(feeRateBps))
	denominator, err := safemath.Mul(remaining, feeMul)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	quotient, err := safemath.Quo(numerator, denominator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amountIn, err := safemath.Add(quotient, sdkmath.OneInt())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := safemath.CheckAmount(amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amountIn, nil
}

// K returns the constant-product invariant for a reserve pair.
func K(reserveA, reserveB sdkmath.Int) (sdkmath.Int, error) {
	return safemath.Mul(reserveA, reserveB)
}
