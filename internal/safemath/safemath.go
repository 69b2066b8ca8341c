/*

Checked amount arithmetic for the pair engine. Every operation returns a
result-or-error instead of panicking: overflow and division by zero are
expected, recoverable conditions here, not programming errors.

Amounts (reserves, shares, transfer sizes) are bounded to unsigned 128 bits
of final storage; intermediate products may use the full 256-bit width of
sdkmath.Int. Callers run CheckAmount on anything they are about to store.

*/

package safemath

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/types"
)

const (
	// BpsDenominator converts basis points to a fraction (10000 bps == 100%).
	BpsDenominator int64 = 10_000

	// AmountBitLen is the storage width of reserve/share amounts.
	AmountBitLen = 128
)

var (
	// MinimumLiquidity is the share amount permanently locked on the first
	// deposit, making share-price manipulation via a dust-sized pool
	// prohibitively expensive.
	MinimumLiquidity = sdkmath.NewInt(1_000)

	// MaxAmount is the largest storable amount: 2^128 - 1.
	MaxAmount = sdkmath.NewIntFromBigInt(new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), AmountBitLen), big.NewInt(1)))
)

// CheckAmount verifies v fits the 128-bit unsigned storage bound.
func CheckAmount(v sdkmath.Int) error {
	if v.IsNil() {
		return types.ErrOverflow.Wrap("nil amount")
	}
	if v.IsNegative() {
		return types.ErrOverflow.Wrapf("negative amount %s", v)
	}
	if v.GT(MaxAmount) {
		return types.ErrOverflow.Wrapf("amount %s exceeds 128-bit bound", v)
	}
	return nil
}

// Add returns a+b checked against the 256-bit scratch width.
func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeAdd(b)
	if err != nil {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrapf("%s + %s: %v", a, b, err)
	}
	return res, nil
}

// Sub returns a-b, rejecting negative results; amounts never go below zero.
func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeSub(b)
	if err != nil {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrapf("%s - %s: %v", a, b, err)
	}
	if res.IsNegative() {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrapf("%s - %s underflows", a, b)
	}
	return res, nil
}

// Mul returns a*b checked against the 256-bit scratch width.
func Mul(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeMul(b)
	if err != nil {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrapf("%s * %s: %v", a, b, err)
	}
	return res, nil
}

// Quo returns a/b with floor semantics for non-negative operands.
func Quo(a, b sdkmath.Int) (sdkmath.Int, error) {
	if b.IsZero() {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrapf("%s / 0: division by zero", a)
	}
	return a.Quo(b), nil
}

// MulDiv returns floor(a*b/den) with the product held at 256 bits.
func MulDiv(a, b, den sdkmath.Int) (sdkmath.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return Quo(prod, den)
}

// MulDivCeil returns ceil(a*b/den); used where rounding must favor the pool
// on the input side.
func MulDivCeil(a, b, den sdkmath.Int) (sdkmath.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if den.IsZero() {
		return sdkmath.ZeroInt(), types.ErrOverflow.Wrap("division by zero")
	}
	bump, err := Add(prod, den.SubRaw(1))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return bump.Quo(den), nil
}

// Sqrt returns floor(sqrt(v)); non-positive inputs map to zero. The integer
// square root is exact, which the first-deposit minimum-liquidity threshold
// depends on.
func Sqrt(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() || !v.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(v.BigInt()))
}
