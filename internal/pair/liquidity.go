/*

Liquidity management. The first deposit prices the pool and mints
sqrt(a*b) shares, with the first MinimumLiquidity of them locked in the
pair's own account forever; later deposits are clipped to the current
reserve ratio so a provider cannot move the price by depositing.
Withdrawals pay out pro rata and always round in the pool's favor.

*/

package pair

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// AddLiquidityParams describes a deposit. Desired amounts are upper bounds;
// MinA/MinB bound how far ratio-clipping may reduce them.
type AddLiquidityParams struct {
	Provider       string
	AmountADesired sdkmath.Int
	AmountBDesired sdkmath.Int
	MinA           sdkmath.Int
	MinB           sdkmath.Int
}

// RemoveLiquidityParams describes a withdrawal of Shares pool shares.
type RemoveLiquidityParams struct {
	Provider string
	Shares   sdkmath.Int
	MinA     sdkmath.Int
	MinB     sdkmath.Int
}

// AddLiquidity deposits both assets and mints shares.
func (p *Pair) AddLiquidity(ctx context.Context, params AddLiquidityParams) (types.LiquidityReceipt, error) {
	var receipt types.LiquidityReceipt

	if params.Provider == "" {
		return receipt, types.ErrInsufficientInput.Wrap("provider account required")
	}
	aDesired, err := normalizeAmount(params.AmountADesired)
	if err != nil {
		return receipt, err
	}
	bDesired, err := normalizeAmount(params.AmountBDesired)
	if err != nil {
		return receipt, err
	}
	minA, err := normalizeAmount(params.MinA)
	if err != nil {
		return receipt, err
	}
	minB, err := normalizeAmount(params.MinB)
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

	tx, err := p.ledger.Begin(guardCtx)
	if err != nil {
		return receipt, err
	}
	defer tx.Abort()

	var aUsed, bUsed, minted sdkmath.Int
	locked := sdkmath.ZeroInt()

	if !scratch.Seeded() {
		// First deposit: both amounts in full, geometric-mean share issue.
		aUsed, bUsed = aDesired, bDesired
		product, err := safemath.Mul(aUsed, bUsed)
		if err != nil {
			return receipt, err
		}
		shares := safemath.Sqrt(product)
		if shares.LT(safemath.MinimumLiquidity) {
			return receipt, types.ErrInsufficientInitialLiquidity.Wrapf(
				"sqrt(%s*%s) = %s shares, below the locked minimum of %s",
				aUsed, bUsed, shares, safemath.MinimumLiquidity)
		}
		locked = safemath.MinimumLiquidity
		minted, err = safemath.Sub(shares, locked)
		if err != nil {
			return receipt, err
		}
	} else {
		// Clip the deposit to the reserve ratio.
		bOptimal, err := safemath.MulDiv(aDesired, scratch.ReserveB, scratch.ReserveA)
		if err != nil {
			return receipt, err
		}
		if bOptimal.LTE(bDesired) {
			aUsed, bUsed = aDesired, bOptimal
		} else {
			aOptimal, err := safemath.MulDiv(bDesired, scratch.ReserveA, scratch.ReserveB)
			if err != nil {
				return receipt, err
			}
			aUsed, bUsed = aOptimal, bDesired
		}

		mintByA, err := safemath.MulDiv(aUsed, scratch.TotalShares, scratch.ReserveA)
		if err != nil {
			return receipt, err
		}
		mintByB, err := safemath.MulDiv(bUsed, scratch.TotalShares, scratch.ReserveB)
		if err != nil {
			return receipt, err
		}
		minted = sdkmath.MinInt(mintByA, mintByB)
		if minted.IsZero() {
			return receipt, types.ErrInsufficientLiquidity.Wrap("deposit too small to mint a single share")
		}
	}

	if aUsed.LT(minA) || bUsed.LT(minB) {
		return receipt, types.ErrSlippageExceeded.Wrapf(
			"deposit would use %s/%s against minimums %s/%s", aUsed, bUsed, minA, minB)
	}

	if err := tx.Transfer(string(scratch.TokenA), params.Provider, p.account, aUsed); err != nil {
		return receipt, err
	}
	if err := tx.Transfer(string(scratch.TokenB), params.Provider, p.account, bUsed); err != nil {
		return receipt, err
	}
	if locked.IsPositive() {
		if err := tx.Mint(p.shareSymbol, p.account, locked); err != nil {
			return receipt, err
		}
	}
	if minted.IsPositive() {
		if err := tx.Mint(p.shareSymbol, params.Provider, minted); err != nil {
			return receipt, err
		}
	}

	observe(&scratch, now)

	scratch.ReserveA, err = safemath.Add(scratch.ReserveA, aUsed)
	if err != nil {
		return receipt, err
	}
	if err := safemath.CheckAmount(scratch.ReserveA); err != nil {
		return receipt, err
	}
	scratch.ReserveB, err = safemath.Add(scratch.ReserveB, bUsed)
	if err != nil {
		return receipt, err
	}
	if err := safemath.CheckAmount(scratch.ReserveB); err != nil {
		return receipt, err
	}
	issued, err := safemath.Add(minted, locked)
	if err != nil {
		return receipt, err
	}
	scratch.TotalShares, err = safemath.Add(scratch.TotalShares, issued)
	if err != nil {
		return receipt, err
	}
	if err := safemath.CheckAmount(scratch.TotalShares); err != nil {
		return receipt, err
	}

	if err := tx.Commit(); err != nil {
		return receipt, err
	}
	p.commit(scratch)

	receipt = types.LiquidityReceipt{
		PairID:      p.id,
		Action:      types.LiquidityAdd,
		Provider:    params.Provider,
		AmountA:     aUsed,
		AmountB:     bUsed,
		Shares:      minted,
		TotalShares: scratch.TotalShares,
		Timestamp:   time.Unix(int64(now), 0).UTC(),
	}

	p.log.Info().
		Str("provider", params.Provider).
		Str("amount_a", aUsed.String()).
		Str("amount_b", bUsed.String()).
		Str("shares", minted.String()).
		Msg("Liquidity added")

	p.recordLiquidity(receipt)
	return receipt, nil
}

// RemoveLiquidity burns shares and pays out the pro-rata reserves.
func (p *Pair) RemoveLiquidity(ctx context.Context, params RemoveLiquidityParams) (types.LiquidityReceipt, error) {
	var receipt types.LiquidityReceipt

	if params.Provider == "" {
		return receipt, types.ErrInsufficientInput.Wrap("provider account required")
	}
	if params.Provider == p.account {
		return receipt, types.ErrInsufficientShares.Wrap("the pool's locked minimum shares cannot be withdrawn")
	}
	shares, err := normalizeAmount(params.Shares)
	if err != nil {
		return receipt, err
	}
	if !shares.IsPositive() {
		return receipt, types.ErrInsufficientInput.Wrap("share amount must be positive")
	}
	minA, err := normalizeAmount(params.MinA)
	if err != nil {
		return receipt, err
	}
	minB, err := normalizeAmount(params.MinB)
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

	tx, err := p.ledger.Begin(guardCtx)
	if err != nil {
		return receipt, err
	}
	defer tx.Abort()

	held, err := tx.BalanceOf(p.shareSymbol, params.Provider)
	if err != nil {
		return receipt, err
	}
	if held.LT(shares) {
		return receipt, types.ErrInsufficientShares.Wrapf(
			"%s holds %s shares, withdrawal needs %s", params.Provider, held, shares)
	}
	if shares.GT(scratch.TotalShares) {
		return receipt, types.ErrInsufficientShares.Wrapf(
			"%s shares requested with only %s outstanding", shares, scratch.TotalShares)
	}

	amountA, err := safemath.MulDiv(scratch.ReserveA, shares, scratch.TotalShares)
	if err != nil {
		return receipt, err
	}
	amountB, err := safemath.MulDiv(scratch.ReserveB, shares, scratch.TotalShares)
	if err != nil {
		return receipt, err
	}
	if amountA.IsZero() || amountB.IsZero() {
		return receipt, types.ErrInsufficientLiquidity.Wrap("withdrawal rounds to zero on one side")
	}
	if amountA.LT(minA) || amountB.LT(minB) {
		return receipt, types.ErrSlippageExceeded.Wrapf(
			"withdrawal pays %s/%s against minimums %s/%s", amountA, amountB, minA, minB)
	}

	if err := tx.Burn(p.shareSymbol, params.Provider, shares); err != nil {
		return receipt, err
	}
	if err := tx.Transfer(string(scratch.TokenA), p.account, params.Provider, amountA); err != nil {
		return receipt, err
	}
	if err := tx.Transfer(string(scratch.TokenB), p.account, params.Provider, amountB); err != nil {
		return receipt, err
	}

	observe(&scratch, now)

	scratch.ReserveA, err = safemath.Sub(scratch.ReserveA, amountA)
	if err != nil {
		return receipt, err
	}
	scratch.ReserveB, err = safemath.Sub(scratch.ReserveB, amountB)
	if err != nil {
		return receipt, err
	}
	scratch.TotalShares, err = safemath.Sub(scratch.TotalShares, shares)
	if err != nil {
		return receipt, err
	}

	if err := tx.Commit(); err != nil {
		return receipt, err
	}
	p.commit(scratch)

	receipt = types.LiquidityReceipt{
		PairID:      p.id,
		Action:      types.LiquidityRemove,
		Provider:    params.Provider,
		AmountA:     amountA,
		AmountB:     amountB,
		Shares:      shares,
		TotalShares: scratch.TotalShares,
		Timestamp:   time.Unix(int64(now), 0).UTC(),
	}

	p.log.Info().
		Str("provider", params.Provider).
		Str("amount_a", amountA.String()).
		Str("amount_b", amountB.String()).
		Str("shares", shares.String()).
		Msg("Liquidity removed")

	p.recordLiquidity(receipt)
	return receipt, nil
}
