/*

Flash loans: borrow against the reserves with no collateral, provided
principal plus fee is back in the pool account before the call returns. The
receiver repays through the very ledger transaction the loan runs in, so
repayment made any other way does not count and the whole transaction rolls
back, outbound transfers included.

*/

package pair

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// MaxFlashPayload bounds the opaque bytes forwarded to a receiver.
const MaxFlashPayload = 256

// FlashLoanTerms tells the receiver what it was lent and what it owes.
// Repayment goes to PairAccount through the lender handle.
type FlashLoanTerms struct {
	PairID      types.PairID
	Initiator   string
	TokenA      types.Token
	TokenB      types.Token
	AmountA     sdkmath.Int
	AmountB     sdkmath.Int
	FeeA        sdkmath.Int
	FeeB        sdkmath.Int
	PairAccount string
	Data        []byte
}

// FlashReceiver is the borrower-side contract. OnFlashLoan runs
// synchronously inside the loan; mutating calls back into the same pair
// fail with Reentrancy.
type FlashReceiver interface {
	Account() string
	OnFlashLoan(ctx context.Context, lender Lender, terms FlashLoanTerms) error
}

// FlashLoanParams describes a loan request. Either amount may be zero, not
// both. Data is forwarded to the receiver untouched.
type FlashLoanParams struct {
	Initiator string
	AmountA   sdkmath.Int
	AmountB   sdkmath.Int
	Receiver  FlashReceiver
	Data      []byte
}

// flashFee charges feeBps on a borrow, with any positive borrow owing at
// least one unit.
func flashFee(amount sdkmath.Int, feeBps uint32) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	fee, err := safemath.MulDiv(amount, sdkmath.NewInt(int64(feeBps)), sdkmath.NewInt(safemath.BpsDenominator))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if fee.IsZero() {
		fee = sdkmath.OneInt()
	}
	return fee, nil
}

// FlashLoan lends reserves to the receiver for the duration of one call and
// verifies repayment before anything is committed. The fee stays in the
// pool, accruing to liquidity providers.
func (p *Pair) FlashLoan(ctx context.Context, params FlashLoanParams) (types.FlashLoanReceipt, error) {
	var receipt types.FlashLoanReceipt

	if params.Initiator == "" {
		return receipt, types.ErrInsufficientInput.Wrap("initiator account required")
	}
	if params.Receiver == nil {
		return receipt, types.ErrInsufficientInput.Wrap("flash receiver required")
	}
	amountA, err := normalizeAmount(params.AmountA)
	if err != nil {
		return receipt, err
	}
	amountB, err := normalizeAmount(params.AmountB)
	if err != nil {
		return receipt, err
	}
	if amountA.IsZero() && amountB.IsZero() {
		return receipt, types.ErrInsufficientInput.Wrap("flash loan must borrow something")
	}
	if len(params.Data) > MaxFlashPayload {
		return receipt, types.ErrFlashPayloadTooLarge.Wrapf("payload is %d bytes, limit is %d", len(params.Data), MaxFlashPayload)
	}
	receiverAccount := params.Receiver.Account()
	if receiverAccount == "" {
		return receipt, types.ErrInsufficientInput.Wrap("flash receiver must name an account")
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
	if amountA.GTE(scratch.ReserveA) {
		return receipt, types.ErrInsufficientLiquidity.Wrapf(
			"cannot lend %s %s against a reserve of %s", amountA, scratch.TokenA, scratch.ReserveA)
	}
	if amountB.GTE(scratch.ReserveB) {
		return receipt, types.ErrInsufficientLiquidity.Wrapf(
			"cannot lend %s %s against a reserve of %s", amountB, scratch.TokenB, scratch.ReserveB)
	}

	feeBps := p.fees.FlashFeeBps(now)
	feeA, err := flashFee(amountA, feeBps)
	if err != nil {
		return receipt, err
	}
	feeB, err := flashFee(amountB, feeBps)
	if err != nil {
		return receipt, err
	}

	record := types.FlashLoanRecord{
		BorrowedA:       amountA,
		BorrowedB:       amountB,
		FeeOwedA:        feeA,
		FeeOwedB:        feeB,
		PreLoanReserveA: scratch.ReserveA,
		PreLoanReserveB: scratch.ReserveB,
	}

	tx, err := p.ledger.Begin(guardCtx)
	if err != nil {
		return receipt, err
	}
	defer tx.Abort()

	if amountA.IsPositive() {
		if err := tx.Transfer(string(scratch.TokenA), p.account, receiverAccount, amountA); err != nil {
			return receipt, err
		}
	}
	if amountB.IsPositive() {
		if err := tx.Transfer(string(scratch.TokenB), p.account, receiverAccount, amountB); err != nil {
			return receipt, err
		}
	}

	terms := FlashLoanTerms{
		PairID:      p.id,
		Initiator:   params.Initiator,
		TokenA:      scratch.TokenA,
		TokenB:      scratch.TokenB,
		AmountA:     amountA,
		AmountB:     amountB,
		FeeA:        feeA,
		FeeB:        feeB,
		PairAccount: p.account,
		Data:        params.Data,
	}
	if err := params.Receiver.OnFlashLoan(guardCtx, tx, terms); err != nil {
		return receipt, errorsmod.Wrap(err, "flash receiver aborted")
	}

	// Repayment check: the pool must hold at least its pre-loan reserves
	// plus the fee on each side, measured inside the loan's transaction.
	balA, err := tx.BalanceOf(string(scratch.TokenA), p.account)
	if err != nil {
		return receipt, err
	}
	needA, err := safemath.Add(record.PreLoanReserveA, record.FeeOwedA)
	if err != nil {
		return receipt, err
	}
	if balA.LT(needA) {
		return receipt, types.ErrFlashLoanNotRepaid.Wrapf(
			"pool holds %s %s, repayment requires %s", balA, scratch.TokenA, needA)
	}
	balB, err := tx.BalanceOf(string(scratch.TokenB), p.account)
	if err != nil {
		return receipt, err
	}
	needB, err := safemath.Add(record.PreLoanReserveB, record.FeeOwedB)
	if err != nil {
		return receipt, err
	}
	if balB.LT(needB) {
		return receipt, types.ErrFlashLoanNotRepaid.Wrapf(
			"pool holds %s %s, repayment requires %s", balB, scratch.TokenB, needB)
	}

	if err := safemath.CheckAmount(balA); err != nil {
		return receipt, err
	}
	if err := safemath.CheckAmount(balB); err != nil {
		return receipt, err
	}

	// Settle to actual balances so the fee accrues to the reserves, then
	// record the oracle observation against the settled state.
	scratch.ReserveA = balA
	scratch.ReserveB = balB
	observe(&scratch, now)

	if err := tx.Commit(); err != nil {
		return receipt, err
	}
	p.commit(scratch)

	receipt = types.FlashLoanReceipt{
		PairID:    p.id,
		Initiator: params.Initiator,
		Receiver:  receiverAccount,
		BorrowedA: amountA,
		BorrowedB: amountB,
		FeeA:      feeA,
		FeeB:      feeB,
		Timestamp: time.Unix(int64(now), 0).UTC(),
	}

	p.log.Info().
		Str("initiator", params.Initiator).
		Str("receiver", receiverAccount).
		Str("borrowed_a", amountA.String()).
		Str("borrowed_b", amountB.String()).
		Uint32("fee_bps", feeBps).
		Msg("Flash loan settled")

	p.recordFlashLoan(receipt)
	return receipt, nil
}
