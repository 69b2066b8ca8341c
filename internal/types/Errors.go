/*

Registered error taxonomy for the pair engine. Every failure an operation can
return wraps one of these, so callers can branch on kind with errors.Is and
off-venue tooling can key on the stable numeric codes.

*/

package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace scopes the error codes below.
const Codespace = "pair"

var (
	// ErrInsufficientLiquidity covers every way the curve can be violated:
	// an empty pool, a quote that would drain a reserve, or a zero result.
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 102, "insufficient liquidity")

	// ErrInsufficientInput rejects non-positive amounts before any math runs.
	ErrInsufficientInput = errorsmod.Register(Codespace, 103, "insufficient input amount")

	// ErrInvalidK reports a post-trade constant-product regression. Reaching
	// it means a rounding defect, not a caller mistake.
	ErrInvalidK = errorsmod.Register(Codespace, 105, "constant product invariant violated")

	// ErrReentrancy rejects a mutating call issued from inside another
	// operation on the same pair (flash loan callbacks, primarily).
	ErrReentrancy = errorsmod.Register(Codespace, 106, "reentrant call on pair")

	// ErrFlashLoanNotRepaid is returned when the post-callback balance check
	// finds less than pre-loan reserves plus fees.
	ErrFlashLoanNotRepaid = errorsmod.Register(Codespace, 107, "flash loan not repaid")

	// ErrFlashPayloadTooLarge caps the opaque bytes forwarded to a receiver.
	ErrFlashPayloadTooLarge = errorsmod.Register(Codespace, 108, "flash loan payload too large")

	// ErrOverflow is returned whenever checked arithmetic would exceed the
	// safe width: 256-bit scratch or the 128-bit amount bound.
	ErrOverflow = errorsmod.Register(Codespace, 110, "arithmetic overflow")

	// ErrInsufficientInitialLiquidity rejects a first deposit whose geometric
	// mean falls below the permanently locked minimum.
	ErrInsufficientInitialLiquidity = errorsmod.Register(Codespace, 112, "initial liquidity below locked minimum")

	// ErrInsufficientShares rejects burning more shares than the provider
	// holds or than exist.
	ErrInsufficientShares = errorsmod.Register(Codespace, 113, "insufficient liquidity shares")

	// ErrSlippageExceeded is returned when an output lands under the
	// caller-supplied minimum. Retry with fresher bounds.
	ErrSlippageExceeded = errorsmod.Register(Codespace, 114, "slippage tolerance exceeded")

	// ErrInsufficientFunds is the venue ledger's debit failure.
	ErrInsufficientFunds = errorsmod.Register(Codespace, 115, "insufficient funds")
)
