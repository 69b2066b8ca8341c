/*

Core pair types. One PairState per market is owned exclusively by the engine
in internal/pair and mutated only through its guarded operations.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// PairID identifies one two-asset market, e.g. "ATOM-USDC".
type PairID string

// Token is an asset symbol as tracked by the venue ledger, e.g. "ATOM".
type Token string

// PairState is the authoritative accounting state of a trading pair.
// Reserves and shares are bounded to 128 bits by internal/safemath; the
// cumulative price accumulators use the full 256-bit width of sdkmath.Int.
type PairState struct {
	TokenA              Token       `json:"token_a"`
	TokenB              Token       `json:"token_b"`
	ReserveA            sdkmath.Int `json:"reserve_a"`
	ReserveB            sdkmath.Int `json:"reserve_b"`
	TotalShares         sdkmath.Int `json:"total_shares"`
	LastUpdateTimestamp uint64      `json:"last_update_timestamp"` // unix seconds of the last observation
	PriceACumulative    sdkmath.Int `json:"price_a_cumulative"`    // UQ64.64 price of A in B, integrated over seconds
	PriceBCumulative    sdkmath.Int `json:"price_b_cumulative"`    // UQ64.64 price of B in A, integrated over seconds
	FeeRateBps          uint32      `json:"fee_rate_bps"`          // swap fee in basis points, [0, 10000)
}

// NewPairState returns an empty (unseeded) pool. All amounts start at zero;
// the first AddLiquidity seeds the reserves.
func NewPairState(tokenA, tokenB Token, feeRateBps uint32) PairState {
	return PairState{
		TokenA:           tokenA,
		TokenB:           tokenB,
		ReserveA:         sdkmath.ZeroInt(),
		ReserveB:         sdkmath.ZeroInt(),
		TotalShares:      sdkmath.ZeroInt(),
		PriceACumulative: sdkmath.ZeroInt(),
		PriceBCumulative: sdkmath.ZeroInt(),
		FeeRateBps:       feeRateBps,
	}
}

// ID derives the market identifier from the token ordering of the pair.
func (s PairState) ID() PairID {
	return PairID(string(s.TokenA) + "-" + string(s.TokenB))
}

// Seeded reports whether the pool has ever been funded.
func (s PairState) Seeded() bool {
	return !s.TotalShares.IsZero()
}

// FlashLoanRecord is the transient escrow record for a single flash loan.
// It exists only for the duration of one FlashLoan call and is never
// persisted; the pre-loan reserves are what repayment is verified against.
type FlashLoanRecord struct {
	BorrowedA       sdkmath.Int
	BorrowedB       sdkmath.Int
	FeeOwedA        sdkmath.Int
	FeeOwedB        sdkmath.Int
	PreLoanReserveA sdkmath.Int
	PreLoanReserveB sdkmath.Int
}
