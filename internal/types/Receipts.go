/*

Receipt types emitted by the engine after each committed operation. Receipts
are what the archive stores and the web API serves; they are observability
records, never inputs to the engine.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// SwapReceipt describes one committed swap, including the post-trade reserves
// so consumers can follow the curve without replaying history.
type SwapReceipt struct {
	PairID     PairID      `json:"pair_id"`
	Trader     string      `json:"trader"`
	Recipient  string      `json:"recipient"`
	AssetIn    Token       `json:"asset_in"`
	AssetOut   Token       `json:"asset_out"`
	AmountIn   sdkmath.Int `json:"amount_in"`
	AmountOut  sdkmath.Int `json:"amount_out"`
	FeeRateBps uint32      `json:"fee_rate_bps"` // effective rate charged on this swap
	ReserveA   sdkmath.Int `json:"reserve_a"`    // post-trade
	ReserveB   sdkmath.Int `json:"reserve_b"`    // post-trade
	Timestamp  time.Time   `json:"timestamp"`
}

// LiquidityAction distinguishes deposits from withdrawals in one receipt type.
type LiquidityAction string

const (
	LiquidityAdd    LiquidityAction = "ADD"
	LiquidityRemove LiquidityAction = "REMOVE"
)

// LiquidityReceipt describes one committed add/remove liquidity operation.
type LiquidityReceipt struct {
	PairID      PairID          `json:"pair_id"`
	Action      LiquidityAction `json:"action"`
	Provider    string          `json:"provider"`
	AmountA     sdkmath.Int     `json:"amount_a"` // amounts actually moved, not the desired amounts
	AmountB     sdkmath.Int     `json:"amount_b"`
	Shares      sdkmath.Int     `json:"shares"`       // minted or burned
	TotalShares sdkmath.Int     `json:"total_shares"` // post-action supply
	Timestamp   time.Time       `json:"timestamp"`
}

// FlashLoanReceipt describes one settled flash loan. Failed loans leave no
// receipt; the whole operation rolls back.
type FlashLoanReceipt struct {
	PairID    PairID      `json:"pair_id"`
	Initiator string      `json:"initiator"`
	Receiver  string      `json:"receiver"`
	BorrowedA sdkmath.Int `json:"borrowed_a"`
	BorrowedB sdkmath.Int `json:"borrowed_b"`
	FeeA      sdkmath.Int `json:"fee_a"`
	FeeB      sdkmath.Int `json:"fee_b"`
	Timestamp time.Time   `json:"timestamp"`
}
