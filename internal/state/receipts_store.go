/*

This file archives the receipts the trading engine emits. Every committed
swap, liquidity change and flash loan lands here as one row, forming the
venue's full trade history. The Archive type is the bridge: the engine hands
it receipts after commit and it writes them out without ever failing the
trade.

*/

package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/paircore/internal/types"
)

// Archive persists engine receipts into PostgreSQL. It satisfies the pair
// engine's recorder contract: persistence problems are logged and swallowed
// so a database outage can never block trading.
type Archive struct{}

func (Archive) RecordSwap(r types.SwapReceipt) {
	if _, err := SaveSwapReceipt(r); err != nil {
		log.Error().Err(err).Str("pair", string(r.PairID)).Msg("Failed to archive swap receipt")
	}
}

func (Archive) RecordLiquidity(r types.LiquidityReceipt) {
	if _, err := SaveLiquidityReceipt(r); err != nil {
		log.Error().Err(err).Str("pair", string(r.PairID)).Str("action", string(r.Action)).Msg("Failed to archive liquidity receipt")
	}
}

func (Archive) RecordFlashLoan(r types.FlashLoanReceipt) {
	if _, err := SaveFlashReceipt(r); err != nil {
		log.Error().Err(err).Str("pair", string(r.PairID)).Msg("Failed to archive flash loan receipt")
	}
}

// numericToInt converts a NUMERIC column scanned as text back into an Int.
func numericToInt(column, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("column %s holds malformed integer %q", column, raw)
	}
	return v, nil
}

// SaveSwapReceipt archives a single swap and returns its row ID.
func SaveSwapReceipt(r types.SwapReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO swap_receipts (
            pair_id, trader, recipient, asset_in, asset_out,
            amount_in, amount_out, fee_rate_bps, reserve_a, reserve_b, executed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING receipt_id;`

	var receiptID int64
	err := DB.QueryRow(
		stmt,
		string(r.PairID), r.Trader, r.Recipient, string(r.AssetIn), string(r.AssetOut),
		r.AmountIn.String(), r.AmountOut.String(), r.FeeRateBps,
		r.ReserveA.String(), r.ReserveB.String(), r.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert swap receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("pair", string(r.PairID)).
		Str("asset_in", string(r.AssetIn)).
		Msg("Archived swap receipt")
	return receiptID, nil
}

// SaveLiquidityReceipt archives one liquidity add or remove.
func SaveLiquidityReceipt(r types.LiquidityReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO liquidity_receipts (
            pair_id, action, provider,
            amount_a, amount_b, shares, total_shares, executed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING receipt_id;`

	var receiptID int64
	err := DB.QueryRow(
		stmt,
		string(r.PairID), string(r.Action), r.Provider,
		r.AmountA.String(), r.AmountB.String(), r.Shares.String(), r.TotalShares.String(),
		r.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert liquidity receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("pair", string(r.PairID)).
		Str("action", string(r.Action)).
		Msg("Archived liquidity receipt")
	return receiptID, nil
}

// SaveFlashReceipt archives one settled flash loan.
func SaveFlashReceipt(r types.FlashLoanReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO flash_receipts (
            pair_id, initiator, receiver,
            borrowed_a, borrowed_b, fee_a, fee_b, executed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING receipt_id;`

	var receiptID int64
	err := DB.QueryRow(
		stmt,
		string(r.PairID), r.Initiator, r.Receiver,
		r.BorrowedA.String(), r.BorrowedB.String(), r.FeeA.String(), r.FeeB.String(),
		r.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert flash receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("pair", string(r.PairID)).
		Msg("Archived flash loan receipt")
	return receiptID, nil
}

// RecentSwaps returns the newest archived swaps for a pair, newest first.
func RecentSwaps(pairID string, limit int) ([]types.SwapReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT pair_id, trader, recipient, asset_in, asset_out,
		       amount_in, amount_out, fee_rate_bps, reserve_a, reserve_b, executed_at
		FROM swap_receipts
		WHERE pair_id = $1
		ORDER BY executed_at DESC, receipt_id DESC
		LIMIT $2;`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent swaps: %w", err)
	}
	defer rows.Close()

	var receipts []types.SwapReceipt
	for rows.Next() {
		var (
			r                                       types.SwapReceipt
			pid, assetIn, assetOut                  string
			amountIn, amountOut, reserveA, reserveB string
		)
		if err := rows.Scan(
			&pid, &r.Trader, &r.Recipient, &assetIn, &assetOut,
			&amountIn, &amountOut, &r.FeeRateBps, &reserveA, &reserveB, &r.Timestamp,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan swap receipt row")
			continue
		}
		r.PairID = types.PairID(pid)
		r.AssetIn = types.Token(assetIn)
		r.AssetOut = types.Token(assetOut)
		if err := decodeSwapAmounts(&r, amountIn, amountOut, reserveA, reserveB); err != nil {
			log.Error().Err(err).Msg("Failed to decode swap receipt amounts")
			continue
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during swap receipt iteration: %w", err)
	}

	log.Debug().Int("count", len(receipts)).Str("pair", pairID).Msg("Retrieved recent swaps")
	return receipts, nil
}

func decodeSwapAmounts(r *types.SwapReceipt, amountIn, amountOut, reserveA, reserveB string) error {
	var err error
	if r.AmountIn, err = numericToInt("amount_in", amountIn); err != nil {
		return err
	}
	if r.AmountOut, err = numericToInt("amount_out", amountOut); err != nil {
		return err
	}
	if r.ReserveA, err = numericToInt("reserve_a", reserveA); err != nil {
		return err
	}
	if r.ReserveB, err = numericToInt("reserve_b", reserveB); err != nil {
		return err
	}
	return nil
}

// RecentLiquidityEvents returns the newest liquidity adds and removes for a
// pair, newest first.
func RecentLiquidityEvents(pairID string, limit int) ([]types.LiquidityReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT pair_id, action, provider,
		       amount_a, amount_b, shares, total_shares, executed_at
		FROM liquidity_receipts
		WHERE pair_id = $1
		ORDER BY executed_at DESC, receipt_id DESC
		LIMIT $2;`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent liquidity events: %w", err)
	}
	defer rows.Close()

	var receipts []types.LiquidityReceipt
	for rows.Next() {
		var (
			r                                     types.LiquidityReceipt
			pid, action                           string
			amountA, amountB, shares, totalShares string
		)
		if err := rows.Scan(
			&pid, &action, &r.Provider,
			&amountA, &amountB, &shares, &totalShares, &r.Timestamp,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan liquidity receipt row")
			continue
		}
		r.PairID = types.PairID(pid)
		r.Action = types.LiquidityAction(action)
		if err := decodeLiquidityAmounts(&r, amountA, amountB, shares, totalShares); err != nil {
			log.Error().Err(err).Msg("Failed to decode liquidity receipt amounts")
			continue
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during liquidity receipt iteration: %w", err)
	}

	log.Debug().Int("count", len(receipts)).Str("pair", pairID).Msg("Retrieved recent liquidity events")
	return receipts, nil
}

func decodeLiquidityAmounts(r *types.LiquidityReceipt, amountA, amountB, shares, totalShares string) error {
	var err error
	if r.AmountA, err = numericToInt("amount_a", amountA); err != nil {
		return err
	}
	if r.AmountB, err = numericToInt("amount_b", amountB); err != nil {
		return err
	}
	if r.Shares, err = numericToInt("shares", shares); err != nil {
		return err
	}
	if r.TotalShares, err = numericToInt("total_shares", totalShares); err != nil {
		return err
	}
	return nil
}

// RecentFlashLoans returns the newest settled flash loans for a pair, newest
// first.
func RecentFlashLoans(pairID string, limit int) ([]types.FlashLoanReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT pair_id, initiator, receiver,
		       borrowed_a, borrowed_b, fee_a, fee_b, executed_at
		FROM flash_receipts
		WHERE pair_id = $1
		ORDER BY executed_at DESC, receipt_id DESC
		LIMIT $2;`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent flash loans: %w", err)
	}
	defer rows.Close()

	var receipts []types.FlashLoanReceipt
	for rows.Next() {
		var (
			r                                types.FlashLoanReceipt
			pid                              string
			borrowedA, borrowedB, feeA, feeB string
		)
		if err := rows.Scan(
			&pid, &r.Initiator, &r.Receiver,
			&borrowedA, &borrowedB, &feeA, &feeB, &r.Timestamp,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan flash receipt row")
			continue
		}
		r.PairID = types.PairID(pid)
		if err := decodeFlashAmounts(&r, borrowedA, borrowedB, feeA, feeB); err != nil {
			log.Error().Err(err).Msg("Failed to decode flash receipt amounts")
			continue
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during flash receipt iteration: %w", err)
	}

	log.Debug().Int("count", len(receipts)).Str("pair", pairID).Msg("Retrieved recent flash loans")
	return receipts, nil
}

func decodeFlashAmounts(r *types.FlashLoanReceipt, borrowedA, borrowedB, feeA, feeB string) error {
	var err error
	if r.BorrowedA, err = numericToInt("borrowed_a", borrowedA); err != nil {
		return err
	}
	if r.BorrowedB, err = numericToInt("borrowed_b", borrowedB); err != nil {
		return err
	}
	if r.FeeA, err = numericToInt("fee_a", feeA); err != nil {
		return err
	}
	if r.FeeB, err = numericToInt("fee_b", feeB); err != nil {
		return err
	}
	return nil
}
