package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PairActivity aggregates a pair's archived trading history for dashboards.
// Volumes are reported in base units as decimal strings; they sum NUMERIC
// columns wider than any machine integer.
type PairActivity struct {
	PairID               string     `json:"pair_id"`
	TotalSwaps           int        `json:"total_swaps"`
	TotalLiquidityEvents int        `json:"total_liquidity_events"`
	TotalFlashLoans      int        `json:"total_flash_loans"`
	SwapCount24h         int        `json:"swap_count_24h"`
	VolumeAIn24h         string     `json:"volume_a_in_24h"`
	VolumeBIn24h         string     `json:"volume_b_in_24h"`
	LastSwapAt           *time.Time `json:"last_swap_at,omitempty"`
}

// GetPairActivity aggregates the archived history for one pair. tokenA and
// tokenB attribute the 24h inflow volume to the pair's two sides.
func GetPairActivity(pairID, tokenA, tokenB string) (*PairActivity, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	activity := &PairActivity{PairID: pairID, VolumeAIn24h: "0", VolumeBIn24h: "0"}

	query := `
		SELECT
			COUNT(*) AS total_swaps,
			COUNT(*) FILTER (WHERE executed_at > NOW() - INTERVAL '24 hours') AS swaps_24h,
			COALESCE(SUM(amount_in) FILTER (WHERE asset_in = $2 AND executed_at > NOW() - INTERVAL '24 hours'), 0)::TEXT AS volume_a,
			COALESCE(SUM(amount_in) FILTER (WHERE asset_in = $3 AND executed_at > NOW() - INTERVAL '24 hours'), 0)::TEXT AS volume_b,
			MAX(executed_at) AS last_swap
		FROM swap_receipts
		WHERE pair_id = $1
	`

	var lastSwap sql.NullTime
	err := DB.QueryRow(query, pairID, tokenA, tokenB).Scan(
		&activity.TotalSwaps, &activity.SwapCount24h,
		&activity.VolumeAIn24h, &activity.VolumeBIn24h,
		&lastSwap,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate swap activity: %w", err)
	}
	if lastSwap.Valid {
		activity.LastSwapAt = &lastSwap.Time
	}

	err = DB.QueryRow("SELECT COUNT(*) FROM liquidity_receipts WHERE pair_id = $1", pairID).Scan(&activity.TotalLiquidityEvents)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count liquidity events")
	}

	err = DB.QueryRow("SELECT COUNT(*) FROM flash_receipts WHERE pair_id = $1", pairID).Scan(&activity.TotalFlashLoans)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count flash loans")
	}

	log.Debug().Str("pair", pairID).Int("totalSwaps", activity.TotalSwaps).Msg("Retrieved pair activity")
	return activity, nil
}
