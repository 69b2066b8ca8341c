// ./internal/state/fee_parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/paircore/internal/types"
)

// SaveFeeParameters saves a new version of fee parameters for a pair.
func SaveFeeParameters(params types.FeeParameters, pairID string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE fee_parameters SET is_active = FALSE WHERE pair_id = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, pairID)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active fee parameters for %s: %w", pairID, err)
		}
	}

	stmt := `
        INSERT INTO fee_parameters (
            pair_id, version, is_active, activated_at, created_at,
            dynamic_enabled, baseline_fee_bps, min_fee_bps, max_fee_bps,
            ramp_up_multiplier, ema_alpha,
            decay_window_seconds, decay_threshold_seconds, flash_fee_floor_bps
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11,
            $12, $13, $14
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		pairID, version, makeActive, currentTime, currentTime,
		params.DynamicEnabled, params.BaselineFeeBps, params.MinFeeBps, params.MaxFeeBps,
		params.RampUpMultiplier, params.EmaAlpha,
		int64(params.DecayWindowSeconds), int64(params.DecayThresholdSeconds), params.FlashFeeFloorBps,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert fee parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("pair", pairID).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved fee parameters")
	return paramsID, nil
}

// LoadActiveFeeParameters loads the currently active fee parameters for a pair.
func LoadActiveFeeParameters(pairID string) (*types.FeeParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            dynamic_enabled, baseline_fee_bps, min_fee_bps, max_fee_bps,
            ramp_up_multiplier, ema_alpha,
            decay_window_seconds, decay_threshold_seconds, flash_fee_floor_bps
        FROM fee_parameters
        WHERE pair_id = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.FeeParameters{}
	var decayWindow, decayThreshold int64
	row := DB.QueryRow(query, pairID)
	err := row.Scan(
		&p.DynamicEnabled, &p.BaselineFeeBps, &p.MinFeeBps, &p.MaxFeeBps,
		&p.RampUpMultiplier, &p.EmaAlpha,
		&decayWindow, &decayThreshold, &p.FlashFeeFloorBps,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active fee parameters found for pair '%s'", pairID)
		}
		return nil, fmt.Errorf("failed to scan active fee parameters for pair '%s': %w", pairID, err)
	}
	p.DecayWindowSeconds = uint64(decayWindow)
	p.DecayThresholdSeconds = uint64(decayThreshold)

	log.Info().Str("pair", pairID).Msg("Loaded active fee parameters")
	return p, nil
}

// LoadLatestFeeParameters loads the most recently activated fee parameters
// for a pair, active or not.
func LoadLatestFeeParameters(pairID string) (*types.FeeParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            dynamic_enabled, baseline_fee_bps, min_fee_bps, max_fee_bps,
            ramp_up_multiplier, ema_alpha,
            decay_window_seconds, decay_threshold_seconds, flash_fee_floor_bps
        FROM fee_parameters
        WHERE pair_id = $1
        ORDER BY activated_at DESC, created_at DESC
        LIMIT 1;`

	p := &types.FeeParameters{}
	var decayWindow, decayThreshold int64
	row := DB.QueryRow(query, pairID)
	err := row.Scan(
		&p.DynamicEnabled, &p.BaselineFeeBps, &p.MinFeeBps, &p.MaxFeeBps,
		&p.RampUpMultiplier, &p.EmaAlpha,
		&decayWindow, &decayThreshold, &p.FlashFeeFloorBps,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no fee parameters found for pair '%s'", pairID)
		}
		return nil, fmt.Errorf("failed to scan latest fee parameters for pair '%s': %w", pairID, err)
	}
	p.DecayWindowSeconds = uint64(decayWindow)
	p.DecayThresholdSeconds = uint64(decayThreshold)

	log.Info().Str("pair", pairID).Msg("Loaded latest fee parameters (by activation/creation time)")
	return p, nil
}

// GetActiveFeeParametersID returns the params_id of the currently active fee
// parameters, or nil when none have been activated yet.
func GetActiveFeeParametersID(pairID string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM fee_parameters
        WHERE pair_id = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, pairID)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Str("pair", pairID).Msg("No active fee parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active fee parameters ID for pair '%s': %w", pairID, err)
	}

	log.Debug().
		Str("pair", pairID).
		Int64("params_id", paramsID).
		Msg("Retrieved active fee parameters ID")

	return &paramsID, nil
}
