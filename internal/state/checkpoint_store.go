/*

This file persists oracle checkpoints: periodic copies of each pair's
cumulative price accumulators taken by the checkpoint loop. A TWAP query
diffs a live reading against the newest checkpoint at or before its window
start, so this table is what makes time-weighted prices survive restarts.
The counter at the bottom numbers checkpoint cycles across process restarts.

*/

package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/paircore/internal/oracle"
)

// OracleCheckpoint is one archived oracle observation for a pair.
type OracleCheckpoint struct {
	CheckpointID     int64       `json:"checkpoint_id"`
	CycleNumber      int         `json:"cycle_number"`
	PairID           string      `json:"pair_id"`
	PriceACumulative sdkmath.Int `json:"price_a_cumulative"`
	PriceBCumulative sdkmath.Int `json:"price_b_cumulative"`
	ReserveA         sdkmath.Int `json:"reserve_a"`
	ReserveB         sdkmath.Int `json:"reserve_b"`
	PairTimestamp    uint64      `json:"pair_timestamp"`
	RecordedAt       time.Time   `json:"recorded_at"`
}

// Snapshot converts the checkpoint into an oracle observation for TWAP math.
func (c OracleCheckpoint) Snapshot() oracle.Snapshot {
	return oracle.Snapshot{
		PriceACumulative: c.PriceACumulative,
		PriceBCumulative: c.PriceBCumulative,
		Timestamp:        c.PairTimestamp,
	}
}

// SaveOracleCheckpoint archives one oracle observation together with the
// reserves behind it and returns the new row ID.
func SaveOracleCheckpoint(pairID string, cycleNumber int, snap oracle.Snapshot, reserveA, reserveB sdkmath.Int) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO oracle_checkpoints (
            cycle_number, pair_id,
            price_a_cumulative, price_b_cumulative,
            reserve_a, reserve_b, pair_timestamp
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING checkpoint_id;`

	var checkpointID int64
	err := DB.QueryRow(
		stmt,
		cycleNumber, pairID,
		snap.PriceACumulative.String(), snap.PriceBCumulative.String(),
		reserveA.String(), reserveB.String(), int64(snap.Timestamp),
	).Scan(&checkpointID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert oracle checkpoint: %w", err)
	}

	log.Debug().
		Int64("checkpoint_id", checkpointID).
		Str("pair", pairID).
		Int("cycle", cycleNumber).
		Uint64("pair_timestamp", snap.Timestamp).
		Msg("Archived oracle checkpoint")
	return checkpointID, nil
}

const checkpointColumns = `
        checkpoint_id, cycle_number, pair_id,
        price_a_cumulative, price_b_cumulative,
        reserve_a, reserve_b, pair_timestamp, recorded_at`

// LatestCheckpoint returns the newest checkpoint for a pair, or nil when the
// pair has never been checkpointed.
func LatestCheckpoint(pairID string) (*OracleCheckpoint, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT` + checkpointColumns + `
        FROM oracle_checkpoints
        WHERE pair_id = $1
        ORDER BY pair_timestamp DESC, checkpoint_id DESC
        LIMIT 1;`

	return scanCheckpoint(DB.QueryRow(query, pairID), pairID)
}

// CheckpointAtOrBefore returns the newest checkpoint whose pair timestamp is
// at or before ts, or nil when no checkpoint is that old.
func CheckpointAtOrBefore(pairID string, ts uint64) (*OracleCheckpoint, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT` + checkpointColumns + `
        FROM oracle_checkpoints
        WHERE pair_id = $1 AND pair_timestamp <= $2
        ORDER BY pair_timestamp DESC, checkpoint_id DESC
        LIMIT 1;`

	return scanCheckpoint(DB.QueryRow(query, pairID, int64(ts)), pairID)
}

func scanCheckpoint(row *sql.Row, pairID string) (*OracleCheckpoint, error) {
	var (
		c                      OracleCheckpoint
		cumA, cumB, resA, resB string
		pairTimestamp          int64
	)
	err := row.Scan(
		&c.CheckpointID, &c.CycleNumber, &c.PairID,
		&cumA, &cumB,
		&resA, &resB, &pairTimestamp, &c.RecordedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug().Str("pair", pairID).Msg("No oracle checkpoint found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan oracle checkpoint for pair '%s': %w", pairID, err)
	}
	c.PairTimestamp = uint64(pairTimestamp)
	if err := decodeCheckpointNumerics(&c, cumA, cumB, resA, resB); err != nil {
		return nil, fmt.Errorf("failed to decode oracle checkpoint for pair '%s': %w", pairID, err)
	}
	return &c, nil
}

func decodeCheckpointNumerics(c *OracleCheckpoint, cumA, cumB, resA, resB string) error {
	var err error
	if c.PriceACumulative, err = numericToInt("price_a_cumulative", cumA); err != nil {
		return err
	}
	if c.PriceBCumulative, err = numericToInt("price_b_cumulative", cumB); err != nil {
		return err
	}
	if c.ReserveA, err = numericToInt("reserve_a", resA); err != nil {
		return err
	}
	if c.ReserveB, err = numericToInt("reserve_b", resB); err != nil {
		return err
	}
	return nil
}

// RecentCheckpoints returns the newest checkpoints for a pair, newest first.
func RecentCheckpoints(pairID string, limit int) ([]OracleCheckpoint, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
        SELECT` + checkpointColumns + `
        FROM oracle_checkpoints
        WHERE pair_id = $1
        ORDER BY pair_timestamp DESC, checkpoint_id DESC
        LIMIT $2;`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []OracleCheckpoint
	for rows.Next() {
		var (
			c                      OracleCheckpoint
			cumA, cumB, resA, resB string
			pairTimestamp          int64
		)
		if err := rows.Scan(
			&c.CheckpointID, &c.CycleNumber, &c.PairID,
			&cumA, &cumB,
			&resA, &resB, &pairTimestamp, &c.RecordedAt,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan oracle checkpoint row")
			continue
		}
		c.PairTimestamp = uint64(pairTimestamp)
		if err := decodeCheckpointNumerics(&c, cumA, cumB, resA, resB); err != nil {
			log.Error().Err(err).Msg("Failed to decode oracle checkpoint numerics")
			continue
		}
		checkpoints = append(checkpoints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during checkpoint iteration: %w", err)
	}

	log.Debug().Int("count", len(checkpoints)).Str("pair", pairID).Msg("Retrieved recent checkpoints")
	return checkpoints, nil
}

// ensureCheckpointCounterTable creates the checkpoint_counter table if it
// doesn't exist
func ensureCheckpointCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS checkpoint_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO checkpoint_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint_counter table: %w", err)
	}

	log.Debug().Msg("Ensured checkpoint_counter table exists")
	return nil
}

// GetCurrentCycleNumber retrieves the current checkpoint cycle number from
// the database
func GetCurrentCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	// Ensure the table exists
	if err := ensureCheckpointCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_cycle FROM checkpoint_counter WHERE id = 1;`

	var currentCycle int
	row := DB.QueryRow(query)
	err := row.Scan(&currentCycle)

	if err != nil {
		if err == sql.ErrNoRows {
			// This should not happen due to the INSERT in ensureCheckpointCounterTable
			log.Warn().Msg("No checkpoint counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}

	log.Debug().Int("currentCycle", currentCycle).Msg("Retrieved current cycle number")
	return currentCycle, nil
}

// IncrementCycleNumber increments the checkpoint cycle counter and returns
// the new value
func IncrementCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	// Ensure the table exists
	if err := ensureCheckpointCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE checkpoint_counter
		SET current_cycle = current_cycle + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle;`

	var newCycle int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newCycle)

	if err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}

	log.Debug().Int("newCycle", newCycle).Msg("Incremented checkpoint cycle counter")
	return newCycle, nil
}
