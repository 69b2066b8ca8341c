/*

Background loop that archives each pair's oracle accumulators on a fixed
interval. The archived checkpoints are what let a TWAP window reach back
past process restarts: the web layer diffs a live reading against the
newest checkpoint at or before the window start.

*/

package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/paircore/internal/logger"
	"github.com/meridian-dex/paircore/internal/pair"
	"github.com/meridian-dex/paircore/internal/state"
)

// Service periodically persists oracle checkpoints for a set of pairs.
type Service struct {
	logger zerolog.Logger
	pairs  []*pair.Pair

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new checkpoint Service.
type Config struct {
	Pairs []*pair.Pair
}

// New creates a checkpoint Service with dependency injection.
func New(cfg Config) (*Service, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("checkpoint configuration validation failed: %w", err)
	}

	svc := &Service{
		logger:     logger.GetForComponent("checkpoint"),
		pairs:      cfg.Pairs,
		cycleCount: 0,
	}

	persistedCycle := 0
	if current, err := state.GetCurrentCycleNumber(); err == nil {
		persistedCycle = current
	} else {
		svc.logger.Warn().Err(err).Msg("Could not read persisted cycle counter")
	}

	svc.logger.Info().
		Int("pairs", len(svc.pairs)).
		Int("persisted_cycle", persistedCycle).
		Msg("Checkpoint service created successfully")

	return svc, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	for _, p := range cfg.Pairs {
		if p == nil {
			return fmt.Errorf("pair cannot be nil")
		}
	}
	return nil
}

// RunLoop starts the checkpoint loop with the specified interval.
func (s *Service) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().
		Dur("interval", interval).
		Msg("Starting checkpoint loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	s.cycleCount++
	s.logger.Info().Int("cycle", s.cycleCount).Msg("Initiating checkpoint cycle")
	s.RunCycle()
	s.logger.Info().Int("cycle", s.cycleCount).Msg("Checkpoint cycle completed")

	// Continue with ticker
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Checkpoint loop stopped due to context cancellation")
			return
		case <-ticker.C:
			s.cycleCount++
			s.logger.Info().Int("cycle", s.cycleCount).Msg("Initiating checkpoint cycle")
			s.RunCycle()
			s.logger.Info().Int("cycle", s.cycleCount).Msg("Checkpoint cycle completed")
		}
	}
}

// RunCycle archives one checkpoint per seeded pair. Persistence failures are
// logged and skipped; the next cycle covers the gap.
func (s *Service) RunCycle() {
	// Unique cycle ID for tracing logs across the cycle
	cycleID := uuid.New().String()
	cycleLogger := s.logger.With().Str("cycle_id", cycleID).Logger()

	cycleNumber := s.getCycleNumber(cycleLogger)
	now := uint64(time.Now().Unix())

	for _, p := range s.pairs {
		reserveA, reserveB, _ := p.GetReserves()
		if !reserveA.IsPositive() || !reserveB.IsPositive() {
			cycleLogger.Debug().Str("pair", string(p.ID())).Msg("Skipping checkpoint for unseeded pair")
			continue
		}

		snap := p.ObservationAt(now)
		checkpointID, err := state.SaveOracleCheckpoint(string(p.ID()), cycleNumber, snap, reserveA, reserveB)
		if err != nil {
			cycleLogger.Error().Err(err).Str("pair", string(p.ID())).Msg("Failed to save oracle checkpoint")
			continue
		}

		cycleLogger.Info().
			Str("pair", string(p.ID())).
			Int64("checkpoint_id", checkpointID).
			Int("cycle_number", cycleNumber).
			Uint64("pair_timestamp", snap.Timestamp).
			Msg("Oracle checkpoint archived")
	}
}

// getCycleNumber retrieves the next persistent cycle number from the database
func (s *Service) getCycleNumber(cycleLogger zerolog.Logger) int {
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		// Fallback to a simple counter if database fails
		return int(time.Now().Unix() % 1000000) // Use timestamp as fallback
	}
	return cycleNumber
}
