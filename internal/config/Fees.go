package config

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/paircore/internal/types"
)

// Fee policy configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// FeeBps is the static swap fee in basis points.
	FeeBps uint32
	// DynamicFeeEnabled switches the volatility-scaled fee on.
	DynamicFeeEnabled bool
	// FeeMinBps is the dynamic band floor.
	FeeMinBps uint32
	// FeeMaxBps is the dynamic band ceiling.
	FeeMaxBps uint32
	// FeeRampUp scales how hard volatility widens the fee.
	FeeRampUp uint32
	// FeeEmaAlpha is the volatility EMA smoothing factor in FeeScale units.
	FeeEmaAlpha int64
	// FeeDecayWindowSeconds is the window over which volatility fully decays.
	FeeDecayWindowSeconds uint64
	// FeeDecayThresholdSeconds is the idle time before decay kicks in.
	FeeDecayThresholdSeconds uint64
	// FlashFeeFloorBps is the minimum rate charged on flash loans.
	FlashFeeFloorBps uint32
)

// loadFeeConfig loads fee policy configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadFeeConfig() error {
	log.Info().Msg("Loading fee policy configuration from environment variables...")

	var err error

	FeeBps, err = getEnvAsUint32("FEE_BPS")
	if err != nil {
		return err
	}

	DynamicFeeEnabled, err = getEnvAsBool("DYNAMIC_FEE_ENABLED")
	if err != nil {
		return err
	}

	FeeMinBps, err = getEnvAsUint32("FEE_MIN_BPS")
	if err != nil {
		return err
	}

	FeeMaxBps, err = getEnvAsUint32("FEE_MAX_BPS")
	if err != nil {
		return err
	}

	FeeRampUp, err = getEnvAsUint32("FEE_RAMP_UP")
	if err != nil {
		return err
	}

	FeeEmaAlpha, err = getEnvAsInt64("FEE_EMA_ALPHA")
	if err != nil {
		return err
	}

	FeeDecayWindowSeconds, err = getEnvAsUint64("FEE_DECAY_WINDOW_SECONDS")
	if err != nil {
		return err
	}

	FeeDecayThresholdSeconds, err = getEnvAsUint64("FEE_DECAY_THRESHOLD_SECONDS")
	if err != nil {
		return err
	}

	FlashFeeFloorBps, err = getEnvAsUint32("FLASH_FEE_FLOOR_BPS")
	if err != nil {
		return err
	}

	if FeeBps >= 10_000 {
		return errors.New("FEE_BPS must be below 10000")
	}
	if FeeMinBps > FeeMaxBps {
		return errors.New("FEE_MIN_BPS must not exceed FEE_MAX_BPS")
	}

	log.Debug().
		Uint32("FeeBps", FeeBps).
		Bool("DynamicFeeEnabled", DynamicFeeEnabled).
		Uint32("FeeMinBps", FeeMinBps).
		Uint32("FeeMaxBps", FeeMaxBps).
		Msg("Fee policy configuration loaded successfully.")

	return nil
}

// FeeParameters assembles the fee policy from the loaded configuration.
func FeeParameters() types.FeeParameters {
	return types.FeeParameters{
		DynamicEnabled:        DynamicFeeEnabled,
		BaselineFeeBps:        FeeBps,
		MinFeeBps:             FeeMinBps,
		MaxFeeBps:             FeeMaxBps,
		RampUpMultiplier:      FeeRampUp,
		EmaAlpha:              FeeEmaAlpha,
		DecayWindowSeconds:    FeeDecayWindowSeconds,
		DecayThresholdSeconds: FeeDecayThresholdSeconds,
		FlashFeeFloorBps:      FlashFeeFloorBps,
	}
}
