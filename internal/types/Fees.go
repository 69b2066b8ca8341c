/*

Tunable fee policy parameters. A version history of these lives in the
archive's fee_parameters table (one active row), mirroring how operators
roll fee changes out and back.

*/

package types

// FeeScale is the fixed-point denominator for the volatility accumulator and
// the EMA alpha (1.0 == FeeScale).
const FeeScale int64 = 100_000_000_000_000 // 1e14

// FeeParameters holds every tunable of the fee policy. With DynamicEnabled
// false only BaselineFeeBps and FlashFeeFloorBps matter.
type FeeParameters struct {
	DynamicEnabled        bool   `json:"dynamic_enabled"`         // volatility-scaled fee on/off
	BaselineFeeBps        uint32 `json:"baseline_fee_bps"`        // static rate, also the pair's configured FeeRateBps
	MinFeeBps             uint32 `json:"min_fee_bps"`             // dynamic band floor
	MaxFeeBps             uint32 `json:"max_fee_bps"`             // dynamic band ceiling
	RampUpMultiplier      uint32 `json:"ramp_up_multiplier"`      // how aggressively volatility widens the fee
	EmaAlpha              int64  `json:"ema_alpha"`               // EMA smoothing factor in FeeScale units
	DecayWindowSeconds    uint64 `json:"decay_window_seconds"`    // volatility fully decays over this window
	DecayThresholdSeconds uint64 `json:"decay_threshold_seconds"` // idle time before decay kicks in
	FlashFeeFloorBps      uint32 `json:"flash_fee_floor_bps"`     // minimum rate charged on flash loans
}

// DefaultFeeParameters are the launch defaults: a 30 bps static fee with the
// dynamic band pre-configured but disabled.
func DefaultFeeParameters() FeeParameters {
	return FeeParameters{
		DynamicEnabled:        false,
		BaselineFeeBps:        30,
		MinFeeBps:             5,
		MaxFeeBps:             100,
		RampUpMultiplier:      2,
		EmaAlpha:              FeeScale / 10, // 0.1
		DecayWindowSeconds:    86_400,
		DecayThresholdSeconds: 500,
		FlashFeeFloorBps:      5,
	}
}
