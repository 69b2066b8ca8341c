/*

Fee policy for a pair. The static mode returns the governance-set baseline
rate. The dynamic mode tracks a size-weighted EMA of relative price moves
(fixed point, FeeScale = 1e14) and interpolates the fee inside a configured
[min, max] band:

	weight      = tradeSize * SCALE / totalReserve
	observation = |Δprice| * SCALE / priceBefore * weight / SCALE
	vol'        = (alpha*observation + (SCALE-alpha)*vol) / SCALE
	fee         = min + vol * rampUp * (max - min) / SCALE, clamped

An idle pool's accumulator decays linearly to zero over the decay window so
stale volatility cannot keep fees inflated. Everything is deterministic
given the stored state and a timestamp.

*/

package fees

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

var scale = sdkmath.NewInt(types.FeeScale)

// State is the mutable half of the fee policy: the volatility EMA and the
// time it was last touched.
type State struct {
	VolAccumulator sdkmath.Int `json:"vol_accumulator"` // FeeScale fixed point
	LastUpdate     uint64      `json:"last_update"`     // unix seconds
}

// Controller derives the effective fee rate for a pair. Safe for concurrent
// readers; the owning pair serializes writers.
type Controller struct {
	mu     sync.RWMutex
	params types.FeeParameters
	state  State
}

// New validates the parameter set and returns a controller with a zeroed
// accumulator.
func New(params types.FeeParameters) (*Controller, error) {
	if int64(params.BaselineFeeBps) >= safemath.BpsDenominator {
		return nil, types.ErrInsufficientInput.Wrapf("baseline fee %d bps out of range", params.BaselineFeeBps)
	}
	if int64(params.FlashFeeFloorBps) >= safemath.BpsDenominator {
		return nil, types.ErrInsufficientInput.Wrapf("flash fee floor %d bps out of range", params.FlashFeeFloorBps)
	}
	if params.DynamicEnabled {
		if params.MinFeeBps > params.MaxFeeBps {
			return nil, types.ErrInsufficientInput.Wrapf("fee band [%d, %d] inverted", params.MinFeeBps, params.MaxFeeBps)
		}
		if int64(params.MaxFeeBps) >= safemath.BpsDenominator {
			return nil, types.ErrInsufficientInput.Wrapf("max fee %d bps out of range", params.MaxFeeBps)
		}
		if params.RampUpMultiplier == 0 {
			return nil, types.ErrInsufficientInput.Wrap("ramp-up multiplier must be at least 1")
		}
		if params.EmaAlpha < 0 || params.EmaAlpha > types.FeeScale {
			return nil, types.ErrInsufficientInput.Wrapf("ema alpha %d outside [0, FeeScale]", params.EmaAlpha)
		}
		if params.DecayWindowSeconds == 0 {
			return nil, types.ErrInsufficientInput.Wrap("decay window must be positive")
		}
	}
	return &Controller{
		params: params,
		state: State{
			VolAccumulator: sdkmath.ZeroInt(),
		},
	}, nil
}

// Params returns the immutable parameter set.
func (c *Controller) Params() types.FeeParameters {
	return c.params
}

// State returns the raw stored EMA state (without view-time decay).
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentFeeBps returns the effective swap fee at now. In static mode this
// is the baseline; in dynamic mode the stored accumulator is decayed
// (read-only) when stale and interpolated into the fee band.
func (c *Controller) CurrentFeeBps(now uint64) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.params.DynamicEnabled {
		return c.params.BaselineFeeBps
	}
	return c.feeFromVol(c.decayedVolLocked(now))
}

// FlashFeeBps returns the rate charged on flash loans: the current swap fee
// raised to the configured floor.
func (c *Controller) FlashFeeBps(now uint64) uint32 {
	fee := c.CurrentFeeBps(now)
	if fee < c.params.FlashFeeFloorBps {
		return c.params.FlashFeeFloorBps
	}
	return fee
}

// ObserveTrade folds one committed swap into the volatility EMA. A no-op in
// static mode. tradeSize and totalReserve are measured on the input side.
func (c *Controller) ObserveTrade(priceBefore, priceAfter, tradeSize, totalReserve sdkmath.Int, now uint64) error {
	if !c.params.DynamicEnabled {
		return nil
	}
	if priceBefore.IsNil() || !priceBefore.IsPositive() {
		return types.ErrInsufficientInput.Wrap("pre-trade price must be positive")
	}
	if priceAfter.IsNil() || priceAfter.IsNegative() {
		return types.ErrInsufficientInput.Wrap("post-trade price must be non-negative")
	}
	if tradeSize.IsNil() || !tradeSize.IsPositive() || totalReserve.IsNil() || !totalReserve.IsPositive() {
		return types.ErrInsufficientInput.Wrap("trade size and reserve must be positive")
	}

	delta := priceAfter.Sub(priceBefore)
	if delta.IsNegative() {
		delta = delta.Neg()
	}
	relDelta, err := safemath.MulDiv(delta, scale, priceBefore)
	if err != nil {
		return err
	}
	weight, err := safemath.MulDiv(tradeSize, scale, totalReserve)
	if err != nil {
		return err
	}
	observation, err := safemath.MulDiv(relDelta, weight, scale)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Persist pending staleness decay before folding in the observation.
	if c.state.LastUpdate > 0 && now > c.state.LastUpdate+c.params.DecayThresholdSeconds {
		c.state.VolAccumulator = c.decayLocked(now)
	}

	alpha := sdkmath.NewInt(c.params.EmaAlpha)
	alphaTerm, err := safemath.Mul(alpha, observation)
	if err != nil {
		return err
	}
	prevTerm, err := safemath.Mul(scale.Sub(alpha), c.state.VolAccumulator)
	if err != nil {
		return err
	}
	sum, err := safemath.Add(alphaTerm, prevTerm)
	if err != nil {
		return err
	}
	next, err := safemath.Quo(sum, scale)
	if err != nil {
		return err
	}

	c.state.VolAccumulator = next
	c.state.LastUpdate = now
	return nil
}

// decayedVolLocked returns the accumulator as of now without mutating it.
// Callers hold at least the read lock.
func (c *Controller) decayedVolLocked(now uint64) sdkmath.Int {
	if c.state.LastUpdate == 0 || now <= c.state.LastUpdate+c.params.DecayThresholdSeconds {
		return c.state.VolAccumulator
	}
	return c.decayLocked(now)
}

// decayLocked computes the linearly decayed accumulator: zero once the full
// window has elapsed.
func (c *Controller) decayLocked(now uint64) sdkmath.Int {
	vol := c.state.VolAccumulator
	if vol.IsZero() || now <= c.state.LastUpdate {
		return vol
	}
	elapsed := now - c.state.LastUpdate
	window := c.params.DecayWindowSeconds
	if elapsed >= window {
		return sdkmath.ZeroInt()
	}
	remaining := sdkmath.NewIntFromUint64(window - elapsed)
	decayed, err := safemath.MulDiv(vol, remaining, sdkmath.NewIntFromUint64(window))
	if err != nil {
		return sdkmath.ZeroInt()
	}
	return decayed
}

// feeFromVol interpolates a fee inside [min, max]. Overflow clamps straight
// to the band ceiling.
func (c *Controller) feeFromVol(vol sdkmath.Int) uint32 {
	feeRange := sdkmath.NewInt(int64(c.params.MaxFeeBps) - int64(c.params.MinFeeBps))
	prod, err := safemath.Mul(vol, sdkmath.NewInt(int64(c.params.RampUpMultiplier)))
	if err != nil {
		return c.params.MaxFeeBps
	}
	adjustment, err := safemath.MulDiv(prod, feeRange, scale)
	if err != nil {
		return c.params.MaxFeeBps
	}
	if adjustment.GTE(feeRange) {
		return c.params.MaxFeeBps
	}
	return c.params.MinFeeBps + uint32(adjustment.Uint64())
}
