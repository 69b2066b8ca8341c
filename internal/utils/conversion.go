/*
This file contains common utility functions for converting between the
fixed-point representations the engine uses internally and the display
formats reported over the API.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// q64One is 2^64, the UQ64.64 fixed-point scale used for prices.
var q64One = sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64))

// PriceQ64ToFloat64 converts a UQ64.64 fixed-point price to float64 for
// display. The result is approximate; exact comparisons must stay on the
// fixed-point form.
func PriceQ64ToFloat64(price sdkmath.Int) (float64, error) {
	if price.IsNil() {
		return 0, ErrAmountNil
	}
	if price.IsNegative() {
		return 0, ErrAmountNegative
	}

	decPrice := sdkmath.LegacyNewDecFromInt(price)
	decScale := sdkmath.LegacyNewDecFromInt(q64One)

	result := decPrice.Quo(decScale)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// BpsToPercent converts a basis-point rate into a percentage for display.
func BpsToPercent(bps uint32) float64 {
	return float64(bps) / 100.0
}
