package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the number of fractional digits in a pod price.
const PriceDecimals = 9

var maxUint64 = decimal.NewFromUint64(math.MaxUint64)

// parseUnits converts a human decimal amount into base units with the given
// number of fractional digits. Excess precision is rejected rather than
// rounded.
func parseUnits(raw string, decimals uint8) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("amount required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("amount %q must not be negative", raw)
	}
	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d fractional digits", raw, decimals)
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %q overflows", raw)
	}
	return scaled.BigInt().Uint64(), nil
}

// formatUnits renders base units as a decimal string.
func formatUnits(units uint64, decimals uint8) string {
	return decimal.NewFromUint64(units).Shift(-int32(decimals)).String()
}

func parsePrice(raw string) (uint64, error) { return parseUnits(raw, PriceDecimals) }

func formatPrice(price uint64) string { return formatUnits(price, PriceDecimals) }
