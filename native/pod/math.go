package pod

import "github.com/holiman/uint256"

const (
	// FeeDenominator expresses fee rates in parts per million.
	FeeDenominator uint64 = 1_000_000
	// PriceScale is the fixed-point scale of token prices (9 decimals).
	PriceScale uint64 = 1_000_000_000
)

// mulDiv returns floor(a*b/d) computed on a 256-bit intermediate. ok is false
// when the quotient does not fit in 64 bits.
func mulDiv(a, b, d uint64) (uint64, bool) {
	x := new(uint256.Int).SetUint64(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	if !x.IsUint64() {
		return 0, false
	}
	return x.Uint64(), true
}

// TradingFeeAmount returns floor(amount*rate/1_000_000). The result never
// exceeds amount because rate is below the denominator.
func TradingFeeAmount(rate uint16, amount uint64) uint64 {
	fee, _ := mulDiv(amount, uint64(rate), FeeDenominator)
	return fee
}

// ReceivableBaseAmount returns floor(quoteAmount*price/1e9), the base units
// bought for quoteAmount at price. ok is false when the result overflows.
func ReceivableBaseAmount(quoteAmount, price uint64) (amount uint64, ok bool) {
	return mulDiv(quoteAmount, price, PriceScale)
}
