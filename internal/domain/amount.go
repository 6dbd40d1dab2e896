package domain

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Decimals is the number of fractional digits of the distributed token.
const Decimals = 18

var unit = sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil))

// Tokens converts whole tokens to base units.
func Tokens(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(unit)
}

// ParseAmount parses a base-unit decimal string. Negative values are rejected.
func ParseAmount(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatTokens renders base units as a decimal token amount, trimming
// trailing zeros of the fractional part.
func FormatTokens(v sdkmath.Int) string {
	whole, frac := new(big.Int).QuoRem(v.BigInt(), unit.BigInt(), new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	s := fmt.Sprintf("%0*s", Decimals, new(big.Int).Abs(frac).String())
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return whole.String() + "." + s
}

// ParseTokens parses a decimal token amount such as "1250.5" into base units.
// At most Decimals fractional digits are accepted.
func ParseTokens(s string) (sdkmath.Int, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative token amount %q", s)
	}
	// LegacyDec carries exactly 18 fractional digits, the token's base unit.
	return sdkmath.NewIntFromBigInt(d.BigInt()), nil
}
