// Package core holds the ledger domain: accounts, transactions, summaries,
// the error taxonomy and the pure validators used by the storage and HTTP
// layers.
package core

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// maxExponent bounds scientific notation so a tiny input cannot expand into
// an enormous rational.
const maxExponent = 18

var decimalPattern = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?\d+))?$`)

// ParseAmountToCents converts a non-negative decimal string to integer cents.
//
// The value is scaled by 100 and rounded half-up, but only accepted when the
// scaled value was already integral, so "1.20" is 120 while "1.234" fails.
// All failures wrap ErrInvalidInput.
//
//	ParseAmountToCents("0.01")  -> 1
//	ParseAmountToCents("10.05") -> 1005
//	ParseAmountToCents("1.234") -> error
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: amount required", ErrInvalidInput)
	}

	m := decimalPattern.FindStringSubmatch(s)
	if m == nil || (m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("%w: amount invalid", ErrInvalidInput)
	}
	sign, intPart, fracPart, exp := m[1], m[2], m[3], m[4]
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		fracPart = "0"
	}
	canonical := sign + intPart + "." + fracPart
	if exp != "" {
		e, err := strconv.Atoi(exp)
		if err != nil || e > maxExponent || e < -maxExponent {
			return 0, fmt.Errorf("%w: amount invalid", ErrInvalidInput)
		}
		canonical += "e" + exp
	}

	value, ok := new(big.Rat).SetString(canonical)
	if !ok {
		return 0, fmt.Errorf("%w: amount invalid", ErrInvalidInput)
	}
	if value.Sign() < 0 {
		return 0, fmt.Errorf("%w: amount must be non-negative", ErrInvalidInput)
	}

	scaled := new(big.Rat).Mul(value, big.NewRat(100, 1))
	half := new(big.Rat).Add(scaled, big.NewRat(1, 2))
	// non-negative, so truncating division is floor
	rounded := new(big.Int).Quo(half.Num(), half.Denom())
	if new(big.Rat).SetInt(rounded).Cmp(scaled) != 0 {
		return 0, fmt.Errorf("%w: amount supports up to 2 decimals", ErrInvalidInput)
	}
	if !rounded.IsInt64() {
		return 0, fmt.Errorf("%w: amount too large", ErrInvalidInput)
	}
	return rounded.Int64(), nil
}

// FormatCents renders cents as a fixed two-decimal string, e.g. 1005 -> "10.05".
func FormatCents(cents int64) string {
	sign := ""
	u := uint64(cents)
	if cents < 0 {
		sign = "-"
		u = uint64(-(cents + 1)) + 1
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}
