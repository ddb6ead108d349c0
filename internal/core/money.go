// Package core provides the engine's domain types and money handling.
//
// Monetary values are float64 and intentionally kept unrounded while
// accumulating; Round2 is applied once at output boundaries so rounding
// error never compounds.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a decimal string to a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs are rejected: entry amounts are magnitudes, direction comes from
// the entry type. Returns ErrInvalidAmount for anything unparsable or
// negative.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return 0, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
