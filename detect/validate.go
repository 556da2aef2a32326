package detect

import (
	"math/big"
	"strings"
)

// abnWeights are the weighting factors for the Australian Business Number
// checksum, applied after subtracting 1 from the first digit.
var abnWeights = [11]int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}

// ValidABN reports whether the digits in text form a valid Australian
// Business Number (weighted sum divisible by 89). Non-digit characters
// are ignored, so spaced and grouped forms validate as written.
func ValidABN(text string) bool {
	var digits []int
	for _, c := range text {
		if c >= '0' && c <= '9' {
			digits = append(digits, int(c-'0'))
		}
	}
	if len(digits) != 11 {
		return false
	}

	digits[0]--
	total := 0
	for i, d := range digits {
		total += d * abnWeights[i]
	}
	return total%89 == 0
}

// LuhnValid reports whether a digit string passes the Luhn checksum.
// The input must be digits only; use stripNonDigits first.
func LuhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidIBANChecksum reports whether an IBAN (no spaces) passes the ISO
// 13616 mod-97 check: move the first four characters to the end, convert
// letters to numbers (A=10..Z=35), and the resulting integer mod 97 must
// equal 1.
func ValidIBANChecksum(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	var sb strings.Builder
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			sb.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			sb.WriteString(big.NewInt(int64(c-'A') + 10).String())
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// stripNonDigits removes every non-digit byte from s.
func stripNonDigits(s string) string {
	var sb strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
