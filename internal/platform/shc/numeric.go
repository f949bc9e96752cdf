package shc

import (
	"fmt"
	"strings"
)

// NumericPrefix starts every health card QR payload.
const NumericPrefix = "shc:/"

// numericOffset is added to each two-digit group to recover the JWS byte.
const numericOffset = 45

// IsNumeric reports whether s looks like health card QR text.
func IsNumeric(s string) bool {
	return len(s) >= len(NumericPrefix) && strings.EqualFold(s[:len(NumericPrefix)], NumericPrefix)
}

// DecodeNumeric turns "shc:/<digits>" into the compact JWS it encodes. Only
// single-chunk codes are accepted.
func DecodeNumeric(s string) (string, error) {
	if !IsNumeric(s) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformedNumeric, NumericPrefix)
	}
	digits := s[len(NumericPrefix):]
	if strings.Contains(digits, "/") {
		return "", ErrChunkedCredential
	}
	if digits == "" || len(digits)%2 != 0 {
		return "", fmt.Errorf("%w: odd number of digits", ErrMalformedNumeric)
	}

	var b strings.Builder
	b.Grow(len(digits) / 2)
	for i := 0; i < len(digits); i += 2 {
		hi, lo := digits[i], digits[i+1]
		if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
			return "", fmt.Errorf("%w: non-digit at offset %d", ErrMalformedNumeric, i)
		}
		n := int(hi-'0')*10 + int(lo-'0')
		if n > 'z'-numericOffset {
			return "", fmt.Errorf("%w: value %02d at offset %d out of range", ErrMalformedNumeric, n, i)
		}
		b.WriteByte(byte(n + numericOffset))
	}
	return b.String(), nil
}

// EncodeNumeric is the inverse of DecodeNumeric.
func EncodeNumeric(jws string) string {
	var b strings.Builder
	b.Grow(len(NumericPrefix) + 2*len(jws))
	b.WriteString(NumericPrefix)
	for i := 0; i < len(jws); i++ {
		fmt.Fprintf(&b, "%02d", int(jws[i])-numericOffset)
	}
	return b.String()
}
