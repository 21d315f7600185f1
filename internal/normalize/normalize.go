// Package normalize holds the canonical forms of CPF and CEP values.
//
// Every code path that stores or compares a CPF or CEP goes through this
// package so that "123.456.789-01" and "12345678901" are the same credential.
package normalize

import (
	"strings"
	"time"
	"unicode"
)

const (
	CPFLength     = 11
	ZipCodeLength = 8

	// DateLayout is the layout used for birth dates and event dates.
	DateLayout = "2006-01-02"
)

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CPF returns the digits-only form of a CPF.
func CPF(s string) string {
	return Digits(s)
}

// ValidCPF reports whether s has exactly 11 digits once formatting is removed.
// Only the characters used by the usual mask (dots, dashes, spaces) are tolerated.
func ValidCPF(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == ' ' {
			continue
		}
		return false
	}
	return len(Digits(s)) == CPFLength
}

// ZipCode returns the digits-only form of a CEP.
func ZipCode(s string) string {
	return Digits(s)
}

// ValidZipCode reports whether s is an 8 digit CEP once formatting is removed.
func ValidZipCode(s string) bool {
	return len(Digits(s)) == ZipCodeLength
}

// ZipPrefix returns the first five digits of a CEP, or "" if it is too short.
func ZipPrefix(s string) string {
	d := Digits(s)
	if len(d) < 5 {
		return ""
	}
	return d[:5]
}

// Date trims s and checks it against DateLayout.
func Date(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", false
	}
	return s, true
}

// State upper-cases a two letter state code.
func State(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
