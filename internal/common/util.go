package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// MakeRandHexString generates size random bytes and returns them hex encoded,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeName trims surrounding whitespace from a user supplied name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NameKey is the comparison key for case-insensitive name uniqueness.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CheckName validates a required, bounded name field and returns it trimmed.
func CheckName(field, name string) (string, error) {
	n := NormalizeName(name)
	if n == "" {
		return "", Validation(field, "is required")
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", Validation(field, "must not exceed 255 characters")
	}
	return n, nil
}

// WipeByteArray zeroes b. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
