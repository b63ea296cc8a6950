// Package ledger validates transaction fields independently of who submits
// them. Amounts are fixed-point decimals, never floats.
package ledger

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of transaction dates.
const DateLayout = "2006-01-02"

// MaxCategoryLength bounds the optional category string.
const MaxCategoryLength = 255

var (
	// MaxAmount is the largest accepted transaction amount.
	MaxAmount = decimal.RequireFromString("999999.99")
	minAmount = decimal.RequireFromString("0.01")
)

// ParseAmount parses a positive amount with at most two fractional digits,
// bounded by MaxAmount. The result is rounded to exactly two places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, common.Validation("amount", "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, common.Validation("amount", "must be a number")
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Decimal{}, common.Validation("amount", "must have at most 2 decimal places")
	}
	if d.LessThan(minAmount) {
		return decimal.Decimal{}, common.Validation("amount", "must be at least 0.01")
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, common.Validation("amount", "must not exceed 999999.99")
	}
	return d.Round(2), nil
}

// ParseDate parses a YYYY-MM-DD date that is not after today. "Today" is
// taken from now in now's location.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, common.Validation("date", "is required")
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, common.Validation("date", "must be a valid date (YYYY-MM-DD)")
	}
	today := Day(now)
	if d.After(today) {
		return time.Time{}, common.Validation("date", "must not be in the future")
	}
	return d, nil
}

// Day truncates t to its calendar date, expressed in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckCategory trims and bounds the optional category.
func CheckCategory(raw string) (string, error) {
	c := strings.TrimSpace(raw)
	if utf8.RuneCountInString(c) > MaxCategoryLength {
		return "", common.Validation("category", "must not exceed 255 characters")
	}
	return c, nil
}

// SameEntry reports whether two transactions collide on the duplicate guard
// key (sender, date, amount).
func SameEntry(senderA string, dateA time.Time, amountA decimal.Decimal, senderB string, dateB time.Time, amountB decimal.Decimal) bool {
	return senderA == senderB && Day(dateA).Equal(Day(dateB)) && amountA.Equal(amountB)
}
