// Package validate contains the field validators used by the dialog steps.
// Rejection is always a value: nothing in here panics or returns an error.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DisplayLayout is the date format users type and see.
	DisplayLayout = "02.01.2006"
	// ISOLayout is the canonical storage format.
	ISOLayout = "2006-01-02"

	// inputLayout accepts one or two digit day and month.
	inputLayout = "2.1.2006"

	// DefaultMaxWeight is the upper weight bound in tons when none is configured.
	DefaultMaxWeight = 1000
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{11}$`)

// ParseDate converts a DD.MM.YYYY date into YYYY-MM-DD.
// Impossible calendar dates such as 31.02.2023 are rejected.
func ParseDate(text string) (string, bool) {
	t, err := time.Parse(inputLayout, strings.TrimSpace(text))
	if err != nil {
		return "", false
	}
	return t.Format(ISOLayout), true
}

// FormatDate converts YYYY-MM-DD (optionally followed by a time part) into
// DD.MM.YYYY. Anything it cannot parse is returned unchanged.
func FormatDate(iso string) string {
	datePart, _, _ := strings.Cut(iso, "T")
	t, err := time.Parse(ISOLayout, datePart)
	if err != nil {
		return iso
	}
	return t.Format(DisplayLayout)
}

// Weight validates a weight in whole tons, 1 <= w <= max.
// A non-positive max falls back to DefaultMaxWeight.
func Weight(text string, max int) (bool, int) {
	if max <= 0 {
		max = DefaultMaxWeight
	}
	w, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || w < 1 || w > max {
		return false, 0
	}
	return true, w
}

// Phone reports whether text is an optional '+' followed by exactly 11 digits.
func Phone(text string) bool {
	return phoneRe.MatchString(text)
}

// NormalizePhone strips the formatting characters Telegram clients may put
// into a shared contact ("+7 (999) 123-45-67").
func NormalizePhone(text string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(text) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
