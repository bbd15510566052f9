package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// Accepted year range for recognized dates. Anything outside is treated as
// a misread and dropped.
const (
	minYear = 1990
	maxYear = 2100
)

// rocEpochOffset converts a Republic of China calendar year to Gregorian.
const rocEpochOffset = 1911

// A year component below this is assumed to be an ROC year.
const rocYearCeiling = 200

var (
	reISODate   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reROCPhrase = regexp.MustCompile(`^(?:民國|中華民國)\s*(\d{1,3})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?$`)
	reCJKDate   = regexp.MustCompile(`^(\d{2,4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?$`)
	reDelimDate = regexp.MustCompile(`^(\d{2,4})[/.\-](\d{1,2})[/.\-](\d{1,2})$`)
)

// NormalizeDate converts a date string in any of the supported shapes to an
// ISO YYYY-MM-DD string in the Gregorian calendar. Supported shapes:
//
//   - already ISO: 2025-11-21
//   - explicit ROC phrasing: 民國114年11月21日
//   - bare CJK date: 114年11月21日 (years below 200 are ROC)
//   - delimited numeric: 114/11/21, 2025-11-21, 114.11.21
//
// Full-width digits are folded before matching. Returns ok=false for
// unmatched shapes or out-of-range components; never an error.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return "", false
	}

	if m := reISODate.FindStringSubmatch(s); m != nil {
		return formatDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reROCPhrase.FindStringSubmatch(s); m != nil {
		return formatDate(atoi(m[1])+rocEpochOffset, atoi(m[2]), atoi(m[3]))
	}
	if m := reCJKDate.FindStringSubmatch(s); m != nil {
		return formatDate(gregorianYear(atoi(m[1])), atoi(m[2]), atoi(m[3]))
	}
	if m := reDelimDate.FindStringSubmatch(s); m != nil {
		return formatDate(gregorianYear(atoi(m[1])), atoi(m[2]), atoi(m[3]))
	}
	return "", false
}

func gregorianYear(y int) int {
	if y < rocYearCeiling {
		return y + rocEpochOffset
	}
	return y
}

// formatDate validates components and renders the ISO form. Invalid
// month/day combinations (month 13, April 31) and out-of-range years yield
// ok=false.
func formatDate(year, month, day int) (string, bool) {
	if year < minYear || year > maxYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
