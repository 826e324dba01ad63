// Package tradedate resolves the trade date a run queries and converts it into
// the period formats the upstream providers expect.
package tradedate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the 8-digit Gregorian trade date layout.
const Layout = "20060102"

// rocOffset converts between Gregorian and Republic of China era years.
const rocOffset = 1911

// Taipei is the exchange time zone (UTC+8, no DST).
var Taipei = time.FixedZone("Asia/Taipei", 8*60*60)

// Resolve returns the trade date for now in exchange time. Weekends fall back
// to the preceding Friday. Holidays are not known.
func Resolve(now time.Time) string {
	t := now.In(Taipei)
	switch t.Weekday() {
	case time.Sunday:
		t = t.AddDate(0, 0, -2)
	case time.Saturday:
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(Layout)
}

// Validate checks that date is a real calendar day in YYYYMMDD form.
func Validate(date string) error {
	if len(date) != len(Layout) {
		return fmt.Errorf("trade date %q: want YYYYMMDD", date)
	}
	if _, err := time.ParseInLocation(Layout, date, Taipei); err != nil {
		return fmt.Errorf("trade date %q: %w", date, err)
	}
	return nil
}

// ROCYearMonth converts YYYYMMDD into the "yyy/MM" period used by TPEx.
func ROCYearMonth(date string) (string, error) {
	if err := Validate(date); err != nil {
		return "", err
	}
	year, _ := strconv.Atoi(date[:4])
	return fmt.Sprintf("%d/%s", year-rocOffset, date[4:6]), nil
}

// SameDay reports whether an upstream row date refers to the trade date.
// Upstream dates are either YYYYMMDD or the ROC form "yyy/MM/dd".
func SameDay(upstream, tradeDate string) bool {
	upstream = strings.TrimSpace(upstream)
	if upstream == tradeDate {
		return true
	}
	parts := strings.Split(upstream, "/")
	if len(parts) != 3 {
		return false
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	return fmt.Sprintf("%04d%02d%02d", y+rocOffset, m, d) == tradeDate
}
