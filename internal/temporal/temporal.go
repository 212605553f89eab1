// Package temporal turns loosely formatted date/time input into absolute
// UTC instants.
//
// The accepted grammar is deliberately permissive: a full "date-time" pair
// split on a single '-', or just a date, or just a time. Missing pieces are
// filled from the caller's "now" rendered in the configured UTC offset.
package temporal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformed reports input that cannot be decomposed into a valid date
// and/or time.
var ErrMalformed = errors.New("malformed date/time")

// DisplayLayout is the canonical wall-clock rendering of an instant.
const DisplayLayout = "02/01/2006-15:04:05"

// Parse converts raw user input into a UTC instant.
//
// The wall-clock time is interpreted in the given UTC offset; a nil offset
// means the input is already UTC. Rules:
//
//   - "date-time": both parts explicit, no adjustment.
//   - date only (contains '/'): time-of-day filled from now.
//   - time only: date filled from today; if the result is at or before now,
//     it rolls forward one calendar day ("remind me at 9am" after 9am means
//     tomorrow). An explicit date disables rolling.
//
// Two-digit years get the current year's century prefix. This can resolve
// into the past; callers wanting a future guarantee must check separately.
func Parse(raw string, now time.Time, offset *time.Duration) (time.Time, error) {
	loc := location(offset)
	localNow := now.In(loc)

	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 {
		dateStr, err := cleanDate(parts[0], localNow.Year())
		if err != nil {
			return time.Time{}, err
		}
		timeStr, err := cleanTime(parts[1])
		if err != nil {
			return time.Time{}, err
		}
		return combine(dateStr, timeStr, loc)
	}

	if strings.Contains(s, "/") {
		// Date only: keep the current local time-of-day.
		dateStr, err := cleanDate(s, localNow.Year())
		if err != nil {
			return time.Time{}, err
		}
		return combine(dateStr, localNow.Format("15:04:05"), loc)
	}

	// Time only: today's date, rolling to tomorrow when already passed.
	timeStr, err := cleanTime(s)
	if err != nil {
		return time.Time{}, err
	}
	t, err := combine(localNow.Format("02/01/2006"), timeStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(now) {
		t = t.In(loc).AddDate(0, 0, 1).UTC()
	}
	return t, nil
}

// Format renders a stored UTC instant in the configured offset using
// DisplayLayout.
func Format(t time.Time, offset *time.Duration) string {
	return t.In(location(offset)).Format(DisplayLayout)
}

func location(offset *time.Duration) *time.Location {
	if offset == nil {
		return time.UTC
	}
	return time.FixedZone("", int(offset.Seconds()))
}

// cleanDate normalizes "d/m/yy[yy]" into "dd/mm/yyyy".
//
// A year fragment of two digits or fewer is prefixed with the current
// year's first two digits, regardless of whether that lands in the past.
func cleanDate(s string, currentYear int) (string, error) {
	arr := strings.Split(strings.TrimSpace(s), "/")
	if len(arr) < 3 {
		return "", fmt.Errorf("%w: date needs day/month/year, got %q", ErrMalformed, s)
	}
	day, month, year := arr[0], arr[1], arr[2]
	if len(year) <= 2 {
		century := fmt.Sprintf("%04d", currentYear)[:2]
		year = century + year
	}
	return zfill(day, 2) + "/" + zfill(month, 2) + "/" + zfill(year, 4), nil
}

// cleanTime normalizes "H[:M[:S]]" into "HH:MM:SS".
func cleanTime(s string) (string, error) {
	arr := strings.Split(strings.TrimSpace(s), ":")
	if len(arr) > 3 || arr[0] == "" {
		return "", fmt.Errorf("%w: bad time %q", ErrMalformed, s)
	}
	for len(arr) < 3 {
		arr = append(arr, "00")
	}
	return zfill(arr[0], 2) + ":" + zfill(arr[1], 2) + ":" + zfill(arr[2], 2), nil
}

func combine(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DisplayLayout, dateStr+"-"+timeStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, dateStr+"-"+timeStr)
	}
	return t.UTC(), nil
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
