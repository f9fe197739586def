package model

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form. The empty Date means unset.
type Date string

func ParseDate(raw string) (Date, error) {
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(DateLayout, raw); err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return Date(raw), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", d, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
