package core

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in zero-padded ISO form (YYYY-MM-DD). String order
// equals chronological order, which the ledger relies on.
type Date string

// NewDate creates a Date from year, month, day
func NewDate(year, month, day int) Date {
	return DateOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate parses and normalizes an ISO day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsEmpty() {
		return fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if _, err := time.Parse(dateLayout, string(d)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, string(d))
	}
	return nil
}

// IsEmpty reports whether no day is set (optional dates).
func (d Date) IsEmpty() bool {
	return d == ""
}

// Time returns midnight UTC of the day, or the zero time if d is malformed.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Year returns the year
func (d Date) Year() int {
	return d.Time().Year()
}

// Month returns the month (1-12)
func (d Date) Month() int {
	return int(d.Time().Month())
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time().Day()
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d < o
}

// SameMonth reports month+year equality.
func (d Date) SameMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

func (d Date) String() string {
	return string(d)
}
