package goContacts

import (
	"bytes"
	"fmt"
	"time"
)

// DateLayout is the wire format of [Date].
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day, encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate returns the date of (year, month, day) at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s in [DateLayout].
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*d = Date{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("date must be a %q string", DateLayout)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("date must be a %q string", DateLayout)
	}
	*d = parsed
	return nil
}

// nextOccurrence returns the first anniversary of d on or after today.
// Feb 29 falls on Mar 1 in non-leap years.
func (d Date) nextOccurrence(today Date) Date {
	next := NewDate(today.Year(), d.Month(), d.Day())
	if next.Before(today.Time) {
		next = NewDate(today.Year()+1, d.Month(), d.Day())
	}
	return next
}
