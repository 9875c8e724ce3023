package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Period identifies one monthly booking period as a 6-character "yyyyMM" key.
// Period keys sort lexicographically in chronological order, which the
// repositories rely on when selecting the latest registered period.
type Period string

// ParsePeriod validates and converts a raw "yyyyMM" string into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// PeriodOf returns the period key of the calendar month containing t.
// Close-hour adjustments are the calendar's concern, not the key's.
func PeriodOf(t time.Time) Period {
	return Period(t.Format("200601"))
}

// Validate ensures the period is a well-formed "yyyyMM" key with a real month.
func (p Period) Validate() error {
	if len(p) != 6 {
		return fmt.Errorf("booking period %q: key must be 6 characters (yyyyMM)", p)
	}
	year, err := strconv.Atoi(string(p[:4]))
	if err != nil || year < 1900 {
		return fmt.Errorf("booking period %q: invalid year", p)
	}
	month, err := strconv.Atoi(string(p[4:]))
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("booking period %q: invalid month", p)
	}
	return nil
}

// Year returns the calendar year of the period.
func (p Period) Year() int {
	y, _ := strconv.Atoi(string(p[:4]))
	return y
}

// Month returns the calendar month of the period.
func (p Period) Month() time.Month {
	m, _ := strconv.Atoi(string(p[4:]))
	return time.Month(m)
}

// Next returns the period key of the following month.
func (p Period) Next() Period {
	y, m := p.Year(), p.Month()
	if m == time.December {
		return Period(fmt.Sprintf("%04d01", y+1))
	}
	return Period(fmt.Sprintf("%04d%02d", y, int(m)+1))
}

// Previous returns the period key of the preceding month.
func (p Period) Previous() Period {
	y, m := p.Year(), p.Month()
	if m == time.January {
		return Period(fmt.Sprintf("%04d12", y-1))
	}
	return Period(fmt.Sprintf("%04d%02d", y, int(m)-1))
}

// Before reports whether p is chronologically earlier than q.
func (p Period) Before(q Period) bool {
	return string(p) < string(q)
}

// After reports whether p is chronologically later than q.
func (p Period) After(q Period) bool {
	return string(p) > string(q)
}

func (p Period) String() string {
	return string(p)
}
