// Package calendar provides the concrete booking-period calendar: monthly
// periods keyed "yyyyMM", with a configurable close hour in a configurable
// reporting timezone.
package calendar

import (
	"fmt"
	"time"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// Calendar implements domain.BookingPeriodCalendar.
// A booking period runs from the close hour on the first day of its month to
// the close hour on the first day of the next month, in the reporting
// timezone. The daily-NAV cutoff is the close hour of the given date.
type Calendar struct {
	closeHour int
	location  *time.Location
}

// New creates a calendar with the given close hour (0-23) in the named
// timezone, e.g. New(17, "Europe/Amsterdam").
func New(closeHour int, timezone string) (*Calendar, error) {
	if closeHour < 0 || closeHour > 23 {
		return nil, fmt.Errorf("close hour %d out of range", closeHour)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load reporting timezone %q: %w", timezone, err)
	}
	return &Calendar{closeHour: closeHour, location: loc}, nil
}

// MustNew is New for wiring code with a known-good configuration.
func MustNew(closeHour int, timezone string) *Calendar {
	c, err := New(closeHour, timezone)
	if err != nil {
		panic(err)
	}
	return c
}

// CalcBookingPeriod returns the booking period the instant falls in.
// Instants before the close hour on the first day of a month still belong to
// the previous period.
func (c *Calendar) CalcBookingPeriod(at time.Time) domain.Period {
	local := at.In(c.location)
	period := domain.PeriodOf(local)
	if local.Before(c.PeriodStart(period)) {
		return period.Previous()
	}
	return period
}

// PeriodStart returns the first instant of the period.
func (c *Calendar) PeriodStart(period domain.Period) time.Time {
	return time.Date(period.Year(), period.Month(), 1, c.closeHour, 0, 0, 0, c.location)
}

// PeriodEnd returns the first instant after the period.
func (c *Calendar) PeriodEnd(period domain.Period) time.Time {
	return c.PeriodStart(period.Next())
}

// NextPeriod returns the key of the following period.
func (c *Calendar) NextPeriod(period domain.Period) domain.Period {
	return period.Next()
}

// PreviousPeriod returns the key of the preceding period.
func (c *Calendar) PreviousPeriod(period domain.Period) domain.Period {
	return period.Previous()
}

// BookAdministrationFee reports whether a fund booking its administration fee
// `frequency` times per year charges it in this period. A frequency of f
// books every 12/f months, on the periods whose month is a multiple of that
// step: quarterly funds (f=4) book in March, June, September and December.
func (c *Calendar) BookAdministrationFee(frequency int, period domain.Period) bool {
	if frequency <= 0 || 12%frequency != 0 {
		return false
	}
	step := 12 / frequency
	return int(period.Month())%step == 0
}

// DailyNavEnd returns the daily-NAV cutoff instant of the given date.
func (c *Calendar) DailyNavEnd(date time.Time) time.Time {
	local := date.In(c.location)
	return time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, 0, 0, 0, c.location)
}
