package domain

import (
	"context"
	"time"
)

// BookingPeriodCalendar maps wall-clock time to booking-period keys and
// instants, given the fund administration's close hour and reporting
// timezone. Consumed by the ledger and the nav calculator; one concrete
// implementation lives in the calendar adapter.
type BookingPeriodCalendar interface {
	// CalcBookingPeriod returns the booking period the instant falls in.
	CalcBookingPeriod(at time.Time) Period

	// PeriodStart returns the first instant of the period.
	PeriodStart(period Period) time.Time

	// PeriodEnd returns the first instant after the period, i.e. the start
	// of the next one. Movements are attributed half-open: [start, end).
	PeriodEnd(period Period) time.Time

	// NextPeriod returns the key of the following period.
	NextPeriod(period Period) Period

	// PreviousPeriod returns the key of the preceding period.
	PreviousPeriod(period Period) Period

	// BookAdministrationFee reports whether a fund with the given yearly
	// booking frequency charges its administration fee in this period.
	BookAdministrationFee(frequency int, period Period) bool

	// DailyNavEnd returns the daily-NAV cutoff instant of the given date.
	DailyNavEnd(date time.Time) time.Time
}

// PriceOracle resolves, for an asset and an as-of instant, the most recent
// listing or FX rate at or before that instant. Lookups may be I/O bound and
// honor cancellation. A missing listing fails with ErrPriceUnavailable; the
// oracle never substitutes a stale or zero price.
type PriceOracle interface {
	// GetPriceAsOf resolves the USD and BTC price of one unit of the asset.
	GetPriceAsOf(ctx context.Context, asset AssetRef, at time.Time) (*AssetPrice, error)

	// GetCurrencyRateAsOf resolves the USD rate of a fiat currency,
	// returning the persisted rate snapshot a nav can pin.
	GetCurrencyRateAsOf(ctx context.Context, currency string, at time.Time) (*CurrencyRate, error)
}

// LayerAssignmentStrategy decides which risk layer a holding belongs to.
// The roll-forward consults it once per successor holding, so layer policies
// can be swapped without touching the ledger.
type LayerAssignmentStrategy interface {
	AssignLayer(holding *Holding) int
}
