package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(-1, "UTC")
	assert.Error(t, err)

	_, err = New(24, "UTC")
	assert.Error(t, err)

	_, err = New(17, "Atlantis/Nowhere")
	assert.Error(t, err)

	cal, err := New(17, "Europe/Amsterdam")
	require.NoError(t, err)
	assert.NotNil(t, cal)
}

func TestCalcBookingPeriod_CloseHourBoundary(t *testing.T) {
	cal := MustNew(17, "UTC")

	// The period flips at the close hour on the first day of the month:
	// 2024-02-01 16:59 still belongs to January, 17:00 starts February.
	beforeClose := time.Date(2024, time.February, 1, 16, 59, 0, 0, time.UTC)
	atClose := time.Date(2024, time.February, 1, 17, 0, 0, 0, time.UTC)
	midMonth := time.Date(2024, time.February, 15, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, domain.Period("202401"), cal.CalcBookingPeriod(beforeClose))
	assert.Equal(t, domain.Period("202402"), cal.CalcBookingPeriod(atClose))
	assert.Equal(t, domain.Period("202402"), cal.CalcBookingPeriod(midMonth))
}

func TestCalcBookingPeriod_ConvertsToReportingTimezone(t *testing.T) {
	cal := MustNew(17, "Europe/Amsterdam")

	// 2024-02-01 16:30 UTC is 17:30 in Amsterdam (CET), past the close hour.
	at := time.Date(2024, time.February, 1, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, domain.Period("202402"), cal.CalcBookingPeriod(at))
}

func TestPeriodStartEnd_HalfOpen(t *testing.T) {
	cal := MustNew(17, "UTC")
	period := domain.Period("202401")

	start := cal.PeriodStart(period)
	end := cal.PeriodEnd(period)

	assert.Equal(t, time.Date(2024, time.January, 1, 17, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.February, 1, 17, 0, 0, 0, time.UTC), end)

	// Consecutive periods tile the timeline without gap or overlap
	assert.Equal(t, end, cal.PeriodStart(cal.NextPeriod(period)))
	assert.Equal(t, start, cal.PeriodEnd(cal.PreviousPeriod(period)))
}

func TestBookAdministrationFee(t *testing.T) {
	cal := MustNew(17, "UTC")

	// Quarterly funds book in March, June, September and December
	quarterly := map[domain.Period]bool{
		"202401": false, "202402": false, "202403": true,
		"202404": false, "202405": false, "202406": true,
		"202409": true, "202412": true,
	}
	for period, want := range quarterly {
		assert.Equal(t, want, cal.BookAdministrationFee(4, period), "frequency 4, period %s", period)
	}

	// Monthly funds book every period, yearly funds only in December
	assert.True(t, cal.BookAdministrationFee(12, "202405"))
	assert.False(t, cal.BookAdministrationFee(1, "202406"))
	assert.True(t, cal.BookAdministrationFee(1, "202412"))

	// A frequency that does not divide the year never books
	assert.False(t, cal.BookAdministrationFee(0, "202412"))
	assert.False(t, cal.BookAdministrationFee(5, "202412"))
}

func TestDailyNavEnd(t *testing.T) {
	cal := MustNew(17, "UTC")

	date := time.Date(2024, time.January, 15, 3, 21, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.January, 15, 17, 0, 0, 0, time.UTC), cal.DailyNavEnd(date))
}
