// Package fee computes administration and performance fees for one booking
// period, gated by the fund's booking frequency and high-water-mark.
package fee

import (
	"errors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input carries everything a fee computation needs. The caller resolves the
// administration-fee gate through the booking-period calendar so the
// calculator itself stays a pure function.
type Input struct {
	ShareGross  decimal.Decimal // pre-fee share value for the period
	PreviousHWM decimal.Decimal // high-water-mark before this close
	TotalShares decimal.Decimal // share base the fees apply to

	AdminFeePercentage       decimal.Decimal // yearly percentage
	AdminFeeFrequency        int             // bookings per year
	PerformanceFeePercentage decimal.Decimal

	BookAdministrationFee bool // calendar gate for this period
}

// Result carries the computed fees. Per-share values feed the net share
// value; the totals are what the nav records in the reporting currency.
type Result struct {
	AdministrationFee         decimal.Decimal // total
	PerformanceFee            decimal.Decimal // total
	AdministrationFeePerShare decimal.Decimal
	PerformanceFeePerShare    decimal.Decimal
	ShareNAV                  decimal.Decimal // gross minus both per-share fees
	NewHWM                    decimal.Decimal // monotonically non-decreasing
}

// Calculator computes the fees of one period close. The formula is
// deliberately behind an interface: funds with different fee contracts swap
// the calculator, not the close path.
type Calculator interface {
	Compute(in Input) (Result, error)
}

// HighWaterMark is the default fee formula:
//
//   - The administration fee charges the yearly percentage spread evenly
//     over the fund's bookings: gross * yearly% / frequency, only in periods
//     the calendar gates open.
//   - The performance fee charges only on the excess of the gross share
//     value above the previous high-water-mark, and only once a mark exists
//     (the first close sets the mark without charging).
//   - The high-water-mark ratchets upward to the gross share value and never
//     resets downward.
type HighWaterMark struct{}

// NewHighWaterMark creates the default fee calculator.
func NewHighWaterMark() HighWaterMark {
	return HighWaterMark{}
}

// Compute derives the period fees from the input.
func (HighWaterMark) Compute(in Input) (Result, error) {
	if in.ShareGross.IsNegative() {
		return Result{}, errors.New("gross share value cannot be negative")
	}
	if in.TotalShares.IsNegative() {
		return Result{}, errors.New("total shares cannot be negative")
	}

	adminPerShare := decimal.Zero
	if in.BookAdministrationFee && in.AdminFeeFrequency > 0 {
		yearly := in.ShareGross.Mul(in.AdminFeePercentage).Div(hundred)
		adminPerShare = yearly.Div(decimal.NewFromInt(int64(in.AdminFeeFrequency)))
	}

	perfPerShare := decimal.Zero
	if in.PreviousHWM.IsPositive() && in.ShareGross.GreaterThan(in.PreviousHWM) {
		excess := in.ShareGross.Sub(in.PreviousHWM)
		perfPerShare = excess.Mul(in.PerformanceFeePercentage).Div(hundred)
	}

	newHWM := in.PreviousHWM
	if in.ShareGross.GreaterThan(newHWM) {
		newHWM = in.ShareGross
	}

	return Result{
		AdministrationFee:         adminPerShare.Mul(in.TotalShares),
		PerformanceFee:            perfPerShare.Mul(in.TotalShares),
		AdministrationFeePerShare: adminPerShare,
		PerformanceFeePerShare:    perfPerShare,
		ShareNAV:                  in.ShareGross.Sub(adminPerShare).Sub(perfPerShare),
		NewHWM:                    newHWM,
	}, nil
}
