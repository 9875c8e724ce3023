package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NavType distinguishes period-close valuations from informational snapshots
type NavType string

const (
	// NavTypePeriod is written once per closed booking period. It is
	// immutable after the close and drives HWM and share accounting.
	NavTypePeriod NavType = "PERIOD"
	// NavTypeDaily is an intra-period snapshot. It never mutates fund
	// aggregate state and is overwritten when re-sampled for the same day.
	NavTypeDaily NavType = "DAILY"
)

// Nav represents a point-in-time valuation record for a fund.
// Monetary fields are in the fund's reporting currency; Share* fields are
// per-share values; AdministrationFee and PerformanceFee are period totals.
type Nav struct {
	ID            uuid.UUID
	FundID        uuid.UUID
	Type          NavType
	BookingPeriod Period
	Date          time.Time // valuation instant: period end, or the daily cutoff

	TotalValue  decimal.Decimal
	TotalShares decimal.Decimal

	ShareGross decimal.Decimal // pre-fee share value
	ShareNAV   decimal.Decimal // post-fee share value
	ShareHWM   decimal.Decimal // high-water-mark after this valuation

	AdministrationFee decimal.Decimal
	PerformanceFee    decimal.Decimal

	// Net investor share issuance/redemption within the period.
	InOutValue  decimal.Decimal
	InOutShares decimal.Decimal

	// FX snapshot the valuation was computed with.
	CurrencyRateID uuid.UUID
}

// CurrencyRate represents an FX rate snapshot: how many USD one unit of
// Currency was worth at Date. Navs pin the rate they were computed with.
type CurrencyRate struct {
	ID       uuid.UUID
	Currency string
	USDRate  decimal.Decimal
	Date     time.Time
}

// AssetPrice represents a resolved price for one asset at one instant, on
// both valuation axes.
type AssetPrice struct {
	USDPrice decimal.Decimal
	BTCPrice decimal.Decimal
}

// Validate ensures the nav adheres to domain rules
// Returns an error if validation fails
func (n *Nav) Validate() error {
	if n.FundID == uuid.Nil {
		return errors.New("nav must belong to a fund")
	}
	if n.Type != NavTypePeriod && n.Type != NavTypeDaily {
		return errors.New("nav type must be PERIOD or DAILY")
	}
	if n.Type == NavTypePeriod {
		if err := n.BookingPeriod.Validate(); err != nil {
			return err
		}
	}
	if n.TotalShares.IsNegative() {
		return errors.New("nav total shares cannot be negative")
	}
	if n.ShareHWM.IsNegative() {
		return errors.New("nav share high-water-mark cannot be negative")
	}
	return nil
}
