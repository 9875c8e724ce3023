package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fund represents a fund entity in the domain layer.
// TotalValue, TotalShares and ShareValueHWM are mutable aggregate state: they
// are updated exclusively inside a period close (or its rollback) and every
// read elsewhere is a snapshot.
type Fund struct {
	ID                       uuid.UUID
	Name                     string
	IsActive                 bool
	ReportingCurrency        string // fiat symbol the fund reports in, e.g. "USD"
	PrimaryCryptoCurrency    string // crypto symbol used for the BTC-side valuation, e.g. "BTC"
	AdminFeePercentage       decimal.Decimal // yearly percentage (0-100)
	AdminFeeFrequency        int             // administration-fee bookings per year
	PerformanceFeePercentage decimal.Decimal // percentage (0-100) of gains above the HWM
	ShareSeedValue           decimal.Decimal // gross share value before the first close

	// Aggregate state, owned by the close transaction.
	TotalValue    decimal.Decimal // in ReportingCurrency
	TotalShares   decimal.Decimal
	ShareValueHWM decimal.Decimal // high-water-mark of the gross share value

	Layers     []FundLayer
	Categories []FundCategory
}

// FundLayer represents a risk-classification bucket for holdings within a
// fund, with an aim range the allocation should track and an alert range
// outside of which a close raises a layer alert.
type FundLayer struct {
	Index          int
	Name           string
	AimPercentage  decimal.Decimal
	AlertRangeLow  decimal.Decimal
	AlertRangeHigh decimal.Decimal
}

// FundCategory represents a fund's target allocation for one category.
type FundCategory struct {
	CategoryID    uuid.UUID
	AimPercentage decimal.Decimal
}

// Category represents an asset category used for distribution reporting.
type Category struct {
	ID   uuid.UUID
	Name string
}

// Validate ensures the fund adheres to domain rules
// Returns an error if validation fails
func (f *Fund) Validate() error {
	if f.Name == "" {
		return errors.New("fund name cannot be empty")
	}
	if f.ReportingCurrency == "" {
		return errors.New("fund reporting currency cannot be empty")
	}
	if f.PrimaryCryptoCurrency == "" {
		return errors.New("fund primary crypto currency cannot be empty")
	}
	if f.AdminFeePercentage.IsNegative() || f.AdminFeePercentage.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("administration fee percentage must be between 0 and 100")
	}
	if f.PerformanceFeePercentage.IsNegative() || f.PerformanceFeePercentage.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("performance fee percentage must be between 0 and 100")
	}
	if f.AdminFeeFrequency < 0 || (f.AdminFeeFrequency > 0 && 12%f.AdminFeeFrequency != 0) {
		return errors.New("administration fee frequency must divide 12 bookings per year")
	}
	if f.ShareSeedValue.LessThanOrEqual(decimal.Zero) {
		return errors.New("share seed value must be positive")
	}

	seen := make(map[int]bool)
	for _, layer := range f.Layers {
		if seen[layer.Index] {
			return errors.New("fund layer indexes must be unique")
		}
		seen[layer.Index] = true
		if layer.AlertRangeLow.GreaterThan(layer.AlertRangeHigh) {
			return errors.New("layer alert range low cannot exceed alert range high")
		}
	}

	return nil
}

// Layer returns the fund layer with the given index, if configured.
func (f *Fund) Layer(index int) (*FundLayer, bool) {
	for i := range f.Layers {
		if f.Layers[i].Index == index {
			return &f.Layers[i], true
		}
	}
	return nil, false
}
