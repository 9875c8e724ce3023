package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding represents one fund's position in exactly one asset for exactly one
// booking period. Holdings of consecutive periods for the same asset form a
// chain: the successor starts where its predecessor ended, linked through
// PreviousHoldingID/NextHoldingID with the period key as the traversal index.
//
// A holding is open until PeriodClosedDateTime is set; only open holdings
// accept new transfer/trade attribution.
type Holding struct {
	ID            uuid.UUID
	FundID        uuid.UUID
	Asset         AssetRef
	BookingPeriod Period
	LayerIndex    int

	StartBalance  decimal.Decimal
	EndBalance    decimal.Decimal
	StartDateTime time.Time
	EndDateTime   time.Time

	// End-of-period valuation, written by the end-balance recalculation.
	EndUSDPrice   decimal.Decimal
	EndBTCPrice   decimal.Decimal
	EndPercentage decimal.Decimal // share of the fund's total value (0-100)

	PeriodClosedDateTime *time.Time // nil while the holding is open

	PreviousHoldingID *uuid.UUID
	NextHoldingID     *uuid.UUID
}

// IsOpen reports whether the holding still accepts transfer/trade attribution.
func (h *Holding) IsOpen() bool {
	return h.PeriodClosedDateTime == nil
}

// EndValueUSD returns the USD value of the holding at period end.
func (h *Holding) EndValueUSD() decimal.Decimal {
	return h.EndBalance.Mul(h.EndUSDPrice)
}

// EndValueBTC returns the BTC value of the holding at period end.
func (h *Holding) EndValueBTC() decimal.Decimal {
	return h.EndBalance.Mul(h.EndBTCPrice)
}

// Validate ensures the holding adheres to domain rules
// Returns an error if validation fails
func (h *Holding) Validate() error {
	if h.FundID == uuid.Nil {
		return errors.New("holding must belong to a fund")
	}
	if err := h.Asset.Validate(); err != nil {
		return fmt.Errorf("holding asset: %w", err)
	}
	if err := h.BookingPeriod.Validate(); err != nil {
		return fmt.Errorf("holding booking period: %w", err)
	}
	if h.LayerIndex < 0 {
		return errors.New("holding layer index cannot be negative")
	}
	return nil
}

// ChainsTo verifies the chain-continuity invariant between this holding and
// its successor: the successor must start exactly where this holding ended,
// in balance, in time and in period sequence.
func (h *Holding) ChainsTo(successor *Holding) error {
	if !h.Asset.Equal(successor.Asset) || h.FundID != successor.FundID {
		return errors.New("holding chain: successor belongs to a different (fund, asset) key")
	}
	if successor.BookingPeriod != h.BookingPeriod.Next() {
		return fmt.Errorf("holding chain: successor period %s does not follow %s",
			successor.BookingPeriod, h.BookingPeriod)
	}
	if !successor.StartBalance.Equal(h.EndBalance) {
		return fmt.Errorf("holding chain: successor start balance %s != end balance %s",
			successor.StartBalance, h.EndBalance)
	}
	if !successor.StartDateTime.Equal(h.EndDateTime) {
		return fmt.Errorf("holding chain: successor start %s != end %s",
			successor.StartDateTime, h.EndDateTime)
	}
	return nil
}
