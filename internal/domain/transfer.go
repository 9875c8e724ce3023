package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the business meaning of a transfer
type TransactionType string

const (
	TransactionTypeInflow            TransactionType = "INFLOW"
	TransactionTypeOutflow           TransactionType = "OUTFLOW"
	TransactionTypeReward            TransactionType = "REWARD"
	TransactionTypeFee               TransactionType = "FEE"
	TransactionTypeAdministrationFee TransactionType = "ADMINISTRATION_FEE"
	TransactionTypePerformanceFee    TransactionType = "PERFORMANCE_FEE"
)

// TransferDirection represents the sign of a transfer relative to the holding
type TransferDirection string

const (
	TransferDirectionIn  TransferDirection = "IN"
	TransferDirectionOut TransferDirection = "OUT"
)

// Transfer represents an atomic money movement attached to exactly one
// holding. Amount is an absolute value; Direction carries the sign. Investor
// in/out-flows additionally carry the number of fund shares issued or
// redeemed by the movement.
type Transfer struct {
	ID              uuid.UUID
	HoldingID       uuid.UUID
	DateTime        time.Time
	TransactionType TransactionType
	Direction       TransferDirection
	Amount          decimal.Decimal  // absolute, in the holding's asset
	Shares          *decimal.Decimal // investor flows only: shares issued/redeemed

	TransferFee  decimal.Decimal // fee paid for the movement, in the fee holding's asset
	FeeHoldingID *uuid.UUID      // holding the transfer fee was taken from

	OppositeTransferID *uuid.UUID // paired movement, e.g. the other leg of an inter-holding move
	Reference          string
}

// SignedAmount returns the amount with the direction applied.
func (t *Transfer) SignedAmount() decimal.Decimal {
	if t.Direction == TransferDirectionOut {
		return t.Amount.Neg()
	}
	return t.Amount
}

// SignedShares returns the share delta with the direction applied, or zero
// for transfers that do not move shares.
func (t *Transfer) SignedShares() decimal.Decimal {
	if t.Shares == nil {
		return decimal.Zero
	}
	if t.Direction == TransferDirectionOut {
		return t.Shares.Neg()
	}
	return *t.Shares
}

// IsInvestorFlow reports whether the transfer issues or redeems fund shares.
func (t *Transfer) IsInvestorFlow() bool {
	return t.Shares != nil &&
		(t.TransactionType == TransactionTypeInflow || t.TransactionType == TransactionTypeOutflow)
}

// Validate ensures the transfer adheres to domain rules
// Returns an error if validation fails
func (t *Transfer) Validate() error {
	if t.HoldingID == uuid.Nil {
		return errors.New("transfer must be attached to a holding")
	}
	switch t.TransactionType {
	case TransactionTypeInflow, TransactionTypeOutflow, TransactionTypeReward,
		TransactionTypeFee, TransactionTypeAdministrationFee, TransactionTypePerformanceFee:
	default:
		return errors.New("transfer transaction type is not recognized")
	}
	if t.Direction != TransferDirectionIn && t.Direction != TransferDirectionOut {
		return errors.New("transfer direction must be IN or OUT")
	}
	if t.Amount.IsNegative() {
		return errors.New("transfer amount must be an absolute value")
	}
	if t.Shares != nil && t.Shares.IsNegative() {
		return errors.New("transfer shares must be an absolute value")
	}
	if t.TransferFee.IsNegative() {
		return errors.New("transfer fee cannot be negative")
	}
	if !t.TransferFee.IsZero() && t.FeeHoldingID == nil {
		return errors.New("transfer fee requires a fee holding")
	}
	return nil
}
