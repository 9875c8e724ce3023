package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransfer_SignedAmount(t *testing.T) {
	in := &Transfer{Direction: TransferDirectionIn, Amount: decimal.NewFromFloat(0.5)}
	out := &Transfer{Direction: TransferDirectionOut, Amount: decimal.NewFromFloat(0.5)}

	assert.True(t, in.SignedAmount().Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, out.SignedAmount().Equal(decimal.NewFromFloat(-0.5)))
}

func TestTransfer_SignedShares(t *testing.T) {
	shares := decimal.NewFromInt(10)

	issue := &Transfer{Direction: TransferDirectionIn, Shares: &shares}
	redeem := &Transfer{Direction: TransferDirectionOut, Shares: &shares}
	noShares := &Transfer{Direction: TransferDirectionIn}

	assert.True(t, issue.SignedShares().Equal(decimal.NewFromInt(10)))
	assert.True(t, redeem.SignedShares().Equal(decimal.NewFromInt(-10)))
	assert.True(t, noShares.SignedShares().IsZero())
}

func TestTransfer_IsInvestorFlow(t *testing.T) {
	shares := decimal.NewFromInt(10)

	inflow := &Transfer{TransactionType: TransactionTypeInflow, Shares: &shares}
	outflow := &Transfer{TransactionType: TransactionTypeOutflow, Shares: &shares}
	reward := &Transfer{TransactionType: TransactionTypeReward, Shares: &shares}
	inflowNoShares := &Transfer{TransactionType: TransactionTypeInflow}

	assert.True(t, inflow.IsInvestorFlow())
	assert.True(t, outflow.IsInvestorFlow())
	assert.False(t, reward.IsInvestorFlow())
	assert.False(t, inflowNoShares.IsInvestorFlow())
}

func TestTransfer_Validate(t *testing.T) {
	holdingID := uuid.New()

	valid := &Transfer{
		ID:              uuid.New(),
		HoldingID:       holdingID,
		TransactionType: TransactionTypeInflow,
		Direction:       TransferDirectionIn,
		Amount:          decimal.NewFromFloat(0.5),
	}
	assert.NoError(t, valid.Validate())

	noHolding := *valid
	noHolding.HoldingID = uuid.Nil
	assert.Error(t, noHolding.Validate())

	badType := *valid
	badType.TransactionType = "DIVIDEND"
	assert.Error(t, badType.Validate())

	badDirection := *valid
	badDirection.Direction = "SIDEWAYS"
	assert.Error(t, badDirection.Validate())

	negativeAmount := *valid
	negativeAmount.Amount = decimal.NewFromFloat(-0.5)
	assert.Error(t, negativeAmount.Validate())

	negativeShares := *valid
	shares := decimal.NewFromInt(-1)
	negativeShares.Shares = &shares
	assert.Error(t, negativeShares.Validate())

	// A transfer fee must name the holding it was taken from
	feeWithoutHolding := *valid
	feeWithoutHolding.TransferFee = decimal.NewFromFloat(0.001)
	assert.Error(t, feeWithoutHolding.Validate())

	feeHoldingID := uuid.New()
	feeWithHolding := feeWithoutHolding
	feeWithHolding.FeeHoldingID = &feeHoldingID
	assert.NoError(t, feeWithHolding.Validate())
}
