package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestHolding_IsOpen(t *testing.T) {
	h := &Holding{}
	assert.True(t, h.IsOpen())

	closedAt := time.Now()
	h.PeriodClosedDateTime = &closedAt
	assert.False(t, h.IsOpen())
}

func TestHolding_EndValues(t *testing.T) {
	h := &Holding{
		EndBalance:  decimal.NewFromFloat(1.5),
		EndUSDPrice: decimal.NewFromInt(50000),
		EndBTCPrice: decimal.NewFromInt(1),
	}

	assert.True(t, h.EndValueUSD().Equal(decimal.NewFromInt(75000)))
	assert.True(t, h.EndValueBTC().Equal(decimal.NewFromFloat(1.5)))
}

func TestHolding_Validate(t *testing.T) {
	valid := &Holding{
		ID:            uuid.New(),
		FundID:        uuid.New(),
		Asset:         CryptoAsset("BTC"),
		BookingPeriod: "202401",
	}
	assert.NoError(t, valid.Validate())

	noFund := &Holding{ID: uuid.New(), Asset: CryptoAsset("BTC"), BookingPeriod: "202401"}
	assert.Error(t, noFund.Validate())

	badAsset := &Holding{ID: uuid.New(), FundID: uuid.New(), Asset: AssetRef{Kind: AssetKindCrypto}, BookingPeriod: "202401"}
	assert.Error(t, badAsset.Validate())

	badPeriod := &Holding{ID: uuid.New(), FundID: uuid.New(), Asset: CryptoAsset("BTC"), BookingPeriod: "2024"}
	assert.Error(t, badPeriod.Validate())

	negativeLayer := &Holding{ID: uuid.New(), FundID: uuid.New(), Asset: CryptoAsset("BTC"), BookingPeriod: "202401", LayerIndex: -1}
	assert.Error(t, negativeLayer.Validate())
}

func TestHolding_ChainsTo(t *testing.T) {
	fundID := uuid.New()
	end := time.Date(2024, time.February, 1, 17, 0, 0, 0, time.UTC)

	closed := &Holding{
		ID:            uuid.New(),
		FundID:        fundID,
		Asset:         CryptoAsset("BTC"),
		BookingPeriod: "202401",
		EndBalance:    decimal.NewFromFloat(1.5),
		EndDateTime:   end,
	}
	successor := &Holding{
		ID:            uuid.New(),
		FundID:        fundID,
		Asset:         CryptoAsset("BTC"),
		BookingPeriod: "202402",
		StartBalance:  decimal.NewFromFloat(1.5),
		StartDateTime: end,
	}

	assert.NoError(t, closed.ChainsTo(successor))
}

func TestHolding_ChainsTo_Violations(t *testing.T) {
	fundID := uuid.New()
	end := time.Date(2024, time.February, 1, 17, 0, 0, 0, time.UTC)
	closed := &Holding{
		FundID:        fundID,
		Asset:         CryptoAsset("BTC"),
		BookingPeriod: "202401",
		EndBalance:    decimal.NewFromFloat(1.5),
		EndDateTime:   end,
	}

	otherAsset := &Holding{
		FundID: fundID, Asset: CryptoAsset("ETH"), BookingPeriod: "202402",
		StartBalance: decimal.NewFromFloat(1.5), StartDateTime: end,
	}
	assert.Error(t, closed.ChainsTo(otherAsset))

	skippedPeriod := &Holding{
		FundID: fundID, Asset: CryptoAsset("BTC"), BookingPeriod: "202403",
		StartBalance: decimal.NewFromFloat(1.5), StartDateTime: end,
	}
	assert.Error(t, closed.ChainsTo(skippedPeriod))

	balanceMismatch := &Holding{
		FundID: fundID, Asset: CryptoAsset("BTC"), BookingPeriod: "202402",
		StartBalance: decimal.NewFromInt(2), StartDateTime: end,
	}
	assert.Error(t, closed.ChainsTo(balanceMismatch))

	timeMismatch := &Holding{
		FundID: fundID, Asset: CryptoAsset("BTC"), BookingPeriod: "202402",
		StartBalance: decimal.NewFromFloat(1.5), StartDateTime: end.Add(time.Hour),
	}
	assert.Error(t, closed.ChainsTo(timeMismatch))
}

func TestAssetRef_Key(t *testing.T) {
	assert.Equal(t, "FIAT:EUR", FiatAsset("EUR").Key())
	assert.Equal(t, "CRYPTO:BTC", CryptoAsset("BTC").Key())

	fundID := uuid.New()
	assert.Equal(t, "FUND_SHARES:"+fundID.String(), FundSharesAsset(fundID).Key())

	// Same fund id means the same asset regardless of pointer identity
	assert.True(t, FundSharesAsset(fundID).Equal(FundSharesAsset(fundID)))
}
